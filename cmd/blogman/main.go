// Command blogman はブログAPIサーバー、トークン削除ワーカー、マイグレーションを起動する。
//
//	blogman [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/blogman/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "blogman: %v\n", err)
		os.Exit(1)
	}
}
