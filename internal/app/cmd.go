package app

// Command はblogmanバイナリのサブコマンド。
type Command string

const (
	// CommandServe はHTTPサーバー（API・ログイン・記事ページ）を起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れリフレッシュトークンを定期削除するワーカーを起動する。
	CommandWorker Command = "worker"
	// CommandMigrate はusers/refresh_tokens/articlesのスキーマを最新にする。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの /health を叩く。distrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数なしや未知の名前はserve扱い。2番目以降の引数は見ない。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
