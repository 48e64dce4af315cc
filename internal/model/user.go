// Package model はドメインモデルを定義する。
package model

import (
	"strconv"
	"time"
)

// User はブログの利用ユーザーを表す。
// Emailは一意で、OAuthログイン時の突き合わせキーになる。
type User struct {
	ID        int64
	Email     string
	Nickname  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefreshToken はユーザーごとに1件だけ保持されるリフレッシュトークン。
// ログインのたびに同じ行を上書きする。
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal は認証済みリクエストの主体を表す。
// アクセストークンの検証結果から組み立てられる。
type Principal struct {
	UserID int64
	Email  string
}

// Name は記事の作成者として記録される主体名を返す。
func (p Principal) Name() string {
	return p.Email
}

// Subject はトークンのsubクレームに使う文字列表現を返す。
func (u *User) Subject() string {
	return strconv.FormatInt(u.ID, 10)
}
