package model

import "time"

// Article はブログ記事を表す。
// Authorには作成者の主体名（メールアドレス）を保存する。
type Article struct {
	ID        int64
	Title     string
	Content   string
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Update はタイトルと本文を書き換える。
func (a *Article) Update(title, content string) {
	a.Title = title
	a.Content = content
}
