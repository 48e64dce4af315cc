// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("record not found")

// ErrDuplicate は一意制約に違反した場合のエラー。
var ErrDuplicate = errors.New("duplicate record")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDとタイムスタンプをuserに設定する。
	Create(ctx context.Context, user *model.User) error

	// UpdateNickname はユーザーのニックネームを更新する。
	UpdateNickname(ctx context.Context, id int64, nickname string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するrefresh_tokensはCASCADE削除される。
	DeleteByID(ctx context.Context, id int64) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
// ユーザーごとに最大1件を保持する。
type RefreshTokenRepository interface {
	// Upsert はユーザーのリフレッシュトークンを作成または上書きする。
	// 同一ユーザーの同時ログインでも1件に収束する。
	Upsert(ctx context.Context, userID int64, token string, expiresAt time.Time) error

	// FindByUserID はユーザーのリフレッシュトークンを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID int64) (*model.RefreshToken, error)

	// FindByToken はトークン文字列で検索する。見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.RefreshToken, error)

	// DeleteByUserID はユーザーのリフレッシュトークンを削除する。存在しなくてもエラーにしない。
	DeleteByUserID(ctx context.Context, userID int64) error

	// DeleteExpired は期限切れのリフレッシュトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ArticleRepository はブログ記事の永続化インターフェース。
type ArticleRepository interface {
	// List は記事一覧を作成日時の降順で返す。
	List(ctx context.Context) ([]*model.Article, error)

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Article, error)

	// Create は記事を作成し、採番されたIDとタイムスタンプをarticleに設定する。
	Create(ctx context.Context, article *model.Article) error

	// Update は記事のタイトルと本文を更新する。
	Update(ctx context.Context, article *model.Article) error

	// Delete は指定IDの記事を削除する。
	Delete(ctx context.Context, id int64) error
}
