// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, article, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeNotAuthorized        = "NOT_AUTHORIZED"
	ErrCodeArticleNotFound      = "ARTICLE_NOT_FOUND"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidArticle       = "INVALID_ARTICLE"
	ErrCodeInternal             = "INTERNAL_ERROR"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeCSRFTokenInvalid     = "CSRF_TOKEN_INVALID"
)

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewNotAuthorizedError は記事の作成者以外が変更しようとした場合のエラーを生成する。
func NewNotAuthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthorized,
		Message:  "この記事を変更する権限がありません。",
		Category: "auth",
		Action:   "記事の作成者のアカウントでログインしてください。",
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %d", id),
		Category: "article",
		Action:   "記事IDを確認してください。",
	}
}

// NewInvalidTokenError はトークンが無効または期限切れの場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効か、有効期限が切れています。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は認証が必要な操作を未認証で行った場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidArticleError は記事の入力値が不正な場合のエラーを生成する。
func NewInvalidArticleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArticle,
		Message:  fmt.Sprintf("記事の入力値が不正です: %s", reason),
		Category: "validation",
		Action:   "タイトルと本文を入力してください。",
	}
}

// NewAuthenticationFailedError はログイン処理に失敗した場合のエラーを生成する。
func NewAuthenticationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  "ログインに失敗しました。",
		Category: "auth",
		Action:   "もう一度ログインしてください。",
	}
}

// NewCSRFTokenInvalidError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
