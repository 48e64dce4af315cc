package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/blogman/internal/article"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	beginLoginFn       func(w http.ResponseWriter, r *http.Request) error
	completeLoginFn    func(w http.ResponseWriter, r *http.Request) error
	issueAccessTokenFn func(ctx context.Context, refreshToken string) (string, error)
	logoutFn           func(ctx context.Context, principal model.Principal) error
}

func (m *mockAuthService) BeginLogin(w http.ResponseWriter, r *http.Request) error {
	if m.beginLoginFn != nil {
		return m.beginLoginFn(w, r)
	}
	return nil
}

func (m *mockAuthService) CompleteLogin(w http.ResponseWriter, r *http.Request) error {
	if m.completeLoginFn != nil {
		return m.completeLoginFn(w, r)
	}
	return nil
}

func (m *mockAuthService) IssueAccessToken(ctx context.Context, refreshToken string) (string, error) {
	if m.issueAccessTokenFn != nil {
		return m.issueAccessTokenFn(ctx, refreshToken)
	}
	return "", model.NewInvalidTokenError()
}

func (m *mockAuthService) Logout(ctx context.Context, principal model.Principal) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, principal)
	}
	return nil
}

type mockArticleService struct {
	listFn   func(ctx context.Context) ([]*model.Article, error)
	getFn    func(ctx context.Context, id int64) (*model.Article, error)
	createFn func(ctx context.Context, principal model.Principal, in article.Input) (*model.Article, error)
	updateFn func(ctx context.Context, principal model.Principal, id int64, in article.Input) (*model.Article, error)
	deleteFn func(ctx context.Context, principal model.Principal, id int64) error
}

func (m *mockArticleService) List(ctx context.Context) ([]*model.Article, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockArticleService) Get(ctx context.Context, id int64) (*model.Article, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewArticleNotFoundError(id)
}

func (m *mockArticleService) Create(ctx context.Context, principal model.Principal, in article.Input) (*model.Article, error) {
	if m.createFn != nil {
		return m.createFn(ctx, principal, in)
	}
	return nil, nil
}

func (m *mockArticleService) Update(ctx context.Context, principal model.Principal, id int64, in article.Input) (*model.Article, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, principal, id, in)
	}
	return nil, nil
}

func (m *mockArticleService) Delete(ctx context.Context, principal model.Principal, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, principal, id)
	}
	return nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	withdrawFn func(ctx context.Context, userID int64) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID int64) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// --- compile-time interface checks ---
var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ ArticleServiceInterface = (*mockArticleService)(nil)
var _ UserServiceInterface = (*mockUserService)(nil)

// --- ヘルパー ---

var testPrincipal = model.Principal{UserID: 1, Email: "author@example.com"}

// withPrincipal はリクエストコンテキストに認証主体を注入する。
func withPrincipal(r *http.Request, p model.Principal) *http.Request {
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), p))
}
