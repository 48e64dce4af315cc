package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/token"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id int64) (*model.User, error)
	findByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
	updateNicknameFn func(ctx context.Context, id int64, nickname string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateNickname(ctx context.Context, id int64, nickname string) error {
	if m.updateNicknameFn != nil {
		return m.updateNicknameFn(ctx, id, nickname)
	}
	return nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ int64) error {
	return nil
}

// usersWith は指定ユーザーをメールアドレスとIDで引けるモックを返す。
func usersWith(users ...*model.User) *mockUserRepo {
	return &mockUserRepo{
		findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
			for _, u := range users {
				if u.Email == email {
					return u, nil
				}
			}
			return nil, nil
		},
		findByIDFn: func(_ context.Context, id int64) (*model.User, error) {
			for _, u := range users {
				if u.ID == id {
					return u, nil
				}
			}
			return nil, nil
		},
	}
}

// memoryRefreshTokenRepo はuser_idをキーに1件だけ保持するインメモリ実装。
type memoryRefreshTokenRepo struct {
	mu        sync.Mutex
	byUser    map[int64]*model.RefreshToken
	upsertErr error
	nextID    int64
}

func newMemoryRefreshTokenRepo() *memoryRefreshTokenRepo {
	return &memoryRefreshTokenRepo{byUser: make(map[int64]*model.RefreshToken)}
}

func (m *memoryRefreshTokenRepo) Upsert(_ context.Context, userID int64, tok string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if rt, ok := m.byUser[userID]; ok {
		rt.Token = tok
		rt.ExpiresAt = expiresAt
		return nil
	}
	m.nextID++
	m.byUser[userID] = &model.RefreshToken{ID: m.nextID, UserID: userID, Token: tok, ExpiresAt: expiresAt}
	return nil
}

func (m *memoryRefreshTokenRepo) FindByUserID(_ context.Context, userID int64) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.byUser[userID]
	if !ok {
		return nil, nil
	}
	cp := *rt
	return &cp, nil
}

func (m *memoryRefreshTokenRepo) FindByToken(_ context.Context, tok string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.byUser {
		if rt.Token == tok {
			cp := *rt
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryRefreshTokenRepo) DeleteByUserID(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUser, userID)
	return nil
}

func (m *memoryRefreshTokenRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rt := range m.byUser {
		if !rt.ExpiresAt.After(now) {
			delete(m.byUser, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryRefreshTokenRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

type mockOAuthProvider struct {
	newAuthorizationRequestFn func() (*AuthorizationRequest, error)
	authCodeURLFn             func(req *AuthorizationRequest) string
	exchangeCodeFn            func(ctx context.Context, code string, req *AuthorizationRequest) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) NewAuthorizationRequest() (*AuthorizationRequest, error) {
	if m.newAuthorizationRequestFn != nil {
		return m.newAuthorizationRequestFn()
	}
	return &AuthorizationRequest{State: "state-1", RegistrationID: "google"}, nil
}

func (m *mockOAuthProvider) AuthCodeURL(req *AuthorizationRequest) string {
	if m.authCodeURLFn != nil {
		return m.authCodeURLFn(req)
	}
	return "https://idp.example.com/auth?state=" + req.State
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string, req *AuthorizationRequest) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code, req)
	}
	return nil, nil
}

// fakeMetrics は呼び出し回数だけを数えるMetricsCollector。
type fakeMetrics struct {
	mu             sync.Mutex
	loginSuccess   int
	loginFailures  []string
	tokensIssued   map[string]int
	upserts        int
	decodeFailures []string
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{tokensIssued: make(map[string]int)}
}

func (f *fakeMetrics) RecordLoginSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginSuccess++
}

func (f *fakeMetrics) RecordLoginFailure(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginFailures = append(f.loginFailures, reason)
}

func (f *fakeMetrics) RecordTokenIssued(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokensIssued[kind]++
}

func (f *fakeMetrics) RecordRefreshTokenUpserted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
}

func (f *fakeMetrics) RecordCookieDecodeError(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decodeFailures = append(f.decodeFailures, name)
}

func (f *fakeMetrics) RecordHTTPStatus(int)               {}
func (f *fakeMetrics) RecordRequestLatency(time.Duration) {}
func (f *fakeMetrics) RecordRefreshTokensPurged(int64)    {}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.RefreshTokenRepository = (*memoryRefreshTokenRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)

// --- ヘルパー ---

var testNow = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

var testSigningKey = []byte("auth-request-signing-key")

// failingTokenProvider は指定した種別の発行だけ失敗させる。
type failingTokenProvider struct {
	*token.Provider
	failKind token.Kind
}

func (p *failingTokenProvider) GenerateToken(user *model.User, kind token.Kind, expiry time.Duration) (string, error) {
	if kind == p.failKind {
		return "", errors.New("signing failed")
	}
	return p.Provider.GenerateToken(user, kind, expiry)
}

func newTestTokenProvider() *token.Provider {
	return token.NewProvider("blogman", []byte("jwt-secret"), token.WithClock(func() time.Time { return testNow }))
}

// cookieFrom はレスポンスから指定名のCookieを返す。無ければnil。
func cookieFrom(resp *http.Response, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}

// requestWithCookies はレスポンスのSet-Cookieを引き継いだリクエストを作る。
func requestWithCookies(t *testing.T, target string, from *httptest.ResponseRecorder) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range from.Result().Cookies() {
		if c.MaxAge >= 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}
