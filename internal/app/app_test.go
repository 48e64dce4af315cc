package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogman/internal/config"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.DatabaseURL != testDatabaseURL {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, testDatabaseURL)
	}

	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = setDefaultLevel() })

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	slog.Default().Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("LOG_LEVEL=warn ではINFOログを出力しない: %s", buf.String())
	}
}

func TestInit_InvalidLogLevel_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	var buf bytes.Buffer
	if _, err := Init(&buf); err == nil {
		t.Fatal("不正なLOG_LEVELはエラーになるべき")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	clearTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestNewServer_WiresRoutes(t *testing.T) {
	setTestEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	srv := newServer(cfg, db, prometheus.NewRegistry())
	defer srv.rateLimiter.Stop()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantInBody string
	}{
		{name: "ヘルスチェック", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantInBody: `"ok"`},
		{name: "ログインページ", method: http.MethodGet, path: "/login", wantStatus: http.StatusOK},
		{name: "メトリクス", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK, wantInBody: "blogman_login_success_total"},
		{name: "ログイン開始", method: http.MethodGet, path: "/oauth2/authorization/google", wantStatus: http.StatusFound},
		{name: "未認証の記事作成", method: http.MethodPost, path: "/api/articles", wantStatus: http.StatusUnauthorized},
		{name: "Cookieなしのトークン発行", method: http.MethodPost, path: "/api/token", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			srv.handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantInBody != "" && !strings.Contains(w.Body.String(), tt.wantInBody) {
				t.Errorf("body should contain %q, got %s", tt.wantInBody, w.Body.String())
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNewServer_LoginRedirectCarriesSignedRequest(t *testing.T) {
	setTestEnv(t)
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	srv := newServer(cfg, db, prometheus.NewRegistry())
	defer srv.rateLimiter.Stop()

	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/oauth2/authorization/google", nil))

	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Errorf("Location = %q, want Google authorization endpoint", loc)
	}
	if !strings.Contains(loc, "code_challenge_method=S256") {
		t.Errorf("PKCEのチャレンジが含まれていない: %q", loc)
	}

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "oauth2_auth_request" {
			found = true
			if !strings.Contains(c.Value, ".") {
				t.Errorf("認可リクエストCookieが署名されていない: %q", c.Value)
			}
		}
	}
	if !found {
		t.Error("認可リクエストCookieが設定されていない")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	got := maskDatabaseURL(testDatabaseURL)
	if strings.Contains(got, "pass") {
		t.Errorf("maskDatabaseURL() = %q, should not contain credentials", got)
	}
	if maskDatabaseURL("short") != "***" {
		t.Errorf("短いURLは全体をマスクする")
	}
}
