package handler

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// loginStartPath はログインページのリンク先。
const loginStartPath = "/oauth2/authorization/google"

// ArticleLister は記事一覧ページが必要とするサービスインターフェース。
type ArticleLister interface {
	List(ctx context.Context) ([]*model.Article, error)
}

// PageHandler はログイン後のリダイレクト先となるHTMLページを返す。
type PageHandler struct {
	articles ArticleLister
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(articles ArticleLister) *PageHandler {
	return &PageHandler{articles: articles}
}

type loginPage struct {
	Title    string
	LoginURL string
	Failed   bool
}

type articlePageItem struct {
	Title     string
	Author    string
	Content   template.HTML
	CreatedAt time.Time
}

type articlesPage struct {
	Title    string
	Articles []articlePageItem
}

// Login はログインページを返す。?errorが付いている場合は失敗メッセージを表示する。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login", loginPage{
		Title:    "ログイン",
		LoginURL: loginStartPath,
		Failed:   r.URL.Query().Has("error"),
	})
}

// Articles は記事一覧ページを返す。
// GET /articles
func (h *PageHandler) Articles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.articles.List(r.Context())
	if err != nil {
		slog.Error("failed to list articles for page", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	items := make([]articlePageItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, articlePageItem{
			Title:  a.Title,
			Author: a.Author,
			// 保存時にサニタイズ済み
			Content:   template.HTML(a.Content),
			CreatedAt: a.CreatedAt,
		})
	}
	h.render(w, "articles", articlesPage{Title: "記事一覧", Articles: items})
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("failed to render page", slog.String("template", name), slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}
