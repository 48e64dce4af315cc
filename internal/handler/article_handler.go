package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogman/internal/article"
	"github.com/hitoshi/blogman/internal/model"
)

// maxArticleRequestBytes は記事作成・更新リクエストのボディ上限。
const maxArticleRequestBytes = 1 << 20

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	List(ctx context.Context) ([]*model.Article, error)
	Get(ctx context.Context, id int64) (*model.Article, error)
	Create(ctx context.Context, principal model.Principal, in article.Input) (*model.Article, error)
	Update(ctx context.Context, principal model.Principal, id int64, in article.Input) (*model.Article, error)
	Delete(ctx context.Context, principal model.Principal, id int64) error
}

// ArticleHandler は記事CRUDのHTTPハンドラー。
// 参照は認証不要、変更系は認証主体が必要。
type ArticleHandler struct {
	service ArticleServiceInterface
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface) *ArticleHandler {
	return &ArticleHandler{service: service}
}

// articleRequest は記事作成・更新リクエストのボディ。
type articleRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// articleResponse は記事のAPIレスポンス。
type articleResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListArticles は記事一覧を返す。
// GET /api/articles
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		resp = append(resp, toArticleResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetArticle は記事詳細を返す。
// GET /api/articles/{id}
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := articleIDParam(w, r)
	if !ok {
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(a))
}

// CreateArticle は認証主体を作成者として記事を作成する。
// POST /api/articles
func (h *ArticleHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	in, ok := decodeArticleRequest(w, r)
	if !ok {
		return
	}

	a, err := h.service.Create(r.Context(), principal, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArticleResponse(a))
}

// UpdateArticle は記事を更新する。作成者以外は403。
// PUT /api/articles/{id}
func (h *ArticleHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := articleIDParam(w, r)
	if !ok {
		return
	}
	in, ok := decodeArticleRequest(w, r)
	if !ok {
		return
	}

	a, err := h.service.Update(r.Context(), principal, id, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(a))
}

// DeleteArticle は記事を削除する。作成者以外は403。
// DELETE /api/articles/{id}
func (h *ArticleHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	id, ok := articleIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// articleIDParam はURLパスの記事IDを解析する。不正な場合は400を書き込む。
func articleIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "記事IDが不正です。",
			Category: "validation",
			Action:   "記事IDを確認してください。",
		})
		return 0, false
	}
	return id, true
}

func decodeArticleRequest(w http.ResponseWriter, r *http.Request) (article.Input, bool) {
	var req articleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxArticleRequestBytes)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return article.Input{}, false
	}
	return article.Input{Title: req.Title, Content: req.Content}, true
}

// toArticleResponse はmodel.ArticleからAPIレスポンスに変換する。
func toArticleResponse(a *model.Article) articleResponse {
	return articleResponse{
		ID:        a.ID,
		Title:     a.Title,
		Content:   a.Content,
		Author:    a.Author,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
