// Package article はブログ記事のドメインロジックを提供する。
package article

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/blogman/internal/auth"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/security"
)

const (
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 200
	// MaxContentLength は本文の最大文字数（サニタイズ後）。
	MaxContentLength = 100000
)

// Input は記事の作成・更新リクエストの入力値。
type Input struct {
	Title   string
	Content string
}

// Service は記事管理のサービス層。
// 参照は誰でも行えるが、更新と削除は作成者本人に限る。
type Service struct {
	repo      repository.ArticleRepository
	sanitizer security.ContentSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ArticleRepository, sanitizer security.ContentSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// List は記事一覧を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.Article, error) {
	articles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	return articles, nil
}

// Get は指定IDの記事を返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Article, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewArticleNotFoundError(id)
	}
	return a, nil
}

// Create は主体を作成者として記事を作成する。
func (s *Service) Create(ctx context.Context, principal model.Principal, in Input) (*model.Article, error) {
	if principal.Name() == "" {
		return nil, model.NewUnauthorizedError()
	}
	title, content, err := s.clean(in)
	if err != nil {
		return nil, err
	}

	a := &model.Article{
		Title:   title,
		Content: content,
		Author:  principal.Name(),
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("記事の作成に失敗しました: %w", err)
	}

	slog.Info("article created",
		slog.Int64("article_id", a.ID),
		slog.Int64("user_id", principal.UserID),
	)
	return a, nil
}

// Update は作成者本人であることを確認してから記事を更新する。
func (s *Service) Update(ctx context.Context, principal model.Principal, id int64, in Input) (*model.Article, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.AuthorizeArticleAuthor(a, principal.Name()); err != nil {
		slog.Warn("article update denied",
			slog.Int64("article_id", id),
			slog.Int64("user_id", principal.UserID),
		)
		return nil, err
	}

	title, content, err := s.clean(in)
	if err != nil {
		return nil, err
	}
	a.Update(title, content)

	if err := s.repo.Update(ctx, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewArticleNotFoundError(id)
		}
		return nil, fmt.Errorf("記事の更新に失敗しました: %w", err)
	}
	return a, nil
}

// Delete は作成者本人であることを確認してから記事を削除する。
func (s *Service) Delete(ctx context.Context, principal model.Principal, id int64) error {
	a, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.AuthorizeArticleAuthor(a, principal.Name()); err != nil {
		slog.Warn("article delete denied",
			slog.Int64("article_id", id),
			slog.Int64("user_id", principal.UserID),
		)
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewArticleNotFoundError(id)
		}
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}

	slog.Info("article deleted",
		slog.Int64("article_id", id),
		slog.Int64("user_id", principal.UserID),
	)
	return nil
}

// clean は入力値をサニタイズし、空や長すぎる値を拒否する。
func (s *Service) clean(in Input) (string, string, error) {
	title := s.sanitizer.SanitizeTitle(in.Title)
	content := strings.TrimSpace(s.sanitizer.SanitizeContent(in.Content))

	switch {
	case title == "":
		return "", "", model.NewInvalidArticleError("title is empty")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		return "", "", model.NewInvalidArticleError(fmt.Sprintf("title exceeds %d characters", MaxTitleLength))
	case content == "":
		return "", "", model.NewInvalidArticleError("content is empty")
	case utf8.RuneCountInString(content) > MaxContentLength:
		return "", "", model.NewInvalidArticleError(fmt.Sprintf("content exceeds %d characters", MaxContentLength))
	}
	return title, content, nil
}
