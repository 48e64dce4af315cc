package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// List は記事一覧を作成日時の降順で返す。
func (r *PostgresArticleRepo) List(ctx context.Context) ([]*model.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, content, author, created_at, updated_at
		 FROM articles
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]*model.Article, 0)
	for rows.Next() {
		a := &model.Article{}
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.Author, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id int64) (*model.Article, error) {
	a := &model.Article{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, content, author, created_at, updated_at
		 FROM articles WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Title, &a.Content, &a.Author, &a.CreatedAt, &a.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find article by ID: %w", err)
	}
	return a, nil
}

// Create は記事を作成し、採番されたIDとタイムスタンプをarticleに設定する。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO articles (title, content, author)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		article.Title, article.Content, article.Author,
	).Scan(&article.ID, &article.CreatedAt, &article.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

// Update は記事のタイトルと本文を更新する。updated_atはarticleに反映される。
func (r *PostgresArticleRepo) Update(ctx context.Context, article *model.Article) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE articles SET title = $1, content = $2, updated_at = now()
		 WHERE id = $3
		 RETURNING updated_at`,
		article.Title, article.Content, article.ID,
	).Scan(&article.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("article %d: %w", article.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update article: %w", err)
	}
	return nil
}

// Delete は指定IDの記事を削除する。
func (r *PostgresArticleRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM articles WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	return expectAffected(result, "article", id)
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
