package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// PostgresRefreshTokenRepo はPostgreSQLを使用したリフレッシュトークンリポジトリ。
type PostgresRefreshTokenRepo struct {
	db *sql.DB
}

// NewPostgresRefreshTokenRepo はPostgresRefreshTokenRepoを生成する。
func NewPostgresRefreshTokenRepo(db *sql.DB) *PostgresRefreshTokenRepo {
	return &PostgresRefreshTokenRepo{db: db}
}

// Upsert はユーザーのリフレッシュトークンを作成または上書きする。
// user_idのUNIQUE制約とON CONFLICTにより、同時実行されても1行に収束する。
func (r *PostgresRefreshTokenRepo) Upsert(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE
		 SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, updated_at = now()`,
		userID, token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert refresh token: %w", err)
	}
	return nil
}

const selectRefreshTokenColumns = `SELECT id, user_id, token, expires_at, created_at, updated_at FROM refresh_tokens`

// FindByUserID はユーザーのリフレッシュトークンを取得する。見つからない場合はnilを返す。
func (r *PostgresRefreshTokenRepo) FindByUserID(ctx context.Context, userID int64) (*model.RefreshToken, error) {
	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, selectRefreshTokenColumns+` WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token by user ID: %w", err)
	}
	return rt, nil
}

// FindByToken はトークン文字列で検索する。見つからない場合はnilを返す。
func (r *PostgresRefreshTokenRepo) FindByToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	rt, err := scanRefreshToken(r.db.QueryRowContext(ctx, selectRefreshTokenColumns+` WHERE token = $1`, token))
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return rt, nil
}

func scanRefreshToken(row *sql.Row) (*model.RefreshToken, error) {
	rt := &model.RefreshToken{}
	err := row.Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.CreatedAt, &rt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// DeleteByUserID はユーザーのリフレッシュトークンを削除する。
func (r *PostgresRefreshTokenRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れのリフレッシュトークンを削除し、削除件数を返す。
func (r *PostgresRefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ RefreshTokenRepository = (*PostgresRefreshTokenRepo)(nil)
