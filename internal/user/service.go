// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
)

// Service はユーザー管理のサービス層。
// ログイン時のユーザー準備と退会処理を提供する。
type Service struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, refreshTokenRepo repository.RefreshTokenRepository) *Service {
	return &Service{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
	}
}

// Provision はメールアドレスでユーザーを検索し、存在しなければ作成する。
// 既存ユーザーのニックネームがIdPの表示名と異なる場合は更新する。
func (s *Service) Provision(ctx context.Context, email, nickname string) (*model.User, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	nickname = strings.TrimSpace(nickname)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		user = &model.User{Email: email, Nickname: nickname}
		err := s.userRepo.Create(ctx, user)
		if errors.Is(err, repository.ErrDuplicate) {
			// 同じユーザーの同時ログインで先に作成された
			return s.findCreated(ctx, email)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("user created",
			slog.Int64("user_id", user.ID),
		)
		return user, nil
	}

	if nickname != "" && nickname != user.Nickname {
		if err := s.userRepo.UpdateNickname(ctx, user.ID, nickname); err != nil {
			return nil, fmt.Errorf("failed to update nickname: %w", err)
		}
		user.Nickname = nickname
	}
	return user, nil
}

func (s *Service) findCreated(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: refresh_tokens → users
// 記事はauthor（メールアドレス）で紐づくだけなので残す。
func (s *Service) Withdraw(ctx context.Context, userID int64) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("withdrawal started",
		slog.Int64("user_id", userID),
	)

	if s.refreshTokenRepo != nil {
		if err := s.refreshTokenRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete refresh token: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("withdrawal completed",
		slog.Int64("user_id", userID),
	)
	return nil
}
