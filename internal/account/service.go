// Package account はユーザー照合と退会のドメインロジックを提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// Service はユーザー照合のサービス層。
// 検証済みの（email, provider）を正準ユーザーレコードへ対応付ける。
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionStore
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, sessions repository.SessionStore) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
	}
}

// Resolve は検証済みの（email, provider）を正準ユーザーレコードへ照合する。
//   - 未登録の場合は新規ユーザーを作成して返す。
//   - 同一プロバイダーで登録済みの場合は既存ユーザーをそのまま返す
//     （nameは後続ログインでは更新しない）。
//   - 別プロバイダーで登録済みの場合はKindCrossProviderConflictを返し、
//     いかなる作成・更新・削除も行わない。emailは最初に登録したプロバイダーに
//     恒久的に束縛される。
//
// lookupとcreateの間の並行競合はemail主キーの一意性制約で検出し、
// ErrDuplicateEmailを通常の既存ユーザー照合として再解決する。
func (s *Service) Resolve(ctx context.Context, email, name string, provider model.Provider) (*model.User, error) {
	if !provider.Valid() {
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if existing != nil {
		if existing.Provider != provider {
			return nil, model.NewCrossProviderConflictError(email, existing.Provider)
		}
		return existing, nil
	}

	newUser := &model.User{
		Email:     email,
		Name:      name,
		Provider:  provider,
		CreatedAt: time.Now(),
	}

	err = s.users.Create(ctx, newUser)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// 並行したResolveに先を越された。既存ユーザーとして再解決する。
		existing, err = s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read user after conflict: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("user vanished after duplicate insert: %s", email)
		}
		if existing.Provider != provider {
			return nil, model.NewCrossProviderConflictError(email, existing.Provider)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("new user created",
		slog.String("email", email),
		slog.String("provider", string(provider)),
	)

	return newUser, nil
}

// Withdraw はユーザーの退会処理を実行する。
// ユーザーレコードの削除とセッションの破棄を1つの論理操作として行う。
// ユーザー削除に失敗した場合はセッションを破棄しない
// （存在しないユーザーの認証済みセッションを残さないための順序保証）。
func (s *Service) Withdraw(ctx context.Context, email, sessionToken string) error {
	if err := s.users.DeleteByEmail(ctx, email); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := s.sessions.Delete(ctx, sessionToken); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user withdrawn",
		slog.String("email", email),
	)

	return nil
}
