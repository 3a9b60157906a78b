// Package session はサーバーサイドセッションの確立・照会・破棄を提供する。
// セッションは不透明なトークンで識別され、ペイロードはemailのみ。
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// Status はセッション照会の結果を表す。
type Status struct {
	Authenticated bool
	Email         string
}

// Manager はセッションのライフサイクルを管理する。
// 状態遷移はAnonymous→Authenticated→Anonymousのみ。
type Manager struct {
	store  repository.SessionStore
	maxAge int // セッション有効期間（秒）
}

// NewManager はManagerを生成する。
func NewManager(store repository.SessionStore, maxAgeSeconds int) *Manager {
	return &Manager{
		store:  store,
		maxAge: maxAgeSeconds,
	}
}

// Establish は新しいセッションを確立する。
// 必要な検証ステップがすべて成功した後にのみ呼び出すこと。
// 再ログイン時は新しいトークンを発行し、クライアント側のCookieが上書きされる。
func (m *Manager) Establish(ctx context.Context, email string) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		Token:     token,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(m.maxAge) * time.Second),
	}

	if err := m.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("session established",
		slog.String("email", email),
	)

	return session, nil
}

// Check はセッションの状態を照会する。状態遷移を伴わない純粋な読み取りで、
// どの状態からでも安全に呼び出せる。
func (m *Manager) Check(ctx context.Context, token string) (Status, error) {
	if token == "" {
		return Status{}, nil
	}

	session, err := m.store.Find(ctx, token)
	if err != nil {
		return Status{}, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return Status{}, nil
	}

	return Status{
		Authenticated: true,
		Email:         session.Email,
	}, nil
}

// Logout はセッションを破棄する。
// 有効なセッションが存在しない場合はKindNotAuthenticatedを返す。
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return model.NewNotAuthenticatedError()
	}

	session, err := m.store.Find(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return model.NewNotAuthenticatedError()
	}

	if err := m.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out",
		slog.String("email", session.Email),
	)

	return nil
}

// generateToken は暗号的に安全なセッショントークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
