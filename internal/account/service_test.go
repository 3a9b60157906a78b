package account

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByEmailFn   func(ctx context.Context, email string) (*model.User, error)
	createFn        func(ctx context.Context, user *model.User) error
	deleteByEmailFn func(ctx context.Context, email string) error

	created []*model.User
	deleted []string
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	m.created = append(m.created, user)
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) DeleteByEmail(ctx context.Context, email string) error {
	m.deleted = append(m.deleted, email)
	if m.deleteByEmailFn != nil {
		return m.deleteByEmailFn(ctx, email)
	}
	return nil
}

type mockSessionStore struct {
	createFn func(ctx context.Context, session *model.Session) error
	findFn   func(ctx context.Context, token string) (*model.Session, error)
	deleteFn func(ctx context.Context, token string) error

	deleted []string
}

func (m *mockSessionStore) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionStore) Find(ctx context.Context, token string) (*model.Session, error) {
	if m.findFn != nil {
		return m.findFn(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionStore) Delete(ctx context.Context, token string) error {
	m.deleted = append(m.deleted, token)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

// --- テスト ---

func TestService_Resolve_CreatesNewUser(t *testing.T) {
	users := &mockUserRepo{}
	svc := NewService(users, &mockSessionStore{})

	user, err := svc.Resolve(context.Background(), "a@x.com", "Ann", model.ProviderGoogle)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if user.Email != "a@x.com" {
		t.Errorf("Email = %q, want %q", user.Email, "a@x.com")
	}
	if user.Provider != model.ProviderGoogle {
		t.Errorf("Provider = %q, want %q", user.Provider, model.ProviderGoogle)
	}
	if len(users.created) != 1 {
		t.Errorf("created %d users, want 1", len(users.created))
	}
}

func TestService_Resolve_SameProvider_ReturnsExistingWithoutMutation(t *testing.T) {
	existing := &model.User{
		Email:     "a@x.com",
		Name:      "Ann",
		Provider:  model.ProviderGoogle,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return existing, nil
		},
	}
	svc := NewService(users, &mockSessionStore{})

	// 別のnameでログインしてもnameは更新されない
	user, err := svc.Resolve(context.Background(), "a@x.com", "Annie", model.ProviderGoogle)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if user.Name != "Ann" {
		t.Errorf("Name = %q, want existing name %q", user.Name, "Ann")
	}
	if len(users.created) != 0 {
		t.Errorf("created %d users, want 0", len(users.created))
	}
}

// 中核の不変条件: 同一emailを別プロバイダーで照合すると拒否され、既存行は変更されない
func TestService_Resolve_CrossProviderConflict(t *testing.T) {
	existing := &model.User{
		Email:    "a@x.com",
		Name:     "Ann",
		Provider: model.ProviderGoogle,
	}
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return existing, nil
		},
	}
	svc := NewService(users, &mockSessionStore{})

	_, err := svc.Resolve(context.Background(), "a@x.com", "Imposter", model.ProviderEmail)
	if err == nil {
		t.Fatal("expected cross-provider conflict")
	}
	if kind := model.KindOf(err); kind != model.KindCrossProviderConflict {
		t.Errorf("KindOf(err) = %v, want KindCrossProviderConflict", kind)
	}

	if len(users.created) != 0 || len(users.deleted) != 0 {
		t.Error("conflicting resolve must not create, update, or delete anything")
	}
	if existing.Provider != model.ProviderGoogle {
		t.Error("stored provider must remain unchanged")
	}
}

// 並行したcreate競合はErrDuplicateEmailを捕捉して既存ユーザーとして再解決する
func TestService_Resolve_DuplicateInsert_ReresolvesAsExistingUser(t *testing.T) {
	winner := &model.User{
		Email:    "a@x.com",
		Name:     "Ann",
		Provider: model.ProviderGoogle,
	}
	calls := 0
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			calls++
			// 1回目のlookupでは未登録、insert競合後の再読込で既存ユーザーが見える
			if calls == 1 {
				return nil, nil
			}
			return winner, nil
		},
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := NewService(users, &mockSessionStore{})

	user, err := svc.Resolve(context.Background(), "a@x.com", "Ann", model.ProviderGoogle)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if user != winner {
		t.Error("expected re-read existing user after duplicate insert")
	}
}

// 競合再読込で別プロバイダーが見えた場合も拒否する
func TestService_Resolve_DuplicateInsert_CrossProviderStillRejected(t *testing.T) {
	calls := 0
	users := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			calls++
			if calls == 1 {
				return nil, nil
			}
			return &model.User{Email: "a@x.com", Provider: model.ProviderGoogle}, nil
		},
		createFn: func(ctx context.Context, user *model.User) error {
			return repository.ErrDuplicateEmail
		},
	}
	svc := NewService(users, &mockSessionStore{})

	_, err := svc.Resolve(context.Background(), "a@x.com", "Ann", model.ProviderEmail)
	if kind := model.KindOf(err); kind != model.KindCrossProviderConflict {
		t.Errorf("KindOf(err) = %v, want KindCrossProviderConflict", kind)
	}
}

func TestService_Resolve_InvalidProvider_ReturnsError(t *testing.T) {
	svc := NewService(&mockUserRepo{}, &mockSessionStore{})

	_, err := svc.Resolve(context.Background(), "a@x.com", "Ann", model.Provider("github"))
	if err == nil {
		t.Fatal("expected error for undefined provider")
	}
}

func TestService_Withdraw_DeletesUserThenSession(t *testing.T) {
	users := &mockUserRepo{}
	sessions := &mockSessionStore{}
	svc := NewService(users, sessions)

	if err := svc.Withdraw(context.Background(), "a@x.com", "token-abc"); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}

	if len(users.deleted) != 1 || users.deleted[0] != "a@x.com" {
		t.Errorf("deleted users = %v, want [a@x.com]", users.deleted)
	}
	if len(sessions.deleted) != 1 || sessions.deleted[0] != "token-abc" {
		t.Errorf("deleted sessions = %v, want [token-abc]", sessions.deleted)
	}
}

// ユーザー削除に失敗した場合はセッションを破棄しない
func TestService_Withdraw_UserDeleteFails_KeepsSession(t *testing.T) {
	users := &mockUserRepo{
		deleteByEmailFn: func(ctx context.Context, email string) error {
			return errors.New("db down")
		},
	}
	sessions := &mockSessionStore{}
	svc := NewService(users, sessions)

	if err := svc.Withdraw(context.Background(), "a@x.com", "token-abc"); err == nil {
		t.Fatal("expected error")
	}

	if len(sessions.deleted) != 0 {
		t.Error("session must not be destroyed when the user delete fails")
	}
}
