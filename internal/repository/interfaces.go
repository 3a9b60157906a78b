// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/authgate/internal/model"
)

// ErrDuplicateEmail は同一emailのユーザーが既に存在する場合にCreateが返す。
// 並行したlookup-then-createの競合はこのエラーを捕捉して再読込で解決する。
var ErrDuplicateEmail = errors.New("duplicate email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByEmail は指定emailのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// 同一emailが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// DeleteByEmail は指定emailのユーザーを削除する。
	// 該当ユーザーが存在しない場合はエラーを返す。
	DeleteByEmail(ctx context.Context, email string) error
}

// SessionStore はセッションデータの保管インターフェース。
type SessionStore interface {
	// Create はセッションをTTL付きで保管する。
	Create(ctx context.Context, session *model.Session) error

	// Find は指定トークンのセッションを取得する。不存在・期限切れの場合はnilを返す。
	Find(ctx context.Context, token string) (*model.Session, error)

	// Delete は指定トークンのセッションを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, token string) error
}
