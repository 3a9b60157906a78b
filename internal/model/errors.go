// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrorKind は認証フローで発生するエラーの閉じた分類。
// 各コンポーネントは境界を越える前にエラーを必ずいずれかのKindへ分類し、
// HTTP層はKindに対するswitchのみでステータスとレスポンスを決定する。
type ErrorKind int

const (
	// KindUnknown は分類不能なエラー。常に汎用500として返し詳細は漏らさない。
	KindUnknown ErrorKind = iota
	// KindInvalidToken はIDトークンの欠落・不正・期限切れ・audience不一致、
	// または検証済みペイロードにemailクレームがない場合。
	KindInvalidToken
	// KindCrossProviderConflict は同一emailが別プロバイダーで登録済みの場合。
	KindCrossProviderConflict
	// KindOtpMismatch はワンタイムコードの不存在・期限切れ・不一致。
	KindOtpMismatch
	// KindNotAuthenticated はセッションなしでのlogout/delete等の操作。
	KindNotAuthenticated
	// KindDeliveryError はワンタイムコードのメール配送失敗。
	KindDeliveryError
)

// クライアントに返すエラーコード
const (
	CodeMissingToken          = "missing-token"
	CodeInvalidToken          = "invalid-token"
	CodeAlreadyAuthenticated  = "already-authenticated"
	CodeCrossProviderConflict = "cross-provider-conflict"
	CodeInvalidOTP            = "invalid-otp"
	CodeNotAuthenticated      = "not-authenticated"
	CodeDeliveryFailed        = "delivery-failed"
	CodeUnknown               = "unknown-error"
)

// AuthError は分類済みの認証エラーを表す。
type AuthError struct {
	Kind    ErrorKind
	Code    string // クライアントに返すエラーコード
	Message string // クライアントに返すメッセージ
	Err     error  // 内部原因。ログ専用でレスポンスには含めない。
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は内部原因を返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewInvalidTokenError はIDトークン検証失敗エラーを生成する。
func NewInvalidTokenError(err error) *AuthError {
	return &AuthError{
		Kind:    KindInvalidToken,
		Code:    CodeInvalidToken,
		Message: "IDトークンを検証できませんでした。",
		Err:     err,
	}
}

// NewCrossProviderConflictError はプロバイダー競合エラーを生成する。
func NewCrossProviderConflictError(email string, existing Provider) *AuthError {
	return &AuthError{
		Kind:    KindCrossProviderConflict,
		Code:    CodeCrossProviderConflict,
		Message: "このメールアドレスは別のログイン方法で登録済みです。",
		Err:     fmt.Errorf("email %s already registered with provider %s", email, existing),
	}
}

// NewOtpMismatchError はワンタイムコード不一致エラーを生成する。
func NewOtpMismatchError() *AuthError {
	return &AuthError{
		Kind:    KindOtpMismatch,
		Code:    CodeInvalidOTP,
		Message: "ワンタイムコードが無効です。",
	}
}

// NewNotAuthenticatedError は未認証操作エラーを生成する。
func NewNotAuthenticatedError() *AuthError {
	return &AuthError{
		Kind:    KindNotAuthenticated,
		Code:    CodeNotAuthenticated,
		Message: "ログインしていません。",
	}
}

// NewDeliveryError はメール配送失敗エラーを生成する。
func NewDeliveryError(err error) *AuthError {
	return &AuthError{
		Kind:    KindDeliveryError,
		Code:    CodeDeliveryFailed,
		Message: "ワンタイムコードの送信に失敗しました。",
		Err:     err,
	}
}

// NewUnknownError は分類不能エラーを生成する。
func NewUnknownError(err error) *AuthError {
	return &AuthError{
		Kind:    KindUnknown,
		Code:    CodeUnknown,
		Message: "内部エラーが発生しました。",
		Err:     err,
	}
}

// KindOf はエラーからKindを取り出す。AuthErrorでない場合はKindUnknownを返す。
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// AsAuthError はエラーをAuthErrorへ変換する。
// 分類済みでない場合はKindUnknownのAuthErrorにラップして返す。
func AsAuthError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return NewUnknownError(err)
}
