// Package auth は外部発行IDトークンの検証を提供する。
package auth

import "context"

// VerifiedIdentity はIDトークン検証で得られた信頼済みのユーザー情報を表す。
type VerifiedIdentity struct {
	Email string
	Name  string
}

// IdentityVerifier はIDトークン検証のインターフェース。
// 将来的に複数IdPに対応するための抽象化。
type IdentityVerifier interface {
	// Verify はトークン文字列を検証し、信頼済みのユーザー情報を返す。
	// 署名・発行者・audience・有効期限のいずれかが不正な場合、
	// またはemailクレームが欠落している場合はKindInvalidTokenのエラーを返す。
	Verify(ctx context.Context, assertion string) (*VerifiedIdentity, error)
}
