// Package model はドメインモデルを定義する。
package model

import "time"

// Provider はユーザーが最初に登録した認証プロバイダーを表す。
type Provider string

const (
	// ProviderGoogle はGoogle OAuthによる登録を示す。
	ProviderGoogle Provider = "google"
	// ProviderEmail はワンタイムコードによるメール登録を示す。
	ProviderEmail Provider = "email"
)

// Valid はプロバイダー値が定義済みのいずれかであることを検証する。
func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderEmail
}

// User はサービス利用ユーザーを表す。
// emailが主キーであり、providerは作成時に一度だけ設定され以後変更されない。
// 同一emailを別プロバイダーで登録し直すことはできない（アカウント乗っ取り防止）。
type User struct {
	Email     string
	Name      string
	Provider  Provider
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// Tokenはクライアントが保持する不透明な識別子で、ペイロードはemailのみ。
type Session struct {
	Token     string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}
