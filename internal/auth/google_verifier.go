package auth

import (
	"context"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/authgate/internal/model"
)

const defaultGoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

// GoogleのIDトークンはissがどちらかの値をとる
var defaultGoogleIssuers = []string{
	"https://accounts.google.com",
	"accounts.google.com",
}

// GoogleVerifierConfig はGoogle IDトークン検証の設定。
type GoogleVerifierConfig struct {
	// Audience は検証対象のOAuthクライアントID。audクレームと一致する必要がある。
	Audience string

	// テスト用にオーバーライド可能
	CertsURL string
	Issuers  []string
}

// GoogleVerifier はGoogle発行のIDトークン（JWT）を検証する。
// 署名鍵はGoogleのJWKSエンドポイントから取得し、keyfuncがキャッシュと更新を行う。
type GoogleVerifier struct {
	config  GoogleVerifierConfig
	keyfunc keyfunc.Keyfunc
}

// googleClaims はGoogle IDトークンのペイロードのうち本システムが使用するクレーム。
type googleClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// NewGoogleVerifier はGoogleVerifierを生成する。
// JWKSの初回取得を行うため、外部ネットワークへのアクセスが発生する。
func NewGoogleVerifier(ctx context.Context, config GoogleVerifierConfig) (*GoogleVerifier, error) {
	if config.Audience == "" {
		return nil, fmt.Errorf("audience is required")
	}
	if config.CertsURL == "" {
		config.CertsURL = defaultGoogleCertsURL
	}
	if len(config.Issuers) == 0 {
		config.Issuers = defaultGoogleIssuers
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{config.CertsURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", config.CertsURL, err)
	}

	return &GoogleVerifier{config: config, keyfunc: kf}, nil
}

// Verify はIDトークンを検証し、信頼済みの（email, name）を返す。
// 副作用はJWKS取得のみで、永続状態は変更しない。
func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (*VerifiedIdentity, error) {
	if assertion == "" {
		return nil, model.NewInvalidTokenError(fmt.Errorf("empty assertion"))
	}

	claims := &googleClaims{}
	token, err := jwt.ParseWithClaims(assertion, claims, v.keyfunc.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.config.Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, model.NewInvalidTokenError(err)
	}
	if !token.Valid {
		return nil, model.NewInvalidTokenError(fmt.Errorf("token is not valid"))
	}

	// issは複数の正規値を許容するためjwt.WithIssuerではなくここで検証する
	if !v.issuerAllowed(claims.Issuer) {
		return nil, model.NewInvalidTokenError(fmt.Errorf("unexpected issuer: %s", claims.Issuer))
	}

	// emailはユーザー照合のキーであり必須
	if claims.Email == "" {
		return nil, model.NewInvalidTokenError(fmt.Errorf("email claim is missing"))
	}

	return &VerifiedIdentity{
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}

func (v *GoogleVerifier) issuerAllowed(issuer string) bool {
	for _, iss := range v.config.Issuers {
		if issuer == iss {
			return true
		}
	}
	return false
}

// compile-time interface check
var _ IdentityVerifier = (*GoogleVerifier)(nil)
