package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/authgate/internal/metrics"
	"github.com/hitoshi/authgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// メトリクス
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// 認証
	Verifier       TokenVerifierInterface
	AccountService AccountServiceInterface
	OtpService     OtpServiceInterface
	SessionManager SessionManagerInterface
	AuthConfig     AuthHandlerConfig

	// ヘルスチェック
	DB  DBHealthChecker
	KVS redis.UniversalClient
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → Metrics → CORS
//
// レート制限は/auth/*のみに適用する。/healthと/metricsは運用系の
// エンドポイントのためチェーンの外に近い扱いとし、レート制限を掛けない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(
		deps.Verifier,
		deps.AccountService,
		deps.OtpService,
		deps.SessionManager,
		deps.Metrics,
		deps.AuthConfig,
	)
	healthHandler := NewHealthHandler(deps.DB, deps.KVS)

	// 認証ルート
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/otp/assign", authHandler.AssignOtp)
			r.Post("/otp/login", authHandler.OtpLogin)
			r.Post("/logout", authHandler.Logout)
			r.Post("/delete", authHandler.Delete)
			r.Get("/check-session", authHandler.CheckSession)
		})
	})

	// 運用系ルート
	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	return r
}
