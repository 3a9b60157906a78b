package handler

import (
	"context"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// DBHealthChecker はデータベースの疎通確認に必要な操作。
type DBHealthChecker interface {
	PingContext(ctx context.Context) error
}

// HealthHandler は/healthエンドポイントのハンドラー。
// DBとRedisの両方に疎通できる場合のみ200を返す。
type HealthHandler struct {
	db  DBHealthChecker
	kvs redis.UniversalClient
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db DBHealthChecker, kvs redis.UniversalClient) *HealthHandler {
	return &HealthHandler{
		db:  db,
		kvs: kvs,
	}
}

// Check はヘルスチェックを実行する。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "database",
		})
		return
	}

	if err := h.kvs.Ping(r.Context()).Err(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": "kvs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
