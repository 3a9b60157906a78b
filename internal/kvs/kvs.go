// Package kvs はRedis接続の管理を提供する。
// ワンタイムコードとセッションの保管先として使用する。
package kvs

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Open はRedis接続クライアントを生成する。
// redisURLはRedisの接続URLを指定する（例: "redis://:pass@host:6379/0"）。
// 生成時点では接続を試行しないため、実際の接続確認にはclient.Ping()を使用すること。
func Open(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return redis.NewClient(opts), nil
}
