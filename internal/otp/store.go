// Package otp はワンタイムコードの発行・保管・消費を提供する。
// コードはRedisにTTL付きで保管し、期限管理はRedis自体のTTLに委ねる。
package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/authgate/internal/mail"
	"github.com/hitoshi/authgate/internal/model"
)

const keyPrefix = "otp:"

// consumeScript は保管中のコードと供給値が一致した場合のみ削除する。
// 照合と削除を単一の原子的操作にすることで、同一コードの二重消費を防ぐ。
var consumeScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Store はワンタイムコードの発行と消費を管理する。
type Store struct {
	client     redis.UniversalClient
	dispatcher mail.Dispatcher
	ttl        time.Duration
}

// NewStore はStoreを生成する。ttlはコードの有効期間（基準値は180秒）。
func NewStore(client redis.UniversalClient, dispatcher mail.Dispatcher, ttl time.Duration) *Store {
	return &Store{
		client:     client,
		dispatcher: dispatcher,
		ttl:        ttl,
	}
}

// Issue は4桁のワンタイムコードを生成してemail宛に保管・送信する。
// 既存の未期限コードは上書きされ、常に最後に発行されたコードのみが有効。
// 送信に失敗した場合は保管済みのコードを削除してKindDeliveryErrorを返す
// （配送されなかったコードを有効なまま残さない）。送信試行は発行1回につき1回のみ。
func (s *Store) Issue(ctx context.Context, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate one-time code: %w", err)
	}

	key := keyPrefix + email
	if err := s.client.Set(ctx, key, code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store one-time code: %w", err)
	}

	subject, body := buildMessage(code, s.ttl)
	if err := s.dispatcher.Send(ctx, email, subject, body); err != nil {
		// ロールバック失敗時もコードはTTLで自然に消滅する
		if delErr := s.client.Del(ctx, key).Err(); delErr != nil {
			slog.Error("failed to roll back undelivered one-time code",
				slog.String("email", email),
				slog.String("error", delErr.Error()),
			)
		}
		return "", model.NewDeliveryError(err)
	}

	slog.Info("one-time code issued",
		slog.String("email", email),
		slog.Duration("ttl", s.ttl),
	)

	return code, nil
}

// Consume は保管中のコードと供給値を照合する。
// 一致した場合はコードを削除してtrueを返す（以後同じコードは使用不能）。
// 不一致・不存在・期限切れの場合は状態を変更せずfalseを返す。エラーにはしない。
func (s *Store) Consume(ctx context.Context, email, suppliedCode string) (bool, error) {
	if suppliedCode == "" {
		return false, nil
	}

	res, err := consumeScript.Run(ctx, s.client, []string{keyPrefix + email}, suppliedCode).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume one-time code: %w", err)
	}

	return res == 1, nil
}

// generateCode は1000〜9999の一様乱数コードを生成する。
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}

// buildMessage はワンタイムコードを埋め込んだ通知メールの件名と本文を生成する。
func buildMessage(code string, ttl time.Duration) (subject, body string) {
	subject = "ログイン用ワンタイムコード"
	body = fmt.Sprintf(
		"ログイン用のワンタイムコードは %s です。\n有効期限は%d分です。心当たりのない場合はこのメールを破棄してください。\n",
		code, int(ttl.Minutes()),
	)
	return subject, body
}
