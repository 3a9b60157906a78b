// Package mail はワンタイムコード等の通知メール送信を提供する。
package mail

import "context"

// Dispatcher は通知メール送信のインターフェース。
// 送信失敗は呼び出し元の操作全体の失敗として扱われる（自動リトライなし）。
type Dispatcher interface {
	// Send は指定アドレスへメールを1通送信する。
	Send(ctx context.Context, to, subject, body string) error
}
