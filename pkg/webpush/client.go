package webpush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	wp "github.com/SherClockHolmes/webpush-go"
)

// Keys はブラウザの PushSubscription に含まれる暗号化用の鍵。
type Keys struct {
	// P256dh は購読者のP-256公開鍵(Base64)。
	P256dh string `json:"p256dh"`
	// Auth は購読者の認証シークレット(Base64)。
	Auth string `json:"auth"`
}

// Subscription はブラウザの PushSubscription.toJSON() に対応する送信先。
type Subscription struct {
	// Endpoint はプッシュサービスが発行した送信先URL。
	Endpoint string `json:"endpoint"`
	// Keys はペイロード暗号化用の鍵。
	Keys Keys `json:"keys"`
}

// Urgency はプッシュメッセージの緊急度を表す。
type Urgency string

const (
	// UrgencyVeryLow は省電力状態でも配信を遅らせてよいメッセージ。
	UrgencyVeryLow Urgency = "very-low"
	// UrgencyLow は低優先度のメッセージ。
	UrgencyLow Urgency = "low"
	// UrgencyNormal は通常のメッセージ。
	UrgencyNormal Urgency = "normal"
	// UrgencyHigh は即時配信すべきメッセージ。
	UrgencyHigh Urgency = "high"
)

// Options は1回の送信に付与するヘッダー設定。
type Options struct {
	// TTL はプッシュサービスがメッセージを保持する時間。
	TTL time.Duration
	// Urgency はメッセージの緊急度。空の場合はヘッダーを付与しない。
	Urgency Urgency
	// Topic は同一トピックの未配信メッセージを置き換えるための識別子。
	Topic string
}

// Client はプッシュサービスへの送信クライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// keys は正規化済みのVAPID鍵ペア。
	keys VAPIDKeys
	// subscriber はVAPID JWTのsubに載せる連絡先。
	subscriber string
}

// New は新しいプッシュ送信クライアントを生成する。
// subjectには運用者の連絡先（例: "mailto:ops@example.com"）を指定する。
func New(keys VAPIDKeys, subject string) (*Client, error) {
	normalized, err := normalizeVAPIDKeys(keys)
	if err != nil {
		return nil, err
	}
	subscriber, err := subscriberOf(subject)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		keys:       normalized,
		subscriber: subscriber,
	}, nil
}

// PublicKey はクライアント側の pushManager.subscribe() に渡す
// applicationServerKey を返す。
func (c *Client) PublicKey() string {
	return c.keys.PublicKey
}

// Send はペイロードを暗号化して購読者のエンドポイントへ1回だけ送信する。
// プッシュサービスが404/410を返した場合は ErrSubscriptionGone をラップしたエラーを返す。
func (c *Client) Send(ctx context.Context, sub Subscription, payload []byte, opts Options) error {
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %dバイト (上限 %dバイト)", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	keys, err := normalizeKeys(sub.Keys)
	if err != nil {
		return err
	}

	resp, err := wp.SendNotificationWithContext(ctx, payload, &wp.Subscription{
		Endpoint: sub.Endpoint,
		Keys: wp.Keys{
			Auth:   keys.Auth,
			P256dh: keys.P256dh,
		},
	}, &wp.Options{
		HTTPClient:      c.httpClient,
		Subscriber:      c.subscriber,
		Topic:           opts.Topic,
		TTL:             int(max(opts.TTL, 0) / time.Second),
		Urgency:         wp.Urgency(opts.Urgency),
		VAPIDPublicKey:  c.keys.PublicKey,
		VAPIDPrivateKey: c.keys.PrivateKey,
	})
	if err != nil {
		if errors.Is(err, wp.ErrMaxPadExceeded) {
			return fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
		}
		return fmt.Errorf("プッシュ通知の送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
