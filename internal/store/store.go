package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/subtrack/internal/config"
)

// ErrNotFound は指定したIDまたはエンドポイントのレコードが存在しないことを表す。
var ErrNotFound = errors.New("レコードが見つかりません")

// Status はサブスクリプションの支払状態を表す。
type Status string

const (
	// StatusDue は未払いであることを表す。
	StatusDue Status = "Due"
	// StatusPaid は支払済みであることを表す。
	StatusPaid Status = "Paid"
)

// Valid は既知の状態かどうかを返す。
func (s Status) Valid() bool {
	return s == StatusDue || s == StatusPaid
}

// Toggle は Due と Paid を入れ替えた状態を返す。
func (s Status) Toggle() Status {
	if s == StatusPaid {
		return StatusDue
	}
	return StatusPaid
}

// Subscription は追跡対象のサブスクリプションを表す。
type Subscription struct {
	// ID はサブスクリプションの一意識別子。
	ID string
	// Name はサービス名。
	Name string
	// Cost は料金（ZAR）。
	Cost float64
	// DueDate は次回支払日。未設定の場合はnil。
	DueDate *Date
	// Status は支払状態。
	Status Status
	// CreatedAt はサーバーが記録した作成日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
	// LastNotifiedOn は期限通知を最後に送った日。
	LastNotifiedOn *Date
}

// NewSubscription はサブスクリプション作成時の入力。
type NewSubscription struct {
	Name    string
	Cost    float64
	DueDate *Date
	// Status が空の場合は StatusDue になる。
	Status Status
}

// SubscriptionPatch は部分更新の入力。nilのフィールドは変更しない。
type SubscriptionPatch struct {
	Name    *string
	Cost    *float64
	DueDate *Date
	Status  *Status
}

// resetsNotification は期限通知の送信記録を消すべき変更かどうかを返す。
func (p SubscriptionPatch) resetsNotification() bool {
	return p.DueDate != nil || p.Status != nil
}

// PushRegistration はブラウザのプッシュ購読を表す。
type PushRegistration struct {
	// Endpoint はプッシュサービスが発行したURL。登録の一意キー。
	Endpoint string
	// P256dh は購読者の公開鍵。
	P256dh string
	// Auth は購読者の認証シークレット。
	Auth string
	// ExpirationTime はブラウザが通知した有効期限（UNIXミリ秒）。
	ExpirationTime *int64
	// CreatedAt は初回登録日時。
	CreatedAt time.Time
	// UpdatedAt は最終更新日時。
	UpdatedAt time.Time
}

// SubscriptionStore はサブスクリプションの永続化操作。
type SubscriptionStore interface {
	// ListSubscriptions は支払日の昇順（未設定は末尾）で全件を返す。
	ListSubscriptions(ctx context.Context) ([]Subscription, error)
	// GetSubscription はIDで1件を返す。存在しない場合は ErrNotFound。
	GetSubscription(ctx context.Context, id string) (Subscription, error)
	// CreateSubscription は作成日時を記録して保存し、保存結果を返す。
	CreateSubscription(ctx context.Context, in NewSubscription) (Subscription, error)
	// UpdateSubscription は指定フィールドをマージし、更新後の値を返す。
	UpdateSubscription(ctx context.Context, id string, patch SubscriptionPatch) (Subscription, error)
	// DeleteSubscription はIDで1件を削除する。存在しない場合は ErrNotFound。
	DeleteSubscription(ctx context.Context, id string) error
	// MarkNotified は期限通知を送った日を記録する。
	MarkNotified(ctx context.Context, id string, on Date) error
}

// PushRegistrationStore はプッシュ購読の永続化操作。
type PushRegistrationStore interface {
	// ListPushRegistrations は全件を返す。
	ListPushRegistrations(ctx context.Context) ([]PushRegistration, error)
	// UpsertPushRegistration はエンドポイントをキーに登録または上書きする。
	UpsertPushRegistration(ctx context.Context, reg PushRegistration) error
	// DeletePushRegistration はエンドポイントで削除する。存在しない場合は ErrNotFound。
	DeletePushRegistration(ctx context.Context, endpoint string) error
}

// Store は両方の永続化操作と接続のライフサイクルを持つ。
type Store interface {
	SubscriptionStore
	PushRegistrationStore
	// Close は接続を閉じる。
	Close(ctx context.Context) error
}

// Open は設定に応じたバックエンドに接続する。
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case config.DriverMongo:
		return OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("未対応のストアドライバです: %q", cfg.Driver)
	}
}
