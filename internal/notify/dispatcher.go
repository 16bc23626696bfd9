package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"slices"
	"sync"

	"github.com/nao1215/subtrack/internal/store"
	"github.com/nao1215/subtrack/pkg/webpush"
	"golang.org/x/sync/errgroup"
)

// Sender は1件のプッシュ購読へ暗号化済みメッセージを送る。
// *webpush.Client が実装する。
type Sender interface {
	Send(ctx context.Context, sub webpush.Subscription, payload []byte, opts webpush.Options) error
}

// Registrations は配信先の一覧取得と失効した登録の削除を行う。
type Registrations interface {
	ListPushRegistrations(ctx context.Context) ([]store.PushRegistration, error)
	DeletePushRegistration(ctx context.Context, endpoint string) error
}

// Report は1回のファンアウトの集計結果。
type Report struct {
	// Attempted は送信を試みた登録数。
	Attempted int
	// Delivered はプッシュサービスが受理した数。
	Delivered int
	// Failed は一時的な失敗の数。登録は残る。
	Failed int
	// Pruned は失効として削除したエンドポイント。
	Pruned []string
}

// Dispatcher は登録済みの全ブラウザへ通知をファンアウトする。
type Dispatcher struct {
	// sender はプッシュサービスへの送信を行う。
	sender Sender
	// registrations は配信先の永続化層。
	registrations Registrations
	// workers は同時に送信する最大数。
	workers int
	// opts は送信ごとに付与する既定のヘッダー設定。
	opts webpush.Options
}

// NewDispatcher は新しい Dispatcher を生成する。workersが1未満の場合は1になる。
func NewDispatcher(sender Sender, registrations Registrations, workers int, opts webpush.Options) *Dispatcher {
	return &Dispatcher{
		sender:        sender,
		registrations: registrations,
		workers:       max(workers, 1),
		opts:          opts,
	}
}

// Dispatch は現在の登録一覧を読み込み、全件へ送信する。
// 返すエラーは登録一覧の読み込み失敗のみで、個々の送信失敗は Report に集計する。
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (Report, error) {
	regs, err := d.registrations.ListPushRegistrations(ctx)
	if err != nil {
		return Report{}, err
	}
	return d.Deliver(ctx, msg, regs), nil
}

// Deliver は各登録へ1回ずつ送信を試み、全件の結果が出てから戻る。
// 失効した登録は削除し、それ以外の失敗はログに残して破棄する。
func (d *Dispatcher) Deliver(ctx context.Context, msg Message, regs []store.PushRegistration) Report {
	report := Report{Attempted: len(regs)}
	if len(regs) == 0 {
		return report
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Dispatch] メッセージのエンコードに失敗: %v", err)
		report.Failed = len(regs)
		return report
	}

	opts := d.opts
	if msg.Urgency != "" {
		opts.Urgency = msg.Urgency
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(d.workers)

	for _, reg := range regs {
		g.Go(func() error {
			err := d.sender.Send(ctx, toWebPush(reg), payload, opts)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Delivered++
			case errors.Is(err, webpush.ErrSubscriptionGone):
				report.Pruned = append(report.Pruned, reg.Endpoint)
			default:
				report.Failed++
				log.Printf("[Dispatch] 送信に失敗: endpoint=%s: %v", reg.Endpoint, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, endpoint := range report.Pruned {
		d.prune(ctx, endpoint)
	}
	slices.Sort(report.Pruned)

	log.Printf("[Dispatch] %q: attempted=%d delivered=%d failed=%d pruned=%d",
		msg.Title, report.Attempted, report.Delivered, report.Failed, len(report.Pruned))
	return report
}

// prune は失効したエンドポイントの登録を削除する。
func (d *Dispatcher) prune(ctx context.Context, endpoint string) {
	err := d.registrations.DeletePushRegistration(ctx, endpoint)
	switch {
	case err == nil:
		log.Printf("[Dispatch] 失効した購読を削除: endpoint=%s", endpoint)
	case errors.Is(err, store.ErrNotFound):
		// 別のファンアウトが先に削除している
	default:
		log.Printf("[Dispatch] 失効した購読の削除に失敗: endpoint=%s: %v", endpoint, err)
	}
}

// toWebPush は保存済みの登録を送信先に変換する。
func toWebPush(reg store.PushRegistration) webpush.Subscription {
	return webpush.Subscription{
		Endpoint: reg.Endpoint,
		Keys: webpush.Keys{
			P256dh: reg.P256dh,
			Auth:   reg.Auth,
		},
	}
}
