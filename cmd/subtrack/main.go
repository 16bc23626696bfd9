// subtrackサーバーのエントリポイント。
// サブスクリプションの管理APIとPWAを配信し、変更のたびに
// 登録済みブラウザへWeb Push通知をファンアウトする。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/subtrack/internal/config"
	"github.com/nao1215/subtrack/internal/notify"
	"github.com/nao1215/subtrack/internal/store"
	"github.com/nao1215/subtrack/internal/subscription"
	"github.com/nao1215/subtrack/pkg/webpush"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("subtrackの起動に失敗: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.WithoutCancel(ctx)); err != nil {
			log.Printf("ストアのクローズに失敗: %v", err)
		}
	}()

	pushClient, err := webpush.New(webpush.VAPIDKeys{
		PublicKey:  cfg.Push.VAPIDPublicKey,
		PrivateKey: cfg.Push.VAPIDPrivateKey,
	}, cfg.Push.Subject)
	if err != nil {
		return err
	}

	dispatcher := notify.NewDispatcher(pushClient, st, cfg.Push.Workers, webpush.Options{
		TTL:     cfg.Push.TTL.Duration,
		Urgency: webpush.UrgencyNormal,
	})

	server := subscription.NewServer(st, dispatcher, subscription.Options{
		Port:           cfg.Port,
		VAPIDPublicKey: pushClient.PublicKey(),
		Location:       loc,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	if interval := cfg.DueCheckInterval.Duration; interval > 0 {
		go server.RunDueChecks(ctx, interval)
	}

	log.Printf("subtrackを起動します: :%s (store=%s)", cfg.Port, cfg.Store.Driver)
	return server.Run(ctx)
}
