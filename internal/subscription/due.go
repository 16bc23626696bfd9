package subscription

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/subtrack/internal/notify"
	"github.com/nao1215/subtrack/internal/store"
)

// dueCheckTimeout は定期チェック1回あたりの最大実行時間。
const dueCheckTimeout = 2 * time.Minute

// checkDue は未払いのサブスクリプションを評価し、期限間近または超過のものを返す。
// 通知は同じサブスクリプションにつき1日1回までとする。
// 通知日は1件以上のブラウザへ届いた場合にだけ記録し、届かなかった日は次回のチェックで再送する。
func (s *Server) checkDue(ctx context.Context) ([]store.Subscription, error) {
	subs, err := s.store.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の取得に失敗: %w", err)
	}

	today := s.today()
	due := make([]store.Subscription, 0)
	for _, sub := range subs {
		msg, ok := notify.DueMessage(sub, today)
		if !ok {
			continue
		}
		due = append(due, sub)

		if sub.LastNotifiedOn != nil && *sub.LastNotifiedOn == today {
			continue
		}
		if report := s.broadcast(ctx, msg); report.Delivered == 0 {
			continue
		}
		if err := s.store.MarkNotified(ctx, sub.ID, today); err != nil {
			log.Printf("[DueCheck] 通知日の記録に失敗: id=%s: %v", sub.ID, err)
		}
	}
	return due, nil
}

// handleCheckDue は期限チェックを実行し、対象のサブスクリプションを返すハンドラ。
func (s *Server) handleCheckDue() gin.HandlerFunc {
	return func(c *gin.Context) {
		due, err := s.checkDue(context.WithoutCancel(c.Request.Context()))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "期限チェックに失敗しました"})
			log.Printf("期限チェックエラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toSubscriptionResponses(due))
	}
}

// RunDueChecks は指定間隔で期限チェックを実行する。ctxがキャンセルされると戻る。
func (s *Server) RunDueChecks(ctx context.Context, interval time.Duration) {
	log.Printf("[Scheduler] 期限チェックを開始します。間隔: %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Scheduler] 期限チェックを停止します")
			return
		case <-ticker.C:
			s.runDueCheck(ctx)
		}
	}
}

// runDueCheck は期限チェックを1回実行する。
func (s *Server) runDueCheck(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, dueCheckTimeout)
	defer cancel()

	due, err := s.checkDue(ctx)
	if err != nil {
		log.Printf("[Scheduler] 期限チェックエラー: %v", err)
		return
	}
	log.Printf("[Scheduler] 期限チェック完了: 対象 %d 件", len(due))
}
