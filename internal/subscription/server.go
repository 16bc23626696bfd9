package subscription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/subtrack/internal/notify"
	"github.com/nao1215/subtrack/internal/store"
	"github.com/nao1215/subtrack/pkg/middleware"
	"github.com/nao1215/subtrack/web"
)

// shutdownTimeout はグレースフルシャットダウンの最大待ち時間。
const shutdownTimeout = 10 * time.Second

// Store はサーバーが使う永続化操作。
type Store interface {
	store.SubscriptionStore
	store.PushRegistrationStore
}

// Options はサーバーの設定。
type Options struct {
	// Port はリッスンポート。
	Port string
	// VAPIDPublicKey はブラウザが購読時に使うVAPID公開鍵。
	VAPIDPublicKey string
	// Location は期限判定の「今日」を決めるタイムゾーン。nilの場合はUTC。
	Location *time.Location
	// AllowedOrigins はCORSを許可するオリジン。
	AllowedOrigins []string
}

// Server はサブスクリプション管理APIのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はサブスクリプションとプッシュ購読の永続化層。
	store Store
	// dispatcher は登録済みブラウザへの通知を行う。
	dispatcher *notify.Dispatcher
	// vapidPublicKey はクライアントへ返すVAPID公開鍵。
	vapidPublicKey string
	// location は期限判定のタイムゾーン。
	location *time.Location
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewServer は新しいサブスクリプション管理サーバーを生成する。
func NewServer(st Store, dispatcher *notify.Dispatcher, opts Options) *Server {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(opts.AllowedOrigins))

	s := &Server{
		router:         router,
		port:           opts.Port,
		store:          st,
		dispatcher:     dispatcher,
		vapidPublicKey: opts.VAPIDPublicKey,
		location:       loc,
		now:            time.Now,
	}
	s.setupRoutes()

	return s
}

// Handler はルーティング済みのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされたらグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("サーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		subscriptions := api.Group("/subscriptions")
		{
			// サブスクリプション一覧取得
			subscriptions.GET("", s.handleList())
			// サブスクリプション作成
			subscriptions.POST("", s.handleCreate())
			// サブスクリプション取得
			subscriptions.GET("/:id", s.handleGet())
			// サブスクリプション更新
			subscriptions.PUT("/:id", s.handleUpdate())
			// 支払状態の切り替え
			subscriptions.PUT("/:id/toggle", s.handleToggle())
			// サブスクリプション削除
			subscriptions.DELETE("/:id", s.handleDelete())
		}

		// プッシュ購読の登録と解除
		api.POST("/subscribe", s.handleSubscribe())
		api.DELETE("/subscribe", s.handleUnsubscribe())
		api.GET("/vapid-public-key", s.handleVAPIDPublicKey())

		// 期限チェック
		api.GET("/check-due", s.handleCheckDue())
	}

	// PWA
	s.router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", web.Index)
	})
	s.router.GET("/sw.js", func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache")
		c.Data(http.StatusOK, "text/javascript; charset=utf-8", web.ServiceWorker)
	})

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "subtrack"})
	})

	s.router.NoRoute(middleware.NotFound())
}

// broadcast は登録済みの全ブラウザへ通知し、送信結果が出るまで待つ。
// クライアントの切断で送信が中断されないよう、リクエストのキャンセルは引き継がない。
func (s *Server) broadcast(ctx context.Context, msg notify.Message) notify.Report {
	report, err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), msg)
	if err != nil {
		log.Printf("[Dispatch] 配信先一覧の取得に失敗: %v", err)
	}
	return report
}

// today は設定タイムゾーンにおける今日の暦日を返す。
func (s *Server) today() store.Date {
	return store.DateOf(s.now().In(s.location))
}

// respondStoreError はストアのエラーを404または500の応答に変換する。
func respondStoreError(c *gin.Context, err error, notFoundMsg, failMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": failMsg})
	log.Printf("%s: %v", failMsg, err)
}
