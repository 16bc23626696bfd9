package subscription

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/subtrack/internal/store"
)

// pushKeys はブラウザの PushSubscription の keys。
type pushKeys struct {
	// P256dh は購読者の公開鍵。
	P256dh string `json:"p256dh" binding:"required"`
	// Auth は購読者の認証シークレット。
	Auth string `json:"auth" binding:"required"`
}

// subscribeRequest は PushSubscription.toJSON() の形をした登録リクエスト。
type subscribeRequest struct {
	// Endpoint はプッシュサービスが発行したURL。
	Endpoint string `json:"endpoint" binding:"required,url"`
	// ExpirationTime は有効期限（UNIXミリ秒）。多くのブラウザはnullを送る。
	ExpirationTime *int64 `json:"expirationTime"`
	// Keys はペイロード暗号化用の鍵。
	Keys pushKeys `json:"keys"`
}

// pushRegistrationResponse はプッシュ購読のJSONレスポンス構造。
type pushRegistrationResponse struct {
	Endpoint       string   `json:"endpoint"`
	ExpirationTime *int64   `json:"expirationTime"`
	Keys           pushKeys `json:"keys"`
}

// unsubscribeRequest は登録解除リクエストのJSON構造。
type unsubscribeRequest struct {
	// Endpoint は解除するエンドポイント。
	Endpoint string `json:"endpoint" binding:"required"`
}

// handleSubscribe はプッシュ購読を登録するハンドラ。
// 同じエンドポイントの再登録は鍵を上書きする。
func (s *Server) handleSubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		reg := store.PushRegistration{
			Endpoint:       req.Endpoint,
			P256dh:         req.Keys.P256dh,
			Auth:           req.Keys.Auth,
			ExpirationTime: req.ExpirationTime,
		}
		if err := s.store.UpsertPushRegistration(c.Request.Context(), reg); err != nil {
			respondStoreError(c, err, "プッシュ購読が見つかりません", "プッシュ購読の登録に失敗しました")
			return
		}

		c.JSON(http.StatusCreated, pushRegistrationResponse{
			Endpoint:       req.Endpoint,
			ExpirationTime: req.ExpirationTime,
			Keys:           req.Keys,
		})
	}
}

// handleUnsubscribe はエンドポイントを指定してプッシュ購読を解除するハンドラ。
func (s *Server) handleUnsubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req unsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		if err := s.store.DeletePushRegistration(c.Request.Context(), req.Endpoint); err != nil {
			respondStoreError(c, err, "プッシュ購読が見つかりません", "プッシュ購読の解除に失敗しました")
			return
		}

		c.JSON(http.StatusOK, gin.H{"endpoint": req.Endpoint})
	}
}

// handleVAPIDPublicKey はブラウザが購読に使うVAPID公開鍵を返すハンドラ。
func (s *Server) handleVAPIDPublicKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"publicKey": s.vapidPublicKey})
	}
}
