package subscription

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/subtrack/internal/notify"
	"github.com/nao1215/subtrack/internal/store"
)

const (
	msgNotFound  = "サブスクリプションが見つかりません"
	msgEmptyName = "name は空にできません"
)

// subscriptionResponse はサブスクリプションのJSONレスポンス構造。
type subscriptionResponse struct {
	// ID はサブスクリプションの一意識別子。
	ID string `json:"id"`
	// Name はサービス名。
	Name string `json:"name"`
	// Cost は料金（ZAR）。
	Cost float64 `json:"cost"`
	// DueDate は次回支払日（YYYY-MM-DD）。未設定の場合はnull。
	DueDate *string `json:"dueDate"`
	// Status は "Due" または "Paid"。
	Status string `json:"status"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"createdAt"`
	// UpdatedAt は最終更新日時（RFC3339形式）。
	UpdatedAt string `json:"updatedAt"`
}

// toSubscriptionResponse はドメインの値をJSONレスポンスに変換する。
func toSubscriptionResponse(sub store.Subscription) subscriptionResponse {
	resp := subscriptionResponse{
		ID:        sub.ID,
		Name:      sub.Name,
		Cost:      sub.Cost,
		Status:    string(sub.Status),
		CreatedAt: sub.CreatedAt.Format(time.RFC3339),
		UpdatedAt: sub.UpdatedAt.Format(time.RFC3339),
	}
	if sub.DueDate != nil {
		d := sub.DueDate.String()
		resp.DueDate = &d
	}
	return resp
}

// toSubscriptionResponses はスライスをJSONレスポンスのスライスに変換する。
func toSubscriptionResponses(subs []store.Subscription) []subscriptionResponse {
	responses := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		responses = append(responses, toSubscriptionResponse(sub))
	}
	return responses
}

// createRequest はサブスクリプション作成リクエストのJSON構造。
// createdAt はサーバーが記録するため受け付けない。
type createRequest struct {
	// Name はサービス名。
	Name string `json:"name" binding:"required"`
	// Cost は料金（ZAR）。0を許可するためポインタで受ける。
	Cost *float64 `json:"cost" binding:"required,gte=0"`
	// DueDate は次回支払日。YYYY-MM-DD または RFC3339。
	DueDate string `json:"dueDate"`
	// Status は初期状態。省略時は "Due"。
	Status string `json:"status" binding:"omitempty,oneof=Due Paid"`
}

// updateRequest はサブスクリプション更新リクエストのJSON構造。
// 指定されたフィールドだけを変更する。
type updateRequest struct {
	// Name はサービス名。
	Name *string `json:"name"`
	// Cost は料金（ZAR）。
	Cost *float64 `json:"cost" binding:"omitempty,gte=0"`
	// DueDate は次回支払日。
	DueDate *string `json:"dueDate"`
	// Status は支払状態。
	Status *string `json:"status" binding:"omitempty,oneof=Due Paid"`
}

// toPatch はリクエストを部分更新の入力に変換する。
func (r updateRequest) toPatch() (store.SubscriptionPatch, error) {
	var patch store.SubscriptionPatch
	if r.Name != nil {
		name := strings.TrimSpace(*r.Name)
		if name == "" {
			return patch, errors.New(msgEmptyName)
		}
		patch.Name = &name
	}
	patch.Cost = r.Cost
	if r.DueDate != nil {
		d, err := store.ParseDate(*r.DueDate)
		if err != nil {
			return patch, err
		}
		patch.DueDate = &d
	}
	if r.Status != nil {
		status := store.Status(*r.Status)
		patch.Status = &status
	}
	return patch, nil
}

// handleList は全サブスクリプションを支払日の昇順で返すハンドラ。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := s.store.ListSubscriptions(c.Request.Context())
		if err != nil {
			respondStoreError(c, err, msgNotFound, "サブスクリプション一覧の取得に失敗しました")
			return
		}

		c.JSON(http.StatusOK, toSubscriptionResponses(subs))
	}
}

// handleGet は指定されたサブスクリプションを返すハンドラ。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := s.store.GetSubscription(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondStoreError(c, err, msgNotFound, "サブスクリプションの取得に失敗しました")
			return
		}

		c.JSON(http.StatusOK, toSubscriptionResponse(sub))
	}
}

// handleCreate はサブスクリプションを作成し、追加を通知するハンドラ。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		in := store.NewSubscription{
			Name:   strings.TrimSpace(req.Name),
			Cost:   *req.Cost,
			Status: store.Status(req.Status),
		}
		if in.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgEmptyName})
			return
		}
		if req.DueDate != "" {
			d, err := store.ParseDate(req.DueDate)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			in.DueDate = &d
		}

		sub, err := s.store.CreateSubscription(c.Request.Context(), in)
		if err != nil {
			respondStoreError(c, err, msgNotFound, "サブスクリプションの作成に失敗しました")
			return
		}

		s.broadcast(c.Request.Context(), notify.Added(sub))

		c.JSON(http.StatusCreated, toSubscriptionResponse(sub))
	}
}

// handleUpdate はサブスクリプションを部分更新するハンドラ。
// 料金が上がった場合のみ通知する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}
		patch, err := req.toPatch()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id := c.Param("id")
		prev, err := s.store.GetSubscription(c.Request.Context(), id)
		if err != nil {
			respondStoreError(c, err, msgNotFound, "サブスクリプションの取得に失敗しました")
			return
		}

		updated, err := s.store.UpdateSubscription(c.Request.Context(), id, patch)
		if err != nil {
			respondStoreError(c, err, msgNotFound, "サブスクリプションの更新に失敗しました")
			return
		}

		if updated.Cost > prev.Cost {
			s.broadcast(c.Request.Context(), notify.CostUpdated(updated))
		}

		c.JSON(http.StatusOK, toSubscriptionResponse(updated))
	}
}

// handleToggle は支払状態を Due と Paid で切り替え、切り替え後の状態を通知するハンドラ。
func (s *Server) handleToggle() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		prev, err := s.store.GetSubscription(c.Request.Context(), id)
		if err != nil {
			respondStoreError(c, err, msgNotFound, "サブスクリプションの取得に失敗しました")
			return
		}

		next := prev.Status.Toggle()
		updated, err := s.store.UpdateSubscription(c.Request.Context(), id, store.SubscriptionPatch{Status: &next})
		if err != nil {
			respondStoreError(c, err, msgNotFound, "支払状態の切り替えに失敗しました")
			return
		}

		s.broadcast(c.Request.Context(), notify.Toggled(updated))

		c.JSON(http.StatusOK, toSubscriptionResponse(updated))
	}
}

// handleDelete はサブスクリプションを削除し、削除を通知するハンドラ。
// 通知の文面に使うため削除前の値を取得する。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		sub, err := s.store.GetSubscription(c.Request.Context(), id)
		if err != nil {
			respondStoreError(c, err, msgNotFound, "サブスクリプションの取得に失敗しました")
			return
		}

		if err := s.store.DeleteSubscription(c.Request.Context(), id); err != nil {
			respondStoreError(c, err, msgNotFound, "サブスクリプションの削除に失敗しました")
			return
		}

		s.broadcast(c.Request.Context(), notify.Deleted(sub))

		c.JSON(http.StatusOK, toSubscriptionResponse(sub))
	}
}
