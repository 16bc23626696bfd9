package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// newCORSRouter はCORSミドルウェアを適用したテスト用ルーターを作る。
func newCORSRouter(origins []string, called *bool) *gin.Engine {
	router := gin.New()
	router.Use(CORS(origins))
	router.GET("/api/subscriptions", func(c *gin.Context) {
		if called != nil {
			*called = true
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// TestCORS はCORSミドルウェアを検証する。
func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantOrigin string
	}{
		{name: "許可されたオリジン", origins: []string{"http://localhost:3000", "https://subtrack.example.com"}, origin: "https://subtrack.example.com", wantOrigin: "https://subtrack.example.com"},
		{name: "許可されていないオリジン", origins: []string{"http://localhost:3000"}, origin: "https://evil.com", wantOrigin: ""},
		{name: "Originヘッダーなし", origins: []string{"http://localhost:3000"}, origin: "", wantOrigin: ""},
		{name: "空の許可リスト", origins: nil, origin: "http://localhost:3000", wantOrigin: ""},
		{name: "ワイルドカードは任意のオリジンを許可", origins: []string{AnyOrigin}, origin: "https://anywhere.example.com", wantOrigin: "https://anywhere.example.com"},
		{name: "ワイルドカードでもOriginなしはヘッダーなし", origins: []string{AnyOrigin}, origin: "", wantOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			called := false
			router := newCORSRouter(tt.origins, &called)

			req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
			}
			if !called {
				t.Error("GETリクエストでハンドラーが呼ばれるべき")
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantOrigin == "" {
				return
			}
			if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, DELETE, OPTIONS" {
				t.Errorf("Access-Control-Allow-Methods = %q", got)
			}
			if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
				t.Errorf("Access-Control-Allow-Headers = %q, want Content-Type", got)
			}
			if got := w.Header().Get("Vary"); got != "Origin" {
				t.Errorf("Vary = %q, want Origin", got)
			}
		})
	}

	t.Run("プリフライトは204で中断されること", func(t *testing.T) {
		t.Parallel()

		called := false
		router := newCORSRouter([]string{"http://localhost:3000"}, &called)

		req := httptest.NewRequest(http.MethodOptions, "/api/subscriptions", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
		if called {
			t.Error("OPTIONSリクエストでハンドラーが呼ばれるべきではない")
		}
	})
}
