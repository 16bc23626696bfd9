package webpush

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	wp "github.com/SherClockHolmes/webpush-go"
)

// testRequest はテスト用プッシュサービスが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// newTestClient はテスト用の鍵ペアで送信クライアントを生成する。
func newTestClient(t *testing.T) *Client {
	t.Helper()

	keys, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("GenerateVAPIDKeys()でエラーが発生: %v", err)
	}
	client, err := New(keys, "mailto:ops@example.com")
	if err != nil {
		t.Fatalf("New()でエラーが発生: %v", err)
	}
	return client
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t)
		if client.httpClient == nil {
			t.Fatal("httpClientがnil")
		}
		if client.PublicKey() == "" {
			t.Error("PublicKey()が空")
		}
	})

	t.Run("タイムアウトが30秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t)
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("鍵が不正な場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := New(VAPIDKeys{PrivateKey: "invalid"}, "mailto:ops@example.com"); err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("連絡先が不正な場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		keys, err := GenerateVAPIDKeys()
		if err != nil {
			t.Fatalf("GenerateVAPIDKeys()でエラーが発生: %v", err)
		}
		if _, err := New(keys, "ops"); err == nil {
			t.Fatal("New()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestSend はSend関数を検証する。
func TestSend(t *testing.T) {
	t.Parallel()

	t.Run("暗号化したペイロードをVAPID付きでPOSTすること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Path = r.URL.Path
			received.Body, _ = io.ReadAll(r.Body)
			received.Headers = r.Header
			w.WriteHeader(http.StatusCreated)
		}))
		defer ts.Close()

		client := newTestClient(t)
		receiver := newTestReceiver(t)
		payload := []byte(`{"title":"t","body":"b"}`)

		err := client.Send(context.Background(), receiver.subscription(ts.URL+"/push/abc"), payload, Options{
			TTL:     24 * time.Hour,
			Urgency: UrgencyNormal,
		})
		if err != nil {
			t.Fatalf("Send()でエラーが発生: %v", err)
		}

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/push/abc" {
			t.Errorf("Path = %q, want %q", received.Path, "/push/abc")
		}
		if got := received.Headers.Get("Content-Type"); got != "application/octet-stream" {
			t.Errorf("Content-Type = %q, want application/octet-stream", got)
		}
		if got := received.Headers.Get("Content-Encoding"); got != "aes128gcm" {
			t.Errorf("Content-Encoding = %q, want aes128gcm", got)
		}
		if got := received.Headers.Get("TTL"); got != "86400" {
			t.Errorf("TTL = %q, want 86400", got)
		}
		if got := received.Headers.Get("Urgency"); got != "normal" {
			t.Errorf("Urgency = %q, want normal", got)
		}
		if got := received.Headers.Get("Topic"); got != "" {
			t.Errorf("Topic = %q, want empty", got)
		}

		token, key := parseVAPIDHeader(t, received.Headers.Get("Authorization"))
		if key != client.PublicKey() {
			t.Errorf("k = %q, want %q", key, client.PublicKey())
		}
		claims := verifyVAPIDToken(t, token, key)
		if claims["aud"] != ts.URL {
			t.Errorf("aud = %v, want %s", claims["aud"], ts.URL)
		}
		if claims["sub"] != "mailto:ops@example.com" {
			t.Errorf("sub = %v, want mailto:ops@example.com", claims["sub"])
		}
		exp, err := claims.GetExpirationTime()
		if err != nil || exp == nil {
			t.Fatalf("expの取得に失敗: %v", err)
		}
		if !exp.After(time.Now()) || exp.After(time.Now().Add(24*time.Hour)) {
			t.Errorf("exp = %v, 24時間以内の未来であるべき", exp)
		}

		if got := receiver.decrypt(t, received.Body); !bytes.Equal(got, payload) {
			t.Errorf("復号結果 = %q, want %q", got, payload)
		}
	})

	t.Run("410はErrSubscriptionGoneとして扱われること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusGone)
			w.Write([]byte("push subscription has unsubscribed or expired"))
		}))
		defer ts.Close()

		client := newTestClient(t)
		err := client.Send(context.Background(), newTestReceiver(t).subscription(ts.URL+"/push/gone"), []byte("x"), Options{})
		if !errors.Is(err, ErrSubscriptionGone) {
			t.Fatalf("err = %v, want ErrSubscriptionGone", err)
		}

		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("StatusErrorではない: %T", err)
		}
		if statusErr.StatusCode != http.StatusGone {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusGone)
		}
	})

	t.Run("404はErrSubscriptionGoneとして扱われること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		client := newTestClient(t)
		err := client.Send(context.Background(), newTestReceiver(t).subscription(ts.URL+"/push/missing"), []byte("x"), Options{})
		if !errors.Is(err, ErrSubscriptionGone) {
			t.Fatalf("err = %v, want ErrSubscriptionGone", err)
		}
	})

	t.Run("5xxは失効扱いにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		client := newTestClient(t)
		err := client.Send(context.Background(), newTestReceiver(t).subscription(ts.URL+"/push/busy"), []byte("x"), Options{})
		if err == nil {
			t.Fatal("Send()がエラーを返すべきだが、nilが返った")
		}
		if errors.Is(err, ErrSubscriptionGone) {
			t.Errorf("503がErrSubscriptionGoneとして扱われた: %v", err)
		}
	})

	t.Run("TopicとTTL0が送信されること", func(t *testing.T) {
		t.Parallel()

		var headers http.Header
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers = r.Header
			w.WriteHeader(http.StatusCreated)
		}))
		defer ts.Close()

		client := newTestClient(t)
		err := client.Send(context.Background(), newTestReceiver(t).subscription(ts.URL+"/push/topic"), []byte("x"), Options{Topic: "due-check"})
		if err != nil {
			t.Fatalf("Send()でエラーが発生: %v", err)
		}
		if got := headers.Get("Topic"); got != "due-check" {
			t.Errorf("Topic = %q, want due-check", got)
		}
		if got := headers.Get("TTL"); got != "0" {
			t.Errorf("TTL = %q, want 0", got)
		}
	})

	t.Run("接続できないエンドポイントに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := newTestClient(t)
		err := client.Send(context.Background(), newTestReceiver(t).subscription("http://127.0.0.1:1/push"), []byte("x"), Options{})
		if err == nil {
			t.Fatal("Send()がエラーを返すべきだが、nilが返った")
		}
		if errors.Is(err, ErrSubscriptionGone) {
			t.Errorf("接続エラーがErrSubscriptionGoneとして扱われた: %v", err)
		}
	})

	t.Run("上限を超えるペイロードは送信せずErrPayloadTooLargeになること", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusCreated)
		}))
		defer ts.Close()

		client := newTestClient(t)
		payload := bytes.Repeat([]byte("a"), maxPayloadSize+1)
		err := client.Send(context.Background(), newTestReceiver(t).subscription(ts.URL+"/push/large"), payload, Options{})
		if !errors.Is(err, ErrPayloadTooLarge) {
			t.Errorf("err = %v, want ErrPayloadTooLarge", err)
		}
		if got := calls.Load(); got != 0 {
			t.Errorf("送信回数 = %d, want 0", got)
		}
	})

	t.Run("上限ちょうどのペイロードは1レコードで届くこと", func(t *testing.T) {
		t.Parallel()

		var body []byte
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
		}))
		defer ts.Close()

		client := newTestClient(t)
		receiver := newTestReceiver(t)
		payload := bytes.Repeat([]byte("a"), maxPayloadSize)
		if err := client.Send(context.Background(), receiver.subscription(ts.URL+"/push/max"), payload, Options{}); err != nil {
			t.Fatalf("Send()でエラーが発生: %v", err)
		}
		if len(body) != int(wp.MaxRecordSize) {
			t.Errorf("ボディ長 = %d, want %d", len(body), wp.MaxRecordSize)
		}
		if got := receiver.decrypt(t, body); !bytes.Equal(got, payload) {
			t.Error("復号結果が元のペイロードと一致しない")
		}
	})

	t.Run("不正な購読鍵は送信せずエラーになること", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusCreated)
		}))
		defer ts.Close()

		client := newTestClient(t)
		sub := newTestReceiver(t).subscription(ts.URL + "/push/broken")
		sub.Keys.P256dh = encodeBase64([]byte("short"))

		if err := client.Send(context.Background(), sub, []byte("x"), Options{}); err == nil {
			t.Fatal("Send()がエラーを返すべきだが、nilが返った")
		}
		if got := calls.Load(); got != 0 {
			t.Errorf("送信回数 = %d, want 0", got)
		}
	})
}
