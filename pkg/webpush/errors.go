package webpush

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSubscriptionGone はプッシュサービスが購読を失効済みと応答したことを表す。
// この購読に対する以降の送信は成功しないため、呼び出し側は登録を削除してよい。
var ErrSubscriptionGone = errors.New("プッシュ購読は失効しています")

// ErrPayloadTooLarge はペイロードが1レコードに収まらないことを表す。
var ErrPayloadTooLarge = errors.New("ペイロードが大きすぎます")

// StatusError はプッシュサービスが2xx以外のステータスを返したことを表す。
type StatusError struct {
	// StatusCode はプッシュサービスのHTTPステータスコード。
	StatusCode int
	// Body はレスポンスボディの先頭部分。
	Body string
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	return fmt.Sprintf("プッシュサービスがエラーを返しました: status=%d, body=%s", e.StatusCode, e.Body)
}

// Unwrap は購読失効を示すステータスの場合に ErrSubscriptionGone を返す。
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone {
		return ErrSubscriptionGone
	}
	return nil
}
