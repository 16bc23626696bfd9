// Package webpush はブラウザのプッシュサービスへ通知を送信するクライアントを提供する。
//
// 暗号化 (RFC 8291 aes128gcm) と VAPID 署名 (RFC 8292) は
// github.com/SherClockHolmes/webpush-go に委ね、このパッケージは鍵と連絡先の検証、
// 送信オプションの変換、応答ステータスの解釈を担う。プッシュサービスが
// 404 または 410 を返した場合は購読が失効したものとして ErrSubscriptionGone を返す。
package webpush
