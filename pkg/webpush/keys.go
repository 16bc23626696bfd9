package webpush

import (
	"crypto/ecdh"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	wp "github.com/SherClockHolmes/webpush-go"
)

const (
	// authSecretSize はブラウザが発行する認証シークレットの長さ。
	authSecretSize = 16
	// headerSize は salt(16) + rs(4) + idlen(1) + keyid(65) の合計。
	headerSize = 16 + 4 + 1 + 65
	// maxPayloadSize は単一レコードに収まる平文の最大長。
	// パディング区切り(1バイト)とGCMタグ(16バイト)を差し引く。
	maxPayloadSize = int(wp.MaxRecordSize) - headerSize - 1 - 16
)

// normalizeKeys は購読者の鍵を検証し、URLセーフ・パディングなしの形式に揃える。
func normalizeKeys(keys Keys) (Keys, error) {
	p256dh, err := decodeBase64(keys.P256dh)
	if err != nil {
		return Keys{}, fmt.Errorf("p256dh鍵のデコードに失敗: %w", err)
	}
	if _, err := ecdh.P256().NewPublicKey(p256dh); err != nil {
		return Keys{}, fmt.Errorf("p256dh鍵が不正です: %w", err)
	}

	auth, err := decodeBase64(keys.Auth)
	if err != nil {
		return Keys{}, fmt.Errorf("auth鍵のデコードに失敗: %w", err)
	}
	if len(auth) != authSecretSize {
		return Keys{}, fmt.Errorf("auth鍵の長さが不正です: %d", len(auth))
	}

	return Keys{P256dh: encodeBase64(p256dh), Auth: encodeBase64(auth)}, nil
}

// decodeBase64 はブラウザが返す鍵文字列をデコードする。
// PushSubscription.toJSON() はパディングなしのURLセーフ形式を返すが、
// 標準形式やパディング付きで保存されたものも受け付ける。
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("空の文字列です")
	}
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}

// encodeBase64 はURLセーフ・パディングなしのBase64文字列を返す。
func encodeBase64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
