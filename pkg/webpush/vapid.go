package webpush

import (
	"bytes"
	"crypto/ecdh"
	"errors"
	"fmt"
	"strings"

	wp "github.com/SherClockHolmes/webpush-go"
)

// VAPIDKeys はアプリケーションサーバーの鍵ペアを表す。
// どちらもURLセーフ・パディングなしのBase64文字列。
type VAPIDKeys struct {
	// PublicKey は非圧縮形式(65バイト)のP-256公開鍵。
	PublicKey string `json:"publicKey"`
	// PrivateKey は32バイトのP-256秘密鍵スカラー。
	PrivateKey string `json:"privateKey"`
}

// GenerateVAPIDKeys は新しいVAPID鍵ペアを生成する。
func GenerateVAPIDKeys() (VAPIDKeys, error) {
	privateKey, publicKey, err := wp.GenerateVAPIDKeys()
	if err != nil {
		return VAPIDKeys{}, fmt.Errorf("VAPID鍵の生成に失敗: %w", err)
	}
	return VAPIDKeys{PublicKey: publicKey, PrivateKey: privateKey}, nil
}

// normalizeVAPIDKeys は鍵ペアを検証し、URLセーフ・パディングなしの形式に揃える。
// 公開鍵が省略された場合は秘密鍵から導出し、指定された場合は一致を確認する。
func normalizeVAPIDKeys(keys VAPIDKeys) (VAPIDKeys, error) {
	d, err := decodeBase64(keys.PrivateKey)
	if err != nil {
		return VAPIDKeys{}, fmt.Errorf("VAPID秘密鍵のデコードに失敗: %w", err)
	}
	privateKey, err := ecdh.P256().NewPrivateKey(d)
	if err != nil {
		return VAPIDKeys{}, fmt.Errorf("VAPID秘密鍵が不正です: %w", err)
	}
	pub := privateKey.PublicKey().Bytes()

	if keys.PublicKey != "" {
		given, err := decodeBase64(keys.PublicKey)
		if err != nil {
			return VAPIDKeys{}, fmt.Errorf("VAPID公開鍵のデコードに失敗: %w", err)
		}
		if !bytes.Equal(given, pub) {
			return VAPIDKeys{}, errors.New("VAPID公開鍵が秘密鍵と一致しません")
		}
	}

	return VAPIDKeys{PublicKey: encodeBase64(pub), PrivateKey: encodeBase64(d)}, nil
}

// normalizeSubject は連絡先をURL形式に揃える。
// メールアドレスだけが渡された場合は mailto: を付与する。
func normalizeSubject(subject string) (string, error) {
	subject = strings.TrimSpace(subject)
	switch {
	case subject == "":
		return "", errors.New("VAPIDの連絡先が指定されていません")
	case strings.HasPrefix(subject, "mailto:"), strings.HasPrefix(subject, "https://"):
		return subject, nil
	case strings.Contains(subject, "@"):
		return "mailto:" + subject, nil
	default:
		return "", fmt.Errorf("VAPIDの連絡先は mailto: または https: で指定してください: %q", subject)
	}
}

// subscriberOf は webpush-go の Options.Subscriber に渡す値を返す。
// webpush-go は https: 以外の値に mailto: を前置するため、mailto: は外して渡す。
func subscriberOf(subject string) (string, error) {
	normalized, err := normalizeSubject(subject)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(normalized, "mailto:"), nil
}
