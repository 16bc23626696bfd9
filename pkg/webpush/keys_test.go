package webpush

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

// TestDecodeBase64 は鍵文字列のデコードを検証する。
func TestDecodeBase64(t *testing.T) {
	t.Parallel()

	raw := []byte{0xfb, 0xff, 0xfe, 0x01, 0x02}

	tests := []struct {
		name  string
		input string
	}{
		{name: "URLセーフ・パディングなし", input: base64.RawURLEncoding.EncodeToString(raw)},
		{name: "URLセーフ・パディングあり", input: base64.URLEncoding.EncodeToString(raw)},
		{name: "標準形式・パディングあり", input: base64.StdEncoding.EncodeToString(raw)},
		{name: "標準形式・パディングなし", input: base64.RawStdEncoding.EncodeToString(raw)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := decodeBase64(tt.input)
			if err != nil {
				t.Fatalf("decodeBase64(%q)でエラーが発生: %v", tt.input, err)
			}
			if !bytes.Equal(got, raw) {
				t.Errorf("decodeBase64(%q) = %v, want %v", tt.input, got, raw)
			}
		})
	}

	t.Run("空文字列はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := decodeBase64(""); err == nil {
			t.Fatal("decodeBase64()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestNormalizeKeys は購読者の鍵の検証と正規化を検証する。
func TestNormalizeKeys(t *testing.T) {
	t.Parallel()

	receiver := newTestReceiver(t)
	valid := receiver.subscription("https://push.example.com/abc").Keys
	p256dh := receiver.key.PublicKey().Bytes()

	t.Run("標準形式の鍵はURLセーフ形式に揃えられること", func(t *testing.T) {
		t.Parallel()

		got, err := normalizeKeys(Keys{
			P256dh: base64.StdEncoding.EncodeToString(p256dh),
			Auth:   base64.StdEncoding.EncodeToString(receiver.authSecret),
		})
		if err != nil {
			t.Fatalf("normalizeKeys()でエラーが発生: %v", err)
		}
		if got != valid {
			t.Errorf("normalizeKeys() = %+v, want %+v", got, valid)
		}
	})

	t.Run("曲線上にないp256dh鍵はエラーになること", func(t *testing.T) {
		t.Parallel()

		broken := bytes.Clone(p256dh)
		broken[64] ^= 0xff
		if _, err := normalizeKeys(Keys{P256dh: encodeBase64(broken), Auth: valid.Auth}); err == nil {
			t.Fatal("normalizeKeys()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("短いp256dh鍵はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := normalizeKeys(Keys{P256dh: encodeBase64([]byte("short")), Auth: valid.Auth}); err == nil {
			t.Fatal("normalizeKeys()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("authの長さが16バイトでない場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		auth := make([]byte, 10)
		_, _ = rand.Read(auth)
		if _, err := normalizeKeys(Keys{P256dh: valid.P256dh, Auth: encodeBase64(auth)}); err == nil {
			t.Fatal("normalizeKeys()がエラーを返すべきだが、nilが返った")
		}
	})
}
