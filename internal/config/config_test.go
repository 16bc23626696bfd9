package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// setRequiredEnv は検証を通すために最低限必要な環境変数を設定する。
func setRequiredEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SUBTRACK_CONFIG", "PORT", "STORE_DRIVER", "SQLITE_PATH", "MONGODB_URI", "MONGODB_DATABASE",
		"VAPID_PUBLIC_KEY", "ALLOWED_ORIGINS", "DISPATCH_WORKERS", "PUSH_TTL", "DUE_CHECK_INTERVAL", "TIMEZONE",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("VAPID_PRIVATE_KEY", "private")
	t.Setenv("VAPID_SUBJECT", "mailto:ops@example.com")
}

// TestLoad は設定の読み込み順序を検証する。
// 環境変数を書き換えるため並列実行しない。
func TestLoad(t *testing.T) {
	t.Run("既定値が使われること", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want 8080", cfg.Port)
		}
		if cfg.Store.Driver != DriverSQLite {
			t.Errorf("Store.Driver = %q, want %q", cfg.Store.Driver, DriverSQLite)
		}
		if cfg.Push.Workers != 8 {
			t.Errorf("Push.Workers = %d, want 8", cfg.Push.Workers)
		}
		if cfg.Push.TTL.Duration != 24*time.Hour {
			t.Errorf("Push.TTL = %v, want 24h", cfg.Push.TTL.Duration)
		}
		if cfg.DueCheckInterval.Duration != 0 {
			t.Errorf("DueCheckInterval = %v, want 0", cfg.DueCheckInterval.Duration)
		}
		if cfg.TimeZone != "Africa/Johannesburg" {
			t.Errorf("TimeZone = %q, want Africa/Johannesburg", cfg.TimeZone)
		}
	})

	t.Run("環境変数で上書きされること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PORT", "9000")
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
		t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
		t.Setenv("DISPATCH_WORKERS", "3")
		t.Setenv("PUSH_TTL", "1h")
		t.Setenv("DUE_CHECK_INTERVAL", "6h")
		t.Setenv("TIMEZONE", "UTC")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "9000" {
			t.Errorf("Port = %q, want 9000", cfg.Port)
		}
		if cfg.Store.Driver != DriverMongo || cfg.Store.MongoURI != "mongodb://localhost:27017" {
			t.Errorf("Store = %+v", cfg.Store)
		}
		want := []string{"https://a.example.com", "https://b.example.com"}
		if !slices.Equal(cfg.AllowedOrigins, want) {
			t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
		}
		if cfg.Push.Workers != 3 {
			t.Errorf("Push.Workers = %d, want 3", cfg.Push.Workers)
		}
		if cfg.Push.TTL.Duration != time.Hour {
			t.Errorf("Push.TTL = %v, want 1h", cfg.Push.TTL.Duration)
		}
		if cfg.DueCheckInterval.Duration != 6*time.Hour {
			t.Errorf("DueCheckInterval = %v, want 6h", cfg.DueCheckInterval.Duration)
		}
	})

	t.Run("YAMLファイルの値が環境変数より優先度が低いこと", func(t *testing.T) {
		setRequiredEnv(t)

		path := filepath.Join(t.TempDir(), "subtrack.yaml")
		content := `
port: "7000"
store:
  driver: sqlite
  sqlite_path: /tmp/test.db
push:
  subject: mailto:file@example.com
  ttl: 30m
  workers: 2
allowed_origins:
  - https://app.example.com
due_check_interval: 12h
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("設定ファイルの作成に失敗: %v", err)
		}
		t.Setenv("SUBTRACK_CONFIG", path)
		t.Setenv("PORT", "7100")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.Port != "7100" {
			t.Errorf("Port = %q, want 7100", cfg.Port)
		}
		if cfg.Store.SQLitePath != "/tmp/test.db" {
			t.Errorf("Store.SQLitePath = %q, want /tmp/test.db", cfg.Store.SQLitePath)
		}
		// VAPID_SUBJECTの環境変数がファイルの値を上書きする
		if cfg.Push.Subject != "mailto:ops@example.com" {
			t.Errorf("Push.Subject = %q, want mailto:ops@example.com", cfg.Push.Subject)
		}
		if cfg.Push.TTL.Duration != 30*time.Minute {
			t.Errorf("Push.TTL = %v, want 30m", cfg.Push.TTL.Duration)
		}
		if cfg.Push.Workers != 2 {
			t.Errorf("Push.Workers = %d, want 2", cfg.Push.Workers)
		}
		if cfg.DueCheckInterval.Duration != 12*time.Hour {
			t.Errorf("DueCheckInterval = %v, want 12h", cfg.DueCheckInterval.Duration)
		}
		if !slices.Equal(cfg.AllowedOrigins, []string{"https://app.example.com"}) {
			t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
		}
	})

	t.Run("存在しない設定ファイルはエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SUBTRACK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

		if _, err := Load(); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("整数でないDISPATCH_WORKERSはエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DISPATCH_WORKERS", "many")

		if _, err := Load(); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("不正なPUSH_TTLはエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("PUSH_TTL", "tomorrow")

		if _, err := Load(); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestValidate は設定値の検証を検証する。
func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		cfg := Default()
		cfg.Push.VAPIDPrivateKey = "private"
		cfg.Push.Subject = "mailto:ops@example.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "既定値と鍵があれば成功", mutate: func(*Config) {}},
		{name: "未対応のドライバ", mutate: func(c *Config) { c.Store.Driver = "postgres" }, wantErr: "未対応のストアドライバ"},
		{name: "MongoURIなし", mutate: func(c *Config) { c.Store.Driver = DriverMongo }, wantErr: "MONGODB_URI"},
		{name: "秘密鍵なし", mutate: func(c *Config) { c.Push.VAPIDPrivateKey = "" }, wantErr: "VAPID_PRIVATE_KEY"},
		{name: "連絡先なし", mutate: func(c *Config) { c.Push.Subject = "" }, wantErr: "VAPID_SUBJECT"},
		{name: "ワーカー数0", mutate: func(c *Config) { c.Push.Workers = 0 }, wantErr: "DISPATCH_WORKERS"},
		{name: "不正なタイムゾーン", mutate: func(c *Config) { c.TimeZone = "Mars/Olympus" }, wantErr: "タイムゾーン"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate()でエラーが発生: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate()がエラーを返すべきだが、nilが返った")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("エラーメッセージ = %q, want contains %q", err.Error(), tt.wantErr)
			}
		})
	}
}
