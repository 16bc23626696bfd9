// Package config はサーバーの設定を読み込む。
//
// 既定値、SUBTRACK_CONFIG で指定されたYAMLファイル、環境変数の順に
// 上書きする。環境変数が最優先になる。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	// 実行環境にtzdataがなくてもタイムゾーンを解決できるようにする
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

const (
	// DriverSQLite はSQLiteバックエンドを表す。
	DriverSQLite = "sqlite"
	// DriverMongo はMongoDBバックエンドを表す。
	DriverMongo = "mongo"
)

// Config はサーバー全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `yaml:"port"`
	// Store は永続化バックエンドの設定。
	Store Store `yaml:"store"`
	// Push はWeb Push送信の設定。
	Push Push `yaml:"push"`
	// AllowedOrigins はCORSを許可するオリジン。
	AllowedOrigins []string `yaml:"allowed_origins"`
	// TimeZone は期限判定の「今日」を決めるタイムゾーン名。
	TimeZone string `yaml:"time_zone"`
	// DueCheckInterval はサーバー内で期限チェックを実行する間隔。0の場合は実行しない。
	DueCheckInterval Duration `yaml:"due_check_interval"`
}

// Store は永続化バックエンドの設定。
type Store struct {
	// Driver は "sqlite" または "mongo"。
	Driver string `yaml:"driver"`
	// SQLitePath はSQLiteのファイルパス。":memory:" も指定できる。
	SQLitePath string `yaml:"sqlite_path"`
	// MongoURI はMongoDBの接続文字列。
	MongoURI string `yaml:"mongo_uri"`
	// MongoDatabase はMongoDBのデータベース名。
	MongoDatabase string `yaml:"mongo_database"`
}

// Push はWeb Push送信の設定。
type Push struct {
	// VAPIDPublicKey はVAPID公開鍵(Base64URL)。
	VAPIDPublicKey string `yaml:"vapid_public_key"`
	// VAPIDPrivateKey はVAPID秘密鍵(Base64URL)。
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	// Subject は運用者の連絡先。
	Subject string `yaml:"subject"`
	// TTL はプッシュサービスにメッセージを保持させる時間。
	TTL Duration `yaml:"ttl"`
	// Workers は1回のファンアウトで同時に送信する最大数。
	Workers int `yaml:"workers"`
}

// Duration はYAMLで "30s" のように書ける時間。
type Duration struct {
	time.Duration
}

// UnmarshalYAML は time.ParseDuration 形式の文字列を解釈する。
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("時間の形式が不正です: %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default は既定値の設定を返す。
func Default() Config {
	return Config{
		Port: "8080",
		Store: Store{
			Driver:        DriverSQLite,
			SQLitePath:    "/data/subtrack.db",
			MongoDatabase: "subscriptions",
		},
		Push: Push{
			TTL:     Duration{24 * time.Hour},
			Workers: 8,
		},
		TimeZone: "Africa/Johannesburg",
	}
}

// Load は既定値にYAMLファイルと環境変数を重ねた設定を返す。
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("SUBTRACK_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile はYAMLファイルの値で上書きする。
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("設定ファイルの解析に失敗: %w", err)
	}
	return nil
}

// applyEnv は設定されている環境変数の値で上書きする。
func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("PORT", &c.Port)
	setString("STORE_DRIVER", &c.Store.Driver)
	setString("SQLITE_PATH", &c.Store.SQLitePath)
	setString("MONGODB_URI", &c.Store.MongoURI)
	setString("MONGODB_DATABASE", &c.Store.MongoDatabase)
	setString("VAPID_PUBLIC_KEY", &c.Push.VAPIDPublicKey)
	setString("VAPID_PRIVATE_KEY", &c.Push.VAPIDPrivateKey)
	setString("VAPID_SUBJECT", &c.Push.Subject)
	setString("TIMEZONE", &c.TimeZone)

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("DISPATCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DISPATCH_WORKERS が整数ではありません: %q", v)
		}
		c.Push.Workers = n
	}
	for key, dst := range map[string]*Duration{
		"PUSH_TTL":           &c.Push.TTL,
		"DUE_CHECK_INTERVAL": &c.DueCheckInterval,
	} {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s の形式が不正です: %q", key, v)
		}
		dst.Duration = d
	}
	return nil
}

// Validate は設定値の整合性を検証する。
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH が指定されていません"))
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI が指定されていません"))
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGODB_DATABASE が指定されていません"))
		}
	default:
		errs = append(errs, fmt.Errorf("未対応のストアドライバです: %q", c.Store.Driver))
	}

	if c.Push.VAPIDPrivateKey == "" {
		errs = append(errs, errors.New("VAPID_PRIVATE_KEY が指定されていません"))
	}
	if c.Push.Subject == "" {
		errs = append(errs, errors.New("VAPID_SUBJECT が指定されていません"))
	}
	if c.Push.Workers < 1 {
		errs = append(errs, fmt.Errorf("DISPATCH_WORKERS は1以上を指定してください: %d", c.Push.Workers))
	}
	if c.Push.TTL.Duration < 0 {
		errs = append(errs, errors.New("PUSH_TTL に負の値は指定できません"))
	}
	if c.DueCheckInterval.Duration < 0 {
		errs = append(errs, errors.New("DUE_CHECK_INTERVAL に負の値は指定できません"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Location はタイムゾーン名に対応するロケーションを返す。
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("タイムゾーンが不正です: %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// splitList はカンマ区切りの文字列を空要素を除いて分割する。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
