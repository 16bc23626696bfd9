package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/subtrack/internal/store/sqlitedb"
	"github.com/nao1215/subtrack/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

// timestampLayout はSQLiteに保存する日時の形式。文字列比較で時系列順になる固定長形式。
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// memoryPath はインメモリDBを表すパス。
const memoryPath = ":memory:"

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore はSQLiteをバックエンドとする Store の実装。
type SQLiteStore struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はテーブル操作のクエリ実行オブジェクト。
	queries *sqlitedb.Queries
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// OpenSQLite はSQLiteデータベースを開き、未適用のマイグレーションを適用する。
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != memoryPath {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if path == memoryPath {
		// インメモリDBは接続ごとに別物になるため1接続に固定する
		db.SetMaxOpenConns(1)
	}

	if _, err := migration.Run(ctx, db, migrations, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		queries: sqlitedb.New(db),
		now:     time.Now,
	}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close(_ context.Context) error {
	return s.db.Close()
}

// ListSubscriptions は支払日の昇順で全件を返す。
func (s *SQLiteStore) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := s.queries.ListSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("サブスクリプション一覧の取得に失敗: %w", err)
	}

	subs := make([]Subscription, 0, len(rows))
	for _, row := range rows {
		sub, err := fromSubscriptionRow(row)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// GetSubscription はIDで1件を返す。
func (s *SQLiteStore) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	row, err := s.queries.GetSubscription(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプションの取得に失敗: %w", err)
	}
	return fromSubscriptionRow(row)
}

// CreateSubscription は作成日時を記録して保存する。
func (s *SQLiteStore) CreateSubscription(ctx context.Context, in NewSubscription) (Subscription, error) {
	status := in.Status
	if status == "" {
		status = StatusDue
	}

	id := uuid.New().String()
	if err := s.queries.CreateSubscription(ctx, sqlitedb.CreateSubscriptionParams{
		ID:        id,
		Name:      in.Name,
		Cost:      in.Cost,
		DueDate:   nullString(formatOptionalDate(in.DueDate)),
		Status:    string(status),
		CreatedAt: s.timestamp(),
	}); err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプションの作成に失敗: %w", err)
	}
	return s.GetSubscription(ctx, id)
}

// UpdateSubscription は指定フィールドをマージして更新後の値を返す。
// 支払日か状態が変わった場合は期限通知の送信記録を消す。
func (s *SQLiteStore) UpdateSubscription(ctx context.Context, id string, patch SubscriptionPatch) (Subscription, error) {
	params := sqlitedb.UpdateSubscriptionParams{
		DueDate:       nullString(formatOptionalDate(patch.DueDate)),
		ResetNotified: patch.resetsNotification(),
		UpdatedAt:     s.timestamp(),
		ID:            id,
	}
	if patch.Name != nil {
		params.Name = sql.NullString{String: *patch.Name, Valid: true}
	}
	if patch.Cost != nil {
		params.Cost = sql.NullFloat64{Float64: *patch.Cost, Valid: true}
	}
	if patch.Status != nil {
		params.Status = sql.NullString{String: string(*patch.Status), Valid: true}
	}

	n, err := s.queries.UpdateSubscription(ctx, params)
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプションの更新に失敗: %w", err)
	}
	if n == 0 {
		return Subscription{}, fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	return s.GetSubscription(ctx, id)
}

// DeleteSubscription はIDで1件を削除する。
func (s *SQLiteStore) DeleteSubscription(ctx context.Context, id string) error {
	n, err := s.queries.DeleteSubscription(ctx, id)
	if err != nil {
		return fmt.Errorf("サブスクリプションの削除に失敗: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkNotified は期限通知を送った日を記録する。
func (s *SQLiteStore) MarkNotified(ctx context.Context, id string, on Date) error {
	n, err := s.queries.MarkSubscriptionNotified(ctx, sqlitedb.MarkSubscriptionNotifiedParams{
		LastNotifiedOn: on.String(),
		ID:             id,
	})
	if err != nil {
		return fmt.Errorf("通知日の記録に失敗: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("サブスクリプション %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListPushRegistrations は全件を返す。
func (s *SQLiteStore) ListPushRegistrations(ctx context.Context) ([]PushRegistration, error) {
	rows, err := s.queries.ListPushRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("プッシュ購読一覧の取得に失敗: %w", err)
	}

	regs := make([]PushRegistration, 0, len(rows))
	for _, row := range rows {
		reg := PushRegistration{
			Endpoint:  row.Endpoint,
			P256dh:    row.P256dh,
			Auth:      row.Auth,
			CreatedAt: parseTimestamp(row.CreatedAt),
			UpdatedAt: parseTimestamp(row.UpdatedAt),
		}
		if row.ExpirationTime.Valid {
			exp := row.ExpirationTime.Int64
			reg.ExpirationTime = &exp
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// UpsertPushRegistration はエンドポイントをキーに登録または上書きする。
func (s *SQLiteStore) UpsertPushRegistration(ctx context.Context, reg PushRegistration) error {
	params := sqlitedb.UpsertPushRegistrationParams{
		Endpoint: reg.Endpoint,
		P256dh:   reg.P256dh,
		Auth:     reg.Auth,
		Now:      s.timestamp(),
	}
	if reg.ExpirationTime != nil {
		params.ExpirationTime = sql.NullInt64{Int64: *reg.ExpirationTime, Valid: true}
	}
	if err := s.queries.UpsertPushRegistration(ctx, params); err != nil {
		return fmt.Errorf("プッシュ購読の登録に失敗: %w", err)
	}
	return nil
}

// DeletePushRegistration はエンドポイントで削除する。
func (s *SQLiteStore) DeletePushRegistration(ctx context.Context, endpoint string) error {
	n, err := s.queries.DeletePushRegistration(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("プッシュ購読の削除に失敗: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("プッシュ購読 %s: %w", endpoint, ErrNotFound)
	}
	return nil
}

// timestamp は現在時刻を保存用の文字列にする。
func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

// fromSubscriptionRow はDB行をドメインの値に変換する。
func fromSubscriptionRow(row sqlitedb.Subscription) (Subscription, error) {
	dueDate, err := parseOptionalDate(row.DueDate.String)
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプション %s の支払日が不正です: %w", row.ID, err)
	}
	lastNotified, err := parseOptionalDate(row.LastNotifiedOn.String)
	if err != nil {
		return Subscription{}, fmt.Errorf("サブスクリプション %s の通知日が不正です: %w", row.ID, err)
	}
	return Subscription{
		ID:             row.ID,
		Name:           row.Name,
		Cost:           row.Cost,
		DueDate:        dueDate,
		Status:         Status(row.Status),
		CreatedAt:      parseTimestamp(row.CreatedAt),
		UpdatedAt:      parseTimestamp(row.UpdatedAt),
		LastNotifiedOn: lastNotified,
	}, nil
}

// parseTimestamp は保存済みの日時文字列を解釈する。解釈できない場合はゼロ値。
func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullString は空文字列をNULLとして扱う。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
