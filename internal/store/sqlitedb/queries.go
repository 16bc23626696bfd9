package sqlitedb

import (
	"context"
	"database/sql"
)

const subscriptionColumns = `id, name, cost, due_date, status, created_at, updated_at, last_notified_on`

func scanSubscription(row interface{ Scan(...any) error }) (Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Cost,
		&s.DueDate,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.LastNotifiedOn,
	)
	return s, err
}

const listSubscriptions = `SELECT ` + subscriptionColumns + `
FROM subscriptions
ORDER BY due_date IS NULL, due_date ASC, created_at ASC`

// ListSubscriptions は支払日の昇順で全件を返す。支払日未設定の行は末尾に並ぶ。
func (q *Queries) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	rows, err := q.db.QueryContext(ctx, listSubscriptions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const getSubscription = `SELECT ` + subscriptionColumns + `
FROM subscriptions
WHERE id = ?`

// GetSubscription はIDで1行を返す。存在しない場合は sql.ErrNoRows を返す。
func (q *Queries) GetSubscription(ctx context.Context, id string) (Subscription, error) {
	return scanSubscription(q.db.QueryRowContext(ctx, getSubscription, id))
}

const createSubscription = `INSERT INTO subscriptions (
    id, name, cost, due_date, status, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?)`

// CreateSubscriptionParams は CreateSubscription の引数。
type CreateSubscriptionParams struct {
	ID        string
	Name      string
	Cost      float64
	DueDate   sql.NullString
	Status    string
	CreatedAt string
}

// CreateSubscription は1行を挿入する。作成日時と更新日時は同じ値になる。
func (q *Queries) CreateSubscription(ctx context.Context, arg CreateSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, createSubscription,
		arg.ID,
		arg.Name,
		arg.Cost,
		arg.DueDate,
		arg.Status,
		arg.CreatedAt,
		arg.CreatedAt,
	)
	return err
}

const updateSubscription = `UPDATE subscriptions SET
    name = COALESCE(?, name),
    cost = COALESCE(?, cost),
    due_date = COALESCE(?, due_date),
    status = COALESCE(?, status),
    last_notified_on = CASE WHEN ? THEN NULL ELSE last_notified_on END,
    updated_at = ?
WHERE id = ?`

// UpdateSubscriptionParams は UpdateSubscription の引数。Validでないフィールドは変更しない。
type UpdateSubscriptionParams struct {
	Name          sql.NullString
	Cost          sql.NullFloat64
	DueDate       sql.NullString
	Status        sql.NullString
	ResetNotified bool
	UpdatedAt     string
	ID            string
}

// UpdateSubscription は指定フィールドをマージし、影響行数を返す。
func (q *Queries) UpdateSubscription(ctx context.Context, arg UpdateSubscriptionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateSubscription,
		arg.Name,
		arg.Cost,
		arg.DueDate,
		arg.Status,
		arg.ResetNotified,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSubscription = `DELETE FROM subscriptions WHERE id = ?`

// DeleteSubscription はIDで1行を削除し、影響行数を返す。
func (q *Queries) DeleteSubscription(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSubscription, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markSubscriptionNotified = `UPDATE subscriptions SET last_notified_on = ? WHERE id = ?`

// MarkSubscriptionNotifiedParams は MarkSubscriptionNotified の引数。
type MarkSubscriptionNotifiedParams struct {
	LastNotifiedOn string
	ID             string
}

// MarkSubscriptionNotified は期限通知を送った日を記録し、影響行数を返す。
func (q *Queries) MarkSubscriptionNotified(ctx context.Context, arg MarkSubscriptionNotifiedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markSubscriptionNotified, arg.LastNotifiedOn, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listPushRegistrations = `SELECT endpoint, p256dh, auth, expiration_time, created_at, updated_at
FROM push_registrations
ORDER BY created_at ASC`

// ListPushRegistrations は全件を登録順で返す。
func (q *Queries) ListPushRegistrations(ctx context.Context) ([]PushRegistration, error) {
	rows, err := q.db.QueryContext(ctx, listPushRegistrations)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []PushRegistration
	for rows.Next() {
		var r PushRegistration
		if err := rows.Scan(
			&r.Endpoint,
			&r.P256dh,
			&r.Auth,
			&r.ExpirationTime,
			&r.CreatedAt,
			&r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const upsertPushRegistration = `INSERT INTO push_registrations (
    endpoint, p256dh, auth, expiration_time, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(endpoint) DO UPDATE SET
    p256dh = excluded.p256dh,
    auth = excluded.auth,
    expiration_time = excluded.expiration_time,
    updated_at = excluded.updated_at`

// UpsertPushRegistrationParams は UpsertPushRegistration の引数。
type UpsertPushRegistrationParams struct {
	Endpoint       string
	P256dh         string
	Auth           string
	ExpirationTime sql.NullInt64
	Now            string
}

// UpsertPushRegistration はエンドポイントをキーに登録または鍵を上書きする。
func (q *Queries) UpsertPushRegistration(ctx context.Context, arg UpsertPushRegistrationParams) error {
	_, err := q.db.ExecContext(ctx, upsertPushRegistration,
		arg.Endpoint,
		arg.P256dh,
		arg.Auth,
		arg.ExpirationTime,
		arg.Now,
		arg.Now,
	)
	return err
}

const deletePushRegistration = `DELETE FROM push_registrations WHERE endpoint = ?`

// DeletePushRegistration はエンドポイントで削除し、影響行数を返す。
func (q *Queries) DeletePushRegistration(ctx context.Context, endpoint string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePushRegistration, endpoint)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
