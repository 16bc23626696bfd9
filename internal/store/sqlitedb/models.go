package sqlitedb

import "database/sql"

// Subscription は subscriptions テーブルの1行。
type Subscription struct {
	ID             string
	Name           string
	Cost           float64
	DueDate        sql.NullString
	Status         string
	CreatedAt      string
	UpdatedAt      string
	LastNotifiedOn sql.NullString
}

// PushRegistration は push_registrations テーブルの1行。
type PushRegistration struct {
	Endpoint       string
	P256dh         string
	Auth           string
	ExpirationTime sql.NullInt64
	CreatedAt      string
	UpdatedAt      string
}
