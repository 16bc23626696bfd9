// Package sqlitedb はSQLiteバックエンドのクエリ実行オブジェクトを提供する。
package sqlitedb

import (
	"context"
	"database/sql"
)

// DBTX は *sql.DB と *sql.Tx の共通インターフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// New は新しいクエリ実行オブジェクトを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries はテーブル操作をまとめたクエリ実行オブジェクト。
type Queries struct {
	db DBTX
}

// WithTx はトランザクション上で実行するクエリ実行オブジェクトを返す。
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}
