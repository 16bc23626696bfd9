// Package store はサブスクリプションとプッシュ購読の永続化を提供する。
//
// 既定のバックエンドはSQLite（modernc.org/sqlite）で、MongoDBも選択できる。
// どちらも Store インターフェースを実装し、起動時に一度だけ生成して
// HTTPサーバーと通知ディスパッチャに注入する。
package store
