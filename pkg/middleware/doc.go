// Package middleware はsubtrackのHTTP APIで使用するGinミドルウェアを提供する。
//
// パニックリカバリ、CORS設定、未定義ルートのJSON応答を含む。
// エラー応答はすべて {"error": "..."} 形式で、内部の詳細は含めない。
package middleware
