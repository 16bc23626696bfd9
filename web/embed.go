// Package web はブラウザに配信するPWAの静的ファイルを埋め込む。
package web

import _ "embed"

// Index はサブスクリプション一覧画面のHTML。
//
//go:embed index.html
var Index []byte

// ServiceWorker はプッシュ通知を表示するService Worker。
//
//go:embed sw.js
var ServiceWorker []byte
