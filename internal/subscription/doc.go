// Package subscription はサブスクリプション管理APIのHTTPサーバーを提供する。
//
// サブスクリプションの作成・更新・支払状態の切り替え・削除を受け付け、
// 変更のたびに登録済みブラウザへプッシュ通知をファンアウトする。
// 通知は応答を返す前に全件の送信結果が出るまで待つ。
// 支払日の近いサブスクリプションの通知は GET /api/check-due または
// サーバー内の定期チェックで送る。
package subscription
