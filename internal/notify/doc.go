// Package notify はサブスクリプションの変化を登録済みブラウザへ通知する。
//
// Dispatcher は登録済みのプッシュ購読すべてに1回ずつ送信を試み、
// 全件の結果が出るまで待ってから戻る。プッシュサービスが購読の失効を
// 返した登録はその場で削除し、それ以外の失敗はログに残して破棄する。
// Evaluate は支払日と今日の日数差から期限通知の種類を判定する。
package notify
