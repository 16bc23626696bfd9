package notify

import (
	"fmt"

	"github.com/nao1215/subtrack/internal/store"
	"github.com/nao1215/subtrack/pkg/webpush"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message はプッシュ通知のペイロード。Service Worker が title と body を表示する。
type Message struct {
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Body は通知の本文。
	Body string `json:"body"`
	// Urgency は送信時の緊急度。空の場合は Dispatcher の既定値を使う。
	Urgency webpush.Urgency `json:"-"`
}

// printer は南アフリカ英語の書式で金額を整形する。
var printer = message.NewPrinter(language.MustParse("en-ZA"))

// formatCost は料金をZARの通貨表記にする。
func formatCost(cost float64) string {
	return printer.Sprint(currency.Symbol(currency.ZAR.Amount(cost)))
}

// Added はサブスクリプション追加の通知を返す。
func Added(sub store.Subscription) Message {
	return Message{
		Title: "Subscription Added ➕",
		Body:  fmt.Sprintf("Your %s subscription for %s has been added. ➕", sub.Name, formatCost(sub.Cost)),
	}
}

// CostUpdated は料金値上げの通知を返す。
func CostUpdated(sub store.Subscription) Message {
	return Message{
		Title: "Subscription Cost Updated 📈",
		Body:  fmt.Sprintf("Your %s subscription has increased to %s. 📈", sub.Name, formatCost(sub.Cost)),
	}
}

// Paid は支払済みへの切り替えの通知を返す。
func Paid(sub store.Subscription) Message {
	return Message{
		Title: "Subscription Paid ✅",
		Body:  fmt.Sprintf("Your %s subscription for %s has been paid! ✅", sub.Name, formatCost(sub.Cost)),
	}
}

// MarkedDue は未払いへの切り戻しの通知を返す。
func MarkedDue(sub store.Subscription) Message {
	return Message{
		Title: "Subscription Marked Due 🔁",
		Body:  fmt.Sprintf("Your %s subscription for %s is marked as due again. 🔁", sub.Name, formatCost(sub.Cost)),
	}
}

// Toggled は切り替え後の状態に応じた通知を返す。
func Toggled(sub store.Subscription) Message {
	if sub.Status == store.StatusPaid {
		return Paid(sub)
	}
	return MarkedDue(sub)
}

// Deleted はサブスクリプション削除の通知を返す。
func Deleted(sub store.Subscription) Message {
	return Message{
		Title: "Subscription Deleted 🗑️",
		Body:  fmt.Sprintf("Your %s subscription for %s has been deleted. 🗑️", sub.Name, formatCost(sub.Cost)),
	}
}

// DueSoonNotice は支払日が近いことの通知を返す。daysは支払日までの日数。
func DueSoonNotice(sub store.Subscription, days int) Message {
	return Message{
		Title: "Subscription Due Soon ⏰",
		Body:  fmt.Sprintf("Your %s subscription for %s is due in %d days. ⏰", sub.Name, formatCost(sub.Cost), days),
	}
}

// OverdueNotice は支払日を過ぎたことの通知を返す。daysは超過日数（正の値）。
func OverdueNotice(sub store.Subscription, days int) Message {
	return Message{
		Title:   "Subscription Overdue ⚠️",
		Body:    fmt.Sprintf("Your %s subscription for %s is %d days overdue. ⚠️", sub.Name, formatCost(sub.Cost), days),
		Urgency: webpush.UrgencyHigh,
	}
}
