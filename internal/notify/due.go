package notify

import "github.com/nao1215/subtrack/internal/store"

// dueSoonDays は「期限間近」とみなす支払日までの最大日数。
const dueSoonDays = 7

// Classification は支払日の評価結果。
type Classification int

const (
	// NotDue は通知対象外。
	NotDue Classification = iota
	// DueSoon は支払日まで0〜7日。
	DueSoon
	// Overdue は支払日を過ぎている。
	Overdue
)

// String は評価結果の名前を返す。
func (c Classification) String() string {
	switch c {
	case DueSoon:
		return "DueSoon"
	case Overdue:
		return "Overdue"
	default:
		return "NotDue"
	}
}

// Evaluate は今日から支払日までの日数差で期限を判定する。
// 日数差は支払日が過去なら負になる。
func Evaluate(today, due store.Date) (Classification, int) {
	diff := due.DaysSince(today)
	switch {
	case diff < 0:
		return Overdue, diff
	case diff <= dueSoonDays:
		return DueSoon, diff
	default:
		return NotDue, diff
	}
}

// DueMessage は未払いで支払日があるサブスクリプションについて期限通知を返す。
// 通知対象でなければ false を返す。
func DueMessage(sub store.Subscription, today store.Date) (Message, bool) {
	if sub.Status != store.StatusDue || sub.DueDate == nil {
		return Message{}, false
	}
	switch class, diff := Evaluate(today, *sub.DueDate); class {
	case Overdue:
		return OverdueNotice(sub, -diff), true
	case DueSoon:
		return DueSoonNotice(sub, diff), true
	default:
		return Message{}, false
	}
}
