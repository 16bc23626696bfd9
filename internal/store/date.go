package store

import (
	"fmt"
	"strings"
	"time"
)

// dateLayout は暦日の文字列表現。
const dateLayout = "2006-01-02"

// Date はタイムゾーンを持たない暦日を表す。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf は時刻tが属する暦日を返す。tのロケーションで判定する。
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate は "YYYY-MM-DD" 形式の文字列を暦日に変換する。
// RFC 3339 形式のタイムスタンプが渡された場合は日付部分のみを使う。
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("日付の形式が不正です（YYYY-MM-DD）: %q", s)
}

// String は "YYYY-MM-DD" 形式の文字列を返す。
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero はゼロ値かどうかを返す。
func (d Date) IsZero() bool {
	return d == Date{}
}

// Midnight は指定ロケーションにおけるその日の0時を返す。
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// DaysSince はoからdまでの日数を返す。dがoより前なら負になる。
// 夏時間の影響を受けないようUTCの0時同士で比較する。
func (d Date) DaysSince(o Date) int {
	return int(d.Midnight(time.UTC).Sub(o.Midnight(time.UTC)) / (24 * time.Hour))
}

// AddDays はn日後の暦日を返す。
func (d Date) AddDays(n int) Date {
	return DateOf(d.Midnight(time.UTC).AddDate(0, 0, n))
}

// Before はdがoより前の日付かどうかを返す。
func (d Date) Before(o Date) bool {
	return d.DaysSince(o) < 0
}

// parseOptionalDate は空文字列をnilとして扱う。
func parseOptionalDate(s string) (*Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// formatOptionalDate はnilを空文字列として扱う。
func formatOptionalDate(d *Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
