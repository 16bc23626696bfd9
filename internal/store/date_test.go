package store

import (
	"testing"
	"time"
)

// TestParseDate は暦日のパースを検証する。
func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "YYYY-MM-DD形式", input: "2024-01-05", want: "2024-01-05"},
		{name: "前後の空白は無視", input: " 2024-01-05 ", want: "2024-01-05"},
		{name: "RFC3339形式は日付部分のみ", input: "2024-01-05T23:30:00+02:00", want: "2024-01-05"},
		{name: "UTCのタイムスタンプ", input: "2023-12-25T00:00:00.000Z", want: "2023-12-25"},
		{name: "存在しない日付", input: "2024-02-30", wantErr: true},
		{name: "空文字列", input: "", wantErr: true},
		{name: "不正な形式", input: "05/01/2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDate(%q)がエラーを返すべきだが、nilが返った", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q)でエラーが発生: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// TestDaysSince は日数差の計算を検証する。
func TestDaysSince(t *testing.T) {
	t.Parallel()

	today := Date{Year: 2024, Month: time.January, Day: 1}

	tests := []struct {
		name string
		date Date
		want int
	}{
		{name: "同じ日", date: today, want: 0},
		{name: "4日後", date: Date{Year: 2024, Month: time.January, Day: 5}, want: 4},
		{name: "7日前（年をまたぐ）", date: Date{Year: 2023, Month: time.December, Day: 25}, want: -7},
		{name: "うるう年の2月をまたぐ", date: Date{Year: 2024, Month: time.March, Day: 1}, want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.date.DaysSince(today); got != tt.want {
				t.Errorf("DaysSince() = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestDateOf は時刻から暦日への変換を検証する。
func TestDateOf(t *testing.T) {
	t.Parallel()

	// UTCでは前日でも、ヨハネスブルグ時間では翌日になる時刻
	loc := time.FixedZone("SAST", 2*60*60)
	instant := time.Date(2023, time.December, 31, 23, 0, 0, 0, time.UTC)

	if got := DateOf(instant).String(); got != "2023-12-31" {
		t.Errorf("DateOf(UTC) = %s, want 2023-12-31", got)
	}
	if got := DateOf(instant.In(loc)).String(); got != "2024-01-01" {
		t.Errorf("DateOf(SAST) = %s, want 2024-01-01", got)
	}
	if got := DateOf(instant).AddDays(1).String(); got != "2024-01-01" {
		t.Errorf("AddDays(1) = %s, want 2024-01-01", got)
	}
}
