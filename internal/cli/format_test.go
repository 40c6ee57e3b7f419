package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"0", "USD", "$0.00"},
		{"1234.5", "USD", "$1,234.50"},
		{"-3", "eur", "-€3.00"},
		{"1234567.891", "GBP", "£1,234,567.89"},
		{"1500", "JPY", "¥1,500"},
		{"12.3", "CHF", "CHF 12.30"},
	}
	for _, tt := range tests {
		got := FormatMoney(decimal.RequireFromString(tt.amount), tt.currency)
		if got != tt.want {
			t.Errorf("FormatMoney(%s, %s) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestFormatSigned(t *testing.T) {
	if got := FormatSigned(decimal.NewFromInt(5), "USD"); got != "+$5.00" {
		t.Fatalf("got %q", got)
	}
	if got := FormatSigned(decimal.NewFromInt(-5), "USD"); got != "-$5.00" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for n, want := range tests {
		if got := FormatNumber(n); got != want {
			t.Errorf("FormatNumber(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int64]string{
		0:      "0s",
		45:     "45s",
		125:    "2m",
		3725:   "1h 2m",
		180000: "2d 2h",
	}
	for secs, want := range tests {
		if got := FormatDuration(secs); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", secs, got, want)
		}
	}
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if got := FormatAgo(time.Time{}, now); got != "never" {
		t.Fatalf("zero = %q", got)
	}
	if got := FormatAgo(now.Add(-90*time.Second), now); got != "1m ago" {
		t.Fatalf("90s = %q", got)
	}
}

func TestRenderTableAlignment(t *testing.T) {
	out := RenderTable(Table{
		Headers:   []string{"Date", "Description", "Amount"},
		Rows:      [][]string{{"2025-01-01", "Rent", "$1,200.00"}, {"2025-01-02", "Coffee shop", "$4.50"}},
		LeftAlign: []int{1},
	})
	if !strings.Contains(out, " Rent        ") {
		t.Fatalf("description column not left-aligned:\n%s", out)
	}
	if !strings.Contains(out, "     $4.50 ") {
		t.Fatalf("amount column not right-aligned:\n%s", out)
	}
}

func TestRenderProgressBarClamps(t *testing.T) {
	over := RenderProgressBar(150, 10)
	if strings.Count(over, "█") != 10 || !strings.Contains(over, "150.0%") {
		t.Fatalf("over-budget bar = %q", over)
	}
	if RenderProgressBar(50, 0) != "" {
		t.Fatal("zero width should render nothing")
	}
}
