package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.23", "1.23", true},
		{"1,234.50", "1234.5", true},
		{"1,23,456.00", "123456", true},
		{"₹ 99", "99", true},
		{"Rs. 250", "250", true},
		{"Rs 250.75", "250.75", true},
		{"INR 10", "10", true},
		{" -20 ", "-20", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{"₹", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"1234.5": "₹1234.50",
		"-20":    "-₹20.00",
		"0":      "₹0.00",
	}
	for in, want := range cases {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}
}
