package id

import (
	"math/big"
	"testing"

	clierr "github.com/x402x/swapctl/internal/errors"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		decimal  string
		decimals int
		want     string
	}{
		{"10", 18, "10000000000000000000"},
		{"1.23", 6, "1230000"},
		{"0.000001", 6, "1"},
		{"2.5", 0, ""},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.decimal, tc.decimals)
		if tc.want == "" {
			if err == nil {
				t.Fatalf("ParseAmount(%q, %d) expected error", tc.decimal, tc.decimals)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q, %d) failed: %v", tc.decimal, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Fatalf("ParseAmount(%q, %d) = %s, want %s", tc.decimal, tc.decimals, got, tc.want)
		}
	}
}

func TestParseAmountRejectsNonPositive(t *testing.T) {
	for _, raw := range []string{"", "0", "0.0", "-1", "abc", "1.2.3"} {
		_, err := ParseAmount(raw, 18)
		if err == nil {
			t.Fatalf("ParseAmount(%q) expected error", raw)
		}
		typed, ok := clierr.As(err)
		if !ok || typed.Kind != clierr.KindInvalidAmount {
			t.Fatalf("ParseAmount(%q) kind = %v, want invalid_amount", raw, err)
		}
	}
}

func TestFormatBaseUnits(t *testing.T) {
	v, _ := new(big.Int).SetString("10000000000000000000", 10)
	if got := FormatBaseUnits(v, 18); got != "10" {
		t.Fatalf("FormatBaseUnits = %s, want 10", got)
	}
	if got := FormatBaseUnits(big.NewInt(1230000), 6); got != "1.23" {
		t.Fatalf("FormatBaseUnits = %s, want 1.23", got)
	}
	if got := FormatBaseUnits(big.NewInt(42), 0); got != "42" {
		t.Fatalf("FormatBaseUnits = %s, want 42", got)
	}
}

func TestFormatDisplayCapsAtSixDecimals(t *testing.T) {
	if got := FormatDisplay("1.234567891"); got != "1.234567" {
		t.Fatalf("FormatDisplay = %s, want 1.234567", got)
	}
	if got := FormatDisplay("5.100000"); got != "5.1" {
		t.Fatalf("FormatDisplay = %s, want 5.1", got)
	}
	if got := FormatDisplay("7.000000"); got != "7" {
		t.Fatalf("FormatDisplay = %s, want 7", got)
	}
}

func TestShortHex(t *testing.T) {
	hash := "0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"
	if got := ShortHex(hash, 4); got != "0x1234...cdef" {
		t.Fatalf("ShortHex = %s", got)
	}
	if got := ShortHex("0xab", 4); got != "0xab" {
		t.Fatalf("short values pass through, got %s", got)
	}
}
