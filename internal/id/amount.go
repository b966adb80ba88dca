package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/x402x/swapctl/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseAmount converts a user-entered decimal string into integer base units
// for the given token decimals. The decimal string stays authoritative until
// this call; conversion happens only at submission time. Rejects zero and
// negative inputs.
func ParseAmount(decimal string, decimals int) (*big.Int, error) {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return nil, clierr.New(clierr.KindInvalidAmount, "amount is required")
	}
	if !decimalPattern.MatchString(clean) {
		return nil, clierr.New(clierr.KindInvalidAmount, "amount must be in decimal form like 1.23")
	}
	if decimals < 0 {
		return nil, clierr.New(clierr.KindInvalidAmount, "decimals must be >= 0")
	}
	base, err := decimalToBaseUnits(clean, decimals)
	if err != nil {
		return nil, err
	}
	if base.Sign() <= 0 {
		return nil, clierr.New(clierr.KindInvalidAmount, "amount must be greater than zero")
	}
	return base, nil
}

func decimalToBaseUnits(decimal string, decimals int) (*big.Int, error) {
	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return nil, clierr.New(clierr.KindInvalidAmount, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}

	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return big.NewInt(0), nil
	}
	out, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, clierr.New(clierr.KindInvalidAmount, "invalid decimal amount")
	}
	return out, nil
}

// FormatBaseUnits renders integer base units as a decimal string with
// trailing fractional zeros trimmed. The full precision is preserved.
func FormatBaseUnits(baseUnits *big.Int, decimals int) string {
	if baseUnits == nil {
		return "0"
	}
	s := baseUnits.String()
	if decimals == 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// FormatDisplay trims trailing fractional zeros and caps the displayed
// precision at six decimals without rounding. The value used for computation
// is never this truncated form.
func FormatDisplay(decimal string) string {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return "0"
	}
	parts := strings.SplitN(clean, ".", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	frac := strings.TrimRight(parts[1], "0")
	if len(frac) > 6 {
		frac = frac[:6]
	}
	if frac == "" {
		return parts[0]
	}
	return parts[0] + "." + frac
}

// ShortHex shortens a long hex string (e.g. a transaction hash) for display.
func ShortHex(v string, visibleChars int) string {
	if v == "" {
		return ""
	}
	if visibleChars <= 0 {
		visibleChars = 4
	}
	if len(v) <= 2+visibleChars*2 {
		return v
	}
	return v[:2+visibleChars] + "..." + v[len(v)-visibleChars:]
}
