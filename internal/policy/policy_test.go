package policy

import (
	"testing"

	clierr "github.com/x402x/swapctl/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "wrap"); err != nil {
		t.Fatalf("empty allowlist must allow everything: %v", err)
	}
	if err := CheckCommandAllowed([]string{"wrap"}, "wrap"); err != nil {
		t.Fatalf("listed command should be allowed: %v", err)
	}
	if err := CheckCommandAllowed([]string{"balances"}, "wrap"); err == nil {
		t.Fatal("unlisted command should be blocked")
	} else if clierr.KindOf(err) != clierr.KindBlocked {
		t.Fatalf("kind = %s", clierr.KindOf(err))
	}
}

func TestCheckCommandAllowedNormalizesPaths(t *testing.T) {
	if err := CheckCommandAllowed([]string{"  Attempts   List "}, "attempts list"); err != nil {
		t.Fatalf("normalization should match: %v", err)
	}
}
