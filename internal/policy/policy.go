// Package policy gates which commands may run. An allowlist is a safety rail
// for wrappers that drive swapctl programmatically: read-only commands stay
// available while transaction-submitting ones must be enabled explicitly.
package policy

import (
	"strings"

	clierr "github.com/x402x/swapctl/internal/errors"
)

// CheckCommandAllowed rejects commandPath when an allowlist is set and does
// not contain it. An empty allowlist permits everything.
func CheckCommandAllowed(allowlist []string, commandPath string) error {
	if len(allowlist) == 0 {
		return nil
	}
	normPath := normalize(commandPath)
	for _, allowed := range allowlist {
		if normalize(allowed) == normPath {
			return nil
		}
	}
	return clierr.New(clierr.KindBlocked, "command blocked by --enable-commands policy")
}

func normalize(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(v))), " ")
}
