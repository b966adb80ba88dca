// Package chain guards every on-chain interaction behind a network check.
package chain

import (
	"context"
	"fmt"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/wallet"
)

// Guard verifies the wallet is connected to the required chain before any
// token or contract interaction, and asks the wallet to switch when it is
// not. It never dials a connection itself; that stays the wallet's job.
type Guard struct {
	wallet wallet.Wallet
}

func NewGuard(w wallet.Wallet) *Guard {
	return &Guard{wallet: w}
}

// Ensure returns nil when the wallet's active chain matches requiredChainID,
// switching first if necessary. A switch the wallet declines or botches
// surfaces as chain_switch_failed; a wallet that claims success but still
// reports the wrong chain surfaces as chain_mismatch.
func (g *Guard) Ensure(ctx context.Context, requiredChainID int64) error {
	active, err := g.wallet.ActiveChainID(ctx)
	if err != nil {
		return clierr.Classify("Network check", err)
	}
	if active == requiredChainID {
		return nil
	}
	if err := g.wallet.RequestChainSwitch(ctx, requiredChainID); err != nil {
		if typed, ok := clierr.As(err); ok {
			return typed
		}
		return clierr.Wrap(clierr.KindChainSwitchFailed, fmt.Sprintf("switch to chain %d", requiredChainID), err)
	}
	active, err = g.wallet.ActiveChainID(ctx)
	if err != nil {
		return clierr.Classify("Network check", err)
	}
	if active != requiredChainID {
		return clierr.New(clierr.KindChainMismatch, fmt.Sprintf("wallet reports chain %d after switching to %d", active, requiredChainID))
	}
	return nil
}
