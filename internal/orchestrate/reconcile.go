package orchestrate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/x402x/swapctl/internal/errors"
)

// reconcileTarget is the allowance the loop waits for: the requested amount
// plus a 0.1% buffer to tolerate contract-side rounding.
func reconcileTarget(amount *big.Int) *big.Int {
	buffer := new(big.Int).Div(amount, big.NewInt(1000))
	return new(big.Int).Add(amount, buffer)
}

// reconcileAllowance polls the allowance after a confirmed approval until it
// covers the reconcile target. RPC nodes can lag their own writes, so the
// first reads may still see the stale value; the loop is the only automatic
// retry in the whole flow and it is strictly bounded.
func (m *Machine) reconcileAllowance(ctx context.Context) error {
	target := reconcileTarget(m.amountBase)
	token := common.HexToAddress(m.plan.SpendAsset.Address)

	var lastSeen *big.Int
	for attempt := 1; attempt <= m.tuning.ReconcileAttempts; attempt++ {
		current, err := m.allowances.Allowance(ctx, token, m.plan.Spender)
		if err != nil {
			return err
		}
		if current.Cmp(target) >= 0 {
			return nil
		}
		lastSeen = current
		if attempt < m.tuning.ReconcileAttempts {
			if err := m.sleep(ctx, m.tuning.ReconcileInterval); err != nil {
				return err
			}
		}
	}
	return clierr.New(clierr.KindAllowanceShortfall,
		fmt.Sprintf("allowance still %s after approval, need %s", lastSeen, target))
}
