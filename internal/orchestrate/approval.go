package orchestrate

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/x402x/swapctl/internal/config"
	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/registry"
	"github.com/x402x/swapctl/internal/wallet"
)

// maxUint256 is the "approve once, never again" allowance. Granting the
// maximum trades a larger standing allowance for never re-prompting the
// user on later actions; exact-amount mode narrows it per attempt.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var erc20ABI = mustParseABI(registry.ERC20MinimalABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse embedded ABI: %v", err))
	}
	return parsed
}

// needsApproval compares the live allowance against the requested base-unit
// amount. Callers skip this for native assets.
func (m *Machine) needsApproval(ctx context.Context) (bool, error) {
	current, err := m.allowances.Allowance(ctx, common.HexToAddress(m.plan.SpendAsset.Address), m.plan.Spender)
	if err != nil {
		return false, err
	}
	return current.Cmp(m.amountBase) < 0, nil
}

// submitApproval issues the approve call and advances the session to
// waitingApprovalReceipt once the wallet returns a transaction reference.
func (m *Machine) submitApproval(ctx context.Context) error {
	m.session.setPhase(PhaseApproving)

	grant := maxUint256
	if m.approvalMode == config.ApprovalModeExact {
		// The reconciliation loop accepts only amount plus its safety
		// buffer, so an exact grant must cover the buffer too.
		grant = reconcileTarget(m.amountBase)
	}
	data, err := erc20ABI.Pack("approve", m.plan.Spender, grant)
	if err != nil {
		return m.fail("Approval", clierr.Wrap(clierr.KindInternal, "pack approve calldata", err))
	}
	ref, err := m.wallet.SubmitCall(ctx, wallet.ContractCall{
		ChainID: m.plan.Network.ChainID,
		To:      common.HexToAddress(m.plan.SpendAsset.Address),
		Data:    data,
	})
	if err != nil {
		return m.fail("Approval", err)
	}
	if ref == nil {
		return m.fail("Approval", clierr.SilentCancel())
	}
	m.session.approvalTx = ref
	m.session.setPhase(PhaseWaitingApprovalReceipt)
	return nil
}
