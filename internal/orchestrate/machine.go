package orchestrate

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/x402x/swapctl/internal/config"
	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/id"
	"github.com/x402x/swapctl/internal/model"
	"github.com/x402x/swapctl/internal/registry"
	"github.com/x402x/swapctl/internal/wallet"
)

// ChainEnsurer gates on-chain interaction behind a network check.
type ChainEnsurer interface {
	Ensure(ctx context.Context, requiredChainID int64) error
}

// AllowanceReader reads the current ERC-20 allowance for the session owner.
type AllowanceReader interface {
	Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error)
}

// ExecuteFunc submits the flow's execution step and returns a transaction
// reference. Returning (nil, nil) signals a silent cancellation: the wallet
// dropped the request without a hash, a success, or an error.
type ExecuteFunc func(ctx context.Context) (*model.TxRef, error)

// RefetchFunc re-reads one asset's balance after settlement.
type RefetchFunc func(ctx context.Context, asset registry.Asset) error

// Plan describes one user-submitted action for the machine to run.
type Plan struct {
	Mode     Mode
	Network  registry.NetworkProfile
	AmountIn string // decimal string; converted to base units at submission time

	// SpendAsset is the asset leaving the user's wallet. Native assets skip
	// the entire approval path.
	SpendAsset registry.Asset
	// ReceiveAsset is refetched alongside SpendAsset after success.
	ReceiveAsset registry.Asset
	// Spender is the contract granted the allowance (wrap contract or the
	// aggregator's approve target). Ignored for native spend assets.
	Spender common.Address

	Execute ExecuteFunc
	// WaitExecutionReceipt is set for direct contract calls whose receipt
	// the wallet must poll. Settlement flows confirm inside Execute.
	WaitExecutionReceipt bool
}

// Tuning carries the machine's fixed delays and retry bounds. Zero values
// take the production defaults; tests shrink them.
type Tuning struct {
	ReconcileAttempts int
	ReconcileInterval time.Duration
	SettleDelay       time.Duration
	Cooldown          time.Duration
}

func (t Tuning) withDefaults() Tuning {
	if t.ReconcileAttempts <= 0 {
		t.ReconcileAttempts = 5
	}
	if t.ReconcileInterval <= 0 {
		t.ReconcileInterval = time.Second
	}
	if t.SettleDelay <= 0 {
		t.SettleDelay = 2 * time.Second
	}
	if t.Cooldown <= 0 {
		t.Cooldown = 2 * time.Second
	}
	return t
}

// Machine runs one Plan through the orchestration phases. It is not safe
// for concurrent use; one machine serves one session at a time, and the
// one-shot execution guard protects against re-entrant triggers within
// that session.
type Machine struct {
	wallet       wallet.Wallet
	guard        ChainEnsurer
	allowances   AllowanceReader
	refetch      RefetchFunc
	approvalMode string
	tuning       Tuning

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	session    *Session
	plan       Plan
	amountBase *big.Int
}

type MachineConfig struct {
	Wallet       wallet.Wallet
	Guard        ChainEnsurer
	Allowances   AllowanceReader
	Refetch      RefetchFunc
	ApprovalMode string
	Tuning       Tuning
}

func NewMachine(cfg MachineConfig) *Machine {
	mode := cfg.ApprovalMode
	if mode == "" {
		mode = config.ApprovalModeMax
	}
	return &Machine{
		wallet:       cfg.Wallet,
		guard:        cfg.Guard,
		allowances:   cfg.Allowances,
		refetch:      cfg.Refetch,
		approvalMode: mode,
		tuning:       cfg.Tuning.withDefaults(),
		sleep:        sleepCtx,
		now:          time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Session returns the current session record, nil before the first Begin.
func (m *Machine) Session() *Session { return m.session }

// Run drives a plan from idle to a terminal state and returns the attempt
// summary. The summary is returned for error outcomes too, alongside the
// typed error, so callers can persist and render the failed attempt.
func (m *Machine) Run(ctx context.Context, plan Plan) (model.AttemptResult, error) {
	if err := m.Begin(ctx, plan); err != nil {
		return m.session.Result(), err
	}
	if m.session.phase == PhaseWaitingApprovalReceipt {
		receipt, err := m.wallet.WaitReceipt(ctx, plan.Network.ChainID, m.session.approvalTx.Hash)
		if err != nil {
			return m.session.Result(), m.fail("Approval", err)
		}
		if !receipt.Success {
			reason := receipt.RevertReason
			if reason == "" {
				reason = "approval transaction reverted"
			}
			return m.session.Result(), m.fail("Approval", clierr.New(clierr.KindContractOrUnknown, reason))
		}
		if err := m.ApprovalConfirmed(ctx); err != nil {
			return m.session.Result(), err
		}
	}
	if m.session.phase == PhaseError {
		return m.session.Result(), m.session.lastError
	}
	return m.session.Result(), nil
}

// Begin validates the plan, opens a fresh session, and advances it as far
// as it can go without an external approval-receipt event: either all the
// way to a terminal phase (direct execution) or to waitingApprovalReceipt.
func (m *Machine) Begin(ctx context.Context, plan Plan) error {
	m.plan = plan
	m.session = newSession(newAttemptID(), plan.Mode, plan.Network.Key, plan.AmountIn, m.now())

	amountBase, err := id.ParseAmount(plan.AmountIn, plan.SpendAsset.Decimals)
	if err != nil {
		return m.fail("Amount validation", err)
	}
	if plan.Execute == nil {
		return m.fail("Plan validation", clierr.New(clierr.KindInternal, "plan has no execute step"))
	}
	m.amountBase = amountBase

	m.session.setPhase(PhaseCheckingNetwork)
	if err := m.guard.Ensure(ctx, plan.Network.ChainID); err != nil {
		return m.fail("Network check", err)
	}

	// Native assets never need approval; flows with no spender (settlement
	// authorizes by signature instead of allowance) skip it too.
	if plan.SpendAsset.IsNative() || plan.Spender == (common.Address{}) {
		return m.proceedToExecution(ctx)
	}
	needed, err := m.needsApproval(ctx)
	if err != nil {
		return m.fail("Allowance read", err)
	}
	if !needed {
		return m.proceedToExecution(ctx)
	}
	return m.submitApproval(ctx)
}

// ApprovalConfirmed is the approval-receipt event. It is a no-op in every
// phase except waitingApprovalReceipt, so a duplicate event cannot restart
// reconciliation or trigger a second execution.
func (m *Machine) ApprovalConfirmed(ctx context.Context) error {
	if m.session == nil || m.session.phase != PhaseWaitingApprovalReceipt {
		return nil
	}
	m.session.setPhase(PhaseReconcilingAllowance)
	if err := m.reconcileAllowance(ctx); err != nil {
		return m.fail("Allowance reconciliation", err)
	}
	return m.proceedToExecution(ctx)
}

// proceedToExecution submits the execution step exactly once. The one-shot
// guard and the presence check on an already-issued transaction reference
// jointly block duplicate submissions under re-entrant triggers.
func (m *Machine) proceedToExecution(ctx context.Context) error {
	if m.session.hasSubmittedExecution || m.session.executeTx != nil {
		return nil
	}
	m.session.hasSubmittedExecution = true
	m.session.setPhase(PhaseExecuting)

	ref, err := m.plan.Execute(ctx)
	if err != nil {
		return m.fail(executionOp(m.plan.Mode), err)
	}
	if ref == nil {
		return m.fail(executionOp(m.plan.Mode), clierr.SilentCancel())
	}
	m.session.executeTx = ref
	m.session.setPhase(PhaseWaitingExecutionReceipt)

	if m.plan.WaitExecutionReceipt {
		receipt, err := m.wallet.WaitReceipt(ctx, m.plan.Network.ChainID, ref.Hash)
		if err != nil {
			return m.fail(executionOp(m.plan.Mode), err)
		}
		if !receipt.Success {
			reason := receipt.RevertReason
			if reason == "" {
				reason = "execution transaction reverted"
			}
			return m.fail(executionOp(m.plan.Mode), clierr.New(clierr.KindContractOrUnknown, reason))
		}
	}
	return m.settle(ctx)
}

// settle marks success, waits out the read-after-write lag, refetches both
// asset balances, and cools down back to idle.
func (m *Machine) settle(ctx context.Context) error {
	m.session.setPhase(PhaseSuccess)
	m.session.finishedAt = m.now()
	m.session.hasSubmittedExecution = false

	if m.refetch != nil {
		if err := m.sleep(ctx, m.tuning.SettleDelay); err != nil {
			return nil
		}
		// Refetch failures are non-fatal: the action already succeeded.
		_ = m.refetch(ctx, m.plan.SpendAsset)
		_ = m.refetch(ctx, m.plan.ReceiveAsset)
	}
	if err := m.sleep(ctx, m.tuning.Cooldown); err != nil {
		return nil
	}
	m.session.phase = PhaseIdle
	return nil
}

// fail terminates the attempt in the error phase with a classified reason
// and rearms the execution guard so an explicit retry can proceed.
func (m *Machine) fail(op string, err error) error {
	classified := clierr.Classify(op, err)
	m.session.lastError = classified
	m.session.setPhase(PhaseError)
	m.session.finishedAt = m.now()
	m.session.hasSubmittedExecution = false
	return classified
}

func executionOp(mode Mode) string {
	switch mode {
	case ModeWrap:
		return "Wrap"
	case ModeUnwrap:
		return "Unwrap"
	case ModeSwap:
		return "Swap"
	}
	return "Execution"
}

func newAttemptID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "attempt-unknown"
	}
	return fmt.Sprintf("att_%s", hex.EncodeToString(buf))
}
