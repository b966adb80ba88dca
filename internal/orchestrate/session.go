// Package orchestrate drives one user action (wrap, unwrap, or
// aggregator-swap) through its full on-chain lifecycle: network check,
// approval, allowance reconciliation, execution, and settlement of the
// resulting balances.
package orchestrate

import (
	"time"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/model"
)

// Phase is one state of the orchestration machine. Phases only advance
// forward or to PhaseError; they never regress except via Reset.
type Phase string

const (
	PhaseIdle                    Phase = "idle"
	PhaseCheckingNetwork         Phase = "checkingNetwork"
	PhaseApproving               Phase = "approving"
	PhaseWaitingApprovalReceipt  Phase = "waitingApprovalReceipt"
	PhaseReconcilingAllowance    Phase = "reconcilingAllowance"
	PhaseExecuting               Phase = "executing"
	PhaseWaitingExecutionReceipt Phase = "waitingExecutionReceipt"
	PhaseSuccess                 Phase = "success"
	PhaseError                   Phase = "error"
)

// Mode selects which flow a session runs.
type Mode string

const (
	ModeWrap   Mode = "wrap"
	ModeUnwrap Mode = "unwrap"
	ModeSwap   Mode = "swap"
)

// Session is the mutable record of one user-initiated action. Only the
// machine's transition methods mutate it.
type Session struct {
	id       string
	mode     Mode
	network  string
	amountIn string

	phase Phase
	trail []Phase
	// terminal is the outcome phase (success or error) once reached; the
	// live phase returns to idle after the cool-down, but the attempt's
	// recorded outcome does not.
	terminal Phase

	lastError  *clierr.Error
	approvalTx *model.TxRef
	executeTx  *model.TxRef

	// One-shot guard: true for at most one approval-to-execution cycle,
	// always reset to false on idle or error.
	hasSubmittedExecution bool

	startedAt  time.Time
	finishedAt time.Time
}

func newSession(id string, mode Mode, network, amountIn string, startedAt time.Time) *Session {
	s := &Session{
		id:        id,
		mode:      mode,
		network:   network,
		amountIn:  amountIn,
		phase:     PhaseIdle,
		startedAt: startedAt,
	}
	s.trail = append(s.trail, PhaseIdle)
	return s
}

func (s *Session) setPhase(p Phase) {
	s.phase = p
	s.trail = append(s.trail, p)
	if p == PhaseSuccess || p == PhaseError {
		s.terminal = p
	}
}

func (s *Session) Phase() Phase { return s.phase }

// Trail returns the phases visited so far, in order.
func (s *Session) Trail() []Phase {
	out := make([]Phase, len(s.trail))
	copy(out, s.trail)
	return out
}

func (s *Session) LastError() *clierr.Error { return s.lastError }
func (s *Session) ApprovalTx() *model.TxRef { return s.approvalTx }
func (s *Session) ExecuteTx() *model.TxRef  { return s.executeTx }

func (s *Session) HasSubmittedExecution() bool { return s.hasSubmittedExecution }

// Result snapshots the session for output and persistence.
func (s *Session) Result() model.AttemptResult {
	trail := make([]string, 0, len(s.trail))
	for _, p := range s.trail {
		trail = append(trail, string(p))
	}
	outcome := s.phase
	if s.terminal != "" {
		outcome = s.terminal
	}
	res := model.AttemptResult{
		AttemptID:  s.id,
		Mode:       string(s.mode),
		Network:    s.network,
		AmountIn:   s.amountIn,
		Phase:      string(outcome),
		PhaseTrail: trail,
		ApprovalTx: s.approvalTx,
		ExecuteTx:  s.executeTx,
		StartedAt:  s.startedAt.UTC().Format(time.RFC3339),
	}
	if !s.finishedAt.IsZero() {
		res.FinishedAt = s.finishedAt.UTC().Format(time.RFC3339)
	}
	if s.lastError != nil {
		res.ErrorKind = string(s.lastError.Kind)
		res.ErrorText = s.lastError.Message
	}
	return res
}

// Reset returns the session to idle for an explicit user-initiated retry.
// The last error and transaction references stay visible until a new attempt
// overwrites them.
func (s *Session) Reset() {
	s.phase = PhaseIdle
	s.trail = append(s.trail, PhaseIdle)
	s.hasSubmittedExecution = false
}
