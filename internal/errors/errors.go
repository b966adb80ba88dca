package errors

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable classification of an orchestration
// failure. Every attempt that terminates in the error phase carries exactly
// one Kind.
type Kind string

const (
	KindUserRejected       Kind = "user_rejected"
	KindRPC                Kind = "rpc_error"
	KindChainMismatch      Kind = "chain_mismatch"
	KindChainSwitchFailed  Kind = "chain_switch_failed"
	KindInvalidAmount      Kind = "invalid_amount"
	KindAllowanceShortfall Kind = "allowance_insufficient_after_approval"
	KindAggregatorBuild    Kind = "swap_build_failed"
	KindApproveTarget      Kind = "approve_tx_failed"
	KindHookMissing        Kind = "dex_hook_missing"
	KindSettlementFailed   Kind = "swap_failed"
	KindUsage              Kind = "usage"
	KindBlocked            Kind = "command_blocked"
	KindInternal           Kind = "internal"
	KindContractOrUnknown  Kind = "contract_or_unknown"
)

// Process exit codes by kind, following the CLI convention of small stable
// integers for scripting.
var exitCodes = map[Kind]int{
	KindUsage:              2,
	KindBlocked:            3,
	KindUserRejected:       10,
	KindRPC:                11,
	KindChainMismatch:      12,
	KindChainSwitchFailed:  12,
	KindInvalidAmount:      2,
	KindAllowanceShortfall: 13,
	KindAggregatorBuild:    14,
	KindApproveTarget:      14,
	KindHookMissing:        15,
	KindSettlementFailed:   16,
	KindContractOrUnknown:  17,
	KindInternal:           1,
}

// Error is a typed error that carries a classification kind and a message
// suitable for display.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the classification kind attached to err, or
// KindContractOrUnknown when err carries none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if typed, ok := As(err); ok {
		return typed.Kind
	}
	return KindContractOrUnknown
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if typed, ok := As(err); ok {
		if code, ok := exitCodes[typed.Kind]; ok {
			return code
		}
	}
	return exitCodes[KindInternal]
}
