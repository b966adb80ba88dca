package errors

import "strings"

// Keyword sets for the substring heuristic. Matching runs over the
// lower-cased provider error text; rejection phrasing wins over RPC phrasing
// because wallets sometimes wrap a rejection in a transport error.
var rejectionKeywords = []string{
	"user rejected",
	"user denied",
	"rejected the request",
	"request rejected",
	"denied transaction",
	"cancelled by user",
	"canceled by user",
	"action_rejected",
}

var rpcKeywords = []string{
	"network error",
	"timeout",
	"timed out",
	"fetch failed",
	"failed to fetch",
	"connection refused",
	"connection reset",
	"no such host",
	"rpc endpoint",
	"econnrefused",
	"service unavailable",
	"too many requests",
}

const (
	userRejectedMessage = "Transaction cancelled by user"
	rpcErrorMessage     = "Network request failed; check your connection, RPC may be unavailable"
)

// Classify maps a raw provider error into the four-way taxonomy split.
// Classification is deterministic: the same error text always yields the same
// kind regardless of which phase produced it. op names the attempted
// operation ("Approval", "Wrap", "Swap") and prefixes the fallback message.
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}
	if typed, ok := As(err); ok && typed.Kind != KindContractOrUnknown {
		return typed
	}
	text := strings.ToLower(err.Error())
	for _, kw := range rejectionKeywords {
		if strings.Contains(text, kw) {
			return &Error{Kind: KindUserRejected, Message: userRejectedMessage, Cause: err}
		}
	}
	for _, kw := range rpcKeywords {
		if strings.Contains(text, kw) {
			return &Error{Kind: KindRPC, Message: rpcErrorMessage, Cause: err}
		}
	}
	return &Error{Kind: KindContractOrUnknown, Message: op + " failed: " + err.Error(), Cause: err}
}

// SilentCancel is the classification for a submission whose pending flag
// dropped without a transaction hash, a success, or a thrown error. Some
// wallets decline without raising anything catchable.
func SilentCancel() *Error {
	return &Error{Kind: KindUserRejected, Message: userRejectedMessage}
}
