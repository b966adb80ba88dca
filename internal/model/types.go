package model

import "time"

const EnvelopeVersion = "v1"

// Envelope is the single output shape for every command.
type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
}

// TxRef identifies a broadcast transaction together with its block-explorer
// link when the active profile has one.
type TxRef struct {
	Hash        string `json:"hash"`
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// BalanceView is the display form of an on-chain balance read.
type BalanceView struct {
	Symbol       string `json:"symbol"`
	Address      string `json:"address"`
	BaseUnits    string `json:"base_units"`
	Decimal      string `json:"decimal"`
	Display      string `json:"display"`
	Native       bool   `json:"native"`
	FetchedAt    string `json:"fetched_at"`
	ChainID      int64  `json:"chain_id"`
	OwnerAddress string `json:"owner_address"`
}

// AttemptResult is the terminal summary of one orchestration attempt.
type AttemptResult struct {
	AttemptID  string   `json:"attempt_id"`
	Mode       string   `json:"mode"`
	Network    string   `json:"network"`
	AmountIn   string   `json:"amount_in"`
	Phase      string   `json:"phase"`
	PhaseTrail []string `json:"phase_trail,omitempty"`
	ApprovalTx *TxRef   `json:"approval_tx,omitempty"`
	ExecuteTx  *TxRef   `json:"execute_tx,omitempty"`
	ErrorKind  string   `json:"error_kind,omitempty"`
	ErrorText  string   `json:"error_text,omitempty"`
	StartedAt  string   `json:"started_at"`
	FinishedAt string   `json:"finished_at,omitempty"`
}
