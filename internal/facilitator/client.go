// Package facilitator is the HTTP client for the x402x settlement
// facilitator: it prepares an unsigned settlement, and submits the signed
// authorization for on-chain execution.
package facilitator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/httpx"
)

type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) BaseURL() string { return c.baseURL }

// PrepareRequest asks the facilitator to assemble a settlement for one
// hook invocation paid with amount base units plus the facilitator fee.
type PrepareRequest struct {
	From           string `json:"from"`
	Network        string `json:"network"`
	Hook           string `json:"hook"`
	HookData       string `json:"hookData"`
	Amount         string `json:"amount"`
	PayTo          string `json:"payTo"`
	FacilitatorFee string `json:"facilitatorFee"`
}

// Settlement is the unsigned settlement the facilitator prepared: the
// EIP-712 payload the wallet must sign, plus the opaque payment payload
// echoed back verbatim on submission.
type Settlement struct {
	TypedData      apitypes.TypedData `json:"typedData"`
	PaymentPayload json.RawMessage    `json:"paymentPayload"`
}

// SignedSettlement pairs the prepared payload with the wallet's signature.
type SignedSettlement struct {
	PaymentPayload json.RawMessage `json:"paymentPayload"`
	Signature      string          `json:"signature"`
}

// SettleResult is the facilitator's terminal answer for a settlement.
type SettleResult struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	Network         string `json:"network"`
	ErrorReason     string `json:"errorReason,omitempty"`
}

// PrepareSettlement requests an unsigned settlement payload.
func (c *Client) PrepareSettlement(ctx context.Context, req PrepareRequest) (Settlement, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Settlement{}, clierr.Wrap(clierr.KindInternal, "encode settlement preparation request", err)
	}
	var out Settlement
	headers := map[string]string{"Content-Type": "application/json"}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/prepare", body, headers, &out); err != nil {
		return Settlement{}, clierr.Wrap(clierr.KindSettlementFailed, "settlement preparation", err)
	}
	if out.TypedData.PrimaryType == "" || len(out.PaymentPayload) == 0 {
		return Settlement{}, clierr.New(clierr.KindSettlementFailed, "facilitator returned incomplete settlement payload")
	}
	return out, nil
}

// Settle submits the signed authorization. A transport-level failure and a
// facilitator-reported failure both map to swap_failed, with the
// facilitator's reason preserved when it gives one.
func (c *Client) Settle(ctx context.Context, signed SignedSettlement) (SettleResult, error) {
	body, err := json.Marshal(signed)
	if err != nil {
		return SettleResult{}, clierr.Wrap(clierr.KindInternal, "encode settlement submission", err)
	}
	var out SettleResult
	headers := map[string]string{"Content-Type": "application/json"}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.baseURL+"/settle", body, headers, &out); err != nil {
		return SettleResult{}, clierr.Wrap(clierr.KindSettlementFailed, "settlement submission", err)
	}
	if !out.Success {
		reason := out.ErrorReason
		if reason == "" {
			reason = "facilitator reported settlement failure"
		}
		return out, clierr.New(clierr.KindSettlementFailed, fmt.Sprintf("settlement failed: %s", reason))
	}
	return out, nil
}
