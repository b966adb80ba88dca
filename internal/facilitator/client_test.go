package facilitator

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/httpx"
	"github.com/x402x/swapctl/internal/registry"
)

func TestEncodeSwapConfig(t *testing.T) {
	encoded, err := EncodeSwapConfig(SwapConfig{
		DexAggregator:  common.HexToAddress("0x1111111111111111111111111111111111111111"),
		ApproveAddress: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SwapCalldata:   []byte{0xde, 0xad, 0xbe, 0xef},
		ToToken:        common.HexToAddress(registry.ZeroAddress),
		MinAmountOut:   big.NewInt(0),
		IsNativeToken:  true,
	})
	if err != nil {
		t.Fatalf("EncodeSwapConfig failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "0x") {
		t.Fatalf("encoded payload not hex: %q", encoded)
	}
	// Both addresses must appear in the ABI encoding.
	for _, addr := range []string{"1111111111111111111111111111111111111111", "2222222222222222222222222222222222222222"} {
		if !strings.Contains(strings.ToLower(encoded), addr) {
			t.Fatalf("encoded payload missing address %s", addr)
		}
	}
}

func TestEncodeSwapConfigDefaultsNilMinOut(t *testing.T) {
	_, err := EncodeSwapConfig(SwapConfig{
		DexAggregator:  common.HexToAddress("0x1"),
		ApproveAddress: common.HexToAddress("0x2"),
		SwapCalldata:   []byte{0x00},
		ToToken:        common.HexToAddress("0x3"),
	})
	if err != nil {
		t.Fatalf("EncodeSwapConfig failed with nil min-out: %v", err)
	}
}

func TestNormalizeDestination(t *testing.T) {
	addr, native := NormalizeDestination(registry.NativeTokenAddress)
	if !native {
		t.Fatal("sentinel address must be detected as native")
	}
	if addr != common.HexToAddress(registry.ZeroAddress) {
		t.Fatalf("native destination = %s, want zero address", addr)
	}

	addr, native = NormalizeDestination(strings.ToLower(registry.NativeTokenAddress))
	if !native {
		t.Fatal("sentinel detection must be case-insensitive")
	}
	_ = addr

	token := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	addr, native = NormalizeDestination(token)
	if native {
		t.Fatal("ERC-20 destination must not be native")
	}
	if addr != common.HexToAddress(token) {
		t.Fatalf("destination = %s, want %s", addr, token)
	}
}

func newFacilitatorServer(t *testing.T, settleSuccess bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/prepare":
			var req PrepareRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.FacilitatorFee != "15000" {
				t.Errorf("facilitator fee = %q, want 15000", req.FacilitatorFee)
			}
			_, _ = w.Write([]byte(`{
				"typedData": {
					"types": {"TransferWithAuthorization": [{"name": "from", "type": "address"}]},
					"primaryType": "TransferWithAuthorization",
					"domain": {"name": "USD Coin", "version": "2"},
					"message": {"from": "0x96216849c49358B10257cb55b28eA603c874b05E"}
				},
				"paymentPayload": {"scheme": "exact", "network": "base"}
			}`))
		case "/settle":
			var signed SignedSettlement
			if err := json.NewDecoder(r.Body).Decode(&signed); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if signed.Signature == "" {
				t.Error("settle request missing signature")
			}
			if settleSuccess {
				_, _ = w.Write([]byte(`{"success": true, "transactionHash": "0xsettled", "network": "base"}`))
			} else {
				_, _ = w.Write([]byte(`{"success": false, "errorReason": "authorization expired"}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestPrepareAndSettle(t *testing.T) {
	srv := newFacilitatorServer(t, true)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), srv.URL)
	settlement, err := c.PrepareSettlement(context.Background(), PrepareRequest{
		From:           "0x96216849c49358B10257cb55b28eA603c874b05E",
		Network:        "base",
		Hook:           "0x3bafb8ad1a5cc59bd35f9bd46f02ba6ba28c0c95",
		HookData:       "0xdead",
		Amount:         "1000000",
		PayTo:          "0x96216849c49358B10257cb55b28eA603c874b05E",
		FacilitatorFee: "15000",
	})
	if err != nil {
		t.Fatalf("PrepareSettlement failed: %v", err)
	}
	if settlement.TypedData.PrimaryType != "TransferWithAuthorization" {
		t.Fatalf("primary type = %q", settlement.TypedData.PrimaryType)
	}

	result, err := c.Settle(context.Background(), SignedSettlement{
		PaymentPayload: settlement.PaymentPayload,
		Signature:      "0x" + strings.Repeat("ab", 65),
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !result.Success || result.TransactionHash != "0xsettled" {
		t.Fatalf("unexpected settle result: %+v", result)
	}
}

func TestSettleFailureCarriesReason(t *testing.T) {
	srv := newFacilitatorServer(t, false)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), srv.URL)
	_, err := c.Settle(context.Background(), SignedSettlement{
		PaymentPayload: json.RawMessage(`{}`),
		Signature:      "0xab",
	})
	typed, ok := clierr.As(err)
	if !ok || typed.Kind != clierr.KindSettlementFailed {
		t.Fatalf("expected swap_failed, got %v", err)
	}
	if !strings.Contains(typed.Message, "authorization expired") {
		t.Fatalf("reason lost: %q", typed.Message)
	}
}

func TestPrepareRejectsIncompletePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), srv.URL)
	_, err := c.PrepareSettlement(context.Background(), PrepareRequest{})
	typed, ok := clierr.As(err)
	if !ok || typed.Kind != clierr.KindSettlementFailed {
		t.Fatalf("expected swap_failed, got %v", err)
	}
}
