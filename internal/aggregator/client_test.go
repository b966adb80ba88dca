package aggregator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/httpx"
)

func newSwapServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/swap":
			if r.URL.Query().Get("chainId") != "8453" {
				t.Errorf("unexpected chainId %q", r.URL.Query().Get("chainId"))
			}
			if r.URL.Query().Get("slippage") != "0.005" {
				t.Errorf("unexpected slippage %q", r.URL.Query().Get("slippage"))
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"code": "0",
				"data": [{
					"tx": {"to": "0x1111111111111111111111111111111111111111", "data": "0xdeadbeef"},
					"routerResult": {"toTokenAmount": "123456"}
				}]
			}`))
		case "/approve-transaction":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"code": "0",
				"data": [{"dexContractAddress": "0x2222222222222222222222222222222222222222"}]
			}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestBuildSwap(t *testing.T) {
	srv := newSwapServer(t)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), srv.URL)
	build, err := c.BuildSwap(context.Background(), 8453,
		"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		"0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE",
		"1000000", 0.5, "0x96216849c49358B10257cb55b28eA603c874b05E")
	if err != nil {
		t.Fatalf("BuildSwap failed: %v", err)
	}
	if build.Calldata != "0xdeadbeef" {
		t.Fatalf("calldata = %q", build.Calldata)
	}
	if build.RouterAddress != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("router = %q", build.RouterAddress)
	}
}

func TestBuildSwapRejectedByAggregator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code": "82000", "msg": "insufficient liquidity", "data": []}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), srv.URL)
	_, err := c.BuildSwap(context.Background(), 8453, "0xa", "0xb", "1", 0.5, "0xc")
	typed, ok := clierr.As(err)
	if !ok || typed.Kind != clierr.KindAggregatorBuild {
		t.Fatalf("expected swap_build_failed, got %v", err)
	}
}

func TestBuildSwapEmptyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code": "0", "data": [{"tx": {"to": "", "data": ""}}]}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), srv.URL)
	_, err := c.BuildSwap(context.Background(), 8453, "0xa", "0xb", "1", 0.5, "0xc")
	typed, ok := clierr.As(err)
	if !ok || typed.Kind != clierr.KindAggregatorBuild {
		t.Fatalf("expected swap_build_failed, got %v", err)
	}
}

func TestApproveTarget(t *testing.T) {
	srv := newSwapServer(t)
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), srv.URL)
	target, err := c.ApproveTarget(context.Background(), 8453, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "1000000")
	if err != nil {
		t.Fatalf("ApproveTarget failed: %v", err)
	}
	if target != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("target = %q", target)
	}
}

func TestApproveTargetFailureIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), srv.URL)
	_, err := c.ApproveTarget(context.Background(), 8453, "0xa", "1")
	typed, ok := clierr.As(err)
	if !ok || typed.Kind != clierr.KindApproveTarget {
		t.Fatalf("expected approve_tx_failed, got %v", err)
	}
}
