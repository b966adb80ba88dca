package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/model"
	"github.com/x402x/swapctl/internal/wallet"
)

type fakeWallet struct {
	chainID     int64
	switchErr   error
	switchStuck bool
	switches    int
}

func (f *fakeWallet) Address() common.Address { return common.Address{} }

func (f *fakeWallet) ActiveChainID(ctx context.Context) (int64, error) {
	return f.chainID, nil
}

func (f *fakeWallet) RequestChainSwitch(ctx context.Context, chainID int64) error {
	f.switches++
	if f.switchErr != nil {
		return f.switchErr
	}
	if !f.switchStuck {
		f.chainID = chainID
	}
	return nil
}

func (f *fakeWallet) SubmitCall(ctx context.Context, call wallet.ContractCall) (*model.TxRef, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeWallet) WaitReceipt(ctx context.Context, chainID int64, hash string) (wallet.Receipt, error) {
	return wallet.Receipt{}, errors.New("not implemented")
}

func (f *fakeWallet) SignAuthorization(ctx context.Context, typed apitypes.TypedData) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func TestEnsureMatchingChainDoesNotSwitch(t *testing.T) {
	w := &fakeWallet{chainID: 56}
	g := NewGuard(w)
	if err := g.Ensure(context.Background(), 56); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if w.switches != 0 {
		t.Fatalf("expected no switch requests, got %d", w.switches)
	}
}

func TestEnsureSwitchesWhenMismatched(t *testing.T) {
	w := &fakeWallet{chainID: 97}
	g := NewGuard(w)
	if err := g.Ensure(context.Background(), 56); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if w.switches != 1 {
		t.Fatalf("expected one switch request, got %d", w.switches)
	}
	if w.chainID != 56 {
		t.Fatalf("wallet chain = %d, want 56", w.chainID)
	}
}

func TestEnsureReportsSwitchFailure(t *testing.T) {
	w := &fakeWallet{chainID: 97, switchErr: errors.New("rpc down")}
	g := NewGuard(w)
	err := g.Ensure(context.Background(), 56)
	if err == nil {
		t.Fatal("expected error")
	}
	typed, ok := clierr.As(err)
	if !ok || typed.Kind != clierr.KindChainSwitchFailed {
		t.Fatalf("expected chain_switch_failed, got %v", err)
	}
}

func TestEnsurePreservesTypedSwitchErrors(t *testing.T) {
	rejected := clierr.New(clierr.KindUserRejected, "Transaction cancelled by user")
	w := &fakeWallet{chainID: 97, switchErr: rejected}
	g := NewGuard(w)
	err := g.Ensure(context.Background(), 56)
	typed, ok := clierr.As(err)
	if !ok || typed.Kind != clierr.KindUserRejected {
		t.Fatalf("expected user_rejected preserved, got %v", err)
	}
}

func TestEnsureDetectsStuckSwitch(t *testing.T) {
	w := &fakeWallet{chainID: 97, switchStuck: true}
	g := NewGuard(w)
	err := g.Ensure(context.Background(), 56)
	typed, ok := clierr.As(err)
	if !ok || typed.Kind != clierr.KindChainMismatch {
		t.Fatalf("expected chain_mismatch, got %v", err)
	}
}
