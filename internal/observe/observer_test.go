package observe

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/registry"
)

type fakeReader struct {
	nativeBalance *big.Int
	tokenBalance  *big.Int
	allowance     *big.Int
	calls         int
}

func (f *fakeReader) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.calls++
	return f.nativeBalance, nil
}

func (f *fakeReader) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls++
	method, err := erc20ABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "balanceOf":
		return erc20ABI.Methods["balanceOf"].Outputs.Pack(f.tokenBalance)
	case "allowance":
		return erc20ABI.Methods["allowance"].Outputs.Pack(f.allowance)
	}
	return nil, nil
}

var (
	testOwner   = common.HexToAddress("0x96216849c49358B10257cb55b28eA603c874b05E")
	testSpender = common.HexToAddress("0x5a2dce590df31613c2945baf22c911992087af57")
)

func mustProfile(t *testing.T, key string) registry.NetworkProfile {
	t.Helper()
	p, err := registry.Profile(key)
	if err != nil {
		t.Fatalf("profile %s: %v", key, err)
	}
	return p
}

func TestBalanceNativeAsset(t *testing.T) {
	reader := &fakeReader{nativeBalance: big.NewInt(42)}
	o := NewObserver(reader, 56, testOwner)

	profile := mustProfile(t, "base")
	native := profile.ToAsset
	if !native.IsNative() {
		t.Fatalf("base ToAsset should be native, got %s", native.Address)
	}
	got, err := o.Balance(context.Background(), native)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("balance = %s, want 42", got)
	}
}

func TestBalanceTokenAsset(t *testing.T) {
	want := new(big.Int)
	want.SetString("1000000000000000000", 10)
	reader := &fakeReader{tokenBalance: want}
	o := NewObserver(reader, 56, testOwner)

	profile := mustProfile(t, "mainnet")
	got, err := o.Balance(context.Background(), profile.FromAsset)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("balance = %s, want %s", got, want)
	}
}

func TestAllowance(t *testing.T) {
	reader := &fakeReader{allowance: big.NewInt(500)}
	o := NewObserver(reader, 56, testOwner)

	token := common.HexToAddress(mustProfile(t, "mainnet").FromAsset.Address)
	got, err := o.Allowance(context.Background(), token, testSpender)
	if err != nil {
		t.Fatalf("Allowance failed: %v", err)
	}
	if got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("allowance = %s, want 500", got)
	}
}

func TestReadsRefuseHalfConfiguredObserver(t *testing.T) {
	cases := []struct {
		name string
		o    *Observer
	}{
		{"no reader", NewObserver(nil, 56, testOwner)},
		{"no chain", NewObserver(&fakeReader{}, 0, testOwner)},
		{"no owner", NewObserver(&fakeReader{}, 56, common.Address{})},
	}
	profile := mustProfile(t, "mainnet")
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.o.Ready() {
				t.Fatal("observer should not be ready")
			}
			if _, err := tc.o.Balance(context.Background(), profile.FromAsset); err == nil {
				t.Fatal("expected error from half-configured observer")
			}
		})
	}
}

func TestBalanceViewShapesOutput(t *testing.T) {
	raw := new(big.Int)
	raw.SetString("1234500000000000000", 10)
	reader := &fakeReader{tokenBalance: raw}
	o := NewObserver(reader, 56, testOwner)
	o.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	profile := mustProfile(t, "mainnet")
	view, err := o.BalanceView(context.Background(), profile.FromAsset)
	if err != nil {
		t.Fatalf("BalanceView failed: %v", err)
	}
	if view.Decimal != "1.2345" {
		t.Fatalf("decimal = %q, want 1.2345", view.Decimal)
	}
	if view.Display != "1.2345" {
		t.Fatalf("display = %q, want 1.2345", view.Display)
	}
	if view.BaseUnits != raw.String() {
		t.Fatalf("base units = %q, want %s", view.BaseUnits, raw)
	}
	if view.FetchedAt != "2025-06-01T12:00:00Z" {
		t.Fatalf("fetched at = %q", view.FetchedAt)
	}
	if view.Native {
		t.Fatal("ERC-20 balance should not be marked native")
	}
}

func TestReadsAlwaysHitChain(t *testing.T) {
	reader := &fakeReader{tokenBalance: big.NewInt(1)}
	o := NewObserver(reader, 56, testOwner)
	profile := mustProfile(t, "mainnet")

	for i := 0; i < 3; i++ {
		if _, err := o.Balance(context.Background(), profile.FromAsset); err != nil {
			t.Fatalf("Balance failed: %v", err)
		}
	}
	if reader.calls != 3 {
		t.Fatalf("expected 3 chain reads, got %d", reader.calls)
	}
}

func TestHalfConfiguredErrorIsTyped(t *testing.T) {
	o := NewObserver(nil, 0, common.Address{})
	_, err := o.Allowance(context.Background(), testSpender, testSpender)
	if _, ok := clierr.As(err); !ok {
		t.Fatalf("expected typed error, got %v", err)
	}
}
