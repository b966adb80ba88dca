// Package observe reads on-chain balances and allowances. Every read goes to
// the RPC endpoint; nothing is cached, so callers always see post-settlement
// state after a refetch.
package observe

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/id"
	"github.com/x402x/swapctl/internal/model"
	"github.com/x402x/swapctl/internal/registry"
)

var erc20ABI = mustParseABI(registry.ERC20MinimalABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse embedded ABI: %v", err))
	}
	return parsed
}

// ChainReader is the slice of the eth client the observer needs.
type ChainReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

var _ ChainReader = (*ethclient.Client)(nil)

// Observer reads balances and allowances for one owner on one chain. It is
// inert until all three of owner, chain id, and a reader are set; Ready
// gates every read so callers cannot observe a half-configured state.
type Observer struct {
	reader  ChainReader
	chainID int64
	owner   common.Address

	now func() time.Time
}

func NewObserver(reader ChainReader, chainID int64, owner common.Address) *Observer {
	return &Observer{reader: reader, chainID: chainID, owner: owner, now: time.Now}
}

func (o *Observer) Ready() bool {
	return o.reader != nil && o.chainID != 0 && o.owner != (common.Address{})
}

func (o *Observer) ensureReady() error {
	if !o.Ready() {
		return clierr.New(clierr.KindInternal, "balance observer not connected: wallet address and chain are required")
	}
	return nil
}

// Balance reads the owner's balance of the given asset, dispatching between
// the native coin and ERC-20 reads on the asset's sentinel address.
func (o *Observer) Balance(ctx context.Context, asset registry.Asset) (*big.Int, error) {
	if err := o.ensureReady(); err != nil {
		return nil, err
	}
	if asset.IsNative() {
		balance, err := o.reader.BalanceAt(ctx, o.owner, nil)
		if err != nil {
			return nil, clierr.Classify("Balance read", err)
		}
		return balance, nil
	}
	return o.tokenBalance(ctx, common.HexToAddress(asset.Address))
}

func (o *Observer) tokenBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", o.owner)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "pack balanceOf call", err)
	}
	raw, err := o.reader.CallContract(ctx, ethereum.CallMsg{From: o.owner, To: &token, Data: data}, nil)
	if err != nil {
		return nil, clierr.Classify("Balance read", err)
	}
	return unpackUint256(raw, "balanceOf")
}

// Allowance reads the ERC-20 allowance the owner has granted to spender.
// The native asset needs no allowance; callers should not ask for one.
func (o *Observer) Allowance(ctx context.Context, token, spender common.Address) (*big.Int, error) {
	if err := o.ensureReady(); err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack("allowance", o.owner, spender)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "pack allowance call", err)
	}
	raw, err := o.reader.CallContract(ctx, ethereum.CallMsg{From: o.owner, To: &token, Data: data}, nil)
	if err != nil {
		return nil, clierr.Classify("Allowance read", err)
	}
	return unpackUint256(raw, "allowance")
}

func unpackUint256(raw []byte, method string) (*big.Int, error) {
	out, err := erc20ABI.Unpack(method, raw)
	if err != nil || len(out) == 0 {
		return nil, clierr.Wrap(clierr.KindRPC, "decode "+method+" response", err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, clierr.New(clierr.KindRPC, "unexpected "+method+" response type")
	}
	return value, nil
}

// BalanceView reads a balance and shapes it for output.
func (o *Observer) BalanceView(ctx context.Context, asset registry.Asset) (model.BalanceView, error) {
	raw, err := o.Balance(ctx, asset)
	if err != nil {
		return model.BalanceView{}, err
	}
	decimal := id.FormatBaseUnits(raw, asset.Decimals)
	return model.BalanceView{
		Symbol:       asset.Symbol,
		Address:      asset.Address,
		BaseUnits:    raw.String(),
		Decimal:      decimal,
		Display:      id.FormatDisplay(decimal),
		Native:       asset.IsNative(),
		FetchedAt:    o.now().UTC().Format(time.RFC3339),
		ChainID:      o.chainID,
		OwnerAddress: o.owner.Hex(),
	}, nil
}
