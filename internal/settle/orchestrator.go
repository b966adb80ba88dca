// Package settle sequences the aggregator-swap settlement: build swap
// calldata, resolve the approve target, encode the hook payload, then
// prepare, sign, and submit through the facilitator. Each step fails with
// its own error kind so a failure is attributable to the step that caused
// it.
package settle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/x402x/swapctl/internal/aggregator"
	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/facilitator"
	"github.com/x402x/swapctl/internal/id"
	"github.com/x402x/swapctl/internal/model"
	"github.com/x402x/swapctl/internal/registry"
	"github.com/x402x/swapctl/internal/wallet"
)

type Orchestrator struct {
	aggregator  *aggregator.Client
	facilitator *facilitator.Client
	wallet      wallet.Wallet

	facilitatorFee  string
	slippagePercent float64
}

func NewOrchestrator(agg *aggregator.Client, fac *facilitator.Client, w wallet.Wallet, facilitatorFee string, slippagePercent float64) *Orchestrator {
	return &Orchestrator{
		aggregator:      agg,
		facilitator:     fac,
		wallet:          w,
		facilitatorFee:  facilitatorFee,
		slippagePercent: slippagePercent,
	}
}

// SwapRequest is one aggregator-swap settlement to run.
type SwapRequest struct {
	Profile registry.NetworkProfile
	// PayAsset is the asset spent. Nil defaults to the profile's canonical
	// payment asset.
	PayAsset *registry.Asset
	// ToToken is the destination in aggregator convention: the native
	// sentinel address means the chain's native asset.
	ToToken  string
	AmountIn string // decimal
	// PayTo receives the swap output; empty defaults to the signer.
	PayTo string
}

// Execute runs the settlement end to end and returns the facilitator's
// settlement transaction reference.
func (o *Orchestrator) Execute(ctx context.Context, req SwapRequest) (*model.TxRef, error) {
	payAsset, err := o.resolvePayAsset(req)
	if err != nil {
		return nil, err
	}
	amountRaw, err := id.ParseAmount(req.AmountIn, payAsset.Decimals)
	if err != nil {
		return nil, err
	}
	userAddress := o.wallet.Address().Hex()

	build, err := o.aggregator.BuildSwap(ctx, req.Profile.ChainID, payAsset.Address, req.ToToken, amountRaw.String(), o.slippagePercent, userAddress)
	if err != nil {
		return nil, err
	}
	approveTarget, err := o.aggregator.ApproveTarget(ctx, req.Profile.ChainID, payAsset.Address, amountRaw.String())
	if err != nil {
		return nil, err
	}

	hookData, err := o.encodeHookData(build, approveTarget, req.ToToken)
	if err != nil {
		return nil, err
	}
	hookAddress, ok := registry.DexHookAddress(req.Profile.SettleNetwork)
	if !ok {
		return nil, clierr.New(clierr.KindHookMissing, fmt.Sprintf("no settlement hook registered for network %q", req.Profile.SettleNetwork))
	}

	payTo := req.PayTo
	if payTo == "" {
		payTo = userAddress
	}
	settlement, err := o.facilitator.PrepareSettlement(ctx, facilitator.PrepareRequest{
		From:           userAddress,
		Network:        req.Profile.SettleNetwork,
		Hook:           hookAddress,
		HookData:       hookData,
		Amount:         amountRaw.String(),
		PayTo:          payTo,
		FacilitatorFee: o.facilitatorFee,
	})
	if err != nil {
		return nil, err
	}

	signature, err := o.wallet.SignAuthorization(ctx, settlement.TypedData)
	if err != nil {
		return nil, clierr.Classify("Authorization signing", err)
	}

	result, err := o.facilitator.Settle(ctx, facilitator.SignedSettlement{
		PaymentPayload: settlement.PaymentPayload,
		Signature:      hexutil.Encode(signature),
	})
	if err != nil {
		return nil, err
	}
	return &model.TxRef{
		Hash:        result.TransactionHash,
		ExplorerURL: req.Profile.ExplorerTxURL(result.TransactionHash),
	}, nil
}

func (o *Orchestrator) resolvePayAsset(req SwapRequest) (registry.Asset, error) {
	if req.PayAsset != nil {
		return *req.PayAsset, nil
	}
	if req.Profile.DefaultPaymentAsset != nil {
		return *req.Profile.DefaultPaymentAsset, nil
	}
	return registry.Asset{}, clierr.New(clierr.KindUsage, fmt.Sprintf("network %q has no default payment asset; specify one", req.Profile.Key))
}

// encodeHookData binds the aggregator build output into the hook payload.
// Minimum-out is pinned to zero: the facilitator path does not enforce
// slippage at this layer yet.
func (o *Orchestrator) encodeHookData(build aggregator.SwapBuild, approveTarget, toToken string) (string, error) {
	calldata, err := hexutil.Decode(build.Calldata)
	if err != nil {
		return "", clierr.Wrap(clierr.KindAggregatorBuild, "aggregator returned malformed calldata", err)
	}
	destination, isNative := facilitator.NormalizeDestination(toToken)
	return facilitator.EncodeSwapConfig(facilitator.SwapConfig{
		DexAggregator:  common.HexToAddress(build.RouterAddress),
		ApproveAddress: common.HexToAddress(approveTarget),
		SwapCalldata:   calldata,
		ToToken:        destination,
		MinAmountOut:   big.NewInt(0),
		IsNativeToken:  isNative,
	})
}
