package facilitator

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/registry"
)

// SwapConfig is the payload the settlement hook decodes on-chain to run the
// aggregator swap after pulling the payment.
type SwapConfig struct {
	DexAggregator  common.Address
	ApproveAddress common.Address
	SwapCalldata   []byte
	ToToken        common.Address
	MinAmountOut   *big.Int
	IsNativeToken  bool
}

var swapConfigArgs = mustTupleArgs()

func mustTupleArgs() abi.Arguments {
	tuple, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "dexAggregator", Type: "address"},
		{Name: "approveAddress", Type: "address"},
		{Name: "swapCalldata", Type: "bytes"},
		{Name: "toToken", Type: "address"},
		{Name: "minAmountOut", Type: "uint256"},
		{Name: "isNativeToken", Type: "bool"},
	})
	if err != nil {
		panic(fmt.Sprintf("build swap config tuple type: %v", err))
	}
	return abi.Arguments{{Type: tuple}}
}

// EncodeSwapConfig ABI-encodes the hook payload. A native destination asset
// is normalized to the zero address with the native flag set; the hook reads
// the flag, not the sentinel.
func EncodeSwapConfig(cfg SwapConfig) (string, error) {
	if cfg.MinAmountOut == nil {
		cfg.MinAmountOut = big.NewInt(0)
	}
	packed, err := swapConfigArgs.Pack(struct {
		DexAggregator  common.Address
		ApproveAddress common.Address
		SwapCalldata   []byte
		ToToken        common.Address
		MinAmountOut   *big.Int
		IsNativeToken  bool
	}(cfg))
	if err != nil {
		return "", clierr.Wrap(clierr.KindInternal, "encode swap hook payload", err)
	}
	return hexutil.Encode(packed), nil
}

// NormalizeDestination maps an aggregator-convention destination address to
// the hook-convention pair: native assets become the zero address with the
// flag set, everything else passes through.
func NormalizeDestination(toToken string) (common.Address, bool) {
	if strings.EqualFold(toToken, registry.NativeTokenAddress) {
		return common.HexToAddress(registry.ZeroAddress), true
	}
	return common.HexToAddress(toToken), false
}
