package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/x402x/swapctl/internal/model"
)

// ContractCall is one state-changing call the wallet should broadcast.
type ContractCall struct {
	ChainID int64
	To      common.Address
	Data    []byte
	Value   *big.Int
}

// Receipt is the confirmed on-chain outcome of a submitted transaction.
type Receipt struct {
	Success      bool
	RevertReason string
}

// Wallet is the external wallet/chain collaborator. Submission returns a
// transaction reference immediately; the receipt arrives later through
// WaitReceipt. A nil TxRef together with a nil error from SubmitCall is the
// silent-cancellation signal: the wallet dropped its pending state without a
// hash, a success, or a thrown error.
type Wallet interface {
	Address() common.Address
	ActiveChainID(ctx context.Context) (int64, error)
	RequestChainSwitch(ctx context.Context, chainID int64) error
	SubmitCall(ctx context.Context, call ContractCall) (*model.TxRef, error)
	WaitReceipt(ctx context.Context, chainID int64, hash string) (Receipt, error)
	SignAuthorization(ctx context.Context, typed apitypes.TypedData) ([]byte, error)
}
