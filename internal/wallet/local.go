package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/model"
	"github.com/x402x/swapctl/internal/registry"
)

const (
	EnvPrivateKey           = "SWAPCTL_PRIVATE_KEY"
	EnvPrivateKeyFile       = "SWAPCTL_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "SWAPCTL_KEYSTORE_PATH"
	EnvKeystorePassword     = "SWAPCTL_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "SWAPCTL_KEYSTORE_PASSWORD_FILE"
)

// LocalWallet signs with a locally held ECDSA key and talks to one EVM RPC
// endpoint per chain. "Switching chains" re-dials the RPC for the requested
// chain id; there is no interactive prompt to decline, so a switch fails only
// when no endpoint is configured or the endpoint reports a different chain.
type LocalWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address

	rpcURL func(chainID int64) (string, error)

	mu      sync.Mutex
	client  *ethclient.Client
	chainID int64

	explorerTxURL func(chainID int64, hash string) string

	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	GasMultiplier  float64
}

type LocalWalletConfig struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string

	// RPCURL resolves the endpoint to dial for a chain id. Defaults to the
	// registry table.
	RPCURL func(chainID int64) (string, error)

	// ExplorerTxURL builds the explorer link attached to TxRefs. Optional.
	ExplorerTxURL func(chainID int64, hash string) string
}

func NewLocalWallet(cfg LocalWalletConfig) (*LocalWallet, error) {
	pk, err := loadPrivateKey(cfg)
	if err != nil {
		return nil, err
	}
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid ECDSA public key")
	}
	resolve := cfg.RPCURL
	if resolve == nil {
		resolve = func(chainID int64) (string, error) {
			return registry.ResolveRPCURL("", chainID)
		}
	}
	return &LocalWallet{
		privateKey:     pk,
		address:        crypto.PubkeyToAddress(*pub),
		rpcURL:         resolve,
		explorerTxURL:  cfg.ExplorerTxURL,
		PollInterval:   2 * time.Second,
		ReceiptTimeout: 2 * time.Minute,
		GasMultiplier:  1.2,
	}, nil
}

// NewLocalWalletFromEnv loads the signing key from the SWAPCTL_* environment
// variables, in precedence order: inline hex, key file, keystore.
func NewLocalWalletFromEnv(cfg LocalWalletConfig) (*LocalWallet, error) {
	if strings.TrimSpace(cfg.PrivateKeyHex) == "" {
		cfg.PrivateKeyHex = strings.TrimSpace(os.Getenv(EnvPrivateKey))
	}
	if strings.TrimSpace(cfg.PrivateKeyFile) == "" {
		cfg.PrivateKeyFile = strings.TrimSpace(os.Getenv(EnvPrivateKeyFile))
	}
	if strings.TrimSpace(cfg.KeystorePath) == "" {
		cfg.KeystorePath = strings.TrimSpace(os.Getenv(EnvKeystorePath))
		cfg.KeystorePassword = strings.TrimSpace(os.Getenv(EnvKeystorePassword))
		cfg.KeystorePasswordFile = strings.TrimSpace(os.Getenv(EnvKeystorePasswordFile))
	}
	return NewLocalWallet(cfg)
}

func loadPrivateKey(cfg LocalWalletConfig) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(cfg.PrivateKeyHex) != "" {
		return parseHexKey(cfg.PrivateKeyHex)
	}
	if strings.TrimSpace(cfg.PrivateKeyFile) != "" {
		buf, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return parseHexKey(string(buf))
	}
	if strings.TrimSpace(cfg.KeystorePath) != "" {
		password := cfg.KeystorePassword
		if strings.TrimSpace(password) == "" && strings.TrimSpace(cfg.KeystorePasswordFile) != "" {
			buf, err := os.ReadFile(cfg.KeystorePasswordFile)
			if err != nil {
				return nil, fmt.Errorf("read keystore password file: %w", err)
			}
			password = strings.TrimSpace(string(buf))
		}
		if strings.TrimSpace(password) == "" {
			return nil, fmt.Errorf("keystore password is required")
		}
		buf, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("read keystore file: %w", err)
		}
		key, err := keystore.DecryptKey(buf, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore: %w", err)
		}
		return key.PrivateKey, nil
	}
	return nil, fmt.Errorf("missing signing key: set %s or %s or %s", EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath)
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return pk, nil
}

func (w *LocalWallet) Address() common.Address { return w.address }

func (w *LocalWallet) ActiveChainID(ctx context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client == nil {
		return 0, nil
	}
	return w.chainID, nil
}

func (w *LocalWallet) RequestChainSwitch(ctx context.Context, chainID int64) error {
	url, err := w.rpcURL(chainID)
	if err != nil {
		return clierr.Wrap(clierr.KindChainSwitchFailed, "resolve rpc endpoint", err)
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return clierr.Wrap(clierr.KindChainSwitchFailed, "connect rpc", err)
	}
	reported, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return clierr.Wrap(clierr.KindChainSwitchFailed, "read chain id", err)
	}
	if reported.Int64() != chainID {
		client.Close()
		return clierr.New(clierr.KindChainSwitchFailed, fmt.Sprintf("endpoint reports chain %d, expected %d", reported.Int64(), chainID))
	}

	w.mu.Lock()
	if w.client != nil {
		w.client.Close()
	}
	w.client = client
	w.chainID = chainID
	w.mu.Unlock()
	return nil
}

func (w *LocalWallet) activeClient(chainID int64) (*ethclient.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client == nil {
		return nil, clierr.New(clierr.KindChainMismatch, "no active chain connection")
	}
	if w.chainID != chainID {
		return nil, clierr.New(clierr.KindChainMismatch, fmt.Sprintf("active chain is %d, call targets %d", w.chainID, chainID))
	}
	return w.client, nil
}

func (w *LocalWallet) SubmitCall(ctx context.Context, call ContractCall) (*model.TxRef, error) {
	client, err := w.activeClient(call.ChainID)
	if err != nil {
		return nil, err
	}
	value := call.Value
	if value == nil {
		value = big.NewInt(0)
	}
	msg := ethereum.CallMsg{From: w.address, To: &call.To, Value: value, Data: call.Data}

	gasLimit, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, clierr.Classify("Submission", err)
	}
	gasLimit = uint64(float64(gasLimit) * w.gasMultiplier())

	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(2_000_000_000) // 2 gwei fallback
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindRPC, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindRPC, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(call.ChainID),
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &call.To,
		Value:     value,
		Data:      call.Data,
	})
	signer := types.LatestSignerForChainID(big.NewInt(call.ChainID))
	signed, err := types.SignTx(tx, signer, w.privateKey)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "sign transaction", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, clierr.Classify("Submission", err)
	}

	ref := &model.TxRef{Hash: signed.Hash().Hex()}
	if w.explorerTxURL != nil {
		ref.ExplorerURL = w.explorerTxURL(call.ChainID, ref.Hash)
	}
	return ref, nil
}

func (w *LocalWallet) WaitReceipt(ctx context.Context, chainID int64, hash string) (Receipt, error) {
	client, err := w.activeClient(chainID)
	if err != nil {
		return Receipt{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, w.receiptTimeout())
	defer cancel()
	ticker := time.NewTicker(w.pollInterval())
	defer ticker.Stop()
	for {
		receipt, err := client.TransactionReceipt(waitCtx, common.HexToHash(hash))
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return Receipt{Success: true}, nil
			}
			return Receipt{Success: false, RevertReason: "transaction reverted on-chain"}, nil
		}
		// Transient polling failures are ignored until the timeout.
		select {
		case <-waitCtx.Done():
			return Receipt{}, clierr.Wrap(clierr.KindRPC, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// SignAuthorization produces the 65-byte EIP-712 signature over the prepared
// settlement payload.
func (w *LocalWallet) SignAuthorization(ctx context.Context, typed apitypes.TypedData) ([]byte, error) {
	if _, exists := typed.Types["EIP712Domain"]; !exists {
		typed.Types["EIP712Domain"] = []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		}
	}
	dataHash, err := typed.HashStruct(typed.PrimaryType, typed.Message)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "hash authorization struct", err)
	}
	domainSeparator, err := typed.HashStruct("EIP712Domain", typed.Domain.Map())
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "hash authorization domain", err)
	}
	rawData := []byte{0x19, 0x01}
	rawData = append(rawData, domainSeparator...)
	rawData = append(rawData, dataHash...)
	digest := crypto.Keccak256(rawData)

	signature, err := crypto.Sign(digest, w.privateKey)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "sign authorization", err)
	}
	// Recovery ID 0/1 -> 27/28.
	signature[64] += 27
	return signature, nil
}

// BalanceAt reads a native balance through the active chain connection.
func (w *LocalWallet) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	w.mu.Lock()
	client := w.client
	w.mu.Unlock()
	if client == nil {
		return nil, clierr.New(clierr.KindChainMismatch, "no active chain connection")
	}
	return client.BalanceAt(ctx, account, blockNumber)
}

// CallContract runs a read-only contract call through the active chain
// connection.
func (w *LocalWallet) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	w.mu.Lock()
	client := w.client
	w.mu.Unlock()
	if client == nil {
		return nil, clierr.New(clierr.KindChainMismatch, "no active chain connection")
	}
	return client.CallContract(ctx, msg, blockNumber)
}

func (w *LocalWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
		w.client = nil
	}
}

func (w *LocalWallet) gasMultiplier() float64 {
	if w.GasMultiplier <= 1 {
		return 1.2
	}
	return w.GasMultiplier
}

func (w *LocalWallet) pollInterval() time.Duration {
	if w.PollInterval <= 0 {
		return 2 * time.Second
	}
	return w.PollInterval
}

func (w *LocalWallet) receiptTimeout() time.Duration {
	if w.ReceiptTimeout <= 0 {
		return 2 * time.Minute
	}
	return w.ReceiptTimeout
}
