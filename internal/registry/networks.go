package registry

import (
	"fmt"
	"sort"
	"strings"
)

// NativeTokenAddress is the aggregator convention for "the chain's native
// asset" in place of an ERC-20 contract address.
const NativeTokenAddress = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// ZeroAddress is the sentinel the settlement hook expects for a native
// destination asset.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Asset describes one fungible asset as resolved for a given network.
// Immutable once resolved.
type Asset struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
	Address     string `json:"address"`
	Decimals    int    `json:"decimals"`
	LogoURL     string `json:"logo_url,omitempty"`
}

// IsNative reports whether the asset uses the reserved native-asset address.
func (a Asset) IsNative() bool {
	return strings.EqualFold(a.Address, NativeTokenAddress)
}

// NetworkProfile bundles everything that must switch together when the user
// selects a network environment: chain id, wrap deployment, asset pair,
// explorer, and the settlement-side identifiers. Selecting a profile is
// atomic; dependent fields never mix across profiles.
type NetworkProfile struct {
	Key               string `json:"key"`
	ChainID           int64  `json:"chain_id"`
	Name              string `json:"name"`
	ExplorerTxBaseURL string `json:"explorer_tx_base_url"`

	// Wrap/unwrap deployment.
	WrapContract string `json:"wrap_contract,omitempty"`
	FromAsset    Asset  `json:"from_asset"`
	ToAsset      Asset  `json:"to_asset"`

	// Aggregator-swap settlement.
	SettleNetwork       string `json:"settle_network,omitempty"`
	DexHook             string `json:"dex_hook,omitempty"`
	DefaultPaymentAsset *Asset `json:"default_payment_asset,omitempty"`
}

// ExplorerTxURL returns the block-explorer URL for a transaction hash.
func (p NetworkProfile) ExplorerTxURL(hash string) string {
	if strings.TrimSpace(hash) == "" || p.ExplorerTxBaseURL == "" {
		return ""
	}
	return p.ExplorerTxBaseURL + hash
}

var profilesByKey = map[string]NetworkProfile{
	"mainnet": {
		Key:               "mainnet",
		ChainID:           56,
		Name:              "BNB Smart Chain",
		ExplorerTxBaseURL: "https://bscscan.com/tx/",
		WrapContract:      "0x5a2dce590df31613c2945baf22c911992087af57",
		FromAsset: Asset{
			Symbol:      "USDC",
			DisplayName: "USDC",
			Address:     "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d",
			Decimals:    18,
		},
		ToAsset: Asset{
			Symbol:      "wUSDC",
			DisplayName: "Wrapped USDC",
			Address:     "0x221c5B1a293aAc1187ED3a7D7d2d9aD7fE1F3FB0",
			Decimals:    18,
		},
	},
	"testnet": {
		Key:               "testnet",
		ChainID:           97,
		Name:              "BNB Smart Chain Testnet",
		ExplorerTxBaseURL: "https://testnet.bscscan.com/tx/",
		WrapContract:      "0x5a2dce590df31613c2945baf22c911992087af57",
		FromAsset: Asset{
			Symbol:      "USDC",
			DisplayName: "USDC",
			Address:     "0x64544969ed7EBf5f083679233325356EbE738930",
			Decimals:    18,
		},
		ToAsset: Asset{
			Symbol:      "wUSDC",
			DisplayName: "Wrapped USDC",
			Address:     "0x221c5B1a293aAc1187ED3a7D7d2d9aD7fE1F3FB0",
			Decimals:    18,
		},
	},
	"base": {
		Key:               "base",
		ChainID:           8453,
		Name:              "Base",
		ExplorerTxBaseURL: "https://basescan.org/tx/",
		SettleNetwork:     "base",
		DexHook:           "0x3bafb8ad1a5cc59bd35f9bd46f02ba6ba28c0c95",
		FromAsset: Asset{
			Symbol:      "USDC",
			DisplayName: "USD Coin",
			Address:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Decimals:    6,
		},
		ToAsset: Asset{
			Symbol:      "ETH",
			DisplayName: "Ether",
			Address:     NativeTokenAddress,
			Decimals:    18,
		},
		DefaultPaymentAsset: &Asset{
			Symbol:      "USDC",
			DisplayName: "USD Coin",
			Address:     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			Decimals:    6,
		},
	},
	"xlayer": {
		Key:               "xlayer",
		ChainID:           196,
		Name:              "X Layer",
		ExplorerTxBaseURL: "https://www.okx.com/explorer/xlayer/tx/",
		SettleNetwork:     "xlayer",
		DexHook:           "0x9c64f3ec7a8c39b84b1f2bb0cdeb8c62c1ab0d11",
		FromAsset: Asset{
			Symbol:      "USDC",
			DisplayName: "USD Coin",
			Address:     "0x74b7F16337b8972027F6196A17a631aC6dE26d22",
			Decimals:    6,
		},
		ToAsset: Asset{
			Symbol:      "OKB",
			DisplayName: "OKB",
			Address:     NativeTokenAddress,
			Decimals:    18,
		},
		DefaultPaymentAsset: &Asset{
			Symbol:      "USDC",
			DisplayName: "USD Coin",
			Address:     "0x74b7F16337b8972027F6196A17a631aC6dE26d22",
			Decimals:    6,
		},
	},
}

// Profile resolves a network profile by key.
func Profile(key string) (NetworkProfile, error) {
	profile, ok := profilesByKey[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return NetworkProfile{}, fmt.Errorf("unknown network %q (expected one of %s)", key, strings.Join(ProfileKeys(), "|"))
	}
	return profile, nil
}

// ProfileKeys lists the supported network keys in stable order.
func ProfileKeys() []string {
	keys := make([]string, 0, len(profilesByKey))
	for k := range profilesByKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Profiles lists all supported network profiles in stable key order.
func Profiles() []NetworkProfile {
	keys := ProfileKeys()
	out := make([]NetworkProfile, 0, len(keys))
	for _, k := range keys {
		out = append(out, profilesByKey[k])
	}
	return out
}

// DexHookAddress returns the settlement hook contract registered for a
// settle-network identifier, if any.
func DexHookAddress(settleNetwork string) (string, bool) {
	for _, p := range profilesByKey {
		if p.SettleNetwork != "" && strings.EqualFold(p.SettleNetwork, settleNetwork) && p.DexHook != "" {
			return p.DexHook, true
		}
	}
	return "", false
}
