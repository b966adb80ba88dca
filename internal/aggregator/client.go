// Package aggregator talks to the OKX-style DEX aggregator HTTP API used to
// build swap calldata for the settlement hook.
package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/httpx"
)

type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// SwapBuild is the aggregator's answer to a build-swap request: the calldata
// to hand to the settlement hook and the router that executes it.
type SwapBuild struct {
	Calldata      string
	RouterAddress string
	ToAmountMin   string
}

type swapResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Tx struct {
			To   string `json:"to"`
			Data string `json:"data"`
		} `json:"tx"`
		RouterResult struct {
			ToTokenAmount string `json:"toTokenAmount"`
		} `json:"routerResult"`
	} `json:"data"`
}

// BuildSwap requests swap calldata for amountBaseUnits of fromToken into
// toToken on the given chain. Any failure maps to swap_build_failed.
func (c *Client) BuildSwap(ctx context.Context, chainID int64, fromToken, toToken, amountBaseUnits string, slippagePercent float64, userAddress string) (SwapBuild, error) {
	vals := url.Values{}
	vals.Set("chainId", strconv.FormatInt(chainID, 10))
	vals.Set("fromTokenAddress", fromToken)
	vals.Set("toTokenAddress", toToken)
	vals.Set("amount", amountBaseUnits)
	vals.Set("slippage", strconv.FormatFloat(slippagePercent/100, 'f', -1, 64))
	vals.Set("userWalletAddress", userAddress)

	reqURL := c.baseURL + "/swap?" + vals.Encode()
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return SwapBuild{}, clierr.Wrap(clierr.KindInternal, "build aggregator swap request", err)
	}
	var resp swapResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return SwapBuild{}, clierr.Wrap(clierr.KindAggregatorBuild, "aggregator swap build request", err)
	}
	if resp.Code != "0" {
		return SwapBuild{}, clierr.New(clierr.KindAggregatorBuild, fmt.Sprintf("aggregator rejected swap build: %s", firstNonEmpty(resp.Msg, "code "+resp.Code)))
	}
	if len(resp.Data) == 0 || resp.Data[0].Tx.Data == "" || resp.Data[0].Tx.To == "" {
		return SwapBuild{}, clierr.New(clierr.KindAggregatorBuild, "aggregator swap build returned no transaction")
	}
	return SwapBuild{
		Calldata:      resp.Data[0].Tx.Data,
		RouterAddress: resp.Data[0].Tx.To,
		ToAmountMin:   resp.Data[0].RouterResult.ToTokenAmount,
	}, nil
}

type approveResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		DexContractAddress string `json:"dexContractAddress"`
	} `json:"data"`
}

// ApproveTarget resolves the aggregator's dedicated approval spender for a
// token. This can differ from the router returned by BuildSwap, so it is
// resolved separately. Failures map to approve_tx_failed.
func (c *Client) ApproveTarget(ctx context.Context, chainID int64, tokenAddress, amountBaseUnits string) (string, error) {
	vals := url.Values{}
	vals.Set("chainId", strconv.FormatInt(chainID, 10))
	vals.Set("tokenContractAddress", tokenAddress)
	vals.Set("approveAmount", amountBaseUnits)

	reqURL := c.baseURL + "/approve-transaction?" + vals.Encode()
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", clierr.Wrap(clierr.KindInternal, "build approve-target request", err)
	}
	var resp approveResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return "", clierr.Wrap(clierr.KindApproveTarget, "approve-target request", err)
	}
	if resp.Code != "0" {
		return "", clierr.New(clierr.KindApproveTarget, fmt.Sprintf("aggregator rejected approve-target lookup: %s", firstNonEmpty(resp.Msg, "code "+resp.Code)))
	}
	if len(resp.Data) == 0 || resp.Data[0].DexContractAddress == "" {
		return "", clierr.New(clierr.KindApproveTarget, "aggregator returned no approve target")
	}
	return resp.Data[0].DexContractAddress, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
