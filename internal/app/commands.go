package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/x402x/swapctl/internal/aggregator"
	"github.com/x402x/swapctl/internal/chain"
	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/facilitator"
	"github.com/x402x/swapctl/internal/httpx"
	"github.com/x402x/swapctl/internal/id"
	"github.com/x402x/swapctl/internal/model"
	"github.com/x402x/swapctl/internal/observe"
	"github.com/x402x/swapctl/internal/orchestrate"
	"github.com/x402x/swapctl/internal/registry"
	"github.com/x402x/swapctl/internal/settle"
	"github.com/x402x/swapctl/internal/wallet"
)

var wrapABI = mustParseABI(registry.WrapContractABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse embedded ABI: %v", err))
	}
	return parsed
}

// flowOutput is the envelope payload of wrap, unwrap, and swap.
type flowOutput struct {
	Attempt  model.AttemptResult `json:"attempt"`
	Balances []model.BalanceView `json:"balances,omitempty"`
}

func (s *runtimeState) newWrapCommand() *cobra.Command {
	var network, amount string
	cmd := &cobra.Command{
		Use:   "wrap",
		Short: "Wrap the network's from-asset into its wrapped form",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runWrapFlow(trimRootPath(cmd.CommandPath()), orchestrate.ModeWrap, network, amount)
		},
	}
	cmd.Flags().StringVar(&network, "network", "mainnet", "Network profile (mainnet|testnet)")
	cmd.Flags().StringVar(&amount, "amount", "", "Decimal amount to wrap")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newUnwrapCommand() *cobra.Command {
	var network, amount string
	cmd := &cobra.Command{
		Use:   "unwrap",
		Short: "Unwrap the network's wrapped asset back into its from-asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runWrapFlow(trimRootPath(cmd.CommandPath()), orchestrate.ModeUnwrap, network, amount)
		},
	}
	cmd.Flags().StringVar(&network, "network", "mainnet", "Network profile (mainnet|testnet)")
	cmd.Flags().StringVar(&amount, "amount", "", "Decimal amount to unwrap")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) runWrapFlow(commandPath string, mode orchestrate.Mode, network, amount string) error {
	profile, err := wrapProfile(network)
	if err != nil {
		return err
	}
	w, err := s.newWallet(profile)
	if err != nil {
		return err
	}
	defer w.Close()

	spend, receive := profile.FromAsset, profile.ToAsset
	method := "wrap"
	if mode == orchestrate.ModeUnwrap {
		spend, receive = profile.ToAsset, profile.FromAsset
		method = "unwrap"
	}

	views := []model.BalanceView{}
	observer := observe.NewObserver(w, profile.ChainID, w.Address())
	machine := orchestrate.NewMachine(orchestrate.MachineConfig{
		Wallet:     w,
		Guard:      chain.NewGuard(w),
		Allowances: observer,
		Refetch: func(ctx context.Context, asset registry.Asset) error {
			view, err := observer.BalanceView(ctx, asset)
			if err != nil {
				return err
			}
			views = append(views, view)
			return nil
		},
		ApprovalMode: s.settings.ApprovalMode,
	})

	ctx := context.Background()
	plan := orchestrate.Plan{
		Mode:         mode,
		Network:      profile,
		AmountIn:     amount,
		SpendAsset:   spend,
		ReceiveAsset: receive,
		Spender:      common.HexToAddress(profile.WrapContract),
		Execute: func(ctx context.Context) (*model.TxRef, error) {
			base, err := id.ParseAmount(amount, spend.Decimals)
			if err != nil {
				return nil, err
			}
			data, err := wrapABI.Pack(method, base)
			if err != nil {
				return nil, clierr.Wrap(clierr.KindInternal, "pack "+method+" calldata", err)
			}
			return w.SubmitCall(ctx, wallet.ContractCall{
				ChainID: profile.ChainID,
				To:      common.HexToAddress(profile.WrapContract),
				Data:    data,
			})
		},
		WaitExecutionReceipt: true,
	}

	result, runErr := machine.Run(ctx, plan)
	s.saveAttempt(result)
	if runErr != nil {
		return runErr
	}
	return s.emitSuccess(commandPath, flowOutput{Attempt: result, Balances: views})
}

func (s *runtimeState) newSwapCommand() *cobra.Command {
	var network, amount, toToken, payTo string
	var slippage float64
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap via the aggregator through facilitator settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := swapProfile(network)
			if err != nil {
				return err
			}
			w, err := s.newWallet(profile)
			if err != nil {
				return err
			}
			defer w.Close()

			if toToken == "" {
				toToken = profile.ToAsset.Address
			}
			if slippage <= 0 {
				slippage = s.settings.SlippagePercent
			}
			payAsset := profile.FromAsset
			if profile.DefaultPaymentAsset != nil {
				payAsset = *profile.DefaultPaymentAsset
			}

			client := httpx.New(s.settings.Timeout, s.settings.Retries)
			orchestrator := settle.NewOrchestrator(
				aggregator.New(client, s.settings.AggregatorURL),
				facilitator.New(client, s.settings.FacilitatorURL),
				w,
				s.settings.FacilitatorFee,
				slippage,
			)

			views := []model.BalanceView{}
			observer := observe.NewObserver(w, profile.ChainID, w.Address())
			machine := orchestrate.NewMachine(orchestrate.MachineConfig{
				Wallet:     w,
				Guard:      chain.NewGuard(w),
				Allowances: observer,
				Refetch: func(ctx context.Context, asset registry.Asset) error {
					view, err := observer.BalanceView(ctx, asset)
					if err != nil {
						return err
					}
					views = append(views, view)
					return nil
				},
				ApprovalMode: s.settings.ApprovalMode,
			})

			plan := orchestrate.Plan{
				Mode:         orchestrate.ModeSwap,
				Network:      profile,
				AmountIn:     amount,
				SpendAsset:   payAsset,
				ReceiveAsset: profile.ToAsset,
				// Settlement pulls funds by signed authorization, so no
				// spender and no approval cycle.
				Execute: func(ctx context.Context) (*model.TxRef, error) {
					return orchestrator.Execute(ctx, settle.SwapRequest{
						Profile:  profile,
						PayAsset: &payAsset,
						ToToken:  toToken,
						AmountIn: amount,
						PayTo:    payTo,
					})
				},
			}

			result, runErr := machine.Run(context.Background(), plan)
			s.saveAttempt(result)
			if runErr != nil {
				return runErr
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), flowOutput{Attempt: result, Balances: views})
		},
	}
	cmd.Flags().StringVar(&network, "network", "base", "Network profile (base|xlayer)")
	cmd.Flags().StringVar(&amount, "amount", "", "Decimal amount of the payment asset to swap")
	cmd.Flags().StringVar(&toToken, "to-token", "", "Destination token address (defaults to the network's to-asset)")
	cmd.Flags().StringVar(&payTo, "pay-to", "", "Recipient address (defaults to the signer)")
	cmd.Flags().Float64Var(&slippage, "slippage", 0, "Slippage percent for the aggregator build")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newBalancesCommand() *cobra.Command {
	var network string
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Read both asset balances for the selected network",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := registry.Profile(network)
			if err != nil {
				return clierr.Wrap(clierr.KindUsage, "resolve network", err)
			}
			w, err := s.newWallet(profile)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := context.Background()
			if err := chain.NewGuard(w).Ensure(ctx, profile.ChainID); err != nil {
				return err
			}
			observer := observe.NewObserver(w, profile.ChainID, w.Address())
			views := make([]model.BalanceView, 0, 2)
			for _, asset := range []registry.Asset{profile.FromAsset, profile.ToAsset} {
				view, err := observer.BalanceView(ctx, asset)
				if err != nil {
					return err
				}
				views = append(views, view)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), views)
		},
	}
	cmd.Flags().StringVar(&network, "network", "mainnet", "Network profile")
	return cmd
}

func (s *runtimeState) newAllowanceCommand() *cobra.Command {
	var network, spender string
	cmd := &cobra.Command{
		Use:   "allowance",
		Short: "Read the from-asset allowance granted to a spender",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := registry.Profile(network)
			if err != nil {
				return clierr.Wrap(clierr.KindUsage, "resolve network", err)
			}
			if profile.FromAsset.IsNative() {
				return clierr.New(clierr.KindUsage, "native assets have no allowance")
			}
			if spender == "" {
				spender = profile.WrapContract
			}
			if spender == "" {
				return clierr.New(clierr.KindUsage, "network has no wrap contract; pass --spender")
			}
			w, err := s.newWallet(profile)
			if err != nil {
				return err
			}
			defer w.Close()

			ctx := context.Background()
			if err := chain.NewGuard(w).Ensure(ctx, profile.ChainID); err != nil {
				return err
			}
			observer := observe.NewObserver(w, profile.ChainID, w.Address())
			current, err := observer.Allowance(ctx, common.HexToAddress(profile.FromAsset.Address), common.HexToAddress(spender))
			if err != nil {
				return err
			}
			data := map[string]any{
				"owner":      w.Address().Hex(),
				"spender":    spender,
				"token":      profile.FromAsset.Address,
				"symbol":     profile.FromAsset.Symbol,
				"base_units": current.String(),
				"decimal":    id.FormatBaseUnits(current, profile.FromAsset.Decimals),
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
	cmd.Flags().StringVar(&network, "network", "mainnet", "Network profile")
	cmd.Flags().StringVar(&spender, "spender", "", "Spender address (defaults to the wrap contract)")
	return cmd
}

func (s *runtimeState) newNetworksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List supported network profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), registry.Profiles())
		},
	}
	return cmd
}

func (s *runtimeState) newAttemptsCommand() *cobra.Command {
	root := &cobra.Command{Use: "attempts", Short: "Inspect persisted orchestration attempts"}

	var phase string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			attempts, err := store.List(phase, limit)
			if err != nil {
				return clierr.Wrap(clierr.KindInternal, "list attempts", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), attempts)
		},
	}
	list.Flags().StringVar(&phase, "phase", "", "Filter by terminal phase (success|error)")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum attempts to return")

	get := &cobra.Command{
		Use:   "get <attempt-id>",
		Short: "Show one attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openStore()
			if err != nil {
				return err
			}
			attempt, err := store.Get(args[0])
			if err != nil {
				return clierr.Wrap(clierr.KindUsage, "read attempt", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), attempt)
		},
	}

	root.AddCommand(list)
	root.AddCommand(get)
	return root
}

// saveAttempt persists the attempt record; persistence failures never mask
// the flow outcome.
func (s *runtimeState) saveAttempt(result model.AttemptResult) {
	if result.AttemptID == "" {
		return
	}
	store, err := s.openStore()
	if err != nil {
		return
	}
	_ = store.Save(result)
}

func wrapProfile(network string) (registry.NetworkProfile, error) {
	profile, err := registry.Profile(network)
	if err != nil {
		return registry.NetworkProfile{}, clierr.Wrap(clierr.KindUsage, "resolve network", err)
	}
	if profile.WrapContract == "" {
		return registry.NetworkProfile{}, clierr.New(clierr.KindUsage, fmt.Sprintf("network %q has no wrap deployment; use a wrap network", network))
	}
	return profile, nil
}

func swapProfile(network string) (registry.NetworkProfile, error) {
	profile, err := registry.Profile(network)
	if err != nil {
		return registry.NetworkProfile{}, clierr.Wrap(clierr.KindUsage, "resolve network", err)
	}
	if profile.SettleNetwork == "" {
		return registry.NetworkProfile{}, clierr.New(clierr.KindUsage, fmt.Sprintf("network %q has no settlement support; use a swap network", network))
	}
	return profile, nil
}
