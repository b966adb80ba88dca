// Package app wires the CLI surface: command parsing, configuration,
// collaborator construction, and envelope rendering.
package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/x402x/swapctl/internal/config"
	clierr "github.com/x402x/swapctl/internal/errors"
	"github.com/x402x/swapctl/internal/model"
	"github.com/x402x/swapctl/internal/observe"
	"github.com/x402x/swapctl/internal/out"
	"github.com/x402x/swapctl/internal/policy"
	"github.com/x402x/swapctl/internal/registry"
	"github.com/x402x/swapctl/internal/schema"
	"github.com/x402x/swapctl/internal/session"
	"github.com/x402x/swapctl/internal/version"
	"github.com/x402x/swapctl/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

// chainWallet is everything a flow needs from the wallet: submission,
// receipts, signing, and read-only chain access for the observer.
type chainWallet interface {
	wallet.Wallet
	observe.ChainReader
	Close()
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	settings    config.Settings
	root        *cobra.Command
	lastCommand string
	store       *session.Store

	// newWallet is swapped out by tests.
	newWallet func(profile registry.NetworkProfile) (chainWallet, error)
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	state.newWallet = state.openLocalWallet
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	if state.store != nil {
		_ = state.store.Close()
	}
	if err == nil {
		return 0
	}
	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Wrap, unwrap, and aggregator-swap on-chain assets",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.KindUsage, "load configuration", err)
			}
			s.settings = settings
			s.lastCommand = trimRootPath(cmd.CommandPath())
			return policy.CheckCommandAllowed(settings.EnableCommands, s.lastCommand)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.KindUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text instead of JSON")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "HTTP request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per HTTP request")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "Override the RPC endpoint for the selected network")
	cmd.PersistentFlags().StringVar(&s.flags.ApprovalMode, "approval-mode", "", "Token approval sizing: max or exact")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")

	cmd.AddCommand(s.newWrapCommand())
	cmd.AddCommand(s.newUnwrapCommand())
	cmd.AddCommand(s.newSwapCommand())
	cmd.AddCommand(s.newBalancesCommand())
	cmd.AddCommand(s.newAllowanceCommand())
	cmd.AddCommand(s.newNetworksCommand())
	cmd.AddCommand(s.newAttemptsCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := s.root
			if root == nil {
				root = cmd.Root()
			}
			data, err := schema.Build(root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.KindUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data)
		},
	}
	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) openLocalWallet(profile registry.NetworkProfile) (chainWallet, error) {
	w, err := wallet.NewLocalWalletFromEnv(wallet.LocalWalletConfig{
		RPCURL: func(chainID int64) (string, error) {
			override := s.flags.RPCURL
			if override == "" {
				override = s.settings.RPCOverrides[chainID]
			}
			return registry.ResolveRPCURL(override, chainID)
		},
		ExplorerTxURL: func(chainID int64, hash string) string {
			if chainID == profile.ChainID {
				return profile.ExplorerTxURL(hash)
			}
			return ""
		},
	})
	if err != nil {
		return nil, clierr.Wrap(clierr.KindUsage, "load signing key", err)
	}
	return w, nil
}

func (s *runtimeState) openStore() (*session.Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	store, err := session.OpenStore(s.settings.AttemptsPath, s.settings.AttemptsLock)
	if err != nil {
		return nil, clierr.Wrap(clierr.KindInternal, "open attempt store", err)
	}
	s.store = store
	return store, nil
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Error:   nil,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings.Plain)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:    clierr.ExitCode(err),
			Kind:    string(clierr.KindOf(err)),
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	_ = out.Render(s.runner.stderr, env, s.settings.Plain)
}

func trimRootPath(path string) string {
	return strings.TrimSpace(strings.TrimPrefix(path, version.CLIName))
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
