package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Approval modes for ERC-20 spend allowances. "max" approves the maximum
// representable amount once, trading a standing allowance for fewer wallet
// prompts; "exact" approves only the submitted amount.
const (
	ApprovalModeMax   = "max"
	ApprovalModeExact = "exact"
)

type GlobalFlags struct {
	ConfigPath     string
	Plain          bool
	Timeout        string
	Retries        int
	RPCURL         string
	ApprovalMode   string
	EnableCommands string
}

type Settings struct {
	Plain           bool
	Timeout         time.Duration
	Retries         int
	RPCOverrides    map[int64]string
	AggregatorURL   string
	FacilitatorURL  string
	FacilitatorFee  string
	ApprovalMode    string
	SlippagePercent float64
	AttemptsPath    string
	AttemptsLock    string
	EnableCommands  []string
}

type fileConfig struct {
	Output  string            `yaml:"output"`
	Timeout string            `yaml:"timeout"`
	Retries *int              `yaml:"retries"`
	RPC     map[string]string `yaml:"rpc"`
	Swap    struct {
		AggregatorURL   string   `yaml:"aggregator_url"`
		FacilitatorURL  string   `yaml:"facilitator_url"`
		FacilitatorFee  string   `yaml:"facilitator_fee"`
		SlippagePercent *float64 `yaml:"slippage_percent"`
	} `yaml:"swap"`
	Approval struct {
		Mode string `yaml:"mode"`
	} `yaml:"approval"`
	Attempts struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"attempts"`
	EnableCommands []string `yaml:"enable_commands"`
}

const (
	defaultAggregatorURL  = "https://www.okx.com/api/v5/dex/aggregator"
	defaultFacilitatorURL = "https://facilitator.x402x.dev"
	defaultFacilitatorFee = "15000"
)

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.ApprovalMode != ApprovalModeMax && settings.ApprovalMode != ApprovalModeExact {
		return Settings{}, fmt.Errorf("approval mode must be %q or %q, got %q", ApprovalModeMax, ApprovalModeExact, settings.ApprovalMode)
	}
	if settings.SlippagePercent < 0 || settings.SlippagePercent >= 100 {
		return Settings{}, fmt.Errorf("slippage percent must be in [0, 100), got %v", settings.SlippagePercent)
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		Timeout:         30 * time.Second,
		Retries:         1,
		RPCOverrides:    map[int64]string{},
		AggregatorURL:   defaultAggregatorURL,
		FacilitatorURL:  defaultFacilitatorURL,
		FacilitatorFee:  defaultFacilitatorFee,
		ApprovalMode:    ApprovalModeMax,
		SlippagePercent: 0.5,
		AttemptsPath:    filepath.Join(dataDir, "attempts.db"),
		AttemptsLock:    filepath.Join(dataDir, "attempts.lock"),
	}, nil
}

func defaultDataDir() (string, error) {
	base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "swapctl"), nil
}

func resolveConfigPath(override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", nil
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "swapctl", "config.yaml"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Output), "plain") {
		settings.Plain = true
	}
	if strings.TrimSpace(cfg.Timeout) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(cfg.Timeout))
		if err != nil {
			return fmt.Errorf("parse config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	for rawChain, url := range cfg.RPC {
		chainID, err := strconv.ParseInt(strings.TrimSpace(rawChain), 10, 64)
		if err != nil {
			return fmt.Errorf("parse rpc chain id %q: %w", rawChain, err)
		}
		if strings.TrimSpace(url) != "" {
			settings.RPCOverrides[chainID] = strings.TrimSpace(url)
		}
	}
	if strings.TrimSpace(cfg.Swap.AggregatorURL) != "" {
		settings.AggregatorURL = strings.TrimSpace(cfg.Swap.AggregatorURL)
	}
	if strings.TrimSpace(cfg.Swap.FacilitatorURL) != "" {
		settings.FacilitatorURL = strings.TrimSpace(cfg.Swap.FacilitatorURL)
	}
	if strings.TrimSpace(cfg.Swap.FacilitatorFee) != "" {
		settings.FacilitatorFee = strings.TrimSpace(cfg.Swap.FacilitatorFee)
	}
	if cfg.Swap.SlippagePercent != nil {
		settings.SlippagePercent = *cfg.Swap.SlippagePercent
	}
	if strings.TrimSpace(cfg.Approval.Mode) != "" {
		settings.ApprovalMode = strings.ToLower(strings.TrimSpace(cfg.Approval.Mode))
	}
	if strings.TrimSpace(cfg.Attempts.Path) != "" {
		settings.AttemptsPath = strings.TrimSpace(cfg.Attempts.Path)
	}
	if strings.TrimSpace(cfg.Attempts.LockPath) != "" {
		settings.AttemptsLock = strings.TrimSpace(cfg.Attempts.LockPath)
	}
	if len(cfg.EnableCommands) > 0 {
		settings.EnableCommands = cfg.EnableCommands
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := strings.TrimSpace(os.Getenv("SWAPCTL_AGGREGATOR_URL")); v != "" {
		settings.AggregatorURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SWAPCTL_FACILITATOR_URL")); v != "" {
		settings.FacilitatorURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SWAPCTL_APPROVAL_MODE")); v != "" {
		settings.ApprovalMode = strings.ToLower(v)
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.Plain {
		settings.Plain = true
	}
	if strings.TrimSpace(flags.Timeout) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(flags.Timeout))
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries > 0 {
		settings.Retries = flags.Retries
	}
	if strings.TrimSpace(flags.ApprovalMode) != "" {
		settings.ApprovalMode = strings.ToLower(strings.TrimSpace(flags.ApprovalMode))
	}
	if strings.TrimSpace(flags.EnableCommands) != "" {
		allowed := []string{}
		for _, part := range strings.Split(flags.EnableCommands, ",") {
			if p := strings.TrimSpace(part); p != "" {
				allowed = append(allowed, p)
			}
		}
		settings.EnableCommands = allowed
	}
	return nil
}
