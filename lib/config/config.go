// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/solbet-labs/keeper/lib/cron"
)

// EnvironmentVariable names the variable [Load] reads the config path
// from.
const EnvironmentVariable = "SOLBET_KEEPER_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for devnet and local validators.
	Development Environment = "development"
	// Production is for mainnet deployments.
	Production Environment = "production"
)

// Action names accepted in enabled_actions.
const (
	ActionJoin            = "join"
	ActionExpireAndSettle = "expire_and_settle"
	ActionSettle          = "settle"
	ActionReclaimRent     = "reclaim_rent"
)

// AllActions lists every action a keeper can take, in planning order.
var AllActions = []string{ActionJoin, ActionExpireAndSettle, ActionSettle, ActionReclaimRent}

// Commitment levels accepted by the ledger.
var validCommitments = map[string]bool{"processed": true, "confirmed": true, "finalized": true}

// Config is the keeper configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Schedule is the pass cadence (see lib/cron).
	// Default: every 30 seconds.
	Schedule string `yaml:"schedule"`

	// LedgerEndpoint is the JSON-RPC HTTP URL.
	LedgerEndpoint string `yaml:"ledger_endpoint"`

	// LedgerWSEndpoint is the JSON-RPC websocket URL. When set, program
	// account notifications trigger out-of-band passes.
	LedgerWSEndpoint string `yaml:"ledger_ws_endpoint"`

	// ProgramAddress is the base58 address of the game program.
	ProgramAddress string `yaml:"program_address"`

	// Commitment is the confirmation level for reads and submissions.
	// Default: confirmed.
	Commitment string `yaml:"commitment"`

	// WalletKeyFile is a Solana JSON keypair file, optionally age
	// encrypted (see WalletIdentityFile).
	WalletKeyFile string `yaml:"wallet_key_file"`

	// WalletIdentityFile is an age identity used to decrypt
	// WalletKeyFile. Empty means the key file is plaintext.
	WalletIdentityFile string `yaml:"wallet_identity_file"`

	// MaxWagerByAsset maps a base58 mint address to the largest wager,
	// in base units, the keeper will join. Assets absent from the map
	// are never joined.
	MaxWagerByAsset map[string]uint64 `yaml:"max_wager_by_asset"`

	// AcceptOnlyOwnReveals limits reveal-phase expiry to games the
	// keeper itself joined.
	AcceptOnlyOwnReveals bool `yaml:"accept_only_own_reveals"`

	// SkipCacheMaxSize bounds the skip cache. Default: 10000.
	SkipCacheMaxSize int `yaml:"skip_cache_max_size"`

	// EnabledActions restricts which actions this instance takes.
	// Default: all of them.
	EnabledActions []string `yaml:"enabled_actions"`

	// RequestTimeout bounds a single JSON-RPC call. Default: 30s.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ConfirmTimeout bounds the wait for a submitted transaction to
	// reach Commitment. Default: 90s.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`

	// ControlSocket is the unix socket for keeperctl. Empty disables it.
	ControlSocket string `yaml:"control_socket"`

	// DryRun plans and logs without submitting transactions.
	DryRun bool `yaml:"dry_run"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may replace.
type Overrides struct {
	LedgerEndpoint   string            `yaml:"ledger_endpoint,omitempty"`
	LedgerWSEndpoint string            `yaml:"ledger_ws_endpoint,omitempty"`
	ProgramAddress   string            `yaml:"program_address,omitempty"`
	MaxWagerByAsset  map[string]uint64 `yaml:"max_wager_by_asset,omitempty"`
}

// Default returns the configuration used as the base before a file is
// loaded over it.
func Default() *Config {
	return &Config{
		Environment:      Development,
		Schedule:         "*/30 * * * * *",
		LedgerEndpoint:   "https://api.devnet.solana.com",
		Commitment:       "confirmed",
		WalletKeyFile:    "${SOLBET_ROOT:-/etc/solbet}/keeper.json",
		MaxWagerByAsset:  map[string]uint64{},
		SkipCacheMaxSize: 10000,
		EnabledActions:   append([]string(nil), AllActions...),
		RequestTimeout:   30 * time.Second,
		ConfirmTimeout:   90 * time.Second,
		ControlSocket:    "/run/solbet/keeper.sock",
	}
}

// Load loads the file named by SOLBET_KEEPER_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your keeper config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over [Default], applies the
// environment section, and expands path variables. It does not
// validate; call [Config.Validate].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	// A file that lists enabled_actions replaces the default list
	// rather than appending to it.
	cfg.EnabledActions = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.EnabledActions == nil {
		cfg.EnabledActions = append([]string(nil), AllActions...)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.LedgerEndpoint != "" {
		c.LedgerEndpoint = overrides.LedgerEndpoint
	}
	if overrides.LedgerWSEndpoint != "" {
		c.LedgerWSEndpoint = overrides.LedgerWSEndpoint
	}
	if overrides.ProgramAddress != "" {
		c.ProgramAddress = overrides.ProgramAddress
	}
	if overrides.MaxWagerByAsset != nil {
		c.MaxWagerByAsset = overrides.MaxWagerByAsset
	}
}

func (c *Config) expandVariables() {
	c.WalletKeyFile = expandVars(c.WalletKeyFile)
	c.WalletIdentityFile = expandVars(c.WalletIdentityFile)
	c.ControlSocket = expandVars(c.ControlSocket)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the process
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// ActionEnabled reports whether action is listed in EnabledActions.
func (c *Config) ActionEnabled(action string) bool {
	for _, enabled := range c.EnabledActions {
		if enabled == action {
			return true
		}
	}
	return false
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}
	if schedule, err := cron.Parse(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	} else if _, err := schedule.Next(time.Now()); err != nil {
		errs = append(errs, fmt.Errorf("schedule %q never fires: %w", c.Schedule, err))
	}
	if c.LedgerEndpoint == "" {
		errs = append(errs, errors.New("ledger_endpoint is required"))
	}
	if c.ProgramAddress == "" {
		errs = append(errs, errors.New("program_address is required"))
	}
	if !validCommitments[c.Commitment] {
		errs = append(errs, fmt.Errorf("invalid commitment: %q", c.Commitment))
	}
	if c.WalletKeyFile == "" {
		errs = append(errs, errors.New("wallet_key_file is required"))
	}
	if c.SkipCacheMaxSize <= 0 {
		errs = append(errs, fmt.Errorf("skip_cache_max_size must be positive, got %d", c.SkipCacheMaxSize))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.ConfirmTimeout <= 0 {
		errs = append(errs, fmt.Errorf("confirm_timeout must be positive, got %s", c.ConfirmTimeout))
	}
	if len(c.EnabledActions) == 0 {
		errs = append(errs, errors.New("enabled_actions must name at least one action"))
	}
	for _, action := range c.EnabledActions {
		known := false
		for _, candidate := range AllActions {
			if action == candidate {
				known = true
				break
			}
		}
		if !known {
			errs = append(errs, fmt.Errorf("enabled_actions: unknown action %q", action))
		}
	}
	if c.Environment == Production && c.DryRun {
		errs = append(errs, errors.New("dry_run is not allowed in production"))
	}

	return errors.Join(errs...)
}
