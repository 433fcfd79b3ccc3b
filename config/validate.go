package config

import (
	"fmt"
	"net/url"
	"time"
)

// MinPollInterval is the smallest accepted confirmation poll interval.
const MinPollInterval = 100 * time.Millisecond

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if ParamsFor(cfg.Network) == nil {
		return fmt.Errorf("network must be %q, %q or %q", Mainnet, Testnet, Devnet)
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}

	if cfg.Wallet.NodeURL != "" {
		u, err := url.Parse(cfg.Wallet.NodeURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("wallet.node must be an http(s) URL, got %q", cfg.Wallet.NodeURL)
		}
	}
	if cfg.Wallet.FixedFee == 0 && cfg.Wallet.FeeRate == 0 {
		return fmt.Errorf("wallet.fee and wallet.feerate cannot both be zero")
	}
	if cfg.Wallet.PollInterval < MinPollInterval {
		return fmt.Errorf("wallet.poll must be at least %s", MinPollInterval)
	}
	if cfg.Wallet.ConfirmTimeout < 0 {
		return fmt.Errorf("wallet.timeout must not be negative")
	}
	if cfg.Wallet.RequestTimeout < 0 {
		return fmt.Errorf("wallet.requesttimeout must not be negative")
	}

	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = BackendBadger
	}
	switch cfg.Ledger.Backend {
	case BackendBadger, BackendMemory:
	default:
		return fmt.Errorf("ledger.backend must be %q or %q", BackendBadger, BackendMemory)
	}
	if cfg.Ledger.BlockInterval <= 0 {
		return fmt.Errorf("ledger.blocktime must be positive")
	}

	return nil
}
