// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Chain parameters: per-network constants (address prefix, default lock,
//     cell deps) that must match the network being used
//   - Runtime settings: wallet, devnet ledger, RPC and logging options that
//     can vary per installation
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies the network a wallet or node talks to.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
	Devnet  NetworkType = "devnet"
)

// =============================================================================
// Runtime Configuration
// =============================================================================

// Config holds runtime configuration shared by the wallet CLI and the
// devnet node.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// RPC server (devnet node)
	RPC RPCConfig

	// Wallet core
	Wallet WalletConfig

	// Devnet ledger
	Ledger LedgerConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled    bool     `conf:"rpc.enabled"`
	Addr       string   `conf:"rpc.addr"`
	Port       int      `conf:"rpc.port"`
	AllowedIPs []string `conf:"rpc.allowed"`
}

// WalletConfig holds the wallet core's settings.
type WalletConfig struct {
	// NodeURL is the JSON-RPC endpoint of the cell index / node.
	NodeURL string `conf:"wallet.node"`
	// FixedFee is the flat fee per transfer, in shannons.
	FixedFee uint64 `conf:"wallet.fee"`
	// FeeRate is an optional size-based fee in shannons per 1000 bytes.
	FeeRate uint64 `conf:"wallet.feerate"`
	// MaxDustFold is the largest leftover (shannons) that may be added to
	// the fee when no valid change output can be formed. Zero disables it.
	MaxDustFold uint64 `conf:"wallet.maxdustfold"`
	// PollInterval is the confirmation polling interval.
	PollInterval time.Duration `conf:"wallet.poll"`
	// ConfirmTimeout bounds a confirmation wait.
	ConfirmTimeout time.Duration `conf:"wallet.timeout"`
	// QueueTransfers makes concurrent transfers from one identity wait
	// for each other instead of failing fast.
	QueueTransfers bool `conf:"wallet.queue"`
	// RequestTimeout bounds each RPC request to the node.
	RequestTimeout time.Duration `conf:"wallet.requesttimeout"`
}

// LedgerConfig holds devnet ledger settings.
type LedgerConfig struct {
	// Backend is "badger" (persistent) or "memory".
	Backend string `conf:"ledger.backend"`
	// BlockInterval is how often pending transactions are committed.
	BlockInterval time.Duration `conf:"ledger.blocktime"`
	// GenesisFile optionally overrides the built-in devnet genesis.
	GenesisFile string `conf:"ledger.genesis"`
}

// Ledger backends.
const (
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.cellwallet
//	macOS:   ~/Library/Application Support/CellWallet
//	Windows: %APPDATA%\CellWallet
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cellwallet"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "CellWallet")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "CellWallet")
		}
		return filepath.Join(home, "AppData", "Roaming", "CellWallet")
	default:
		return filepath.Join(home, ".cellwallet")
	}
}

// ChainDataDir returns the network-specific data directory.
func (c *Config) ChainDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// CellsDir returns the devnet cell database directory.
func (c *Config) CellsDir() string {
	return filepath.Join(c.ChainDataDir(), "cells")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "cellwallet.conf")
}
