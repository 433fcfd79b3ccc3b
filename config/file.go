package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
// Chain parameters are not configurable here.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)

	// Wallet
	case "wallet.node":
		cfg.Wallet.NodeURL = value
	case "wallet.fee":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Wallet.FixedFee = n
	case "wallet.feerate":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Wallet.FeeRate = n
	case "wallet.maxdustfold":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		cfg.Wallet.MaxDustFold = n
	case "wallet.poll":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Wallet.PollInterval = d
	case "wallet.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Wallet.ConfirmTimeout = d
	case "wallet.requesttimeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Wallet.RequestTimeout = d
	case "wallet.queue":
		cfg.Wallet.QueueTransfers = parseBool(value)

	// Devnet ledger
	case "ledger.backend":
		cfg.Ledger.Backend = strings.ToLower(value)
	case "ledger.blocktime":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Ledger.BlockInterval = d
	case "ledger.genesis":
		cfg.Ledger.GenesisFile = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	cfg := Default(network)
	content := `# CellWallet Configuration
#
# Chain parameters (address prefix, default lock, cell deps) are fixed per
# network and cannot be changed here.

# Network: mainnet, testnet or devnet
network = ` + string(network) + `

# Data directory (default: ~/.cellwallet)
# datadir = ~/.cellwallet

# ============================================================================
# Wallet
# ============================================================================

# JSON-RPC endpoint of the cell index / node
wallet.node = ` + cfg.Wallet.NodeURL + `

# Flat fee per transfer, in shannons (1 CKB = 100000000 shannons)
wallet.fee = ` + strconv.FormatUint(cfg.Wallet.FixedFee, 10) + `

# Optional size-based fee, shannons per 1000 bytes (0 = fixed fee only)
# wallet.feerate = 1000

# Largest leftover folded into the fee when no change cell can be formed
# (0 = never fold, report insufficient funds instead)
# wallet.maxdustfold = 0

# Confirmation polling
wallet.poll = ` + cfg.Wallet.PollInterval.String() + `
wallet.timeout = ` + cfg.Wallet.ConfirmTimeout.String() + `
# wallet.requesttimeout = 30s

# Wait for an in-flight transfer from the same identity instead of failing
# wallet.queue = false

# ============================================================================
# Devnet Node (celld)
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + strconv.Itoa(cfg.RPC.Port) + `
rpc.allowed = 127.0.0.1

# Cell store backend: badger or memory
ledger.backend = badger
ledger.blocktime = ` + cfg.Ledger.BlockInterval.String() + `
# ledger.genesis = /path/to/genesis.json

# ============================================================================
# Logging
# ============================================================================

log.level = ` + cfg.Log.Level + `
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
