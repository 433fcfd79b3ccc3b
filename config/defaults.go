package config

import (
	"fmt"
	"time"

	"github.com/Klingon-tech/cellwallet/pkg/tx"
)

// Default RPC ports per network.
const (
	MainnetRPCPort = 8214
	TestnetRPCPort = 18214
	DevnetRPCPort  = 28214
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       MainnetRPCPort,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Wallet: WalletConfig{
			NodeURL:        nodeURL(MainnetRPCPort),
			FixedFee:       tx.DefaultFixedFee,
			PollInterval:   3 * time.Second,
			ConfirmTimeout: 5 * time.Minute,
			RequestTimeout: 30 * time.Second,
		},
		Ledger: LedgerConfig{
			Backend:       BackendBadger,
			BlockInterval: 3 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Port = TestnetRPCPort
	cfg.Wallet.NodeURL = nodeURL(TestnetRPCPort)
	return cfg
}

// DefaultDevnet returns the default configuration for a local devnet.
func DefaultDevnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Devnet
	cfg.RPC.Port = DevnetRPCPort
	cfg.Wallet.NodeURL = nodeURL(DevnetRPCPort)
	cfg.Wallet.PollInterval = time.Second
	cfg.Ledger.BlockInterval = time.Second
	cfg.Log.Level = "debug"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	case Devnet:
		return DefaultDevnet()
	default:
		return DefaultMainnet()
	}
}

func nodeURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d", port)
}
