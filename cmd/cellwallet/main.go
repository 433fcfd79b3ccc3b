// cellwallet is a command-line wallet for cell-model chains. It derives an
// account from a private key, shows balances, and sends capacity.
//
// Private keys are read from --key-file, the CELLWALLET_KEY environment
// variable, or a hidden prompt, and are never written to disk.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Klingon-tech/cellwallet/config"
	klog "github.com/Klingon-tech/cellwallet/internal/log"
	"github.com/Klingon-tech/cellwallet/internal/rpcclient"
	"github.com/Klingon-tech/cellwallet/internal/wallet"
)

// globals holds the flags accepted before the subcommand.
type globals struct {
	rpcURL   string
	dataDir  string
	network  string
	config   string
	logLevel string
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	g, args := parseGlobals(os.Args[1:])
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "help", "--help", "-h":
		usage()
		return
	case "version", "--version":
		fmt.Println("cellwallet version " + config.Version)
		return
	case "key":
		// Key tooling works offline.
		klog.SetOutput(os.Stderr, g.logLevel)
		cmdKey(g, cmdArgs)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, svc := setup(g)

	switch cmd {
	case "account":
		cmdAccount(ctx, svc, cmdArgs)
	case "balance":
		cmdBalance(ctx, svc, cmdArgs)
	case "transfer":
		cmdTransfer(ctx, svc, cfg, cmdArgs)
	case "wait":
		cmdWait(ctx, svc, cfg, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

// parseGlobals scans --rpc, --datadir, --network, --config and
// --log-level before the subcommand.
func parseGlobals(args []string) (globals, []string) {
	g := globals{
		network:  string(config.Devnet),
		logLevel: "warn",
	}
	targets := map[string]*string{
		"--rpc":       &g.rpcURL,
		"--datadir":   &g.dataDir,
		"--network":   &g.network,
		"--config":    &g.config,
		"--log-level": &g.logLevel,
	}

	for len(args) > 0 {
		name, value, hasValue := strings.Cut(args[0], "=")
		dst, ok := targets[name]
		if !ok {
			break
		}
		if hasValue {
			*dst = value
			args = args[1:]
			continue
		}
		if len(args) < 2 {
			break
		}
		*dst = args[1]
		args = args[2:]
	}
	g.network = strings.ToLower(g.network)
	return g, args
}

// setup loads the config and builds the wallet service over JSON-RPC.
func setup(g globals) (*config.Config, *wallet.Service) {
	network := config.NetworkType(g.network)
	if config.ParamsFor(network) == nil {
		fatal("unknown network %q", g.network)
	}
	cfg, err := config.LoadFromFile(g.dataDir, network, g.config)
	if err != nil {
		fatal("%v", err)
	}
	if g.rpcURL != "" {
		cfg.Wallet.NodeURL = g.rpcURL
		if err := config.Validate(cfg); err != nil {
			fatal("%v", err)
		}
	}

	// Stdout carries command output; logs go to stderr.
	klog.SetOutput(os.Stderr, g.logLevel)

	node := rpcclient.Dial(cfg.Wallet.NodeURL, cfg.Wallet.RequestTimeout)
	svc, err := wallet.NewService(node, wallet.OptionsFromConfig(cfg, klog.Wallet))
	if err != nil {
		fatal("%v", err)
	}
	return cfg, svc
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: cellwallet [global flags] <command> [flags]

Global flags:
  --rpc <url>         Node JSON-RPC endpoint (default from config)
  --datadir <path>    Data directory (default: ~/.cellwallet)
  --network <net>     devnet (default), testnet or mainnet
  --config <path>     Config file (default: <datadir>/cellwallet.conf)
  --log-level <lvl>   Log level on stderr (default: warn)

Commands:
  account [--key-file <f>]        Show the account of a private key and its balance
  balance <address>...            Show address balances
  transfer --to <addr> --amount <ckb> [--wait] [--timeout <d>] [--key-file <f>]
                                  Send capacity to an address
  wait <tx hash> [--timeout <d>]  Wait until a transaction is committed
  key --new                       Generate a mnemonic and show its first account
  key --mnemonic [--index <n>]    Derive a private key from a mnemonic (prompted)

The private key is read from --key-file, then $%s, then a hidden prompt.
`, keyEnv)
}

// ── Error helpers ───────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// fatalErr reports a wallet error together with its kind.
func fatalErr(op string, err error) {
	fatal("%s: %v [%s]", op, err, wallet.KindOf(err))
}
