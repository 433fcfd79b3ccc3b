package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tyler-smith/go-bip32"

	"github.com/Klingon-tech/cellwallet/config"
	klog "github.com/Klingon-tech/cellwallet/internal/log"
	"github.com/Klingon-tech/cellwallet/internal/session"
	"github.com/Klingon-tech/cellwallet/internal/wallet"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// ── account ─────────────────────────────────────────────────────────────

func cmdAccount(ctx context.Context, svc *wallet.Service, args []string) {
	fs := flag.NewFlagSet("account", flag.ExitOnError)
	keyFile := fs.String("key-file", "", "File holding the hex private key")
	fs.Parse(args)

	key, err := readKey(*keyFile, terminalPrompt())
	if err != nil {
		fatalErr("read key", err)
	}
	account, err := wallet.AccountFromKey(svc.Params(), key)
	key.Zero()
	if err != nil {
		fatalErr("derive account", err)
	}

	lock, _ := json.MarshalIndent(account.Lock, "  ", "  ")
	fmt.Printf("Address:    %s\n", account.Address)
	fmt.Printf("Public key: %s\n", hex.EncodeToString(account.PublicKey))
	fmt.Printf("Lock hash:  %s\n", account.LockHash)
	fmt.Printf("Lock:\n  %s\n", lock)

	// The identity is useful even when the node is down.
	bal, err := svc.Accountant().BalanceOfLock(ctx, account.Lock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: balance unavailable: %v\n", err)
		return
	}
	printBalance(account.Address, bal)
}

// ── balance ─────────────────────────────────────────────────────────────

func cmdBalance(ctx context.Context, svc *wallet.Service, args []string) {
	if len(args) < 1 {
		fatal("Usage: cellwallet balance <address>...")
	}
	balances, err := svc.GetBalances(ctx, args...)
	if err != nil {
		fatalErr("balance", err)
	}
	for i, b := range balances {
		printBalance(args[i], b)
	}
}

func printBalance(address string, b wallet.Balance) {
	fmt.Printf("%s  %s CKB (spendable %s CKB, %d cells)\n",
		address, b.CKB(), types.FormatCKB(b.Spendable), b.Cells)
}

// ── transfer ────────────────────────────────────────────────────────────

func cmdTransfer(ctx context.Context, svc *wallet.Service, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("transfer", flag.ExitOnError)
	to := fs.String("to", "", "Recipient address")
	amount := fs.String("amount", "", "Amount in CKB (e.g. 100.5)")
	wait := fs.Bool("wait", false, "Wait for the transaction to be committed")
	timeout := fs.Duration("timeout", cfg.Wallet.ConfirmTimeout, "Confirmation timeout")
	keyFile := fs.String("key-file", "", "File holding the hex private key")
	fs.Parse(args)

	if *to == "" || *amount == "" {
		fatal("Usage: cellwallet transfer --to <addr> --amount <ckb> [--wait]")
	}

	secret, err := readSecret(*keyFile, terminalPrompt())
	if err != nil {
		fatalErr("read key", err)
	}

	s := session.New(svc, session.Options{
		ConfirmTimeout: *timeout,
		Logger:         klog.Session,
	})
	defer s.Close()
	// fatal exits without running defers; drop the key first.
	die := func(op string, err error) {
		s.Close()
		fatalErr(op, err)
	}
	s.OnTransition(func(from, next session.State, _ session.View) {
		if from != next {
			klog.Session.Debug().Str("from", from.String()).Str("to", next.String()).Msg("Session state")
		}
	})

	err = s.Load(ctx, string(secret))
	clear(secret)
	if err != nil {
		die("load account", err)
	}
	view := s.Snapshot()
	fmt.Printf("From:    %s (%s CKB)\n", view.Account.Address, view.Balance.CKB())

	hash, err := s.Transfer(ctx, *to, *amount)
	if err != nil {
		die("transfer", err)
	}
	fmt.Printf("Submitted: %s\n", hash)

	if !*wait {
		return
	}
	fmt.Fprintf(os.Stderr, "Waiting up to %s for commit...\n", *timeout)
	if err := s.Idle(ctx); err != nil {
		die("wait", fmt.Errorf("interrupted before %s was committed: %w", hash, err))
	}

	view = s.Snapshot()
	if view.Confirmation != wallet.Confirmed {
		if view.Err != nil {
			die("wait", view.Err)
		}
		die("wait", view.Confirmation.Err())
	}
	fmt.Printf("Committed. Balance: %s CKB\n", view.Balance.CKB())
}

// ── wait ────────────────────────────────────────────────────────────────

func cmdWait(ctx context.Context, svc *wallet.Service, cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("wait", flag.ExitOnError)
	timeout := fs.Duration("timeout", cfg.Wallet.ConfirmTimeout, "Confirmation timeout")
	// Allow the hash before or after the flags.
	hash := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		hash, args = args[0], args[1:]
	}
	fs.Parse(args)
	if hash == "" && fs.NArg() > 0 {
		hash = fs.Arg(0)
	}
	if hash == "" {
		fatal("Usage: cellwallet wait <tx hash> [--timeout <d>]")
	}

	start := time.Now()
	conf, err := svc.WaitForConfirmation(ctx, hash, *timeout)
	if err != nil {
		fatalErr("wait", err)
	}
	if conf != wallet.Confirmed {
		fatalErr("wait", conf.Err())
	}
	fmt.Printf("Committed after %s\n", time.Since(start).Round(time.Millisecond))
}

// ── key ─────────────────────────────────────────────────────────────────

func cmdKey(g globals, args []string) {
	fs := flag.NewFlagSet("key", flag.ExitOnError)
	newMnemonic := fs.Bool("new", false, "Generate a new mnemonic")
	fromMnemonic := fs.Bool("mnemonic", false, "Derive a key from a mnemonic")
	index := fs.Uint("index", 0, "Address index (m/44'/309'/0'/0/<index>)")
	fs.Parse(args)
	if err := checkIndex(*index); err != nil {
		fatal("%v", err)
	}

	params := config.ParamsFor(config.NetworkType(g.network))
	if params == nil {
		fatal("unknown network %q", g.network)
	}

	var mnemonic string
	switch {
	case *newMnemonic:
		m, err := wallet.GenerateMnemonic()
		if err != nil {
			fatal("generate mnemonic: %v", err)
		}
		mnemonic = m
		fmt.Println("Mnemonic (write this down!):")
		fmt.Printf("  %s\n\n", mnemonic)
	case *fromMnemonic:
		words, err := readPassword("Mnemonic: ")
		if err != nil {
			fatal("read mnemonic: %v", err)
		}
		mnemonic = strings.Join(strings.Fields(string(words)), " ")
		clear(words)
	default:
		fatal("Usage: cellwallet key --new | --mnemonic [--index <n>]")
	}

	key, err := wallet.KeyFromMnemonic(mnemonic, "", uint32(*index))
	if err != nil {
		fatalErr("derive key", err)
	}
	defer key.Zero()
	account, err := wallet.AccountFromKey(params, key)
	if err != nil {
		fatalErr("derive account", err)
	}

	fmt.Printf("Path:        m/44'/309'/0'/0/%d\n", *index)
	fmt.Printf("Address:     %s\n", account.Address)
	if *fromMnemonic {
		// Printed so it can be redirected into a key file.
		fmt.Printf("Private key: 0x%s\n", hex.EncodeToString(key.Serialize()))
	}
}

// checkIndex rejects address indexes that would wrap or select a hardened
// child.
func checkIndex(index uint) error {
	if index >= uint(bip32.FirstHardenedChild) {
		return fmt.Errorf("%w: got %d", wallet.ErrHardenedIndex, index)
	}
	return nil
}
