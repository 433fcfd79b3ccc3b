package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/cellwallet/config"
	klog "github.com/Klingon-tech/cellwallet/internal/log"
	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// DefaultConfirmTimeout applies when a wait is requested without a timeout.
const DefaultConfirmTimeout = 5 * time.Minute

// maxFeeRounds bounds the fee/selection fixed-point loop.
const maxFeeRounds = 16

// Options configures a Service.
type Options struct {
	Params *config.ChainParams
	Fee    tx.FeePolicy
	// MaxDustFold is passed to SelectCells.
	MaxDustFold uint64
	// PollInterval is the confirmation polling interval.
	PollInterval time.Duration
	// ConfirmTimeout is used when WaitForConfirmation gets no timeout.
	ConfirmTimeout time.Duration
	// QueueTransfers makes a second transfer from a busy identity wait
	// instead of failing with ErrTransferInProgress.
	QueueTransfers bool
	// Locks may be shared between services talking to the same node.
	Locks  *IdentityLocks
	Logger zerolog.Logger

	newTicker func(time.Duration) ticker.Ticker
}

// OptionsFromConfig maps runtime config onto service options.
func OptionsFromConfig(cfg *config.Config, logger zerolog.Logger) Options {
	return Options{
		Params:         config.ParamsFor(cfg.Network),
		Fee:            tx.FeePolicy{Fixed: cfg.Wallet.FixedFee, RatePerKB: cfg.Wallet.FeeRate},
		MaxDustFold:    cfg.Wallet.MaxDustFold,
		PollInterval:   cfg.Wallet.PollInterval,
		ConfirmTimeout: cfg.Wallet.ConfirmTimeout,
		QueueTransfers: cfg.Wallet.QueueTransfers,
		Logger:         logger,
	}
}

// Service is the wallet core exposed to the presentation layer. It holds
// no key material between calls; the only state it keeps is the
// per-identity transfer lock.
type Service struct {
	node       Node
	opts       Options
	accountant *Accountant
	confirmer  *Confirmer
	locks      *IdentityLocks
	log        zerolog.Logger
}

// NewService creates a wallet service over node.
func NewService(node Node, opts Options) (*Service, error) {
	if node == nil {
		return nil, fmt.Errorf("node is required")
	}
	if opts.Params == nil {
		return nil, fmt.Errorf("chain params are required")
	}
	if opts.Fee.Fixed == 0 && opts.Fee.RatePerKB == 0 {
		opts.Fee = tx.DefaultFeePolicy()
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = DefaultConfirmTimeout
	}
	if opts.Locks == nil {
		opts.Locks = NewIdentityLocks()
	}
	confirmer := NewConfirmer(node, opts.PollInterval, opts.Logger)
	if opts.newTicker != nil {
		confirmer.newTicker = opts.newTicker
	}
	return &Service{
		node:       node,
		opts:       opts,
		accountant: NewAccountant(node, opts.Params),
		confirmer:  confirmer,
		locks:      opts.Locks,
		log:        opts.Logger,
	}, nil
}

// Params returns the chain parameters the service works with.
func (s *Service) Params() *config.ChainParams {
	return s.opts.Params
}

// Accountant returns the service's balance accountant.
func (s *Service) Accountant() *Accountant {
	return s.accountant
}

// DeriveAccount derives the identity of a hex private key.
func (s *Service) DeriveAccount(keyHex string) (*Account, error) {
	return DeriveAccount(s.opts.Params, keyHex)
}

// GetBalance returns the balance of address.
func (s *Service) GetBalance(ctx context.Context, address string) (Balance, error) {
	return s.accountant.BalanceOf(ctx, address)
}

// GetBalances returns the balances of several addresses, queried in
// parallel.
func (s *Service) GetBalances(ctx context.Context, addresses ...string) ([]Balance, error) {
	return s.accountant.BalanceOfMany(ctx, addresses...)
}

// TransferRequest is a validated transfer ready to be funded.
type TransferRequest struct {
	Recipient types.Lock
	Amount    uint64
}

// ParseTransfer validates a recipient address and a display-unit amount
// without touching the network. Amounts below the minimum cell capacity
// fail with a BelowMinimumCapacityError for output 0.
func (s *Service) ParseTransfer(toAddress, amountCKB string) (TransferRequest, error) {
	amount, err := types.ParseCKB(amountCKB)
	if err != nil {
		return TransferRequest{}, err
	}
	if err := checkAmount(amount); err != nil {
		return TransferRequest{}, err
	}
	recipient, err := s.opts.Params.ParseAddress(toAddress)
	if err != nil {
		return TransferRequest{}, err
	}
	req := TransferRequest{Recipient: recipient, Amount: amount}
	if err := s.checkRequest(req); err != nil {
		return TransferRequest{}, err
	}
	return req, nil
}

func checkAmount(amount uint64) error {
	if amount < types.MinCellCapacity {
		return &tx.BelowMinimumCapacityError{Index: 0, Capacity: amount, Minimum: types.MinCellCapacity}
	}
	return nil
}

func (s *Service) checkRequest(req TransferRequest) error {
	if err := checkAmount(req.Amount); err != nil {
		return err
	}
	if err := s.opts.Params.ValidateLock(req.Recipient); err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidAddress, err)
	}
	// Locks with longer args occupy more than the default minimum.
	return tx.CheckOutputCapacity(0, req.Amount, req.Recipient, 0)
}

// Transfer sends amountCKB display units to toAddress from the identity of
// keyHex and returns the transaction hash. The key is cleared on every
// exit path. A failed transfer leaves nothing submitted.
func (s *Service) Transfer(ctx context.Context, toAddress, amountCKB, keyHex string) (types.Hash, error) {
	req, err := s.ParseTransfer(toAddress, amountCKB)
	if err != nil {
		return types.Hash{}, err
	}
	key, err := crypto.ParsePrivateKeyHex(keyHex)
	if err != nil {
		return types.Hash{}, err
	}
	defer key.Zero()
	return s.TransferWithKey(ctx, req, key)
}

// TransferWithKey funds, signs and submits req with key. The caller keeps
// ownership of key.
func (s *Service) TransferWithKey(ctx context.Context, req TransferRequest, key *crypto.PrivateKey) (types.Hash, error) {
	if key == nil {
		return types.Hash{}, crypto.ErrInvalidKey
	}
	if err := s.checkRequest(req); err != nil {
		return types.Hash{}, err
	}
	sender, err := AccountFromKey(s.opts.Params, key)
	if err != nil {
		return types.Hash{}, err
	}
	logger := klog.WithIdentity(s.log, sender.LockHash.String()).With().Str("from", sender.Address).Logger()

	release, err := s.acquire(ctx, sender.LockHash.String())
	if err != nil {
		return types.Hash{}, err
	}
	defer release()

	// Re-query right before selection; the lock guarantees no other
	// transfer from this identity is selecting concurrently.
	cells, err := s.node.LiveCells(ctx, sender.Lock)
	if err != nil {
		return types.Hash{}, indexError(ctx, "query live cells", err)
	}
	logger.Debug().Int("cells", len(cells)).Msg("Fetched live cells")

	sel, err := s.fund(spendableCells(cells), req.Amount, sender.Lock)
	if err != nil {
		return types.Hash{}, err
	}
	logger.Debug().
		Int("inputs", len(sel.Cells)).
		Uint64("change", sel.Change).
		Uint64("fee", sel.Fee).
		Uint64("folded", sel.Folded).
		Msg("Selected cells")

	unsigned, err := tx.Build(tx.BuildParams{
		Inputs:    sel.Cells,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Sender:    sender.Lock,
		Change:    sel.Change,
		Fee:       sel.Fee,
		CellDeps:  s.opts.Params.CellDepsCopy(),
	})
	if err != nil {
		return types.Hash{}, err
	}
	signed, err := tx.Sign(unsigned, key)
	if err != nil {
		return types.Hash{}, err
	}

	// Submission is never retried: a second attempt could duplicate the
	// transfer.
	hash, err := s.node.SubmitTransaction(ctx, signed.Transaction())
	if err != nil {
		if errors.Is(err, ErrRejectedByNetwork) {
			logger.Warn().Err(err).Str("tx", signed.Hash().String()).Msg("Transaction rejected")
			return types.Hash{}, err
		}
		return types.Hash{}, indexError(ctx, "submit transaction", err)
	}
	if hash != signed.Hash() {
		logger.Warn().Str("node_hash", hash.String()).Str("tx", signed.Hash().String()).Msg("Node reported a different transaction hash")
	}

	logger.Info().
		Str("tx", signed.Hash().String()).
		Str("amount", types.FormatCKB(req.Amount)).
		Str("fee", types.FormatCKB(signed.Fee())).
		Msg("Transaction submitted")
	return signed.Hash(), nil
}

func (s *Service) acquire(ctx context.Context, id string) (func(), error) {
	if s.opts.QueueTransfers {
		return s.locks.Acquire(ctx, id)
	}
	return s.locks.TryAcquire(id)
}

// fund selects cells for amount, re-selecting until the fee policy is
// satisfied for the resulting input and output count.
func (s *Service) fund(cells []types.Cell, amount uint64, sender types.Lock) (*Selection, error) {
	opts := SelectOptions{
		MinChange:   types.OccupiedCapacity(sender, 0),
		MaxDustFold: s.opts.MaxDustFold,
	}
	fee := s.opts.Fee.Fee(1, 2)
	for range maxFeeRounds {
		sel, err := SelectCells(cells, amount, fee, opts)
		if err != nil {
			return nil, err
		}
		outputs := 1
		if sel.Change > 0 {
			outputs = 2
		}
		need := s.opts.Fee.Fee(len(sel.Cells), outputs)
		if need <= sel.Fee {
			return sel, nil
		}
		fee = need
	}
	return nil, fmt.Errorf("fee did not converge after %d rounds", maxFeeRounds)
}

// WaitForConfirmation polls until hashHex is committed or timeout elapses.
// A non-positive timeout uses the configured default.
func (s *Service) WaitForConfirmation(ctx context.Context, hashHex string, timeout time.Duration) (Confirmation, error) {
	hash, err := types.HexToHash(hashHex)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return s.confirmer.Wait(ctx, hash, s.timeout(timeout))
}

// WaitAsync starts a background confirmation wait for hash. Cancel ctx to
// abandon it.
func (s *Service) WaitAsync(ctx context.Context, hash types.Hash, timeout time.Duration) <-chan ConfirmationResult {
	return s.confirmer.WaitAsync(ctx, hash, s.timeout(timeout))
}

func (s *Service) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return s.opts.ConfirmTimeout
	}
	return d
}
