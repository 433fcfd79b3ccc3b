// Package session drives the wallet core as an explicit state machine for
// an interactive front end. Commands move the session between states;
// nothing changes behind the caller's back except the balance refresh that
// follows a confirmed transfer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/cellwallet/internal/wallet"
	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// State is the session's lifecycle state.
type State int

const (
	// StateEmpty holds no key.
	StateEmpty State = iota
	// StateDeriving is loading a key and its first balance.
	StateDeriving
	// StateReady holds a key, its account and a balance.
	StateReady
	// StateError records a failed load or refresh.
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateDeriving:
		return "deriving"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session errors.
var (
	ErrBusy     = errors.New("session is busy")
	ErrNotReady = errors.New("session has no account loaded")
)

// View is an immutable snapshot of the session.
type View struct {
	State   State
	Account *wallet.Account
	Balance wallet.Balance

	// LastTx is the most recent transfer, zero if none.
	LastTx types.Hash
	// Confirming is true while LastTx is being waited on.
	Confirming bool
	// Confirmation is the outcome of the last finished wait.
	Confirmation wallet.Confirmation

	// Err is the failure that put the session in StateError, or the last
	// failed transfer.
	Err     error
	ErrKind wallet.Kind
}

// TransitionFunc observes state changes. It runs outside the session's
// locks and may call Snapshot.
type TransitionFunc func(from, to State, view View)

// Options configures a session.
type Options struct {
	// ConfirmTimeout bounds the background wait after a transfer. Zero
	// uses the service default.
	ConfirmTimeout time.Duration
	// RefreshTimeout bounds the balance refresh after confirmation.
	RefreshTimeout time.Duration
	Logger         zerolog.Logger
}

// Session is a single-identity wallet front end state machine.
type Session struct {
	svc  *wallet.Service
	opts Options
	log  zerolog.Logger

	// cmd serializes commands; mu guards the fields below.
	cmd sync.Mutex
	mu  sync.Mutex

	state        State
	key          *crypto.PrivateKey
	account      *wallet.Account
	balance      wallet.Balance
	lastTx       types.Hash
	confirming   bool
	confirmation wallet.Confirmation
	err          error

	gen          uint64
	cmdCancel    context.CancelFunc
	waitCancel   context.CancelFunc
	onTransition TransitionFunc
	bg           sync.WaitGroup
}

// New creates an empty session over svc.
func New(svc *wallet.Service, opts Options) *Session {
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 30 * time.Second
	}
	return &Session{svc: svc, opts: opts, log: opts.Logger}
}

// OnTransition registers fn to observe every state assignment.
func (s *Session) OnTransition(fn TransitionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTransition = fn
}

// Snapshot returns the current view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		State:        s.state,
		Balance:      s.balance,
		LastTx:       s.lastTx,
		Confirming:   s.confirming,
		Confirmation: s.confirmation,
		Err:          s.err,
		ErrKind:      wallet.KindOf(s.err),
	}
	if s.account != nil {
		acct := *s.account
		acct.Lock = acct.Lock.Clone()
		acct.PublicKey = acct.PublicKey.Clone()
		v.Account = &acct
	}
	return v
}

// moveLocked assigns a state and returns the notification to run once the
// lock is released.
func (s *Session) moveLocked(to State) func() {
	from := s.state
	s.state = to
	hook := s.onTransition
	view := s.viewLocked()
	return func() {
		s.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Session transition")
		if hook != nil {
			hook(from, to, view)
		}
	}
}

// begin takes the command lock without waiting and installs a cancel
// func so Clear can interrupt the command.
func (s *Session) begin(ctx context.Context) (context.Context, func(), error) {
	if !s.cmd.TryLock() {
		return nil, nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cmdCancel = cancel
	s.mu.Unlock()
	return ctx, func() {
		s.mu.Lock()
		s.cmdCancel = nil
		s.mu.Unlock()
		cancel()
		s.cmd.Unlock()
	}, nil
}

// Load derives the identity of keyHex and fetches its balance. Any
// previously loaded key is discarded first. On failure the session ends
// in StateError holding no key.
func (s *Session) Load(ctx context.Context, keyHex string) error {
	ctx, end, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer end()

	s.mu.Lock()
	s.resetLocked()
	s.gen++
	notify := s.moveLocked(StateDeriving)
	s.mu.Unlock()
	notify()

	key, err := crypto.ParsePrivateKeyHex(keyHex)
	if err != nil {
		return s.fail(err, true)
	}
	account, err := wallet.AccountFromKey(s.svc.Params(), key)
	if err != nil {
		key.Zero()
		return s.fail(err, true)
	}

	s.mu.Lock()
	s.key = key
	s.account = account
	s.mu.Unlock()

	balance, err := s.svc.Accountant().BalanceOfLock(ctx, account.Lock)
	if err != nil {
		return s.fail(err, true)
	}
	balance.Address = account.Address

	s.mu.Lock()
	s.balance = balance
	notify = s.moveLocked(StateReady)
	s.mu.Unlock()
	notify()
	s.log.Info().Str("address", account.Address).Str("balance", balance.CKB()).Msg("Account loaded")
	return nil
}

// Refresh re-queries the balance of the loaded account. A failure moves
// the session to StateError but keeps the key so Refresh can be retried.
func (s *Session) Refresh(ctx context.Context) error {
	ctx, end, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer end()

	s.mu.Lock()
	account := s.account
	s.mu.Unlock()
	if account == nil {
		return ErrNotReady
	}

	balance, err := s.svc.Accountant().BalanceOfLock(ctx, account.Lock)
	if err != nil {
		return s.fail(err, false)
	}
	balance.Address = account.Address

	s.mu.Lock()
	s.balance = balance
	s.err = nil
	notify := s.moveLocked(StateReady)
	s.mu.Unlock()
	notify()
	return nil
}

// Transfer sends amountCKB to toAddress from the loaded account. On
// success a background confirmation wait starts; when it reports the
// transaction committed the balance is refreshed. A failed transfer keeps
// the session Ready and is recorded in View.Err.
func (s *Session) Transfer(ctx context.Context, toAddress, amountCKB string) (types.Hash, error) {
	ctx, end, err := s.begin(ctx)
	if err != nil {
		return types.Hash{}, err
	}
	defer end()

	s.mu.Lock()
	if s.state != StateReady || s.key == nil {
		s.mu.Unlock()
		return types.Hash{}, ErrNotReady
	}
	key, gen := s.key, s.gen
	s.mu.Unlock()

	req, err := s.svc.ParseTransfer(toAddress, amountCKB)
	if err == nil {
		var hash types.Hash
		hash, err = s.svc.TransferWithKey(ctx, req, key)
		if err == nil {
			s.startConfirm(hash, gen)
			return hash, nil
		}
	}

	s.mu.Lock()
	s.err = err
	notify := s.moveLocked(StateReady)
	s.mu.Unlock()
	notify()
	return types.Hash{}, err
}

func (s *Session) startConfirm(hash types.Hash, gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.waitCancel != nil {
		s.waitCancel()
	}
	s.waitCancel = cancel
	s.lastTx = hash
	s.confirming = true
	s.confirmation = 0
	s.err = nil
	notify := s.moveLocked(StateReady)
	s.mu.Unlock()
	notify()

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		defer cancel()
		res := <-s.svc.WaitAsync(ctx, hash, s.opts.ConfirmTimeout)
		s.finishConfirm(ctx, gen, res)
	}()
}

func (s *Session) finishConfirm(ctx context.Context, gen uint64, res wallet.ConfirmationResult) {
	s.mu.Lock()
	if s.gen != gen || s.lastTx != res.Hash {
		s.mu.Unlock()
		return
	}
	account := s.account
	s.confirming = false
	s.confirmation = res.Confirmation
	if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
		s.err = res.Err
	}
	s.mu.Unlock()

	if res.Confirmation != wallet.Confirmed || account == nil {
		s.mu.Lock()
		notify := s.moveLocked(s.state)
		s.mu.Unlock()
		notify()
		return
	}

	rctx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
	defer cancel()
	balance, err := s.svc.Accountant().BalanceOfLock(rctx, account.Lock)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Balance refresh after confirmation failed")
		s.err = err
	} else {
		balance.Address = account.Address
		s.balance = balance
	}
	notify := s.moveLocked(s.state)
	s.mu.Unlock()
	notify()
}

// Clear discards the key and account, cancelling any running command and
// confirmation wait.
func (s *Session) Clear() {
	s.mu.Lock()
	if s.cmdCancel != nil {
		s.cmdCancel()
	}
	s.mu.Unlock()

	s.cmd.Lock()
	defer s.cmd.Unlock()

	s.mu.Lock()
	s.resetLocked()
	s.gen++
	notify := s.moveLocked(StateEmpty)
	s.mu.Unlock()
	notify()
}

// Close clears the session and waits for background work to stop.
func (s *Session) Close() {
	s.Clear()
	s.bg.Wait()
}

// Idle waits for background confirmation work to finish. If ctx ends
// first, the running wait is cancelled and Idle returns ctx.Err() once it
// has stopped.
func (s *Session) Idle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	s.mu.Lock()
	if s.waitCancel != nil {
		s.waitCancel()
	}
	s.mu.Unlock()
	<-done
	return ctx.Err()
}

func (s *Session) resetLocked() {
	if s.waitCancel != nil {
		s.waitCancel()
		s.waitCancel = nil
	}
	if s.key != nil {
		s.key.Zero()
		s.key = nil
	}
	s.account = nil
	s.balance = wallet.Balance{}
	s.lastTx = types.Hash{}
	s.confirming = false
	s.confirmation = 0
	s.err = nil
}

// fail records err and moves to StateError. dropKey zeroes and forgets
// the key and account.
func (s *Session) fail(err error, dropKey bool) error {
	s.mu.Lock()
	if dropKey {
		if s.key != nil {
			s.key.Zero()
			s.key = nil
		}
		s.account = nil
		s.balance = wallet.Balance{}
	}
	s.err = err
	notify := s.moveLocked(StateError)
	s.mu.Unlock()
	notify()
	s.log.Warn().Err(err).Str("kind", wallet.KindOf(err).String()).Msg("Session error")
	return err
}
