package wallet

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// DefaultPollInterval is the confirmation polling interval when none is
// configured.
const DefaultPollInterval = 3 * time.Second

// Confirmation is the outcome of a confirmation wait.
type Confirmation int

const (
	Confirmed Confirmation = iota + 1
	TimedOut
)

func (c Confirmation) String() string {
	switch c {
	case Confirmed:
		return "confirmed"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Err returns ErrTimedOut for TimedOut and nil otherwise.
func (c Confirmation) Err() error {
	if c == TimedOut {
		return ErrTimedOut
	}
	return nil
}

// ConfirmationResult is delivered by WaitAsync.
type ConfirmationResult struct {
	Hash         types.Hash
	Confirmation Confirmation
	Err          error
}

// Confirmer polls a node until a transaction is committed.
type Confirmer struct {
	node      Node
	interval  time.Duration
	newTicker func(time.Duration) ticker.Ticker
	log       zerolog.Logger
}

// NewConfirmer creates a confirmer polling node every interval.
func NewConfirmer(node Node, interval time.Duration, logger zerolog.Logger) *Confirmer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Confirmer{
		node:     node,
		interval: interval,
		newTicker: func(d time.Duration) ticker.Ticker {
			return ticker.New(d)
		},
		log: logger,
	}
}

// Wait queries the status of hash immediately and then once per interval
// until it is committed or timeout elapses. Status query failures are
// logged and retried. An elapsed timeout is reported as TimedOut with a
// nil error; cancellation of ctx returns ctx.Err().
func (c *Confirmer) Wait(ctx context.Context, hash types.Hash, timeout time.Duration) (Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := c.newTicker(c.interval)
	t.Resume()
	defer t.Stop()

	logger := c.log.With().Str("tx", hash.String()).Logger()
	for attempt := 1; ; attempt++ {
		status, err := c.node.TransactionStatus(waitCtx, hash)
		switch {
		case err != nil && waitCtx.Err() == nil:
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Status query failed, retrying")
		case err == nil && status == StatusCommitted:
			logger.Info().Int("attempt", attempt).Msg("Transaction committed")
			return Confirmed, nil
		case err == nil:
			logger.Debug().Str("status", status.String()).Int("attempt", attempt).Msg("Waiting for commit")
		}

		select {
		case <-waitCtx.Done():
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			logger.Info().Dur("timeout", timeout).Msg("Confirmation timed out")
			return TimedOut, nil
		case <-t.Ticks():
		}
	}
}

// WaitAsync runs Wait in the background. The returned channel receives
// exactly one result and is then closed.
func (c *Confirmer) WaitAsync(ctx context.Context, hash types.Hash, timeout time.Duration) <-chan ConfirmationResult {
	out := make(chan ConfirmationResult, 1)
	go func() {
		defer close(out)
		conf, err := c.Wait(ctx, hash, timeout)
		out <- ConfirmationResult{Hash: hash, Confirmation: conf, Err: err}
	}()
	return out
}
