package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// Wallet errors. Collaborator failures are wrapped into one of these (or
// into the crypto, types and tx sentinels) before reaching the caller.
var (
	ErrIndexUnavailable   = errors.New("cell index unavailable")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrRejectedByNetwork  = errors.New("rejected by network")
	ErrTransferInProgress = errors.New("transfer already in progress for this identity")
	ErrTimedOut           = errors.New("confirmation timed out")
	ErrInvalidHash        = errors.New("invalid transaction hash")

	// ErrOverflow is the capacity overflow raised by balance and selection
	// arithmetic. It is the same value as types.ErrCapacityOverflow.
	ErrOverflow = types.ErrCapacityOverflow
)

// InsufficientFundsError reports how far the spendable cells fall short.
type InsufficientFundsError struct {
	Available uint64
	Required  uint64
	Shortfall uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %s CKB, need %s CKB (short by %s CKB)",
		types.FormatCKB(e.Available), types.FormatCKB(e.Required), types.FormatCKB(e.Shortfall))
}

// Is makes errors.Is(err, ErrInsufficientFunds) match.
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

func insufficient(available, required uint64) error {
	return &InsufficientFundsError{
		Available: available,
		Required:  required,
		Shortfall: required - available,
	}
}

// RejectedError carries the node's reason for refusing a transaction.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "rejected by network: " + e.Reason
}

// Is makes errors.Is(err, ErrRejectedByNetwork) match.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejectedByNetwork
}

// Kind classifies an error for presentation.
type Kind int

const (
	KindNone Kind = iota
	KindInvalidKey
	KindInvalidAddress
	KindInvalidAmount
	KindIndexUnavailable
	KindOverflow
	KindInsufficientFunds
	KindBelowMinimumCapacity
	KindSigningFailed
	KindRejectedByNetwork
	KindTransferInProgress
	KindTimedOut
	KindCanceled
	KindUnknown
)

var kindNames = map[Kind]string{
	KindNone:                 "none",
	KindInvalidKey:           "invalid_key",
	KindInvalidAddress:       "invalid_address",
	KindInvalidAmount:        "invalid_amount",
	KindIndexUnavailable:     "index_unavailable",
	KindOverflow:             "overflow",
	KindInsufficientFunds:    "insufficient_funds",
	KindBelowMinimumCapacity: "below_minimum_capacity",
	KindSigningFailed:        "signing_failed",
	KindRejectedByNetwork:    "rejected_by_network",
	KindTransferInProgress:   "transfer_in_progress",
	KindTimedOut:             "timed_out",
	KindCanceled:             "canceled",
	KindUnknown:              "unknown",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf maps err onto the wallet's error taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, tx.ErrBelowMinimumCapacity):
		return KindBelowMinimumCapacity
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrTransferInProgress):
		return KindTransferInProgress
	case errors.Is(err, ErrRejectedByNetwork):
		return KindRejectedByNetwork
	case errors.Is(err, ErrIndexUnavailable):
		return KindIndexUnavailable
	case errors.Is(err, crypto.ErrInvalidKey):
		return KindInvalidKey
	case errors.Is(err, types.ErrInvalidAddress), errors.Is(err, types.ErrInvalidLock):
		return KindInvalidAddress
	case errors.Is(err, types.ErrInvalidAmount):
		return KindInvalidAmount
	case errors.Is(err, ErrOverflow):
		return KindOverflow
	case errors.Is(err, tx.ErrSigningFailed):
		return KindSigningFailed
	case errors.Is(err, ErrTimedOut):
		return KindTimedOut
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// indexError wraps a cell index failure, leaving cancellation untouched.
func indexError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrIndexUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrIndexUnavailable, op, err)
}
