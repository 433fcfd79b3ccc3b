package wallet

import (
	"context"
	"fmt"

	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// Node is the network collaborator: a cell index plus transaction
// submission and status queries. Implementations must be safe for
// concurrent use.
type Node interface {
	// LiveCells returns every unspent cell locked by lock.
	LiveCells(ctx context.Context, lock types.Lock) ([]types.Cell, error)
	// SubmitTransaction hands a signed transaction to the network. A
	// validation refusal is reported as a *RejectedError.
	SubmitTransaction(ctx context.Context, t *tx.Transaction) (types.Hash, error)
	// TransactionStatus reports how far a transaction has progressed.
	TransactionStatus(ctx context.Context, hash types.Hash) (TxStatus, error)
}

// TxStatus is a transaction's inclusion state as seen by the node.
type TxStatus int

const (
	StatusUnknown TxStatus = iota
	StatusPending
	StatusCommitted
)

func (s TxStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s TxStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *TxStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unknown":
		*s = StatusUnknown
	case "pending":
		*s = StatusPending
	case "committed":
		*s = StatusCommitted
	default:
		return fmt.Errorf("unknown tx status %q", text)
	}
	return nil
}
