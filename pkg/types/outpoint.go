package types

import (
	"bytes"
	"fmt"
)

// OutPoint references a specific output (cell) of a transaction.
type OutPoint struct {
	TxHash Hash   `json:"tx_hash"`
	Index  uint32 `json:"index"`
}

// IsZero returns true if the outpoint has a zero tx hash and zero index.
func (o OutPoint) IsZero() bool {
	return o.TxHash.IsZero() && o.Index == 0
}

// String returns "txhash:index" in hex.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxHash.String(), o.Index)
}

// Less orders outpoints by tx hash bytes, then by index.
func (o OutPoint) Less(other OutPoint) bool {
	if c := bytes.Compare(o.TxHash[:], other.TxHash[:]); c != 0 {
		return c < 0
	}
	return o.Index < other.Index
}

// Key returns the 36-byte binary form: tx hash followed by big-endian index.
// Keys sort in the same order as Less.
func (o OutPoint) Key() []byte {
	k := make([]byte, HashSize+4)
	copy(k, o.TxHash[:])
	k[HashSize] = byte(o.Index >> 24)
	k[HashSize+1] = byte(o.Index >> 16)
	k[HashSize+2] = byte(o.Index >> 8)
	k[HashSize+3] = byte(o.Index)
	return k
}
