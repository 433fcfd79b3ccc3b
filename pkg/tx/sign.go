package tx

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// ErrSigningFailed is returned when a transaction cannot be signed.
var ErrSigningFailed = errors.New("signing failed")

// Unsigned is a balanced transfer awaiting a signature. It cannot be
// modified after Build; accessors return copies.
type Unsigned struct {
	tx       *Transaction
	resolved []types.Cell
	fee      uint64
}

// Transaction returns a copy of the unsigned transaction.
func (u *Unsigned) Transaction() *Transaction {
	return u.tx.Clone()
}

// ResolvedInputs returns copies of the consumed cells, in input order.
func (u *Unsigned) ResolvedInputs() []types.Cell {
	return types.CloneCells(u.resolved)
}

// Fee returns the implicit fee.
func (u *Unsigned) Fee() uint64 {
	return u.fee
}

// Hash returns the transaction hash that will be signed.
func (u *Unsigned) Hash() types.Hash {
	return u.tx.Hash()
}

// Signed is an unsigned transfer with its witnesses attached.
type Signed struct {
	tx  *Transaction
	fee uint64
}

// Transaction returns a copy of the signed transaction.
func (s *Signed) Transaction() *Transaction {
	return s.tx.Clone()
}

// Hash returns the transaction hash.
func (s *Signed) Hash() types.Hash {
	return s.tx.Hash()
}

// Fee returns the implicit fee.
func (s *Signed) Fee() uint64 {
	return s.fee
}

// Sign attaches one witness per lock group, on the group's first input.
// Every input must be guarded by a lock whose args are the Blake160 of the
// signer's public key.
func Sign(u *Unsigned, signer crypto.Signer) (*Signed, error) {
	if u == nil || u.tx == nil {
		return nil, fmt.Errorf("%w: nil transaction", ErrSigningFailed)
	}

	pubKey := signer.PublicKey()
	args := crypto.LockArgsFromPubKey(pubKey)

	transaction := u.tx.Clone()
	hash := transaction.Hash()
	sig, err := signer.Sign(hash[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	transaction.Witnesses = make([]Witness, len(transaction.Inputs))
	signed := make(map[types.Hash]bool)
	for i, cell := range u.resolved {
		if !bytes.Equal(cell.Lock.Args, args) {
			return nil, fmt.Errorf("%w: input %d is not owned by the signing key", ErrSigningFailed, i)
		}
		group := crypto.LockHash(cell.Lock)
		if signed[group] {
			continue
		}
		signed[group] = true
		transaction.Witnesses[i] = Witness{
			PubKey:    types.Bytes(pubKey).Clone(),
			Signature: types.Bytes(sig).Clone(),
		}
	}

	if err := transaction.VerifyWitnesses(u.resolved); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	return &Signed{tx: transaction, fee: u.fee}, nil
}
