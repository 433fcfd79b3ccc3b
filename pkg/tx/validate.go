package tx

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// Structural limits.
const (
	MaxInputs     = 2048
	MaxOutputs    = 2048
	MaxCellDeps   = 64
	MaxOutputData = 64 * 1024
)

// Validation errors.
var (
	ErrNoInputs             = errors.New("transaction has no inputs")
	ErrNoOutputs            = errors.New("transaction has no outputs")
	ErrDuplicateInput       = errors.New("duplicate input")
	ErrOutputOverflow       = errors.New("output capacities overflow")
	ErrTooManyInputs        = errors.New("too many inputs")
	ErrTooManyOutputs       = errors.New("too many outputs")
	ErrTooManyCellDeps      = errors.New("too many cell deps")
	ErrOutputDataMismatch   = errors.New("outputs_data length does not match outputs")
	ErrOutputDataTooLarge   = errors.New("output data too large")
	ErrWitnessCountMismatch = errors.New("witness count does not match inputs")
	ErrMissingWitness       = errors.New("lock group missing witness")
	ErrLockMismatch         = errors.New("pubkey does not match lock args")
	ErrInvalidSig           = errors.New("invalid signature")
	ErrBelowMinimumCapacity = errors.New("output below minimum capacity")
)

// BelowMinimumCapacityError reports an output whose capacity cannot cover
// its own occupied size.
type BelowMinimumCapacityError struct {
	Index    int
	Capacity uint64
	Minimum  uint64
}

func (e *BelowMinimumCapacityError) Error() string {
	return fmt.Sprintf("output %d: capacity %s CKB below minimum %s CKB",
		e.Index, types.FormatCKB(e.Capacity), types.FormatCKB(e.Minimum))
}

// Is matches ErrBelowMinimumCapacity.
func (e *BelowMinimumCapacityError) Is(target error) bool {
	return target == ErrBelowMinimumCapacity
}

// CheckOutputCapacity returns a BelowMinimumCapacityError when capacity is
// less than the occupied capacity of a cell with the given lock and data.
func CheckOutputCapacity(index int, capacity uint64, lock types.Lock, dataLen int) error {
	minimum := types.OccupiedCapacity(lock, dataLen)
	if capacity < minimum {
		return &BelowMinimumCapacityError{Index: index, Capacity: capacity, Minimum: minimum}
	}
	return nil
}

// Validate checks transaction structure and basic rules.
// This does NOT check cell liveness (that requires the cell set).
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > MaxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), MaxInputs)
	}
	if len(tx.Outputs) > MaxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), MaxOutputs)
	}
	if len(tx.CellDeps) > MaxCellDeps {
		return fmt.Errorf("%w: %d deps, max %d", ErrTooManyCellDeps, len(tx.CellDeps), MaxCellDeps)
	}
	if len(tx.OutputsData) != len(tx.Outputs) {
		return fmt.Errorf("%w: %d data, %d outputs", ErrOutputDataMismatch, len(tx.OutputsData), len(tx.Outputs))
	}
	if len(tx.Witnesses) != 0 && len(tx.Witnesses) != len(tx.Inputs) {
		return fmt.Errorf("%w: %d witnesses, %d inputs", ErrWitnessCountMismatch, len(tx.Witnesses), len(tx.Inputs))
	}

	seen := make(map[types.OutPoint]bool, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if seen[in.PreviousOutput] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.PreviousOutput] = true
	}

	var totalOutput uint64
	for i, out := range tx.Outputs {
		if err := out.Lock.Validate(); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		if len(tx.OutputsData[i]) > MaxOutputData {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrOutputDataTooLarge, len(tx.OutputsData[i]), MaxOutputData)
		}
		if err := CheckOutputCapacity(i, out.Capacity, out.Lock, len(tx.OutputsData[i])); err != nil {
			return err
		}
		if totalOutput > math.MaxUint64-out.Capacity {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Capacity
	}

	return nil
}

// VerifyWitnesses checks the unlock proof of every lock group. resolved
// holds the consumed cells in input order. The first input of each group
// must carry a pubkey whose Blake160 equals the lock args and a valid
// signature over the transaction hash.
func (tx *Transaction) VerifyWitnesses(resolved []types.Cell) error {
	if len(resolved) != len(tx.Inputs) {
		return fmt.Errorf("resolved %d cells for %d inputs", len(resolved), len(tx.Inputs))
	}
	if len(tx.Witnesses) != len(tx.Inputs) {
		return fmt.Errorf("%w: %d witnesses, %d inputs", ErrWitnessCountMismatch, len(tx.Witnesses), len(tx.Inputs))
	}

	hash := tx.Hash()
	checked := make(map[types.Hash]bool)
	for i, cell := range resolved {
		group := crypto.LockHash(cell.Lock)
		if checked[group] {
			continue
		}
		checked[group] = true

		w := tx.Witnesses[i]
		if w.IsEmpty() {
			return fmt.Errorf("input %d: %w", i, ErrMissingWitness)
		}
		if !bytes.Equal(cell.Lock.Args, crypto.LockArgsFromPubKey(w.PubKey)) {
			return fmt.Errorf("input %d: %w", i, ErrLockMismatch)
		}
		if !crypto.VerifySignature(hash[:], w.Signature, w.PubKey) {
			return fmt.Errorf("input %d: %w", i, ErrInvalidSig)
		}
	}
	return nil
}
