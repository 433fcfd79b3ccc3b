package tx

import (
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// Cell-aware validation errors.
var (
	ErrInputNotFound      = errors.New("input cell not found")
	ErrInputOverflow      = errors.New("input capacities overflow")
	ErrOutputsExceedInput = errors.New("outputs exceed inputs")
)

// CellProvider resolves outpoints to live cells for validation.
type CellProvider interface {
	LiveCell(op types.OutPoint) (types.Cell, error)
}

// ResolveInputs looks up every input cell, in input order.
func (tx *Transaction) ResolveInputs(provider CellProvider) ([]types.Cell, error) {
	resolved := make([]types.Cell, len(tx.Inputs))
	for i, in := range tx.Inputs {
		cell, err := provider.LiveCell(in.PreviousOutput)
		if err != nil {
			return nil, fmt.Errorf("input %d (%s): %w: %v", i, in.PreviousOutput, ErrInputNotFound, err)
		}
		resolved[i] = cell
	}
	return resolved, nil
}

// ValidateWithCells performs full validation of a transaction against the
// live cell set: structure, input liveness, witnesses, and inputs >= outputs.
// Returns the fee (inputs - outputs).
func (tx *Transaction) ValidateWithCells(provider CellProvider) (uint64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	resolved, err := tx.ResolveInputs(provider)
	if err != nil {
		return 0, err
	}

	var totalInput uint64
	for i, cell := range resolved {
		if totalInput > math.MaxUint64-cell.Capacity {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		totalInput += cell.Capacity
	}

	if err := tx.VerifyWitnesses(resolved); err != nil {
		return 0, err
	}

	totalOutput, err := tx.TotalOutputCapacity()
	if err != nil {
		return 0, err
	}
	if totalInput < totalOutput {
		return 0, fmt.Errorf("%w: inputs=%d outputs=%d", ErrOutputsExceedInput, totalInput, totalOutput)
	}
	return totalInput - totalOutput, nil
}
