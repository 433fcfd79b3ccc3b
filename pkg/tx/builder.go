package tx

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// ErrUnbalanced is returned when inputs do not equal outputs plus fee.
// It indicates a selection bug, never a user error.
var ErrUnbalanced = errors.New("inputs do not equal outputs plus fee")

// Builder constructs transactions incrementally.
type Builder struct {
	tx       *Transaction
	resolved []types.Cell
}

// NewBuilder creates a new transaction builder.
func NewBuilder() *Builder {
	return &Builder{
		tx: &Transaction{Version: Version},
	}
}

// AddCellDep adds a code dependency.
func (b *Builder) AddCellDep(dep CellDep) *Builder {
	b.tx.CellDeps = append(b.tx.CellDeps, dep)
	return b
}

// AddInput consumes a live cell.
func (b *Builder) AddInput(cell types.Cell) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PreviousOutput: cell.OutPoint})
	b.resolved = append(b.resolved, cell.Clone())
	return b
}

// AddOutput adds an empty-data cell with a capacity and lock.
func (b *Builder) AddOutput(capacity uint64, lock types.Lock) *Builder {
	return b.AddOutputWithData(capacity, lock, nil)
}

// AddOutputWithData adds a cell carrying data.
func (b *Builder) AddOutputWithData(capacity uint64, lock types.Lock, data []byte) *Builder {
	b.tx.Outputs = append(b.tx.Outputs, Output{Capacity: capacity, Lock: lock.Clone()})
	b.tx.OutputsData = append(b.tx.OutputsData, types.Bytes(data).Clone())
	return b
}

// Build returns the constructed transaction.
// Does NOT validate; call tx.Validate() separately.
func (b *Builder) Build() *Transaction {
	return b.tx
}

// BuildParams describes a single-recipient transfer.
type BuildParams struct {
	// Inputs are the selected live cells, all owned by the sender.
	Inputs []types.Cell
	// Recipient receives Amount in output 0.
	Recipient types.Lock
	Amount    uint64
	// Sender receives Change in output 1. No change output is created when
	// Change is zero.
	Sender types.Lock
	Change uint64
	// Fee is the implicit difference between inputs and outputs.
	Fee      uint64
	CellDeps []CellDep
}

// Build assembles an unsigned transfer. It requires that every output is at
// least its occupied capacity and that inputs equal amount + change + fee.
func Build(p BuildParams) (*Unsigned, error) {
	if err := p.Recipient.Validate(); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if len(p.Inputs) == 0 {
		return nil, ErrNoInputs
	}

	b := NewBuilder()
	for _, dep := range p.CellDeps {
		b.AddCellDep(dep)
	}

	seen := make(map[types.OutPoint]bool, len(p.Inputs))
	var totalInput uint64
	for i, cell := range p.Inputs {
		if seen[cell.OutPoint] {
			return nil, fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[cell.OutPoint] = true
		sum, err := types.AddCapacity(totalInput, cell.Capacity)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		totalInput = sum
		b.AddInput(cell)
	}

	b.AddOutput(p.Amount, p.Recipient)
	if p.Change > 0 {
		if err := p.Sender.Validate(); err != nil {
			return nil, fmt.Errorf("change: %w", err)
		}
		b.AddOutput(p.Change, p.Sender)
	}

	transaction := b.Build()
	if err := transaction.Validate(); err != nil {
		return nil, err
	}

	required, err := types.SumCapacity(p.Amount, p.Change, p.Fee)
	if err != nil {
		return nil, fmt.Errorf("%w: amount + change + fee", ErrOutputOverflow)
	}
	if totalInput != required {
		return nil, fmt.Errorf("%w: inputs %d, outputs+fee %d", ErrUnbalanced, totalInput, required)
	}

	return &Unsigned{tx: transaction, resolved: b.resolved, fee: p.Fee}, nil
}
