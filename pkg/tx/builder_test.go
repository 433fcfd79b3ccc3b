package tx

import (
	"errors"
	"math"
	"testing"

	"github.com/Klingon-tech/cellwallet/pkg/types"
)

func TestBuild_TransferWithChange(t *testing.T) {
	_, sender := newKey(t)
	_, recipient := newKey(t)

	unsigned, err := Build(BuildParams{
		Inputs:    []types.Cell{makeCell(1, 0, ckb(500), sender)},
		Recipient: recipient,
		Amount:    ckb(100),
		Sender:    sender,
		Change:    ckb(399),
		Fee:       ckb(1),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	transaction := unsigned.Transaction()
	if len(transaction.Outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(transaction.Outputs))
	}
	if transaction.Outputs[0].Capacity != ckb(100) || !transaction.Outputs[0].Lock.Equal(recipient) {
		t.Errorf("output 0 = %+v", transaction.Outputs[0])
	}
	if transaction.Outputs[1].Capacity != ckb(399) || !transaction.Outputs[1].Lock.Equal(sender) {
		t.Errorf("output 1 = %+v", transaction.Outputs[1])
	}
	if unsigned.Fee() != ckb(1) {
		t.Errorf("Fee() = %d", unsigned.Fee())
	}
	if len(transaction.Witnesses) != 0 {
		t.Error("unsigned transaction should carry no witnesses")
	}
}

func TestBuild_NoChange(t *testing.T) {
	_, sender := newKey(t)
	_, recipient := newKey(t)

	unsigned, err := Build(BuildParams{
		Inputs:    []types.Cell{makeCell(1, 0, ckb(100)+DefaultFixedFee, sender)},
		Recipient: recipient,
		Amount:    ckb(100),
		Sender:    sender,
		Fee:       DefaultFixedFee,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n := len(unsigned.Transaction().Outputs); n != 1 {
		t.Errorf("outputs = %d, want 1", n)
	}
}

func TestBuild_Errors(t *testing.T) {
	_, sender := newKey(t)
	_, recipient := newKey(t)
	cell := makeCell(1, 0, ckb(500), sender)

	tests := []struct {
		name   string
		params BuildParams
		want   error
	}{
		{
			name:   "no inputs",
			params: BuildParams{Recipient: recipient, Amount: ckb(100), Sender: sender},
			want:   ErrNoInputs,
		},
		{
			name:   "invalid recipient",
			params: BuildParams{Inputs: []types.Cell{cell}, Amount: ckb(499), Fee: ckb(1)},
			want:   types.ErrInvalidLock,
		},
		{
			name:   "duplicate input",
			params: BuildParams{Inputs: []types.Cell{cell, cell}, Recipient: recipient, Amount: ckb(999), Fee: ckb(1)},
			want:   ErrDuplicateInput,
		},
		{
			name:   "recipient below minimum",
			params: BuildParams{Inputs: []types.Cell{cell}, Recipient: recipient, Amount: ckb(60), Sender: sender, Change: ckb(439), Fee: ckb(1)},
			want:   ErrBelowMinimumCapacity,
		},
		{
			name:   "change below minimum",
			params: BuildParams{Inputs: []types.Cell{cell}, Recipient: recipient, Amount: ckb(439), Sender: sender, Change: ckb(60), Fee: ckb(1)},
			want:   ErrBelowMinimumCapacity,
		},
		{
			name:   "unbalanced",
			params: BuildParams{Inputs: []types.Cell{cell}, Recipient: recipient, Amount: ckb(100), Sender: sender, Change: ckb(300), Fee: ckb(1)},
			want:   ErrUnbalanced,
		},
		{
			name:   "amount overflow",
			params: BuildParams{Inputs: []types.Cell{cell}, Recipient: recipient, Amount: math.MaxUint64, Sender: sender, Change: ckb(100), Fee: ckb(1)},
			want:   ErrOutputOverflow,
		},
		{
			name: "input overflow",
			params: BuildParams{
				Inputs:    []types.Cell{makeCell(1, 0, math.MaxUint64, sender), makeCell(2, 0, 1, sender)},
				Recipient: recipient, Amount: ckb(100), Fee: ckb(1),
			},
			want: ErrInputOverflow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.params)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Build error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuild_BelowMinimumReportsIndex(t *testing.T) {
	_, sender := newKey(t)
	_, recipient := newKey(t)

	_, err := Build(BuildParams{
		Inputs:    []types.Cell{makeCell(1, 0, ckb(500), sender)},
		Recipient: recipient,
		Amount:    ckb(439),
		Sender:    sender,
		Change:    ckb(60),
		Fee:       ckb(1),
	})
	var below *BelowMinimumCapacityError
	if !errors.As(err, &below) {
		t.Fatalf("error = %v, want BelowMinimumCapacityError", err)
	}
	if below.Index != 1 || below.Capacity != ckb(60) || below.Minimum != types.MinCellCapacity {
		t.Errorf("got %+v", below)
	}
}

func TestBuild_UnsignedIsImmutable(t *testing.T) {
	_, sender := newKey(t)
	_, recipient := newKey(t)
	inputs := []types.Cell{makeCell(1, 0, ckb(500), sender)}

	unsigned, err := Build(BuildParams{
		Inputs: inputs, Recipient: recipient, Amount: ckb(100),
		Sender: sender, Change: ckb(399), Fee: ckb(1),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	hash := unsigned.Hash()

	inputs[0].Capacity = 1
	inputs[0].Lock.Args[0] ^= 0xff
	view := unsigned.Transaction()
	view.Outputs[0].Capacity = 1
	resolved := unsigned.ResolvedInputs()
	resolved[0].Capacity = 7

	if unsigned.Hash() != hash {
		t.Error("mutating views changed the unsigned transaction")
	}
	if unsigned.ResolvedInputs()[0].Capacity != ckb(500) {
		t.Error("mutating views changed the resolved inputs")
	}
}

func TestBuilder_Fluent(t *testing.T) {
	_, lock := newKey(t)
	transaction := NewBuilder().
		AddCellDep(CellDep{DepType: DepTypeCode}).
		AddInput(makeCell(1, 0, ckb(100), lock)).
		AddOutput(ckb(61), lock).
		AddOutputWithData(ckb(70), lock, []byte{1, 2, 3}).
		Build()

	if len(transaction.CellDeps) != 1 || len(transaction.Inputs) != 1 || len(transaction.Outputs) != 2 {
		t.Fatalf("unexpected shape: %+v", transaction)
	}
	if len(transaction.OutputsData) != 2 || len(transaction.OutputsData[1]) != 3 {
		t.Errorf("outputs data = %v", transaction.OutputsData)
	}
	if err := transaction.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
