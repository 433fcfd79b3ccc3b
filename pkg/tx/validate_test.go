package tx

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/cellwallet/pkg/types"
)

func TestValidate_Structure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"no inputs", func(tx *Transaction) { tx.Inputs = nil }, ErrNoInputs},
		{"no outputs", func(tx *Transaction) { tx.Outputs = nil; tx.OutputsData = nil }, ErrNoOutputs},
		{"duplicate input", func(tx *Transaction) { tx.Inputs = append(tx.Inputs, tx.Inputs[0]) }, ErrDuplicateInput},
		{"data mismatch", func(tx *Transaction) { tx.OutputsData = nil }, ErrOutputDataMismatch},
		{"witness mismatch", func(tx *Transaction) { tx.Witnesses = make([]Witness, 3) }, ErrWitnessCountMismatch},
		{"below minimum", func(tx *Transaction) { tx.Outputs[0].Capacity = ckb(61) - 1 }, ErrBelowMinimumCapacity},
		{"data raises minimum", func(tx *Transaction) { tx.Outputs[0].Capacity = ckb(61); tx.OutputsData[0] = []byte{1} }, ErrBelowMinimumCapacity},
		{"invalid lock", func(tx *Transaction) { tx.Outputs[0].Lock.CodeHash = types.Hash{} }, types.ErrInvalidLock},
		{"too many deps", func(tx *Transaction) { tx.CellDeps = make([]CellDep, MaxCellDeps+1) }, ErrTooManyCellDeps},
		{"data too large", func(tx *Transaction) {
			tx.Outputs[0].Capacity = ckb(1_000_000)
			tx.OutputsData[0] = make([]byte, MaxOutputData+1)
		}, ErrOutputDataTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transaction := sampleTx()
			tt.mutate(transaction)
			if err := transaction.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}

	if err := sampleTx().Validate(); err != nil {
		t.Errorf("sample transaction should validate: %v", err)
	}
}

func TestValidateWithCells_Valid(t *testing.T) {
	key, sender := newKey(t)
	_, recipient := newKey(t)
	inputs := []types.Cell{makeCell(1, 0, ckb(300), sender), makeCell(2, 0, ckb(200), sender)}
	signed, err := Sign(buildTransfer(t, sender, recipient, inputs...), key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	fee, err := signed.Transaction().ValidateWithCells(newMockProvider(inputs...))
	if err != nil {
		t.Fatalf("ValidateWithCells: %v", err)
	}
	if fee != DefaultFixedFee {
		t.Errorf("fee = %d, want %d", fee, DefaultFixedFee)
	}
}

func TestValidateWithCells_Errors(t *testing.T) {
	key, sender := newKey(t)
	thief, _ := newKey(t)
	_, recipient := newKey(t)
	input := makeCell(1, 0, ckb(500), sender)
	signed, err := Sign(buildTransfer(t, sender, recipient, input), key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	t.Run("missing input", func(t *testing.T) {
		_, err := signed.Transaction().ValidateWithCells(newMockProvider())
		if !errors.Is(err, ErrInputNotFound) {
			t.Errorf("error = %v, want ErrInputNotFound", err)
		}
	})

	t.Run("unsigned", func(t *testing.T) {
		transaction := signed.Transaction()
		transaction.Witnesses = make([]Witness, len(transaction.Inputs))
		_, err := transaction.ValidateWithCells(newMockProvider(input))
		if !errors.Is(err, ErrMissingWitness) {
			t.Errorf("error = %v, want ErrMissingWitness", err)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		transaction := signed.Transaction()
		hash := transaction.Hash()
		sig, err := thief.Sign(hash[:])
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		transaction.Witnesses[0] = Witness{PubKey: thief.PublicKey(), Signature: sig}
		_, err = transaction.ValidateWithCells(newMockProvider(input))
		if !errors.Is(err, ErrLockMismatch) {
			t.Errorf("error = %v, want ErrLockMismatch", err)
		}
	})

	t.Run("tampered output", func(t *testing.T) {
		transaction := signed.Transaction()
		transaction.Outputs[0].Capacity += ckb(1)
		transaction.Outputs[1].Capacity -= ckb(1)
		_, err := transaction.ValidateWithCells(newMockProvider(input))
		if !errors.Is(err, ErrInvalidSig) {
			t.Errorf("error = %v, want ErrInvalidSig", err)
		}
	})

	t.Run("outputs exceed inputs", func(t *testing.T) {
		small := input
		small.Capacity = ckb(400)
		_, err := signed.Transaction().ValidateWithCells(newMockProvider(small))
		if !errors.Is(err, ErrOutputsExceedInput) {
			t.Errorf("error = %v, want ErrOutputsExceedInput", err)
		}
	})
}
