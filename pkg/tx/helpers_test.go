package tx

import (
	"fmt"
	"testing"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

var testCodeHash = types.MustHexToHash("9bd7e06f3ecf4be0f2fcd2188b23f1b9fcc88e5d4b65a8637b17723bbda3cce8")

func ckb(n uint64) uint64 { return n * types.ShannonsPerCKB }

func lockFor(pubKey []byte) types.Lock {
	return types.Lock{
		CodeHash: testCodeHash,
		HashType: types.HashTypeType,
		Args:     crypto.LockArgsFromPubKey(pubKey),
	}
}

func newKey(t *testing.T) (*crypto.PrivateKey, types.Lock) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return key, lockFor(key.PublicKey())
}

func makeCell(seed byte, index uint32, capacity uint64, lock types.Lock) types.Cell {
	return types.Cell{
		OutPoint: types.OutPoint{TxHash: types.Hash{seed}, Index: index},
		Capacity: capacity,
		Lock:     lock,
	}
}

// mockCellProvider is a simple in-memory live cell set.
type mockCellProvider struct {
	cells map[types.OutPoint]types.Cell
}

func newMockProvider(cells ...types.Cell) *mockCellProvider {
	m := &mockCellProvider{cells: make(map[types.OutPoint]types.Cell)}
	for _, c := range cells {
		m.cells[c.OutPoint] = c
	}
	return m
}

func (m *mockCellProvider) LiveCell(op types.OutPoint) (types.Cell, error) {
	c, ok := m.cells[op]
	if !ok {
		return types.Cell{}, fmt.Errorf("not found")
	}
	return c, nil
}
