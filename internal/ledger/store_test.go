package ledger

import (
	"errors"
	"testing"

	"github.com/Klingon-tech/cellwallet/internal/storage"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

func cellFor(seed byte, index uint32, capacity uint64, lock types.Lock) types.Cell {
	return types.Cell{
		OutPoint: types.OutPoint{TxHash: types.Hash{seed}, Index: index},
		Capacity: capacity,
		Lock:     lock,
	}
}

func TestCellStore_ApplyAndQuery(t *testing.T) {
	alice, bob := newIdentity(t), newIdentity(t)
	s := NewCellStore(storage.NewMemory())

	a1 := cellFor(1, 0, ckb(100), alice.lock)
	a2 := cellFor(1, 1, ckb(200), alice.lock)
	b1 := cellFor(2, 0, ckb(300), bob.lock)
	if err := s.Apply(Update{Created: []types.Cell{a2, b1, a1}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := s.ByLock(alice.lock)
	if err != nil {
		t.Fatalf("ByLock: %v", err)
	}
	if len(got) != 2 || got[0].OutPoint != a1.OutPoint || got[1].OutPoint != a2.OutPoint {
		t.Fatalf("ByLock(alice) = %+v, want [a1 a2] in outpoint order", got)
	}

	c, err := s.LiveCell(b1.OutPoint)
	if err != nil || c.Capacity != ckb(300) || !c.Lock.Equal(bob.lock) {
		t.Errorf("LiveCell(b1) = %+v, %v", c, err)
	}

	if err := s.Apply(Update{Spent: []types.OutPoint{a1.OutPoint}}); err != nil {
		t.Fatalf("Apply spend: %v", err)
	}
	if _, err := s.LiveCell(a1.OutPoint); !errors.Is(err, ErrCellNotFound) {
		t.Errorf("LiveCell(spent) = %v, want ErrCellNotFound", err)
	}
	got, _ = s.ByLock(alice.lock)
	if len(got) != 1 {
		t.Errorf("ByLock after spend = %d cells, want 1", len(got))
	}
	if n, _ := s.Count(); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	// Spending a missing cell fails and writes nothing.
	err = s.Apply(Update{Spent: []types.OutPoint{a1.OutPoint}, Created: []types.Cell{cellFor(3, 0, ckb(61), bob.lock)}})
	if !errors.Is(err, ErrCellNotFound) {
		t.Errorf("Apply(missing) = %v, want ErrCellNotFound", err)
	}
	if ok, _ := s.Has(types.OutPoint{TxHash: types.Hash{3}}); ok {
		t.Error("failed update should not create cells")
	}
}

func TestCellStore_Commitment(t *testing.T) {
	alice := newIdentity(t)
	s1 := NewCellStore(storage.NewMemory())
	s2 := NewCellStore(storage.NewMemory())

	if h, err := s1.Commitment(); err != nil || !h.IsZero() {
		t.Fatalf("empty Commitment = %s, %v", h, err)
	}

	cells := []types.Cell{cellFor(1, 0, ckb(100), alice.lock), cellFor(1, 1, ckb(200), alice.lock)}
	s1.Apply(Update{Created: cells})
	s2.Apply(Update{Created: []types.Cell{cells[1]}})
	s2.Apply(Update{Created: []types.Cell{cells[0]}})

	h1, _ := s1.Commitment()
	h2, _ := s2.Commitment()
	if h1 != h2 {
		t.Error("commitment should not depend on insertion order")
	}

	s2.Apply(Update{Spent: []types.OutPoint{cells[0].OutPoint}})
	h3, _ := s2.Commitment()
	if h3 == h1 {
		t.Error("commitment should change when a cell is spent")
	}
}
