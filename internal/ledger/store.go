// Package ledger is an in-process cell ledger: a live cell store, a pool of
// pending transactions and a block producer that commits them. The devnet
// node serves it over JSON-RPC and tests use it as the wallet's network.
package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/cellwallet/internal/storage"
	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// ErrCellNotFound is returned for an outpoint that is not a live cell.
var ErrCellNotFound = errors.New("cell not found")

// Key prefixes for the cell store.
var (
	prefixCell = []byte("c/") // c/<txhash><index> -> cell JSON
	prefixLock = []byte("l/") // l/<lockhash><txhash><index> -> empty
)

// CellStore holds live cells backed by a storage.DB.
type CellStore struct {
	db storage.DB
}

// NewCellStore creates a cell store over db.
func NewCellStore(db storage.DB) *CellStore {
	return &CellStore{db: db}
}

func cellKey(op types.OutPoint) []byte {
	return append(append([]byte{}, prefixCell...), op.Key()...)
}

func lockPrefix(lockHash types.Hash) []byte {
	return append(append([]byte{}, prefixLock...), lockHash[:]...)
}

func lockKey(lockHash types.Hash, op types.OutPoint) []byte {
	return append(lockPrefix(lockHash), op.Key()...)
}

func outPointFromKey(k []byte) (types.OutPoint, bool) {
	if len(k) != types.HashSize+4 {
		return types.OutPoint{}, false
	}
	var op types.OutPoint
	copy(op.TxHash[:], k[:types.HashSize])
	op.Index = binary.BigEndian.Uint32(k[types.HashSize:])
	return op, true
}

// LiveCell returns the live cell at op. It satisfies tx.CellProvider.
func (s *CellStore) LiveCell(op types.OutPoint) (types.Cell, error) {
	data, err := s.db.Get(cellKey(op))
	if errors.Is(err, storage.ErrNotFound) {
		return types.Cell{}, fmt.Errorf("%w: %s", ErrCellNotFound, op)
	}
	if err != nil {
		return types.Cell{}, fmt.Errorf("cell get: %w", err)
	}
	var c types.Cell
	if err := json.Unmarshal(data, &c); err != nil {
		return types.Cell{}, fmt.Errorf("cell unmarshal: %w", err)
	}
	return c, nil
}

// Has reports whether op is a live cell.
func (s *CellStore) Has(op types.OutPoint) (bool, error) {
	return s.db.Has(cellKey(op))
}

// ByLock returns the live cells guarded by lock, ordered by outpoint.
func (s *CellStore) ByLock(lock types.Lock) ([]types.Cell, error) {
	prefix := lockPrefix(crypto.LockHash(lock))
	var cells []types.Cell
	err := s.db.ForEach(prefix, func(key, _ []byte) error {
		op, ok := outPointFromKey(key[len(prefix):])
		if !ok {
			return nil // Malformed key, skip.
		}
		c, err := s.LiveCell(op)
		if errors.Is(err, ErrCellNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		cells = append(cells, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan lock index: %w", err)
	}
	return cells, nil
}

// ForEach iterates over all live cells in outpoint order.
func (s *CellStore) ForEach(fn func(types.Cell) error) error {
	return s.db.ForEach(prefixCell, func(_, value []byte) error {
		var c types.Cell
		if err := json.Unmarshal(value, &c); err != nil {
			return fmt.Errorf("cell unmarshal: %w", err)
		}
		return fn(c)
	})
}

// Count returns the number of live cells.
func (s *CellStore) Count() (int, error) {
	n := 0
	err := s.db.ForEach(prefixCell, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

// Update describes one atomic change to the live set.
type Update struct {
	Spent   []types.OutPoint
	Created []types.Cell
}

// stage adds the writes for u to b. Spent cells are read first so their
// lock index entry can be removed.
func (s *CellStore) stage(b storage.Batch, u Update) error {
	for _, op := range u.Spent {
		c, err := s.LiveCell(op)
		if err != nil {
			return err
		}
		if err := b.Delete(lockKey(crypto.LockHash(c.Lock), op)); err != nil {
			return err
		}
		if err := b.Delete(cellKey(op)); err != nil {
			return err
		}
	}
	for _, c := range u.Created {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("cell marshal: %w", err)
		}
		if err := b.Put(cellKey(c.OutPoint), data); err != nil {
			return err
		}
		if err := b.Put(lockKey(crypto.LockHash(c.Lock), c.OutPoint), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

// Apply spends and creates cells in a single batch.
func (s *CellStore) Apply(u Update) error {
	b := storage.NewBatch(s.db)
	if err := s.stage(b, u); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("cell apply: %w", err)
	}
	return nil
}

// Commitment hashes the live set: each cell is hashed, the hashes are
// sorted and hashed together. Zero for an empty set.
func (s *CellStore) Commitment() (types.Hash, error) {
	var hashes []types.Hash
	err := s.ForEach(func(c types.Cell) error {
		hashes = append(hashes, hashCell(c))
		return nil
	})
	if err != nil {
		return types.Hash{}, fmt.Errorf("cell commitment: %w", err)
	}
	if len(hashes) == 0 {
		return types.Hash{}, nil
	}
	sort.Slice(hashes, func(i, j int) bool {
		return string(hashes[i][:]) < string(hashes[j][:])
	})
	buf := make([]byte, 0, len(hashes)*types.HashSize)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return crypto.Hash(buf), nil
}

// hashCell: outpoint(36) | capacity(8, LE) | lock | data
func hashCell(c types.Cell) types.Hash {
	var buf []byte
	buf = append(buf, c.OutPoint.Key()...)
	buf = binary.LittleEndian.AppendUint64(buf, c.Capacity)
	buf = append(buf, c.Lock.Serialize()...)
	buf = append(buf, c.Data...)
	return crypto.Hash(buf)
}
