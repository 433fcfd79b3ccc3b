package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// Pool errors.
var (
	ErrAlreadyExists = errors.New("transaction already in pool")
	ErrConflict      = errors.New("transaction conflicts with a pending transaction")
	ErrPoolFull      = errors.New("pool is full")
	ErrValidation    = errors.New("transaction failed validation")
	ErrFeeTooLow     = errors.New("transaction fee below minimum")
	ErrTooLarge      = errors.New("transaction too large")
)

// DefaultMaxPoolSize bounds the number of pending transactions.
const DefaultMaxPoolSize = 5000

// DefaultMaxTxSize is the largest accepted serialized transaction.
const DefaultMaxTxSize = 100_000

type entry struct {
	tx      *tx.Transaction
	hash    types.Hash
	fee     uint64
	size    int
	feeRate uint64 // shannons per 1000 bytes
	seq     uint64
}

// Pool holds pending transactions.
type Pool struct {
	mu         sync.RWMutex
	txs        map[types.Hash]*entry
	spends     map[types.OutPoint]types.Hash // conflict index
	maxSize    int
	maxTxSize  int
	minFeeRate uint64 // shannons per 1000 bytes, 0 = no minimum
	cells      tx.CellProvider
	seq        uint64
}

// NewPool creates a pool validating inputs against cells.
func NewPool(cells tx.CellProvider, maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxPoolSize
	}
	return &Pool{
		txs:       make(map[types.Hash]*entry),
		spends:    make(map[types.OutPoint]types.Hash),
		maxSize:   maxSize,
		maxTxSize: DefaultMaxTxSize,
		cells:     cells,
	}
}

// SetMinFeeRate sets the minimum fee rate in shannons per 1000 bytes.
func (p *Pool) SetMinFeeRate(rate uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minFeeRate = rate
}

// MinFeeRate returns the minimum fee rate.
func (p *Pool) MinFeeRate() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.minFeeRate
}

// Add validates a transaction against the live cells and adds it.
// Returns the fee it pays.
func (p *Pool) Add(transaction *tx.Transaction) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := transaction.Hash()
	if _, exists := p.txs[hash]; exists {
		return 0, ErrAlreadyExists
	}

	size := transaction.Size()
	if p.maxTxSize > 0 && size > p.maxTxSize {
		return 0, fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, size, p.maxTxSize)
	}

	for _, in := range transaction.Inputs {
		if other, exists := p.spends[in.PreviousOutput]; exists {
			return 0, fmt.Errorf("%w: input %s already spent by %s", ErrConflict, in.PreviousOutput, other)
		}
	}

	fee, err := transaction.ValidateWithCells(p.cells)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	if p.minFeeRate > 0 {
		if required := tx.FeeForSize(size, p.minFeeRate); fee < required {
			return 0, fmt.Errorf("%w: got %d, need %d (%d bytes at %d per KB)", ErrFeeTooLow, fee, required, size, p.minFeeRate)
		}
	}

	rate := fee * 1000 / uint64(size)
	if len(p.txs) >= p.maxSize {
		lowest := p.lowestLocked()
		if lowest == nil || rate <= lowest.feeRate {
			return 0, ErrPoolFull
		}
		p.removeLocked(lowest.hash)
	}

	p.seq++
	p.txs[hash] = &entry{
		tx:      transaction.Clone(),
		hash:    hash,
		fee:     fee,
		size:    size,
		feeRate: rate,
		seq:     p.seq,
	}
	for _, in := range transaction.Inputs {
		p.spends[in.PreviousOutput] = hash
	}
	return fee, nil
}

// Remove drops a transaction by hash.
func (p *Pool) Remove(hash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash types.Hash) {
	e, exists := p.txs[hash]
	if !exists {
		return
	}
	for _, in := range e.tx.Inputs {
		delete(p.spends, in.PreviousOutput)
	}
	delete(p.txs, hash)
}

// Has checks if a transaction is pending.
func (p *Pool) Has(hash types.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, exists := p.txs[hash]
	return exists
}

// Get returns a copy of a pending transaction, or nil.
func (p *Pool) Get(hash types.Hash) *tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, exists := p.txs[hash]
	if !exists {
		return nil
	}
	return e.tx.Clone()
}

// Spent reports whether a pending transaction consumes op.
func (p *Pool) Spent(op types.OutPoint) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, spent := p.spends[op]
	return spent
}

// Count returns the number of pending transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.txs)
}

func (p *Pool) lowestLocked() *entry {
	var lowest *entry
	for _, e := range p.txs {
		if lowest == nil || e.feeRate < lowest.feeRate || (e.feeRate == lowest.feeRate && e.seq > lowest.seq) {
			lowest = e
		}
	}
	return lowest
}

// Select returns up to limit pending transactions, highest fee rate
// first, ties in arrival order. A limit of 0 or less selects all.
func (p *Pool) Select(limit int) []*tx.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*entry, 0, len(p.txs))
	for _, e := range p.txs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].feeRate != entries[j].feeRate {
			return entries[i].feeRate > entries[j].feeRate
		}
		return entries[i].seq < entries[j].seq
	})
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]*tx.Transaction, limit)
	for i := 0; i < limit; i++ {
		out[i] = entries[i].tx.Clone()
	}
	return out
}
