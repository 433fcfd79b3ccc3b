package ledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/cellwallet/config"
	"github.com/Klingon-tech/cellwallet/internal/storage"
	"github.com/Klingon-tech/cellwallet/internal/wallet"
	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// Ledger errors.
var (
	ErrTxNotFound      = errors.New("transaction not found")
	ErrGenesisMismatch = errors.New("stored genesis does not match")
)

var (
	prefixTx   = []byte("t/") // t/<txhash> -> TxRecord JSON
	keyTip     = []byte("m/tip")
	keyGenesis = []byte("m/genesis")
)

// Tip is the most recently committed block.
type Tip struct {
	Number    uint64     `json:"number"`
	Hash      types.Hash `json:"hash"`
	Timestamp int64      `json:"timestamp"`
}

// Block summarizes a commit.
type Block struct {
	Tip
	Parent       types.Hash   `json:"parent"`
	Transactions []types.Hash `json:"transactions"`
}

// TxRecord is a transaction known to the ledger with its status.
type TxRecord struct {
	Transaction *tx.Transaction `json:"transaction"`
	Status      wallet.TxStatus `json:"status"`
	BlockNumber uint64          `json:"block_number,omitempty"`
	Fee         uint64          `json:"fee,omitempty"`
}

// Ledger is a single-producer cell ledger. It implements wallet.Node.
type Ledger struct {
	mu      sync.Mutex // serializes commits
	db      storage.DB
	cells   *CellStore
	pool    *Pool
	genesis types.Hash
	tip     Tip
	log     zerolog.Logger
	now     func() time.Time
}

// New opens the ledger in db, funding it from genesis on first use. The
// data lives under the genesis chain id so several devnets can share a
// database.
func New(db storage.DB, genesis *config.Genesis, logger zerolog.Logger) (*Ledger, error) {
	if err := genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	genesisHash, err := genesis.Hash()
	if err != nil {
		return nil, fmt.Errorf("genesis hash: %w", err)
	}

	ns := storage.NewPrefixDB(db, []byte(genesis.ChainID+"/"))
	cells := NewCellStore(ns)
	l := &Ledger{
		db:      ns,
		cells:   cells,
		pool:    NewPool(cells, 0),
		genesis: genesisHash,
		log:     logger,
		now:     time.Now,
	}
	l.pool.SetMinFeeRate(genesis.MinFeeRate)

	stored, err := ns.Get(keyGenesis)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := l.initGenesis(genesis); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read genesis: %w", err)
	default:
		var have types.Hash
		copy(have[:], stored)
		if len(stored) != types.HashSize || have != genesisHash {
			return nil, fmt.Errorf("%w: chain %s", ErrGenesisMismatch, genesis.ChainID)
		}
		if err := l.loadTip(); err != nil {
			return nil, err
		}
	}

	l.log.Info().
		Str("chain_id", genesis.ChainID).
		Str("genesis", genesisHash.String()).
		Uint64("tip", l.tip.Number).
		Msg("Ledger opened")
	return l, nil
}

func (l *Ledger) initGenesis(g *config.Genesis) error {
	initial, err := g.Cells()
	if err != nil {
		return fmt.Errorf("genesis cells: %w", err)
	}
	l.tip = Tip{Hash: l.genesis, Timestamp: int64(g.Timestamp)}
	tipData, err := json.Marshal(l.tip)
	if err != nil {
		return err
	}

	b := storage.NewBatch(l.db)
	if err := l.cells.stage(b, Update{Created: initial}); err != nil {
		return err
	}
	b.Put(keyTip, tipData)
	b.Put(keyGenesis, l.genesis[:])
	if err := b.Commit(); err != nil {
		return fmt.Errorf("write genesis: %w", err)
	}
	l.log.Info().Int("cells", len(initial)).Msg("Genesis cells created")
	return nil
}

func (l *Ledger) loadTip() error {
	data, err := l.db.Get(keyTip)
	if err != nil {
		return fmt.Errorf("read tip: %w", err)
	}
	if err := json.Unmarshal(data, &l.tip); err != nil {
		return fmt.Errorf("decode tip: %w", err)
	}
	return nil
}

// Cells returns the live cell store.
func (l *Ledger) Cells() *CellStore { return l.cells }

// Pool returns the pending transaction pool.
func (l *Ledger) Pool() *Pool { return l.pool }

// Genesis returns the genesis hash.
func (l *Ledger) Genesis() types.Hash { return l.genesis }

// Tip returns the latest committed block.
func (l *Ledger) Tip() Tip {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tip
}

// LiveCells returns the committed cells guarded by lock that no pending
// transaction spends.
func (l *Ledger) LiveCells(ctx context.Context, lock types.Lock) ([]types.Cell, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells, err := l.cells.ByLock(lock)
	if err != nil {
		return nil, err
	}
	out := cells[:0]
	for _, c := range cells {
		if !l.pool.Spent(c.OutPoint) {
			out = append(out, c)
		}
	}
	return out, nil
}

// SubmitTransaction adds a signed transaction to the pool. Resubmitting
// a pending or committed transaction is a no-op. Validation failures are
// returned as *wallet.RejectedError.
func (l *Ledger) SubmitTransaction(ctx context.Context, t *tx.Transaction) (types.Hash, error) {
	if err := ctx.Err(); err != nil {
		return types.Hash{}, err
	}
	hash := t.Hash()
	if has, err := l.db.Has(txKey(hash)); err == nil && has {
		return hash, nil
	}
	fee, err := l.pool.Add(t)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		return hash, nil
	case err != nil:
		l.log.Debug().Err(err).Str("tx", hash.String()).Msg("Transaction rejected")
		return types.Hash{}, &wallet.RejectedError{Reason: err.Error()}
	}
	l.log.Info().
		Str("tx", hash.String()).
		Int("inputs", len(t.Inputs)).
		Int("outputs", len(t.Outputs)).
		Uint64("fee", fee).
		Msg("Transaction accepted")
	return hash, nil
}

// TransactionStatus reports pending, committed or unknown.
func (l *Ledger) TransactionStatus(ctx context.Context, hash types.Hash) (wallet.TxStatus, error) {
	if err := ctx.Err(); err != nil {
		return wallet.StatusUnknown, err
	}
	if l.pool.Has(hash) {
		return wallet.StatusPending, nil
	}
	has, err := l.db.Has(txKey(hash))
	if err != nil {
		return wallet.StatusUnknown, err
	}
	if has {
		return wallet.StatusCommitted, nil
	}
	return wallet.StatusUnknown, nil
}

// Transaction returns a pending or committed transaction.
func (l *Ledger) Transaction(hash types.Hash) (*TxRecord, error) {
	if t := l.pool.Get(hash); t != nil {
		return &TxRecord{Transaction: t, Status: wallet.StatusPending}, nil
	}
	data, err := l.db.Get(txKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTxNotFound, hash)
	}
	if err != nil {
		return nil, err
	}
	var rec TxRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode tx: %w", err)
	}
	return &rec, nil
}

// Commit applies every pending transaction as one block. It returns nil
// when nothing is pending.
func (l *Ledger) Commit() (*Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pending := l.pool.Select(0)
	if len(pending) == 0 {
		return nil, nil
	}

	block := &Block{
		Tip:    Tip{Number: l.tip.Number + 1, Timestamp: l.now().Unix()},
		Parent: l.tip.Hash,
	}
	b := storage.NewBatch(l.db)
	for _, t := range pending {
		hash := t.Hash()
		// Pool entries never share inputs and only spend committed cells,
		// so each can be staged against the store independently.
		fee, err := t.ValidateWithCells(l.cells)
		if err != nil {
			l.log.Warn().Err(err).Str("tx", hash.String()).Msg("Dropping invalid pending transaction")
			l.pool.Remove(hash)
			continue
		}
		spent := make([]types.OutPoint, len(t.Inputs))
		for i, in := range t.Inputs {
			spent[i] = in.PreviousOutput
		}
		if err := l.cells.stage(b, Update{Spent: spent, Created: t.OutputCells()}); err != nil {
			return nil, fmt.Errorf("stage %s: %w", hash, err)
		}
		rec, err := json.Marshal(TxRecord{Transaction: t, Status: wallet.StatusCommitted, BlockNumber: block.Number, Fee: fee})
		if err != nil {
			return nil, err
		}
		b.Put(txKey(hash), rec)
		block.Transactions = append(block.Transactions, hash)
	}
	if len(block.Transactions) == 0 {
		return nil, nil
	}

	block.Hash = blockHash(block)
	tipData, err := json.Marshal(block.Tip)
	if err != nil {
		return nil, err
	}
	b.Put(keyTip, tipData)
	if err := b.Commit(); err != nil {
		return nil, fmt.Errorf("commit block %d: %w", block.Number, err)
	}

	for _, h := range block.Transactions {
		l.pool.Remove(h)
	}
	l.tip = block.Tip
	l.log.Info().
		Uint64("number", block.Number).
		Str("hash", block.Hash.String()).
		Int("txs", len(block.Transactions)).
		Msg("Block committed")
	return block, nil
}

func txKey(hash types.Hash) []byte {
	return append(append([]byte{}, prefixTx...), hash[:]...)
}

// blockHash: parent(32) | number(8, LE) | timestamp(8, LE) | tx hashes
func blockHash(b *Block) types.Hash {
	buf := make([]byte, 0, types.HashSize+16+len(b.Transactions)*types.HashSize)
	buf = append(buf, b.Parent[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, b.Number)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(b.Timestamp))
	for _, h := range b.Transactions {
		buf = append(buf, h[:]...)
	}
	return crypto.Hash(buf)
}
