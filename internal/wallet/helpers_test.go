package wallet

import (
	"context"
	"encoding/hex"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/cellwallet/config"
	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

var testParams = config.ParamsFor(config.Testnet)

func ckb(n uint64) uint64 { return n * types.ShannonsPerCKB }

// fakeNode is an in-memory cell index. Submitted transactions consume
// their inputs and create their outputs immediately.
type fakeNode struct {
	mu        sync.Mutex
	cells     map[types.OutPoint]types.Cell
	submitted []*tx.Transaction
	statuses  map[types.Hash]TxStatus
	nextTx    byte

	liveErr   error
	submitErr error
	// statusErrs makes the first n status queries fail.
	statusErrs int
	// commitAfter reports every transaction committed from the n-th
	// status query on.
	commitAfter int

	liveCalls   int
	statusCalls int

	// beforeLive runs at the start of LiveCells, outside the mutex.
	beforeLive func()
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		cells:    make(map[types.OutPoint]types.Cell),
		statuses: make(map[types.Hash]TxStatus),
	}
}

// fund creates one cell per capacity for lock.
func (f *fakeNode) fund(lock types.Lock, capacities ...uint64) []types.Cell {
	return f.fundWithData(lock, nil, capacities...)
}

func (f *fakeNode) fundWithData(lock types.Lock, data []byte, capacities ...uint64) []types.Cell {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTx++
	out := make([]types.Cell, 0, len(capacities))
	for i, c := range capacities {
		cell := types.Cell{
			OutPoint: types.OutPoint{TxHash: types.Hash{0xfe, f.nextTx}, Index: uint32(i)},
			Capacity: c,
			Lock:     lock.Clone(),
			Data:     types.Bytes(data).Clone(),
		}
		f.cells[cell.OutPoint] = cell
		out = append(out, cell)
	}
	return out
}

func (f *fakeNode) LiveCells(ctx context.Context, lock types.Lock) ([]types.Cell, error) {
	if f.beforeLive != nil {
		f.beforeLive()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveCalls++
	if f.liveErr != nil {
		return nil, f.liveErr
	}
	var out []types.Cell
	for _, c := range f.cells {
		if c.Lock.Equal(lock) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (f *fakeNode) SubmitTransaction(ctx context.Context, t *tx.Transaction) (types.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return types.Hash{}, f.submitErr
	}
	for _, in := range t.Inputs {
		if _, ok := f.cells[in.PreviousOutput]; !ok {
			return types.Hash{}, &RejectedError{Reason: "input " + in.PreviousOutput.String() + " is not live"}
		}
	}
	hash := t.Hash()
	for _, in := range t.Inputs {
		delete(f.cells, in.PreviousOutput)
	}
	for _, c := range t.OutputCells() {
		f.cells[c.OutPoint] = c
	}
	f.submitted = append(f.submitted, t.Clone())
	f.statuses[hash] = StatusPending
	return hash, nil
}

func (f *fakeNode) TransactionStatus(ctx context.Context, hash types.Hash) (TxStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErrs > 0 {
		f.statusErrs--
		return StatusUnknown, errTransport
	}
	if f.commitAfter > 0 && f.statusCalls >= f.commitAfter {
		return StatusCommitted, nil
	}
	return f.statuses[hash], nil
}

func (f *fakeNode) setStatus(hash types.Hash, s TxStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[hash] = s
}

func (f *fakeNode) counts() (live, status, submitted int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.liveCalls, f.statusCalls, len(f.submitted)
}

func (f *fakeNode) lastSubmitted() *tx.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.submitted) == 0 {
		return nil
	}
	return f.submitted[len(f.submitted)-1]
}

type transportError struct{}

func (transportError) Error() string { return "connection refused" }

var errTransport error = transportError{}

// testIdentity is a fresh key with its hex encoding and account.
type testIdentity struct {
	key     *crypto.PrivateKey
	hex     string
	account *Account
}

func newIdentity(t *testing.T) testIdentity {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	acct, err := AccountFromKey(testParams, key)
	if err != nil {
		t.Fatalf("AccountFromKey: %v", err)
	}
	return testIdentity{key: key, hex: hex.EncodeToString(key.Serialize()), account: acct}
}

func newTestService(t *testing.T, node Node, mutate func(*Options)) *Service {
	t.Helper()
	opts := Options{
		Params: testParams,
		Fee:    tx.FeePolicy{Fixed: ckb(1)},
		Logger: zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewService(node, opts)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func sumInputs(t *testing.T, transaction *tx.Transaction, resolved map[types.OutPoint]types.Cell) uint64 {
	t.Helper()
	var total uint64
	for _, in := range transaction.Inputs {
		c, ok := resolved[in.PreviousOutput]
		if !ok {
			t.Fatalf("input %s not among funded cells", in.PreviousOutput)
		}
		total += c.Capacity
	}
	return total
}

func cellIndex(cells ...[]types.Cell) map[types.OutPoint]types.Cell {
	m := make(map[types.OutPoint]types.Cell)
	for _, set := range cells {
		for _, c := range set {
			m[c.OutPoint] = c
		}
	}
	return m
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
