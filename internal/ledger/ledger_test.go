package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/cellwallet/internal/storage"
	"github.com/Klingon-tech/cellwallet/internal/wallet"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

func TestNew_Genesis(t *testing.T) {
	owner := newIdentity(t)
	db := storage.NewMemory()
	g := testGenesis(owner, ckb(500), ckb(100))
	l := openLedger(t, db, g)

	cells, err := l.LiveCells(context.Background(), owner.lock)
	if err != nil {
		t.Fatalf("LiveCells: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2", len(cells))
	}
	genesisHash, _ := g.Hash()
	if tip := l.Tip(); tip.Number != 0 || tip.Hash != genesisHash {
		t.Errorf("tip = %+v, want genesis", tip)
	}

	// Reopening does not fund twice.
	l2 := openLedger(t, db, g)
	if n, _ := l2.Cells().Count(); n != 2 {
		t.Errorf("cell count after reopen = %d, want 2", n)
	}

	other := testGenesis(owner, ckb(999))
	if _, err := New(db, other, zerolog.Nop()); !errors.Is(err, ErrGenesisMismatch) {
		t.Errorf("New with different genesis = %v, want ErrGenesisMismatch", err)
	}

	bad := testGenesis(owner)
	if _, err := New(db, bad, zerolog.Nop()); err == nil {
		t.Error("expected error for empty allocation")
	}
}

func TestSubmitAndCommit(t *testing.T) {
	ctx := context.Background()
	alice, bob := newIdentity(t), newIdentity(t)
	l := openLedger(t, storage.NewMemory(), testGenesis(alice, ckb(500)))

	cells, _ := l.LiveCells(ctx, alice.lock)
	payment := transfer(t, alice, bob.lock, cells, ckb(100), ckb(1))

	hash, err := l.SubmitTransaction(ctx, payment)
	if err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if hash != payment.Hash() {
		t.Errorf("hash = %s, want %s", hash, payment.Hash())
	}
	if st, _ := l.TransactionStatus(ctx, hash); st != wallet.StatusPending {
		t.Errorf("status = %v, want pending", st)
	}
	// Pending spends are hidden from the sender's live cells.
	if left, _ := l.LiveCells(ctx, alice.lock); len(left) != 0 {
		t.Errorf("alice has %d live cells while spend is pending, want 0", len(left))
	}
	// Resubmission is a no-op.
	if _, err := l.SubmitTransaction(ctx, payment); err != nil {
		t.Errorf("resubmit: %v", err)
	}

	block, err := l.Commit()
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if block == nil || block.Number != 1 || len(block.Transactions) != 1 {
		t.Fatalf("block = %+v, want number 1 with one tx", block)
	}
	if l.Tip().Hash != block.Hash {
		t.Error("tip should follow the committed block")
	}
	if st, _ := l.TransactionStatus(ctx, hash); st != wallet.StatusCommitted {
		t.Errorf("status = %v, want committed", st)
	}
	if _, err := l.SubmitTransaction(ctx, payment); err != nil {
		t.Errorf("resubmit after commit: %v", err)
	}

	bobCells, _ := l.LiveCells(ctx, bob.lock)
	if len(bobCells) != 1 || bobCells[0].Capacity != ckb(100) {
		t.Errorf("bob cells = %+v, want one 100 CKB cell", bobCells)
	}
	aliceCells, _ := l.LiveCells(ctx, alice.lock)
	if len(aliceCells) != 1 || aliceCells[0].Capacity != ckb(399) {
		t.Errorf("alice cells = %+v, want one 399 CKB change cell", aliceCells)
	}

	rec, err := l.Transaction(hash)
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if rec.Status != wallet.StatusCommitted || rec.BlockNumber != 1 || rec.Fee != ckb(1) {
		t.Errorf("record = %+v", rec)
	}

	// Nothing pending: no block.
	if block, err := l.Commit(); block != nil || err != nil {
		t.Errorf("empty Commit = %v, %v", block, err)
	}
}

func TestSubmit_Rejections(t *testing.T) {
	ctx := context.Background()
	alice, bob := newIdentity(t), newIdentity(t)
	l := openLedger(t, storage.NewMemory(), testGenesis(alice, ckb(500), ckb(300)))
	cells, _ := l.LiveCells(ctx, alice.lock)

	first := transfer(t, alice, bob.lock, cells[:1], ckb(100), ckb(1))
	if _, err := l.SubmitTransaction(ctx, first); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Signed by someone who does not own the input.
	stolen := transfer(t, alice, bob.lock, cells[1:], ckb(100), ckb(1))
	stolen.Witnesses[0].PubKey = bob.key.PublicKey()

	tests := []struct {
		name   string
		tx     *tx.Transaction
		reason error
	}{
		{"double spend", transfer(t, alice, bob.lock, cells[:1], ckb(200), ckb(1)), ErrConflict},
		{"fee too low", transfer(t, alice, bob.lock, cells[1:], ckb(100), 1), ErrFeeTooLow},
		{"wrong signer", stolen, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.SubmitTransaction(ctx, tt.tx)
			var rejected *wallet.RejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("error = %v, want *wallet.RejectedError", err)
			}
			if !strings.Contains(rejected.Reason, tt.reason.Error()) {
				t.Errorf("reason = %q, want it to mention %q", rejected.Reason, tt.reason)
			}
		})
	}
}

func TestTransaction_NotFound(t *testing.T) {
	alice := newIdentity(t)
	l := openLedger(t, storage.NewMemory(), testGenesis(alice, ckb(100)))
	if _, err := l.Transaction(types.Hash{1}); !errors.Is(err, ErrTxNotFound) {
		t.Errorf("error = %v, want ErrTxNotFound", err)
	}
	if st, err := l.TransactionStatus(context.Background(), types.Hash{1}); err != nil || st != wallet.StatusUnknown {
		t.Errorf("status = %v, %v, want unknown", st, err)
	}
}

func TestLedger_Cancelled(t *testing.T) {
	alice := newIdentity(t)
	l := openLedger(t, storage.NewMemory(), testGenesis(alice, ckb(100)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.LiveCells(ctx, alice.lock); !errors.Is(err, context.Canceled) {
		t.Errorf("LiveCells = %v, want context.Canceled", err)
	}
}

func TestLedger_BadgerPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	alice, bob := newIdentity(t), newIdentity(t)
	g := testGenesis(alice, ckb(1000))

	db, err := storage.NewBadger(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	l := openLedger(t, db, g)
	cells, _ := l.LiveCells(ctx, alice.lock)
	payment := transfer(t, alice, bob.lock, cells, ckb(250), ckb(1))
	if _, err := l.SubmitTransaction(ctx, payment); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	if _, err := l.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	db.Close()

	db, err = storage.NewBadger(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	l = openLedger(t, db, g)
	if l.Tip().Number != 1 {
		t.Errorf("tip = %d, want 1", l.Tip().Number)
	}
	if st, _ := l.TransactionStatus(ctx, payment.Hash()); st != wallet.StatusCommitted {
		t.Errorf("status after reopen = %v", st)
	}
	bobCells, _ := l.LiveCells(ctx, bob.lock)
	if len(bobCells) != 1 || bobCells[0].Capacity != ckb(250) {
		t.Errorf("bob cells after reopen = %+v", bobCells)
	}
}

// The wallet core runs unchanged against the ledger.
func TestWalletService_AgainstLedger(t *testing.T) {
	ctx := context.Background()
	alice, bob := newIdentity(t), newIdentity(t)
	l := openLedger(t, storage.NewMemory(), testGenesis(alice, ckb(300), ckb(200)))

	svc, err := wallet.NewService(l, wallet.Options{Params: devnet, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	hash, err := svc.TransferWithKey(ctx, wallet.TransferRequest{Recipient: bob.lock, Amount: ckb(100)}, alice.key)
	if err != nil {
		t.Fatalf("TransferWithKey: %v", err)
	}
	if _, err := l.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	res, err := svc.WaitForConfirmation(ctx, hash.String(), 0)
	if err != nil || res != wallet.Confirmed {
		t.Fatalf("WaitForConfirmation = %v, %v", res, err)
	}

	bal, err := svc.GetBalance(ctx, bob.address)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Shannons != ckb(100) {
		t.Errorf("bob balance = %d, want %d", bal.Shannons, ckb(100))
	}
	total, _ := svc.GetBalance(ctx, alice.address)
	if total.Shannons != ckb(500)-ckb(100)-tx.DefaultFixedFee {
		t.Errorf("alice balance = %d", total.Shannons)
	}
}
