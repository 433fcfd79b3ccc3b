package ledger

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/cellwallet/config"
	"github.com/Klingon-tech/cellwallet/internal/storage"
	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

var devnet = config.ParamsFor(config.Devnet)

func ckb(n uint64) uint64 { return n * types.ShannonsPerCKB }

type identity struct {
	key     *crypto.PrivateKey
	lock    types.Lock
	address string
}

func newIdentity(t *testing.T) identity {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	lock := devnet.LockForArgs(crypto.LockArgsFromPubKey(key.PublicKey()))
	addr, err := devnet.Address(lock)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	return identity{key: key, lock: lock, address: addr}
}

func testGenesis(owner identity, capacities ...uint64) *config.Genesis {
	g := &config.Genesis{ChainID: "ledger-test", Timestamp: 1, MinFeeRate: 1000}
	for _, c := range capacities {
		g.Alloc = append(g.Alloc, config.Allocation{Address: owner.address, Capacity: c})
	}
	return g
}

func openLedger(t *testing.T, db storage.DB, g *config.Genesis) *Ledger {
	t.Helper()
	l, err := New(db, g, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

// transfer builds and signs a payment of amount from the given cells with
// fee, returning change to the sender.
func transfer(t *testing.T, from identity, to types.Lock, inputs []types.Cell, amount, fee uint64) *tx.Transaction {
	t.Helper()
	var total uint64
	for _, c := range inputs {
		total += c.Capacity
	}
	u, err := tx.Build(tx.BuildParams{
		Inputs:    inputs,
		Recipient: to,
		Amount:    amount,
		Sender:    from.lock,
		Change:    total - amount - fee,
		Fee:       fee,
		CellDeps:  devnet.CellDepsCopy(),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s, err := tx.Sign(u, from.key)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return s.Transaction()
}
