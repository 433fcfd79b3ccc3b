package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// =============================================================================
// Devnet genesis
// =============================================================================

// DevnetKeyHex is the well-known private key funded by the built-in devnet
// genesis. Never use it on a real network.
const DevnetKeyHex = "e79f3207ea4980b7fed79956d5934249ceac4751a4fae01a0f7c4a96884bc4e3"

// Genesis describes the initial cell set of a devnet ledger.
type Genesis struct {
	ChainID   string `json:"chain_id"`
	Timestamp uint64 `json:"timestamp"`

	// MinFeeRate is the pool's minimum fee, shannons per 1000 bytes.
	MinFeeRate uint64 `json:"min_fee_rate"`

	// Alloc lists the initial cells. An address may appear more than once
	// to receive several cells.
	Alloc []Allocation `json:"alloc"`
}

// Allocation is one initial cell.
type Allocation struct {
	Address  string      `json:"address"`
	Capacity uint64      `json:"capacity"`
	Data     types.Bytes `json:"data,omitempty"`
}

// DevnetAddress returns the address of DevnetKeyHex.
func DevnetAddress() string {
	key, err := crypto.ParsePrivateKeyHex(DevnetKeyHex)
	if err != nil {
		panic("config: bad devnet key: " + err.Error())
	}
	defer key.Zero()
	lock := devnetParams.LockForArgs(crypto.LockArgsFromPubKey(key.PublicKey()))
	addr, err := devnetParams.Address(lock)
	if err != nil {
		panic("config: devnet address: " + err.Error())
	}
	return addr
}

// DevnetGenesis returns the built-in devnet genesis. It funds the devnet
// key with one large cell and a few small ones so coin selection has
// something to choose from.
func DevnetGenesis() *Genesis {
	addr := DevnetAddress()
	return &Genesis{
		ChainID:    "cellwallet-devnet",
		Timestamp:  1_700_000_000,
		MinFeeRate: 1_000,
		Alloc: []Allocation{
			{Address: addr, Capacity: 20_000_000 * types.ShannonsPerCKB},
			{Address: addr, Capacity: 1_000 * types.ShannonsPerCKB},
			{Address: addr, Capacity: 500 * types.ShannonsPerCKB},
			{Address: addr, Capacity: 100 * types.ShannonsPerCKB},
			{Address: addr, Capacity: 62 * types.ShannonsPerCKB},
		},
	}
}

// LoadGenesis loads a genesis configuration from a file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}

	var g Genesis
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing genesis file: %w", err)
	}

	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}

	return &g, nil
}

// Save writes the genesis configuration to a file.
func (g *Genesis) Save(path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genesis: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing genesis file: %w", err)
	}

	return nil
}

// Validate checks that the genesis configuration is valid.
func (g *Genesis) Validate() error {
	if g.ChainID == "" {
		return fmt.Errorf("chain_id is required")
	}
	if len(g.Alloc) == 0 {
		return fmt.Errorf("alloc is empty")
	}

	var total uint64
	for i, a := range g.Alloc {
		lock, err := devnetParams.ParseAddress(a.Address)
		if err != nil {
			return fmt.Errorf("alloc[%d]: address %q: %w", i, a.Address, err)
		}
		if err := tx.CheckOutputCapacity(i, a.Capacity, lock, len(a.Data)); err != nil {
			return fmt.Errorf("alloc[%d]: %w", i, err)
		}
		if total, err = types.AddCapacity(total, a.Capacity); err != nil {
			return fmt.Errorf("alloc total: %w", err)
		}
	}

	return nil
}

// Hash returns a BLAKE3 hash of the genesis configuration. It doubles as
// the transaction hash of the genesis cells' outpoints.
func (g *Genesis) Hash() (types.Hash, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return types.Hash{}, err
	}
	return crypto.Hash(data), nil
}

// Cells returns the initial live cells, one per allocation, with outpoints
// (genesis hash, allocation index).
func (g *Genesis) Cells() ([]types.Cell, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	hash, err := g.Hash()
	if err != nil {
		return nil, err
	}
	cells := make([]types.Cell, 0, len(g.Alloc))
	for i, a := range g.Alloc {
		lock, err := devnetParams.ParseAddress(a.Address)
		if err != nil {
			return nil, err
		}
		var data types.Bytes
		if len(a.Data) > 0 {
			data = a.Data.Clone()
		}
		cells = append(cells, types.Cell{
			OutPoint: types.OutPoint{TxHash: hash, Index: uint32(i)},
			Capacity: a.Capacity,
			Lock:     lock,
			Data:     data,
		})
	}
	return cells, nil
}
