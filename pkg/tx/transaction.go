// Package tx defines cell transactions, their construction, signing and
// validation.
package tx

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// Version is the only transaction version produced.
const Version uint32 = 0

// DepType says how a cell dep is loaded.
type DepType uint8

const (
	DepTypeCode     DepType = 0x00
	DepTypeDepGroup DepType = 0x01
)

// String returns the canonical dep type name.
func (d DepType) String() string {
	switch d {
	case DepTypeCode:
		return "code"
	case DepTypeDepGroup:
		return "dep_group"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}

// MarshalJSON encodes the dep type by name.
func (d DepType) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a dep type name.
func (d *DepType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "code":
		*d = DepTypeCode
	case "dep_group":
		*d = DepTypeDepGroup
	default:
		return fmt.Errorf("unknown dep type %q", s)
	}
	return nil
}

// CellDep references a cell holding code the transaction's locks run.
type CellDep struct {
	OutPoint types.OutPoint `json:"out_point"`
	DepType  DepType        `json:"dep_type"`
}

// Input references a live cell being consumed.
type Input struct {
	PreviousOutput types.OutPoint `json:"previous_output"`
	Since          uint64         `json:"since"`
}

// Output defines a new cell.
type Output struct {
	Capacity uint64     `json:"capacity"`
	Lock     types.Lock `json:"lock"`
}

// Witness carries the unlock proof for a lock group. Inputs other than the
// first of their group carry an empty witness.
type Witness struct {
	PubKey    types.Bytes `json:"pubkey,omitempty"`
	Signature types.Bytes `json:"signature,omitempty"`
}

// IsEmpty reports whether the witness carries no proof.
func (w Witness) IsEmpty() bool {
	return len(w.PubKey) == 0 && len(w.Signature) == 0
}

// Transaction consumes input cells and creates output cells.
type Transaction struct {
	Version     uint32        `json:"version"`
	CellDeps    []CellDep     `json:"cell_deps"`
	Inputs      []Input       `json:"inputs"`
	Outputs     []Output      `json:"outputs"`
	OutputsData []types.Bytes `json:"outputs_data"`
	Witnesses   []Witness     `json:"witnesses"`
}

// Hash computes the transaction hash (BLAKE3 of the signing bytes).
// Witnesses are excluded so the hash can be signed.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for hashing.
// Format: version(4) | dep_count(4) | [tx_hash(32) index(4) dep_type(1)]...
// | input_count(4) | [tx_hash(32) index(4) since(8)]...
// | output_count(4) | [capacity(8) lock]... | data_count(4) | [len(4) data]...
func (tx *Transaction) SigningBytes() []byte {
	var buf []byte

	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.CellDeps)))
	for _, dep := range tx.CellDeps {
		buf = append(buf, dep.OutPoint.TxHash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, dep.OutPoint.Index)
		buf = append(buf, byte(dep.DepType))
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PreviousOutput.TxHash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PreviousOutput.Index)
		buf = binary.LittleEndian.AppendUint64(buf, in.Since)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Capacity)
		buf = append(buf, out.Lock.Serialize()...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.OutputsData)))
	for _, data := range tx.OutputsData {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
		buf = append(buf, data...)
	}

	return buf
}

// WitnessBytes returns the serialized witness section:
// count(4) | [pubkey_len(4) pubkey sig_len(4) sig]...
func (tx *Transaction) WitnessBytes() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Witnesses)))
	for _, w := range tx.Witnesses {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.PubKey)))
		buf = append(buf, w.PubKey...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.Signature)))
		buf = append(buf, w.Signature...)
	}
	return buf
}

// Size returns the full serialized size in bytes, witnesses included.
func (tx *Transaction) Size() int {
	return len(tx.SigningBytes()) + len(tx.WitnessBytes())
}

// TotalOutputCapacity returns the sum of all output capacities.
// Returns an error if the sum overflows uint64.
func (tx *Transaction) TotalOutputCapacity() (uint64, error) {
	var total uint64
	for _, out := range tx.Outputs {
		if total > math.MaxUint64-out.Capacity {
			return 0, ErrOutputOverflow
		}
		total += out.Capacity
	}
	return total, nil
}

// Clone returns a deep copy of the transaction.
func (tx *Transaction) Clone() *Transaction {
	out := &Transaction{Version: tx.Version}
	if tx.CellDeps != nil {
		out.CellDeps = append([]CellDep(nil), tx.CellDeps...)
	}
	if tx.Inputs != nil {
		out.Inputs = append([]Input(nil), tx.Inputs...)
	}
	if tx.Outputs != nil {
		out.Outputs = make([]Output, len(tx.Outputs))
		for i, o := range tx.Outputs {
			out.Outputs[i] = Output{Capacity: o.Capacity, Lock: o.Lock.Clone()}
		}
	}
	if tx.OutputsData != nil {
		out.OutputsData = make([]types.Bytes, len(tx.OutputsData))
		for i, d := range tx.OutputsData {
			out.OutputsData[i] = d.Clone()
		}
	}
	if tx.Witnesses != nil {
		out.Witnesses = make([]Witness, len(tx.Witnesses))
		for i, w := range tx.Witnesses {
			out.Witnesses[i] = Witness{PubKey: w.PubKey.Clone(), Signature: w.Signature.Clone()}
		}
	}
	return out
}

// OutputCells returns the cells this transaction creates.
func (tx *Transaction) OutputCells() []types.Cell {
	hash := tx.Hash()
	cells := make([]types.Cell, len(tx.Outputs))
	for i, out := range tx.Outputs {
		cells[i] = types.Cell{
			OutPoint: types.OutPoint{TxHash: hash, Index: uint32(i)},
			Capacity: out.Capacity,
			Lock:     out.Lock.Clone(),
		}
		if i < len(tx.OutputsData) && len(tx.OutputsData[i]) > 0 {
			cells[i].Data = tx.OutputsData[i].Clone()
		}
	}
	return cells
}
