package types

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxLockArgs bounds the size of lock args accepted anywhere in the wallet.
const MaxLockArgs = 256

// Blake160Size is the length of the default lock's args (a truncated pubkey hash).
const Blake160Size = 20

// ErrInvalidLock is returned by Lock.Validate.
var ErrInvalidLock = errors.New("invalid lock")

// HashType selects how a lock's code hash is matched against on-chain code.
type HashType uint8

const (
	HashTypeData  HashType = 0x00
	HashTypeType  HashType = 0x01
	HashTypeData1 HashType = 0x02
	HashTypeData2 HashType = 0x04
)

// String returns the canonical name of the hash type.
func (ht HashType) String() string {
	switch ht {
	case HashTypeData:
		return "data"
	case HashTypeType:
		return "type"
	case HashTypeData1:
		return "data1"
	case HashTypeData2:
		return "data2"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(ht))
	}
}

// Valid reports whether ht is a known hash type.
func (ht HashType) Valid() bool {
	switch ht {
	case HashTypeData, HashTypeType, HashTypeData1, HashTypeData2:
		return true
	}
	return false
}

// ParseHashType parses the canonical name of a hash type.
func ParseHashType(s string) (HashType, error) {
	switch s {
	case "data":
		return HashTypeData, nil
	case "type":
		return HashTypeType, nil
	case "data1":
		return HashTypeData1, nil
	case "data2":
		return HashTypeData2, nil
	}
	return 0, fmt.Errorf("unknown hash type %q", s)
}

// MarshalJSON encodes the hash type by name.
func (ht HashType) MarshalJSON() ([]byte, error) {
	if !ht.Valid() {
		return nil, fmt.Errorf("unknown hash type %d", uint8(ht))
	}
	return json.Marshal(ht.String())
}

// UnmarshalJSON decodes a hash type name.
func (ht *HashType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHashType(s)
	if err != nil {
		return err
	}
	*ht = parsed
	return nil
}

// Lock is the predicate that owns a cell. Two cells belong to the same
// identity exactly when their locks are equal.
type Lock struct {
	CodeHash Hash     `json:"code_hash"`
	HashType HashType `json:"hash_type"`
	Args     Bytes    `json:"args"`
}

// Equal reports whether two locks are identical.
func (l Lock) Equal(other Lock) bool {
	return l.CodeHash == other.CodeHash &&
		l.HashType == other.HashType &&
		bytes.Equal(l.Args, other.Args)
}

// Validate checks the structural well-formedness of the lock.
func (l Lock) Validate() error {
	if l.CodeHash.IsZero() {
		return fmt.Errorf("%w: zero code hash", ErrInvalidLock)
	}
	if !l.HashType.Valid() {
		return fmt.Errorf("%w: unknown hash type %d", ErrInvalidLock, uint8(l.HashType))
	}
	if len(l.Args) > MaxLockArgs {
		return fmt.Errorf("%w: args length %d exceeds %d", ErrInvalidLock, len(l.Args), MaxLockArgs)
	}
	return nil
}

// Serialize returns the canonical binary form used for hashing:
// code hash, hash type, little-endian args length, args.
func (l Lock) Serialize() []byte {
	buf := make([]byte, 0, HashSize+1+4+len(l.Args))
	buf = append(buf, l.CodeHash[:]...)
	buf = append(buf, byte(l.HashType))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(l.Args)))
	buf = append(buf, l.Args...)
	return buf
}

// Clone returns a deep copy of the lock.
func (l Lock) Clone() Lock {
	l.Args = l.Args.Clone()
	return l
}
