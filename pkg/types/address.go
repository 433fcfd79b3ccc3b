package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Address HRP (human-readable part) constants.
const (
	MainnetHRP = "ckb"
	TestnetHRP = "ckt"
)

// Address payload format tags.
const (
	formatFull     byte = 0x00 // code_hash | hash_type | args, bech32m
	formatShort    byte = 0x01 // deprecated, needs a code hash index table
	formatFullData byte = 0x02 // deprecated full format, hash type "data", bech32
	formatFullType byte = 0x04 // deprecated full format, hash type "type", bech32
)

// ErrInvalidAddress is returned for any address that cannot be decoded.
var ErrInvalidAddress = errors.New("invalid address")

// Address is a lock paired with the network prefix it is rendered for.
type Address struct {
	HRP  string
	Lock Lock
}

// NewAddress returns the address of lock on the network identified by hrp.
func NewAddress(hrp string, lock Lock) Address {
	return Address{HRP: hrp, Lock: lock.Clone()}
}

// Encode renders the address in the full bech32m format.
func (a Address) Encode() (string, error) {
	if err := a.Lock.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	payload := make([]byte, 0, 1+HashSize+1+len(a.Lock.Args))
	payload = append(payload, formatFull)
	payload = append(payload, a.Lock.CodeHash[:]...)
	payload = append(payload, byte(a.Lock.HashType))
	payload = append(payload, a.Lock.Args...)
	s, err := Bech32Encode(Bech32m, a.HRP, payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return s, nil
}

// String returns the encoded address, or an empty string for a malformed lock.
func (a Address) String() string {
	s, err := a.Encode()
	if err != nil {
		return ""
	}
	return s
}

// MarshalJSON encodes the address as a bech32m string.
func (a Address) MarshalJSON() ([]byte, error) {
	s, err := a.Encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// UnmarshalJSON decodes an address string.
func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress decodes a full-format address. The deprecated full formats
// (0x02/0x04 with a bech32 checksum) are also accepted. The short format is
// rejected because it does not carry the code hash.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	hrp, payload, enc, err := Bech32Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(payload) == 0 {
		return Address{}, fmt.Errorf("%w: empty payload", ErrInvalidAddress)
	}

	var lock Lock
	switch payload[0] {
	case formatFull:
		if enc != Bech32m {
			return Address{}, fmt.Errorf("%w: full format requires bech32m", ErrInvalidAddress)
		}
		if len(payload) < 1+HashSize+1 {
			return Address{}, fmt.Errorf("%w: payload too short", ErrInvalidAddress)
		}
		copy(lock.CodeHash[:], payload[1:1+HashSize])
		lock.HashType = HashType(payload[1+HashSize])
		lock.Args = Bytes(payload[2+HashSize:]).Clone()
	case formatFullData, formatFullType:
		if enc != Bech32 {
			return Address{}, fmt.Errorf("%w: deprecated full format requires bech32", ErrInvalidAddress)
		}
		if len(payload) < 1+HashSize {
			return Address{}, fmt.Errorf("%w: payload too short", ErrInvalidAddress)
		}
		copy(lock.CodeHash[:], payload[1:1+HashSize])
		lock.HashType = HashTypeData
		if payload[0] == formatFullType {
			lock.HashType = HashTypeType
		}
		lock.Args = Bytes(payload[1+HashSize:]).Clone()
	case formatShort:
		return Address{}, fmt.Errorf("%w: short format not supported", ErrInvalidAddress)
	default:
		return Address{}, fmt.Errorf("%w: unknown format 0x%02x", ErrInvalidAddress, payload[0])
	}

	if len(lock.Args) == 0 {
		lock.Args = nil
	}
	if err := lock.Validate(); err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address{HRP: hrp, Lock: lock}, nil
}
