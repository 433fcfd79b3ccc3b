package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Klingon-tech/cellwallet/pkg/types"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// Key and signature sizes.
const (
	PrivateKeySize = 32
	PublicKeySize  = 33
	SignatureSize  = 64
)

// ErrInvalidKey is returned for secrets that are not a valid secp256k1 scalar.
var ErrInvalidKey = errors.New("invalid private key")

// Signer signs messages with a private key using Schnorr/secp256k1.
type Signer interface {
	// Sign produces a Schnorr signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
	// PublicKey returns the compressed 33-byte public key.
	PublicKey() []byte
}

// PrivateKey wraps a secp256k1 private key for Schnorr signing.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey creates a new random secp256k1 private key.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes creates a PrivateKey from a 32-byte secret.
// The secret must be a scalar in [1, n-1].
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKey, PrivateKeySize, len(b))
	}
	var scalar secp256k1.ModNScalar
	overflow := scalar.SetByteSlice(b)
	defer scalar.Zero()
	if overflow {
		return nil, fmt.Errorf("%w: scalar not below curve order", ErrInvalidKey)
	}
	if scalar.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&scalar)}, nil
}

// ParsePrivateKeyHex parses a 64-character hex secret with optional 0x prefix.
func ParsePrivateKeyHex(s string) (*PrivateKey, error) {
	s = types.TrimHexPrefix(s)
	if len(s) != 2*PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidKey, 2*PrivateKeySize, len(s))
	}
	var src [2 * PrivateKeySize]byte
	defer clear(src[:])
	copy(src[:], s)
	return parseHexKey(src[:])
}

// ParsePrivateKeyHexBytes is ParsePrivateKeyHex for a secret held in a
// byte slice, which the caller clears. No copy of the secret is made.
func ParsePrivateKeyHexBytes(b []byte) (*PrivateKey, error) {
	if len(b) >= 2 && b[0] == '0' && (b[1] == 'x' || b[1] == 'X') {
		b = b[2:]
	}
	if len(b) != 2*PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d hex characters, got %d", ErrInvalidKey, 2*PrivateKeySize, len(b))
	}
	return parseHexKey(b)
}

func parseHexKey(src []byte) (*PrivateKey, error) {
	var buf [PrivateKeySize]byte
	defer clear(buf[:])
	if _, err := hex.Decode(buf[:], src); err != nil {
		return nil, fmt.Errorf("%w: not hex", ErrInvalidKey)
	}
	return PrivateKeyFromBytes(buf[:])
}

// Sign produces a Schnorr signature over a 32-byte hash.
// The nonce is derived deterministically (RFC 6979).
func (pk *PrivateKey) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	sig, err := schnorr.Sign(pk.key, hash)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKey returns the compressed 33-byte public key.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the 32-byte private key scalar.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero securely zeroes the private key memory.
func (pk *PrivateKey) Zero() {
	if pk == nil || pk.key == nil {
		return
	}
	pk.key.Zero()
}

// VerifySignature checks a Schnorr signature against a 32-byte hash
// and a compressed public key. Returns false on any error.
func VerifySignature(hash, signature, publicKey []byte) bool {
	pubKey, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(hash, pubKey)
}
