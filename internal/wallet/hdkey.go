package wallet

import (
	"errors"
	"fmt"

	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
)

// ErrInvalidMnemonic is returned for a phrase failing BIP-39 validation.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// ErrHardenedIndex is returned when an address index would select a
// hardened child.
var ErrHardenedIndex = errors.New("address index must be below 2^31")

// BIP-44 derivation path constants.
// Full path: m/44'/309'/account'/change/index
const (
	PurposeBIP44 = bip32.FirstHardenedChild + 44
	// CoinTypeCKB is the SLIP-44 coin type of CKB.
	CoinTypeCKB = bip32.FirstHardenedChild + 309

	ChangeExternal = 0
	ChangeInternal = 1
)

// MnemonicEntropyBits is the entropy size for 24-word mnemonics.
const MnemonicEntropyBits = 256

// BIP-32 seed length bounds.
const (
	MinSeedSize = 16
	MaxSeedSize = 64
)

// GenerateMnemonic creates a new 24-word BIP-39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(MnemonicEntropyBits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// SeedFromMnemonic derives the BIP-39 seed of a mnemonic and optional
// passphrase.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("derive seed: %w", err)
	}
	return seed, nil
}

// HDKey is a BIP-32 extended private key.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master key from a 16 to 64 byte seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) < MinSeedSize || len(seed) > MaxSeedSize {
		return nil, fmt.Errorf("seed must be %d to %d bytes, got %d", MinSeedSize, MaxSeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// DerivePath derives a key along a sequence of indices. Add
// bip32.FirstHardenedChild to an index for hardened derivation.
func (k *HDKey) DerivePath(indices ...uint32) (*HDKey, error) {
	current := k.key
	for _, idx := range indices {
		child, err := current.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		current = child
	}
	return &HDKey{key: current}, nil
}

// DeriveAccountKey derives the key at m/44'/309'/account'/change/index.
func (k *HDKey) DeriveAccountKey(account, change, index uint32) (*HDKey, error) {
	return k.DerivePath(PurposeBIP44, CoinTypeCKB, bip32.FirstHardenedChild+account, change, index)
}

// Depth returns the derivation depth (0 for master).
func (k *HDKey) Depth() uint8 {
	return k.key.Depth
}

// PrivateKey returns the key as a signing key. The HD key keeps its copy.
func (k *HDKey) PrivateKey() (*crypto.PrivateKey, error) {
	raw := k.key.Key
	// bip32 stores private keys with a leading zero byte.
	if len(raw) == crypto.PrivateKeySize+1 && raw[0] == 0 {
		raw = raw[1:]
	}
	if len(raw) < crypto.PrivateKeySize {
		padded := make([]byte, crypto.PrivateKeySize)
		copy(padded[crypto.PrivateKeySize-len(raw):], raw)
		defer clear(padded)
		raw = padded
	}
	return crypto.PrivateKeyFromBytes(raw)
}

// Zero clears the private key and chain code.
func (k *HDKey) Zero() {
	if k == nil || k.key == nil {
		return
	}
	clear(k.key.Key)
	clear(k.key.ChainCode)
}

// KeyFromMnemonic derives the external key at m/44'/309'/0'/0/index.
// Intermediate seed and extended keys are cleared before returning.
func KeyFromMnemonic(mnemonic, passphrase string, index uint32) (*crypto.PrivateKey, error) {
	if index >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("%w: %d", ErrHardenedIndex, index)
	}
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer clear(seed)

	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	defer master.Zero()

	child, err := master.DeriveAccountKey(0, ChangeExternal, index)
	if err != nil {
		return nil, err
	}
	defer child.Zero()
	return child.PrivateKey()
}
