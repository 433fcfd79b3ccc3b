package wallet

import (
	"fmt"

	"github.com/Klingon-tech/cellwallet/config"
	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// Account is the on-chain identity derived from a private key.
type Account struct {
	PublicKey types.Bytes `json:"public_key"`
	Lock      types.Lock  `json:"lock"`
	Address   string      `json:"address"`
	LockHash  types.Hash  `json:"lock_hash"`
}

// NewAccount builds the identity of a compressed public key under the
// network's default lock.
func NewAccount(params *config.ChainParams, pubKey []byte) (*Account, error) {
	if len(pubKey) != crypto.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes", crypto.ErrInvalidKey, crypto.PublicKeySize)
	}
	lock := params.LockForArgs(crypto.LockArgsFromPubKey(pubKey))
	addr, err := params.Address(lock)
	if err != nil {
		return nil, err
	}
	return &Account{
		PublicKey: types.Bytes(pubKey).Clone(),
		Lock:      lock,
		Address:   addr,
		LockHash:  crypto.LockHash(lock),
	}, nil
}

// AccountFromKey derives the identity of key. The key is not retained.
func AccountFromKey(params *config.ChainParams, key *crypto.PrivateKey) (*Account, error) {
	if key == nil {
		return nil, crypto.ErrInvalidKey
	}
	return NewAccount(params, key.PublicKey())
}

// DeriveAccount parses a hex private key, derives its identity and clears
// the key before returning.
func DeriveAccount(params *config.ChainParams, keyHex string) (*Account, error) {
	key, err := crypto.ParsePrivateKeyHex(keyHex)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	return AccountFromKey(params, key)
}
