// Package crypto provides the hashing and signing primitives behind
// cell locks: BLAKE3 hashes and Schnorr/secp256k1 signatures.
package crypto

import (
	"github.com/Klingon-tech/cellwallet/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash computes a BLAKE3-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// Blake160 returns the first 20 bytes of Hash(data).
func Blake160(data []byte) []byte {
	h := Hash(data)
	out := make([]byte, types.Blake160Size)
	copy(out, h[:types.Blake160Size])
	return out
}

// LockArgsFromPubKey derives the default lock's args from a compressed
// public key: Blake160(compressed_pubkey).
func LockArgsFromPubKey(pubKey []byte) []byte {
	return Blake160(pubKey)
}

// LockHash identifies a lock by the hash of its canonical serialization.
func LockHash(lock types.Lock) types.Hash {
	return Hash(lock.Serialize())
}
