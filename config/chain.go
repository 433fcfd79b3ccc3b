package config

import (
	"fmt"

	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/tx"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// =============================================================================
// Chain Parameters
// =============================================================================

// Address prefixes. They differ from CKB's "ckb"/"ckt" because the default
// lock below is not CKB's secp256k1_blake160 lock: an address from this
// wallet must never be mistaken for one a CKB node can unlock.
const (
	MainnetHRP = "cell"
	TestnetHRP = "tcell"
)

// LockCodeHash identifies the default lock: Schnorr over secp256k1 with
// args = blake3-160(compressed pubkey).
var LockCodeHash = crypto.Hash([]byte("cellwallet/lock/secp256k1-schnorr-blake160"))

// depGroup returns the dep-group outpoint of the default lock on network.
func depGroup(network NetworkType) []tx.CellDep {
	return []tx.CellDep{{
		OutPoint: types.OutPoint{
			TxHash: crypto.Hash([]byte("cellwallet/dep-group/" + string(network))),
			Index:  0,
		},
		DepType: tx.DepTypeDepGroup,
	}}
}

// ChainParams are the per-network constants a wallet needs to build
// transactions. They are not runtime settings.
type ChainParams struct {
	Network NetworkType

	// AddressHRP is the bech32 prefix addresses carry on this network.
	AddressHRP string

	// Default lock script template. Args are filled per identity.
	DefaultCodeHash types.Hash
	DefaultHashType types.HashType

	// CellDeps every transfer spending default-lock cells must reference.
	CellDeps []tx.CellDep
}

var (
	mainnetParams = &ChainParams{
		Network:         Mainnet,
		AddressHRP:      MainnetHRP,
		DefaultCodeHash: LockCodeHash,
		DefaultHashType: types.HashTypeType,
		CellDeps:        depGroup(Mainnet),
	}

	testnetParams = &ChainParams{
		Network:         Testnet,
		AddressHRP:      TestnetHRP,
		DefaultCodeHash: LockCodeHash,
		DefaultHashType: types.HashTypeType,
		CellDeps:        depGroup(Testnet),
	}

	// The devnet shares the testnet prefix so tooling treats it as a
	// non-production network.
	devnetParams = &ChainParams{
		Network:         Devnet,
		AddressHRP:      TestnetHRP,
		DefaultCodeHash: LockCodeHash,
		DefaultHashType: types.HashTypeType,
		CellDeps:        depGroup(Devnet),
	}
)

// ParamsFor returns the chain parameters for a network, or nil when the
// network is unknown. The returned value must not be modified.
func ParamsFor(network NetworkType) *ChainParams {
	switch network {
	case Mainnet:
		return mainnetParams
	case Testnet:
		return testnetParams
	case Devnet:
		return devnetParams
	default:
		return nil
	}
}

// LockForArgs returns the default lock with the given args.
func (p *ChainParams) LockForArgs(args []byte) types.Lock {
	return types.Lock{
		CodeHash: p.DefaultCodeHash,
		HashType: p.DefaultHashType,
		Args:     types.Bytes(args).Clone(),
	}
}

// IsDefaultLock reports whether lock uses the default lock script.
func (p *ChainParams) IsDefaultLock(lock types.Lock) bool {
	return lock.CodeHash == p.DefaultCodeHash && lock.HashType == p.DefaultHashType
}

// ValidateLock checks a lock is structurally valid and, for the default
// lock, that its args are a 20-byte public key hash.
func (p *ChainParams) ValidateLock(lock types.Lock) error {
	if err := lock.Validate(); err != nil {
		return err
	}
	if p.IsDefaultLock(lock) && len(lock.Args) != types.Blake160Size {
		return fmt.Errorf("%w: default lock args must be %d bytes, got %d",
			types.ErrInvalidLock, types.Blake160Size, len(lock.Args))
	}
	return nil
}

// CellDepsCopy returns a copy of the network's cell deps.
func (p *ChainParams) CellDepsCopy() []tx.CellDep {
	return append([]tx.CellDep(nil), p.CellDeps...)
}

// ParseAddress decodes an address and checks it belongs to this network
// and carries a valid lock.
func (p *ChainParams) ParseAddress(s string) (types.Lock, error) {
	addr, err := types.ParseAddress(s)
	if err != nil {
		return types.Lock{}, err
	}
	if addr.HRP != p.AddressHRP {
		return types.Lock{}, fmt.Errorf("%w: prefix %q, want %q",
			types.ErrInvalidAddress, addr.HRP, p.AddressHRP)
	}
	if err := p.ValidateLock(addr.Lock); err != nil {
		return types.Lock{}, err
	}
	return addr.Lock, nil
}

// Address renders lock as an address on this network.
func (p *ChainParams) Address(lock types.Lock) (string, error) {
	return types.NewAddress(p.AddressHRP, lock).Encode()
}
