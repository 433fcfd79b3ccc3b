package tx

import (
	"github.com/Klingon-tech/cellwallet/pkg/crypto"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// DefaultFixedFee is the flat fee charged per transfer: 0.001 CKB.
const DefaultFixedFee uint64 = 100_000

// FeePolicy decides the fee for a transfer. The fee is the larger of Fixed
// and the size-based charge at RatePerKB shannons per 1000 bytes.
type FeePolicy struct {
	Fixed     uint64
	RatePerKB uint64
}

// DefaultFeePolicy charges DefaultFixedFee and no size-based fee.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{Fixed: DefaultFixedFee}
}

// Fee returns the fee for a transfer with the given input and output counts.
func (p FeePolicy) Fee(numInputs, numOutputs int) uint64 {
	fee := p.Fixed
	if p.RatePerKB > 0 {
		if rated := FeeForSize(EstimateSize(numInputs, numOutputs), p.RatePerKB); rated > fee {
			fee = rated
		}
	}
	return fee
}

// FeeForSize charges ratePerKB per 1000 bytes, rounding up.
func FeeForSize(size int, ratePerKB uint64) uint64 {
	return (uint64(size)*ratePerKB + 999) / 1000
}

// EstimateSize returns the serialized size of a single-signer transfer
// with one cell dep, default-lock outputs and no output data.
//
// The estimate follows the SigningBytes and WitnessBytes layouts:
//
//	version(4) + depCount(4) + dep(37) + inputCount(4) + inputs(44*n)
//	+ outputCount(4) + outputs(69*m) + dataCount(4) + witnessCount(4)
//	+ witnesses(8*n) + one signed witness(33+64)
func EstimateSize(numInputs, numOutputs int) int {
	const overhead = 4 + 4 + (types.HashSize + 4 + 1) + 4 + 4 + 4 + 4
	const perInput = types.HashSize + 4 + 8 + 4 + 4
	const perOutput = 8 + types.HashSize + 1 + 4 + types.Blake160Size + 4
	const signature = crypto.PublicKeySize + crypto.SignatureSize

	size := overhead + perInput*numInputs + perOutput*numOutputs
	if numInputs > 0 {
		size += signature
	}
	return size
}

// RequiredFee returns the exact minimum fee for a fully built transaction
// at the given rate (shannons per 1000 bytes of serialized size).
func RequiredFee(transaction *Transaction, ratePerKB uint64) uint64 {
	return FeeForSize(transaction.Size(), ratePerKB)
}
