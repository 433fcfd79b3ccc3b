package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Denomination constants.
// 1 CKB = 10^8 shannons. All capacities are in shannons.
const (
	Decimals              = 8
	ShannonsPerCKB uint64 = 100_000_000
)

// MinCellCapacity is the occupied capacity of an empty-data cell guarded
// by the default 20-byte-args lock: 61 CKB.
const MinCellCapacity = 61 * ShannonsPerCKB

// Capacity errors.
var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrCapacityOverflow = errors.New("capacity overflow")
)

// OccupiedCapacity returns the minimum capacity a cell guarded by lock and
// carrying dataLen bytes of data must hold: one shannon-per-CKB unit for each
// byte of the capacity field, the lock and the data.
func OccupiedCapacity(lock Lock, dataLen int) uint64 {
	size := 8 + HashSize + 1 + len(lock.Args) + dataLen
	return uint64(size) * ShannonsPerCKB
}

// ParseCKB converts a decimal CKB string (at most 8 fractional digits) to shannons.
func ParseCKB(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("%w: negative amount", ErrInvalidAmount)
	}
	if strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: explicit sign", ErrInvalidAmount)
	}

	parts := strings.SplitN(s, ".", 2)

	whole, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: amount too large", ErrCapacityOverflow)
		}
		return 0, fmt.Errorf("%w: invalid whole part %q", ErrInvalidAmount, parts[0])
	}

	var frac uint64
	if len(parts) == 2 {
		fracStr := parts[1]
		if fracStr == "" {
			return 0, fmt.Errorf("%w: empty fractional part", ErrInvalidAmount)
		}
		if len(fracStr) > Decimals {
			return 0, fmt.Errorf("%w: too many decimal places (max %d)", ErrInvalidAmount, Decimals)
		}
		// Pad to Decimals digits.
		fracStr = fracStr + strings.Repeat("0", Decimals-len(fracStr))
		frac, err = strconv.ParseUint(fracStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid fractional part %q", ErrInvalidAmount, parts[1])
		}
	}

	if whole > math.MaxUint64/ShannonsPerCKB {
		return 0, fmt.Errorf("%w: amount too large", ErrCapacityOverflow)
	}
	result := whole * ShannonsPerCKB
	if result > math.MaxUint64-frac {
		return 0, fmt.Errorf("%w: amount too large", ErrCapacityOverflow)
	}
	return result + frac, nil
}

// FormatCKB renders shannons as a decimal CKB string with trailing
// fractional zeros removed ("500", "0.001").
func FormatCKB(shannons uint64) string {
	whole := shannons / ShannonsPerCKB
	frac := shannons % ShannonsPerCKB
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fracStr := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")
	return strconv.FormatUint(whole, 10) + "." + fracStr
}

// AddCapacity returns a+b or ErrCapacityOverflow.
func AddCapacity(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrCapacityOverflow
	}
	return a + b, nil
}

// SumCapacity adds all values, failing on overflow.
func SumCapacity(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		var err error
		if total, err = AddCapacity(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}
