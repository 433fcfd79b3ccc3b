package wallet

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// ErrNoCells is returned when the sender has no spendable cells at all.
var ErrNoCells = errors.New("no spendable cells")

// SelectOptions tunes the change rules of SelectCells.
type SelectOptions struct {
	// MinChange is the smallest change cell that may be created. Zero
	// means types.MinCellCapacity.
	MinChange uint64
	// MaxDustFold is the largest leftover that may be added to the fee
	// when every cell is consumed and the remainder is too small for a
	// change cell. Zero never folds.
	MaxDustFold uint64
}

func (o SelectOptions) minChange() uint64 {
	if o.MinChange == 0 {
		return types.MinCellCapacity
	}
	return o.MinChange
}

// Selection is the result of cell selection.
type Selection struct {
	Cells  []types.Cell // chosen cells, ascending by capacity
	Total  uint64       // sum of chosen capacities
	Change uint64       // zero, or at least MinChange
	Fee    uint64       // fee estimate plus any folded dust
	Folded uint64       // dust added to the fee
}

// SelectCells picks cells covering target+fee.
//
// Cells are taken ascending by capacity (ties by outpoint) until the total
// covers the requirement with a change of zero or at least MinChange. A
// pruning pass then drops any chosen cell the selection can do without,
// so removing any remaining cell leaves the requirement unmet. When every
// cell is taken and the leftover is still a non-zero amount below
// MinChange, it is folded into the fee if it is at most MaxDustFold;
// otherwise selection fails with an *InsufficientFundsError.
func SelectCells(cells []types.Cell, target, fee uint64, opts SelectOptions) (*Selection, error) {
	if target == 0 {
		return nil, fmt.Errorf("target must be positive")
	}
	required, err := types.AddCapacity(target, fee)
	if err != nil {
		return nil, fmt.Errorf("target plus fee: %w", ErrOverflow)
	}
	minChange := opts.minChange()

	candidates := make([]types.Cell, 0, len(cells))
	var available uint64
	for _, c := range cells {
		if c.Capacity == 0 {
			continue
		}
		if available, err = types.AddCapacity(available, c.Capacity); err != nil {
			return nil, fmt.Errorf("available capacity: %w", ErrOverflow)
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoCells, insufficient(0, required))
	}
	if available < required {
		return nil, insufficient(available, required)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Capacity != candidates[j].Capacity {
			return candidates[i].Capacity < candidates[j].Capacity
		}
		return candidates[i].OutPoint.Less(candidates[j].OutPoint)
	})

	validChange := func(total uint64) bool {
		change := total - required
		return change == 0 || change >= minChange
	}

	var total uint64
	n := 0
	for n < len(candidates) {
		total += candidates[n].Capacity
		n++
		if total >= required && validChange(total) {
			break
		}
	}

	if !validChange(total) {
		// Every cell is taken and the leftover cannot form a change cell.
		leftover := total - required
		if leftover <= opts.MaxDustFold {
			return &Selection{
				Cells:  types.CloneCells(candidates),
				Total:  total,
				Fee:    fee + leftover,
				Folded: leftover,
			}, nil
		}
		return nil, insufficient(available, required+minChange)
	}

	chosen := prune(candidates[:n], total, required, validChange)
	sum := uint64(0)
	for _, c := range chosen {
		sum += c.Capacity
	}
	return &Selection{
		Cells:  types.CloneCells(chosen),
		Total:  sum,
		Change: sum - required,
		Fee:    fee,
	}, nil
}

// prune removes cells, smallest first, while the rest still covers the
// requirement with valid change, repeating until nothing can be removed.
func prune(chosen []types.Cell, total, required uint64, valid func(uint64) bool) []types.Cell {
	out := append([]types.Cell(nil), chosen...)
	for removed := true; removed; {
		removed = false
		for i := 0; i < len(out); i++ {
			rest := total - out[i].Capacity
			if rest >= required && valid(rest) {
				total = rest
				out = append(out[:i], out[i+1:]...)
				removed = true
				break
			}
		}
	}
	return out
}
