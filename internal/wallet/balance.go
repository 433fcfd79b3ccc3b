package wallet

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/cellwallet/config"
	"github.com/Klingon-tech/cellwallet/pkg/types"
)

// DefaultBalanceConcurrency bounds parallel index queries in BalanceOfMany.
const DefaultBalanceConcurrency = 8

// Balance is the live capacity held by one lock.
type Balance struct {
	Address string `json:"address"`
	// Shannons is the total capacity of every live cell.
	Shannons uint64 `json:"shannons"`
	// Spendable is the capacity of cells without data, which transfers
	// may consume.
	Spendable uint64 `json:"spendable"`
	Cells     int    `json:"cells"`
}

// CKB returns the total in display units.
func (b Balance) CKB() string {
	return types.FormatCKB(b.Shannons)
}

// Accountant sums live cell capacity per lock. Queries are read-only and
// may run concurrently.
type Accountant struct {
	node        Node
	params      *config.ChainParams
	concurrency int
}

// NewAccountant creates an accountant over node.
func NewAccountant(node Node, params *config.ChainParams) *Accountant {
	return &Accountant{node: node, params: params, concurrency: DefaultBalanceConcurrency}
}

// BalanceOf returns the balance of an address on the accountant's network.
func (a *Accountant) BalanceOf(ctx context.Context, address string) (Balance, error) {
	lock, err := a.params.ParseAddress(address)
	if err != nil {
		return Balance{}, err
	}
	b, err := a.BalanceOfLock(ctx, lock)
	if err != nil {
		return Balance{}, err
	}
	b.Address = address
	return b, nil
}

// BalanceOfLock returns the balance of lock.
func (a *Accountant) BalanceOfLock(ctx context.Context, lock types.Lock) (Balance, error) {
	cells, err := a.node.LiveCells(ctx, lock)
	if err != nil {
		return Balance{}, indexError(ctx, "query live cells", err)
	}
	return sumCells(cells)
}

// BalanceOfMany queries several addresses in parallel. Results keep the
// order of the arguments; the first failure cancels the rest.
func (a *Accountant) BalanceOfMany(ctx context.Context, addresses ...string) ([]Balance, error) {
	balances := make([]Balance, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, addr := range addresses {
		g.Go(func() error {
			b, err := a.BalanceOf(gctx, addr)
			if err != nil {
				return fmt.Errorf("%s: %w", addr, err)
			}
			balances[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return balances, nil
}

func sumCells(cells []types.Cell) (Balance, error) {
	var b Balance
	for _, c := range cells {
		var err error
		if b.Shannons, err = types.AddCapacity(b.Shannons, c.Capacity); err != nil {
			return Balance{}, fmt.Errorf("balance: %w", ErrOverflow)
		}
		if len(c.Data) == 0 {
			// Spendable never exceeds Shannons, so this cannot overflow.
			b.Spendable += c.Capacity
		}
	}
	b.Cells = len(cells)
	return b, nil
}

// spendableCells filters out cells carrying data.
func spendableCells(cells []types.Cell) []types.Cell {
	out := make([]types.Cell, 0, len(cells))
	for _, c := range cells {
		if len(c.Data) == 0 {
			out = append(out, c)
		}
	}
	return out
}
