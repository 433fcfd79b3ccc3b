package types

// Cell is a live, unspent output: a capacity owned by a lock, optionally
// carrying data.
type Cell struct {
	OutPoint OutPoint `json:"out_point"`
	Capacity uint64   `json:"capacity"`
	Lock     Lock     `json:"lock"`
	Data     Bytes    `json:"data,omitempty"`
}

// OccupiedCapacity returns the minimum capacity this cell must hold.
func (c Cell) OccupiedCapacity() uint64 {
	return OccupiedCapacity(c.Lock, len(c.Data))
}

// Clone returns a deep copy of the cell.
func (c Cell) Clone() Cell {
	c.Lock = c.Lock.Clone()
	c.Data = c.Data.Clone()
	return c
}

// CloneCells deep-copies a cell slice.
func CloneCells(cells []Cell) []Cell {
	if cells == nil {
		return nil
	}
	out := make([]Cell, len(cells))
	for i, c := range cells {
		out[i] = c.Clone()
	}
	return out
}
