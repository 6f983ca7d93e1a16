package fees

import (
	"github.com/tonkeeper/tongo/boc"
)

// CellStats aggregates the size of a cell tree.
type CellStats struct {
	Bits  uint64
	Cells uint64
}

func (s CellStats) Add(o CellStats) CellStats {
	return CellStats{Bits: s.Bits + o.Bits, Cells: s.Cells + o.Cells}
}

func (s CellStats) Sub(o CellStats) CellStats {
	return CellStats{Bits: s.Bits - o.Bits, Cells: s.Cells - o.Cells}
}

func (s CellStats) AddBits(n uint64) CellStats {
	s.Bits += n
	return s
}

func (s CellStats) AddCells(n uint64) CellStats {
	s.Cells += n
	return s
}

// Visited is the set of representation hashes already accounted for.
type Visited map[[32]byte]struct{}

// CollectCellStats walks the tree rooted at c. With skipRoot the root itself
// contributes nothing but is still marked as visited. Unless ignoreDedup is
// set, a cell already present in visited contributes nothing and its subtree
// is not walked again.
func CollectCellStats(c *boc.Cell, visited Visited, skipRoot, ignoreDedup bool) (CellStats, error) {
	if c == nil {
		return CellStats{}, nil
	}
	if !ignoreDedup {
		h, err := c.Hash256()
		if err != nil {
			return CellStats{}, err
		}
		if _, ok := visited[h]; ok {
			return CellStats{}, nil
		}
		visited[h] = struct{}{}
	}
	var stats CellStats
	if !skipRoot {
		stats = CellStats{Bits: uint64(c.BitSize()), Cells: 1}
	}
	for _, ref := range c.Refs() {
		s, err := CollectCellStats(ref, visited, false, ignoreDedup)
		if err != nil {
			return CellStats{}, err
		}
		stats = stats.Add(s)
	}
	return stats, nil
}
