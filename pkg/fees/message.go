package fees

import (
	"errors"
	"fmt"

	"github.com/tonkeeper/tongo/boc"

	"github.com/arnac-io/teleauction/pkg/core"
)

const (
	maxCellBits = 1023
	maxCellRefs = 4
)

// ErrFeeModelDesync means the fee computed here does not match the fee the
// ledger charged. It is never a user error.
var ErrFeeModelDesync = errors.New("forward fee model is out of sync with the ledger")

// Layout tells where the init and body sections of a message are stored.
type Layout struct {
	InitInRef bool
	BodyInRef bool
}

// initWrapped reports whether the ledger moves the init section into a
// separate cell. It does so once two or more of library, code and data are
// present.
func initWrapped(init *core.StateInit) bool {
	return init != nil && init.RefCount() >= 2
}

// initStats accounts for the init section and marks its cells as visited.
// The library dictionary root is billed as part of the init cell.
func initStats(init *core.StateInit, visited Visited) (CellStats, error) {
	var stats CellStats
	if init == nil {
		return stats, nil
	}
	lib, err := CollectCellStats(init.Library, visited, true, false)
	if err != nil {
		return CellStats{}, err
	}
	stats = stats.Add(lib)
	for _, c := range []*boc.Cell{init.Code, init.Data} {
		s, err := CollectCellStats(c, visited, false, false)
		if err != nil {
			return CellStats{}, err
		}
		stats = stats.Add(s)
	}
	if initWrapped(init) {
		stats = stats.AddCells(1).AddBits(init.InlineBits())
	}
	return stats, nil
}

func bodyBits(m *core.Message) uint64 {
	if m.Body == nil {
		return 0
	}
	return uint64(m.Body.BitSize())
}

// MessageLayout decides how a message is packed into cells.
func MessageLayout(m *core.Message) Layout {
	l := Layout{InitInRef: initWrapped(m.Init)}
	bits := m.HeaderBits() + 1 + 1
	refs := 0
	if m.Init != nil {
		bits++
		if l.InitInRef {
			refs++
		} else {
			bits += int(m.Init.InlineBits())
			refs += m.Init.RefCount()
		}
	}
	if m.Body != nil {
		if bits+m.Body.BitSize() > maxCellBits || refs+m.Body.RefsSize() > maxCellRefs {
			l.BodyInRef = true
		}
	}
	return l
}

// ComputeMessageFees prices a message the way the ledger charges it when the
// message is sent.
func ComputeMessageFees(p MsgPrices, m *core.Message) (FwdFees, Layout, error) {
	layout := MessageLayout(m)
	visited := Visited{}
	stats, err := initStats(m.Init, visited)
	if err != nil {
		return FwdFees{}, Layout{}, err
	}
	body, err := CollectCellStats(m.Body, visited, true, false)
	if err != nil {
		return FwdFees{}, Layout{}, err
	}
	stats = stats.Add(body)
	if layout.BodyInRef {
		stats = stats.AddCells(1).AddBits(bodyBits(m))
	}
	return ForwardFeeSplit(p, stats.Cells, stats.Bits), layout, nil
}

// MessageForwardFee reconstructs the fee split of a message from its
// declared forward fee. The layout of the body is not known to a receiver,
// so an inline body is assumed first and a body stored in a separate cell
// is tried once if the declared fee is higher.
func MessageForwardFee(p MsgPrices, m *core.Message) (FwdFees, error) {
	if m.FwdFee == DefaultForwardFee(p) {
		return splitFee(p, p.LumpPrice), nil
	}
	visited := Visited{}
	stats, err := initStats(m.Init, visited)
	if err != nil {
		return FwdFees{}, err
	}
	body, err := CollectCellStats(m.Body, visited, true, false)
	if err != nil {
		return FwdFees{}, err
	}
	stats = stats.Add(body)
	fees := ForwardFeeSplit(p, stats.Cells, stats.Bits)
	if fees.Remaining < m.FwdFee {
		stats = stats.AddCells(1).AddBits(bodyBits(m))
		fees = ForwardFeeSplit(p, stats.Cells, stats.Bits)
	}
	if fees.Remaining != m.FwdFee {
		return FwdFees{}, fmt.Errorf("%w: declared %v, computed %v", ErrFeeModelDesync, m.FwdFee, fees.Remaining)
	}
	return fees, nil
}
