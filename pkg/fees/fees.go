package fees

import (
	"math/big"

	"github.com/tonkeeper/tongo/boc"
)

var (
	shift16 = big.NewInt(1 << 16)
	bigOne  = big.NewInt(1)
)

// shr16Ceil divides x by 2^16 rounding up.
func shr16Ceil(x *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(x, shift16, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, bigOne)
	}
	return q
}

func mul(a, b uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
}

// StorageFee is the fee for keeping a state of the given size during
// duration seconds.
func StorageFee(p StoragePrices, stats CellStats, duration uint32, masterchain bool) uint64 {
	bitPrice, cellPrice := p.BitPricePs, p.CellPricePs
	if masterchain {
		bitPrice, cellPrice = p.McBitPricePs, p.McCellPricePs
	}
	total := new(big.Int).Add(mul(stats.Bits, bitPrice), mul(stats.Cells, cellPrice))
	total.Mul(total, new(big.Int).SetUint64(uint64(duration)))
	return shr16Ceil(total).Uint64()
}

// ForwardFee is the full fee of relaying cells and bits beyond the message root.
func ForwardFee(p MsgPrices, cells, bits uint64) uint64 {
	variable := new(big.Int).Add(mul(p.BitPrice, bits), mul(p.CellPrice, cells))
	return p.LumpPrice + shr16Ceil(variable).Uint64()
}

type FwdFees struct {
	Total uint64
	// IHR is the share of Total kept by validators.
	IHR uint64
	// Remaining is what a receiver observes as the declared forward fee.
	Remaining uint64
}

func splitFee(p MsgPrices, total uint64) FwdFees {
	ihr := new(big.Int).Rsh(mul(total, uint64(p.FirstFrac)), 16).Uint64()
	return FwdFees{Total: total, IHR: ihr, Remaining: total - ihr}
}

func ForwardFeeSplit(p MsgPrices, cells, bits uint64) FwdFees {
	return splitFee(p, ForwardFee(p, cells, bits))
}

// DefaultForwardFee is the declared forward fee of a message that has
// nothing but its root cell.
func DefaultForwardFee(p MsgPrices) uint64 {
	return splitFee(p, p.LumpPrice).Remaining
}

// ImportFee is the fee an account pays to accept an inbound external message.
func ImportFee(p MsgPrices, body *boc.Cell) (uint64, error) {
	stats, err := CollectCellStats(body, Visited{}, true, false)
	if err != nil {
		return 0, err
	}
	return ForwardFee(p, stats.Cells, stats.Bits), nil
}
