package fees

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/boc"
)

var basechainPrices = MsgPrices{
	LumpPrice:      400000,
	BitPrice:       26214400,
	CellPrice:      2621440000,
	IhrPriceFactor: 98304,
	FirstFrac:      21845,
	NextFrac:       21845,
}

func TestForwardFee(t *testing.T) {
	tests := []struct {
		name   string
		prices MsgPrices
		cells  uint64
		bits   uint64
		want   uint64
	}{
		{
			name:   "lump only",
			prices: basechainPrices,
			want:   400000,
		},
		{
			name:   "one cell",
			prices: basechainPrices,
			cells:  1,
			bits:   100,
			want:   480000,
		},
		{
			name:   "remainder rounds up",
			prices: MsgPrices{LumpPrice: 10, BitPrice: 1},
			bits:   1,
			want:   11,
		},
		{
			name:   "exact division is not rounded",
			prices: MsgPrices{LumpPrice: 10, BitPrice: 1},
			bits:   1 << 16,
			want:   11,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ForwardFee(tt.prices, tt.cells, tt.bits))
		})
	}
}

func TestForwardFeeSplit(t *testing.T) {
	fees := ForwardFeeSplit(basechainPrices, 0, 0)
	require.Equal(t, uint64(400000), fees.Total)
	require.Equal(t, uint64(133331), fees.IHR)
	require.Equal(t, uint64(266669), fees.Remaining)
	require.Equal(t, fees.Remaining, DefaultForwardFee(basechainPrices))

	fees = ForwardFeeSplit(basechainPrices, 1, 100)
	require.Equal(t, fees.Total, fees.IHR+fees.Remaining)
	require.Equal(t, uint64(480000*21845>>16), fees.IHR)
}

func TestStorageFee(t *testing.T) {
	prices := StoragePrices{BitPricePs: 1, CellPricePs: 500, McBitPricePs: 1000, McCellPricePs: 500000}
	tests := []struct {
		name        string
		stats       CellStats
		duration    uint32
		masterchain bool
		want        uint64
	}{
		{name: "zero duration", stats: CellStats{Bits: 1000, Cells: 3}, want: 0},
		{name: "rounds up", stats: CellStats{Bits: 1000, Cells: 3}, duration: 100, want: 4},
		{name: "exact", stats: CellStats{Bits: 1 << 16}, duration: 1, want: 1},
		{name: "masterchain", stats: CellStats{Bits: 1000, Cells: 3}, duration: 100, masterchain: true, want: 3815},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, StorageFee(prices, tt.stats, tt.duration, tt.masterchain))
		})
	}
}

func TestMsgPricesCell(t *testing.T) {
	c, err := basechainPrices.ToCell()
	require.Nil(t, err)
	require.Equal(t, 8+64*3+32+16+16, c.BitSize())
	got, err := ParseMsgPrices(c)
	require.Nil(t, err)
	require.Equal(t, basechainPrices, got)

	bad := boc.NewCell()
	require.Nil(t, bad.WriteUint(0xeb, 8))
	_, err = ParseMsgPrices(bad)
	require.NotNil(t, err)
}

func TestStoragePricesCell(t *testing.T) {
	prices := StoragePrices{UtimeSince: 1, BitPricePs: 1, CellPricePs: 500, McBitPricePs: 1000, McCellPricePs: 500000}
	c := boc.NewCell()
	require.Nil(t, prices.WriteTo(c))
	c.ResetCounters()
	got, err := ReadStoragePrices(c)
	require.Nil(t, err)
	require.Equal(t, prices, got)
}
