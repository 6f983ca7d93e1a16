package fees

import (
	"fmt"

	"github.com/tonkeeper/tongo/boc"
)

const (
	msgPricesTag     = 0xea
	storagePricesTag = 0xcc
)

// MsgPrices are the forward message prices of one workchain
// (config params 24 and 25).
type MsgPrices struct {
	LumpPrice      uint64
	BitPrice       uint64
	CellPrice      uint64
	IhrPriceFactor uint32
	FirstFrac      uint16
	NextFrac       uint16
}

func ParseMsgPrices(c *boc.Cell) (MsgPrices, error) {
	c.ResetCounters()
	tag, err := c.ReadUint(8)
	if err != nil {
		return MsgPrices{}, err
	}
	if tag != msgPricesTag {
		return MsgPrices{}, fmt.Errorf("invalid msg prices tag: %#x", tag)
	}
	var p MsgPrices
	for _, f := range []*uint64{&p.LumpPrice, &p.BitPrice, &p.CellPrice} {
		if *f, err = c.ReadUint(64); err != nil {
			return MsgPrices{}, err
		}
	}
	ihr, err := c.ReadUint(32)
	if err != nil {
		return MsgPrices{}, err
	}
	first, err := c.ReadUint(16)
	if err != nil {
		return MsgPrices{}, err
	}
	next, err := c.ReadUint(16)
	if err != nil {
		return MsgPrices{}, err
	}
	p.IhrPriceFactor = uint32(ihr)
	p.FirstFrac = uint16(first)
	p.NextFrac = uint16(next)
	return p, nil
}

func (p MsgPrices) ToCell() (*boc.Cell, error) {
	c := boc.NewCell()
	fields := []struct {
		v    uint64
		bits int
	}{
		{msgPricesTag, 8},
		{p.LumpPrice, 64},
		{p.BitPrice, 64},
		{p.CellPrice, 64},
		{uint64(p.IhrPriceFactor), 32},
		{uint64(p.FirstFrac), 16},
		{uint64(p.NextFrac), 16},
	}
	for _, f := range fields {
		if err := c.WriteUint(f.v, f.bits); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// StoragePrices is one entry of config param 18.
type StoragePrices struct {
	UtimeSince    uint32
	BitPricePs    uint64
	CellPricePs   uint64
	McBitPricePs  uint64
	McCellPricePs uint64
}

// ReadStoragePrices loads a storage prices record at the cursor of c.
func ReadStoragePrices(c *boc.Cell) (StoragePrices, error) {
	tag, err := c.ReadUint(8)
	if err != nil {
		return StoragePrices{}, err
	}
	if tag != storagePricesTag {
		return StoragePrices{}, fmt.Errorf("invalid storage prices tag: %#x", tag)
	}
	since, err := c.ReadUint(32)
	if err != nil {
		return StoragePrices{}, err
	}
	p := StoragePrices{UtimeSince: uint32(since)}
	for _, f := range []*uint64{&p.BitPricePs, &p.CellPricePs, &p.McBitPricePs, &p.McCellPricePs} {
		if *f, err = c.ReadUint(64); err != nil {
			return StoragePrices{}, err
		}
	}
	return p, nil
}

func (p StoragePrices) WriteTo(c *boc.Cell) error {
	if err := c.WriteUint(storagePricesTag, 8); err != nil {
		return err
	}
	if err := c.WriteUint(uint64(p.UtimeSince), 32); err != nil {
		return err
	}
	for _, v := range []uint64{p.BitPricePs, p.CellPricePs, p.McBitPricePs, p.McCellPricePs} {
		if err := c.WriteUint(v, 64); err != nil {
			return err
		}
	}
	return nil
}
