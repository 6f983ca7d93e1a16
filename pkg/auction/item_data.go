package auction

import (
	"fmt"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"

	"github.com/arnac-io/teleauction/pkg/core"
)

const (
	itemCodeTag       = "teleitem"
	collectionCodeTag = "telemint"
)

func codeCell(tag string) *boc.Cell {
	c := boc.NewCell()
	if err := core.WriteText(c, tag); err != nil {
		panic(err)
	}
	return c
}

// ItemCode identifies item accounts. Items are native contracts, the cell
// only has to be stable so that item addresses can be derived from it.
func ItemCode() *boc.Cell {
	return codeCell(itemCodeTag)
}

func CollectionCode() *boc.Cell {
	return codeCell(collectionCodeTag)
}

// ItemInitData is the data an item is deployed with: its index and collection.
func ItemInitData(index ton.Bits256, collection ton.AccountID) (*boc.Cell, error) {
	return itemHeader(index, collection, false)
}

func itemHeader(index ton.Bits256, collection ton.AccountID, inited bool) (*boc.Cell, error) {
	c := boc.NewCell()
	if err := c.WriteBytes(index[:]); err != nil {
		return nil, err
	}
	if err := core.WriteAddress(c, &collection); err != nil {
		return nil, err
	}
	if err := c.WriteBit(inited); err != nil {
		return nil, err
	}
	return c, nil
}

// ItemAddress derives the address of the item with the given index.
func ItemAddress(workchain int32, index ton.Bits256, collection ton.AccountID) (ton.AccountID, error) {
	data, err := ItemInitData(index, collection)
	if err != nil {
		return ton.AccountID{}, err
	}
	return core.StateInit{Code: ItemCode(), Data: data}.Address(workchain)
}

func (it *Item) Data() (*boc.Cell, error) {
	c, err := itemHeader(it.Index, it.Collection, it.Inited)
	if err != nil || !it.Inited {
		return c, err
	}
	state, err := it.stateCell()
	if err != nil {
		return nil, err
	}
	if err := c.AddRef(state); err != nil {
		return nil, err
	}
	return c, nil
}

func (it *Item) stateCell() (*boc.Cell, error) {
	c := boc.NewCell()
	if err := core.WriteAddress(c, it.Owner); err != nil {
		return nil, err
	}
	content := it.Content
	if content == nil {
		content = boc.NewCell()
	}
	info := boc.NewCell()
	if err := core.WriteText(info, it.TokenName); err != nil {
		return nil, err
	}
	if err := core.WriteText(info, it.Domain); err != nil {
		return nil, err
	}
	royalty, err := it.Royalty.ToCell()
	if err != nil {
		return nil, err
	}
	for _, ref := range []*boc.Cell{content, info, royalty} {
		if err := c.AddRef(ref); err != nil {
			return nil, err
		}
	}
	if it.Config.IsZero() {
		return c, c.WriteBit(false)
	}
	if err := c.WriteBit(true); err != nil {
		return nil, err
	}
	auction := boc.NewCell()
	cfg, err := it.Config.ToCell()
	if err != nil {
		return nil, err
	}
	st, err := it.State.ToCell()
	if err != nil {
		return nil, err
	}
	if err := auction.AddRef(cfg); err != nil {
		return nil, err
	}
	if err := auction.AddRef(st); err != nil {
		return nil, err
	}
	return c, c.AddRef(auction)
}

// LoadItem restores an item from its data cell.
func LoadItem(params Params, data *boc.Cell, opts ...ItemOption) (*Item, error) {
	data.ResetCounters()
	raw, err := data.ReadBytes(32)
	if err != nil {
		return nil, fmt.Errorf("item index: %w", err)
	}
	collection, err := core.ReadStdAddress(data)
	if err != nil {
		return nil, fmt.Errorf("item collection: %w", err)
	}
	var index ton.Bits256
	copy(index[:], raw)
	it := NewItem(params, index, collection, opts...)
	inited, err := data.ReadBit()
	if err != nil {
		return nil, err
	}
	if !inited {
		return it, nil
	}
	state, err := data.NextRef()
	if err != nil {
		return nil, err
	}
	if err := it.loadState(state); err != nil {
		return nil, fmt.Errorf("item state: %w", err)
	}
	it.Inited = true
	return it, nil
}

func (it *Item) loadState(c *boc.Cell) error {
	c.ResetCounters()
	owner, err := core.ReadAddress(c)
	if err != nil {
		return err
	}
	it.Owner = owner
	if it.Content, err = c.NextRef(); err != nil {
		return err
	}
	info, err := c.NextRef()
	if err != nil {
		return err
	}
	info.ResetCounters()
	if it.TokenName, err = core.ReadText(info); err != nil {
		return err
	}
	if it.Domain, err = core.ReadText(info); err != nil {
		return err
	}
	royalty, err := c.NextRef()
	if err != nil {
		return err
	}
	if it.Royalty, err = core.ParseRoyaltyParams(royalty); err != nil {
		return err
	}
	hasAuction, err := c.ReadBit()
	if err != nil || !hasAuction {
		return err
	}
	auction, err := c.NextRef()
	if err != nil {
		return err
	}
	auction.ResetCounters()
	cfg, err := auction.NextRef()
	if err != nil {
		return err
	}
	if it.Config, err = core.ParseAuctionConfig(cfg); err != nil {
		return err
	}
	st, err := auction.NextRef()
	if err != nil {
		return err
	}
	it.State, err = core.ParseAuctionState(st)
	return err
}
