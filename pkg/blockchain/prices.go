package blockchain

import (
	"context"
	"fmt"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/tlb"

	"github.com/arnac-io/teleauction/pkg/fees"
)

// MsgPrices reads the forward prices of a workchain.
func MsgPrices(ctx context.Context, src ConfigSource, workchain int32) (fees.MsgPrices, error) {
	id := uint32(BasechainMsgPricesParam)
	if workchain == masterchainWorkchain {
		id = MasterchainMsgPricesParam
	}
	c, err := src.ConfigParam(ctx, id)
	if err != nil {
		return fees.MsgPrices{}, err
	}
	return fees.ParseMsgPrices(c)
}

// StoragePrices reads the storage prices currently in effect, the last entry
// of config param 18.
func StoragePrices(ctx context.Context, src ConfigSource) (fees.StoragePrices, error) {
	c, err := src.ConfigParam(ctx, StoragePricesParam)
	if err != nil {
		return fees.StoragePrices{}, err
	}
	var dict tlb.Hashmap[tlb.Uint32, tlb.Any]
	if err := tlb.Unmarshal(c, &dict); err != nil {
		return fees.StoragePrices{}, fmt.Errorf("storage prices: %w", err)
	}
	items := dict.Items()
	if len(items) == 0 {
		return fees.StoragePrices{}, fmt.Errorf("storage prices: %w", ErrParamNotFound)
	}
	last := boc.Cell(items[len(items)-1].Value)
	return fees.ReadStoragePrices(&last)
}

// Prices is the snapshot of fee params used for one transaction.
type Prices struct {
	Workchain int32
	Msg       fees.MsgPrices
	Storage   fees.StoragePrices
}

func LoadPrices(ctx context.Context, src ConfigSource, workchain int32) (Prices, error) {
	msg, err := MsgPrices(ctx, src, workchain)
	if err != nil {
		return Prices{}, err
	}
	storage, err := StoragePrices(ctx, src)
	if err != nil {
		return Prices{}, err
	}
	return Prices{Workchain: workchain, Msg: msg, Storage: storage}, nil
}

func (p Prices) StorageFee(stats fees.CellStats, duration uint32) uint64 {
	return fees.StorageFee(p.Storage, stats, duration, p.Workchain == masterchainWorkchain)
}
