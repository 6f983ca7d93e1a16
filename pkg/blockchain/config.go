package blockchain

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/tlb"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/arnac-io/teleauction/pkg/fees"
)

const (
	StoragePricesParam        = 18
	MasterchainMsgPricesParam = 24
	BasechainMsgPricesParam   = 25
	masterchainWorkchain      = -1
)

var ErrParamNotFound = errors.New("config param not found")

// ConfigSource is a read-only store of blockchain config params.
type ConfigSource interface {
	ConfigParam(ctx context.Context, id uint32) (*boc.Cell, error)
}

// StaticConfig keeps serialized config params. Every read returns a fresh
// copy of a cell so callers can move its cursor freely.
type StaticConfig struct {
	params map[uint32][]byte
}

func NewStaticConfig(params map[uint32]*boc.Cell) (*StaticConfig, error) {
	s := &StaticConfig{params: make(map[uint32][]byte, len(params))}
	for id, c := range params {
		raw, err := c.ToBoc()
		if err != nil {
			return nil, fmt.Errorf("param %v: %w", id, err)
		}
		s.params[id] = raw
	}
	return s, nil
}

func StaticConfigFromParams(params tlb.ConfigParams) (*StaticConfig, error) {
	cells := make(map[uint32]*boc.Cell)
	for _, item := range params.Config.Items() {
		cell := item.Value.Value
		cells[uint32(item.Key)] = &cell
	}
	return NewStaticConfig(cells)
}

// StaticConfigFromBase64 decodes a config dictionary encoded as a base64 BOC.
func StaticConfigFromBase64(s string) (*StaticConfig, error) {
	cell, err := boc.DeserializeSinglRootBase64(s)
	if err != nil {
		return nil, err
	}
	var params tlb.ConfigParams
	if err := tlb.Unmarshal(cell, &params.Config); err != nil {
		return nil, err
	}
	return StaticConfigFromParams(params)
}

// Params returns the ids of the stored params in ascending order.
func (s *StaticConfig) Params() []uint32 {
	ids := maps.Keys(s.params)
	slices.Sort(ids)
	return ids
}

func (s *StaticConfig) ConfigParam(ctx context.Context, id uint32) (*boc.Cell, error) {
	raw, ok := s.params[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrParamNotFound, id)
	}
	cells, err := boc.DeserializeBoc(raw)
	if err != nil {
		return nil, err
	}
	return cells[0], nil
}

var (
	DefaultBasechainMsgPrices = fees.MsgPrices{
		LumpPrice:      400000,
		BitPrice:       26214400,
		CellPrice:      2621440000,
		IhrPriceFactor: 98304,
		FirstFrac:      21845,
		NextFrac:       21845,
	}
	DefaultMasterchainMsgPrices = fees.MsgPrices{
		LumpPrice:      10000000,
		BitPrice:       655360000,
		CellPrice:      65536000000,
		IhrPriceFactor: 98304,
		FirstFrac:      21845,
		NextFrac:       21845,
	}
	DefaultStoragePrices = fees.StoragePrices{
		BitPricePs:    1,
		CellPricePs:   500,
		McBitPricePs:  1000,
		McCellPricePs: 500000,
	}
)

// DefaultConfig holds the mainnet prices.
func DefaultConfig() *StaticConfig {
	cfg, err := ConfigWithPrices(DefaultBasechainMsgPrices, DefaultMasterchainMsgPrices, DefaultStoragePrices)
	if err != nil {
		panic(err)
	}
	return cfg
}

// ConfigWithPrices builds a config holding the fee params only.
func ConfigWithPrices(basechain, masterchain fees.MsgPrices, storage fees.StoragePrices) (*StaticConfig, error) {
	bc, err := basechain.ToCell()
	if err != nil {
		return nil, err
	}
	mc, err := masterchain.ToCell()
	if err != nil {
		return nil, err
	}
	st, err := storagePricesDict(storage)
	if err != nil {
		return nil, err
	}
	return NewStaticConfig(map[uint32]*boc.Cell{
		BasechainMsgPricesParam:   bc,
		MasterchainMsgPricesParam: mc,
		StoragePricesParam:        st,
	})
}

// storagePricesDict builds a Hashmap 32 with a single entry under key 0.
func storagePricesDict(p fees.StoragePrices) (*boc.Cell, error) {
	c := boc.NewCell()
	// hml_same$11 v:0 n:32
	if err := c.WriteUint(0b11, 2); err != nil {
		return nil, err
	}
	if err := c.WriteBit(false); err != nil {
		return nil, err
	}
	if err := c.WriteUint(32, 6); err != nil {
		return nil, err
	}
	if err := p.WriteTo(c); err != nil {
		return nil, err
	}
	return c, nil
}
