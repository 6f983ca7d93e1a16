package core

import (
	"fmt"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
)

// AuctionConfig describes one auction of an item. The zero value means
// there is no auction.
type AuctionConfig struct {
	Beneficiary   *ton.AccountID
	MinBid        uint64
	MaxBid        uint64 // 0 means unbounded
	MinBidStep    uint8  // percent
	MinExtendTime uint32 // seconds
	Duration      uint32 // seconds
}

func (c AuctionConfig) IsZero() bool {
	return c == AuctionConfig{}
}

func (c AuctionConfig) ToCell() (*boc.Cell, error) {
	cell := boc.NewCell()
	if err := WriteAddress(cell, c.Beneficiary); err != nil {
		return nil, err
	}
	if err := WriteCoins(cell, c.MinBid); err != nil {
		return nil, err
	}
	if err := WriteCoins(cell, c.MaxBid); err != nil {
		return nil, err
	}
	if err := cell.WriteUint(uint64(c.MinBidStep), 8); err != nil {
		return nil, err
	}
	if err := cell.WriteUint(uint64(c.MinExtendTime), 32); err != nil {
		return nil, err
	}
	if err := cell.WriteUint(uint64(c.Duration), 32); err != nil {
		return nil, err
	}
	return cell, nil
}

func ParseAuctionConfig(cell *boc.Cell) (AuctionConfig, error) {
	cell.ResetCounters()
	var (
		c   AuctionConfig
		err error
	)
	if c.Beneficiary, err = ReadAddress(cell); err != nil {
		return AuctionConfig{}, fmt.Errorf("beneficiary: %w", err)
	}
	if c.MinBid, err = ReadCoins(cell); err != nil {
		return AuctionConfig{}, err
	}
	if c.MaxBid, err = ReadCoins(cell); err != nil {
		return AuctionConfig{}, err
	}
	step, err := cell.ReadUint(8)
	if err != nil {
		return AuctionConfig{}, err
	}
	extend, err := cell.ReadUint(32)
	if err != nil {
		return AuctionConfig{}, err
	}
	duration, err := cell.ReadUint(32)
	if err != nil {
		return AuctionConfig{}, err
	}
	c.MinBidStep = uint8(step)
	c.MinExtendTime = uint32(extend)
	c.Duration = uint32(duration)
	return c, nil
}

// AuctionState is the live bid of an open auction.
type AuctionState struct {
	Bidder     *ton.AccountID
	Bid        uint64
	BidTs      uint32
	MinNextBid uint64
	EndTime    uint32
}

func (s AuctionState) HasBid() bool {
	return s.Bidder != nil
}

func (s AuctionState) ToCell() (*boc.Cell, error) {
	cell := boc.NewCell()
	if err := WriteAddress(cell, s.Bidder); err != nil {
		return nil, err
	}
	if err := WriteCoins(cell, s.Bid); err != nil {
		return nil, err
	}
	if err := cell.WriteUint(uint64(s.BidTs), 32); err != nil {
		return nil, err
	}
	if err := WriteCoins(cell, s.MinNextBid); err != nil {
		return nil, err
	}
	if err := cell.WriteUint(uint64(s.EndTime), 32); err != nil {
		return nil, err
	}
	return cell, nil
}

func ParseAuctionState(cell *boc.Cell) (AuctionState, error) {
	cell.ResetCounters()
	var (
		s   AuctionState
		err error
	)
	if s.Bidder, err = ReadAddress(cell); err != nil {
		return AuctionState{}, fmt.Errorf("bidder: %w", err)
	}
	if s.Bid, err = ReadCoins(cell); err != nil {
		return AuctionState{}, err
	}
	ts, err := cell.ReadUint(32)
	if err != nil {
		return AuctionState{}, err
	}
	if s.MinNextBid, err = ReadCoins(cell); err != nil {
		return AuctionState{}, err
	}
	end, err := cell.ReadUint(32)
	if err != nil {
		return AuctionState{}, err
	}
	s.BidTs = uint32(ts)
	s.EndTime = uint32(end)
	return s, nil
}
