package auction

import (
	"math/big"

	"github.com/shopspring/decimal"
	"github.com/tonkeeper/tongo/ton"

	"github.com/arnac-io/teleauction/pkg/core"
)

const (
	day = 24 * 60 * 60

	// notificationValue is attached to the ownership notification of a won auction.
	notificationValue = 1
)

// Params are the economic knobs shared by a collection and its items.
type Params struct {
	// MinStorageReserve is the balance an item never gives away.
	MinStorageReserve uint64
	// MinBidIncrement is the smallest raise over the current bid.
	MinBidIncrement uint64
	// DeployReserve is withheld from the deploying bid to fund the new item.
	DeployReserve uint64
	MaxDuration   uint32
	MaxExtendTime uint32
	Workchain     int32
}

func DefaultParams() Params {
	return Params{
		MinStorageReserve: 30_000_000,
		MinBidIncrement:   uint64(ton.OneTON),
		DeployReserve:     30_000_000,
		MaxDuration:       365 * day,
		MaxExtendTime:     7 * day,
	}
}

// ValidateConfig checks an auction config before it is installed on an item.
func (p Params) ValidateConfig(c core.AuctionConfig) error {
	switch {
	case c.Beneficiary == nil:
	case c.MinBid < 2*p.MinStorageReserve:
	case c.MaxBid != 0 && c.MaxBid < c.MinBid:
	case c.MinBidStep == 0:
	case c.MinExtendTime > p.MaxExtendTime:
	case c.Duration == 0 || c.Duration > p.MaxDuration:
	default:
		return nil
	}
	return core.ErrInvalidAuctionConfig
}

// NextBid is the smallest bid that can outbid current: the step percentage
// rounded up, but never less than increment above current.
func NextBid(current uint64, stepPercent uint8, increment uint64) uint64 {
	cur := decimal.NewFromBigInt(new(big.Int).SetUint64(current), 0)
	candidate := cur.Mul(decimal.NewFromInt(100 + int64(stepPercent))).
		Div(decimal.NewFromInt(100)).
		Ceil().
		BigInt()
	floor := current + increment
	if candidate.IsUint64() && candidate.Uint64() > floor {
		return candidate.Uint64()
	}
	return floor
}
