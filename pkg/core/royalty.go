package core

import (
	"errors"
	"fmt"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
)

type RoyaltyParams struct {
	Factor      uint16
	Base        uint16
	Destination ton.AccountID
}

// Amount returns the royalty cut of value, rounded down.
func (p RoyaltyParams) Amount(value uint64) uint64 {
	if p.Base == 0 || p.Factor == 0 {
		return 0
	}
	base, factor := uint64(p.Base), uint64(p.Factor)
	return value/base*factor + value%base*factor/base
}

func (p RoyaltyParams) WriteTo(cell *boc.Cell) error {
	if err := cell.WriteUint(uint64(p.Factor), 16); err != nil {
		return err
	}
	if err := cell.WriteUint(uint64(p.Base), 16); err != nil {
		return err
	}
	return WriteAddress(cell, &p.Destination)
}

func (p RoyaltyParams) ToCell() (*boc.Cell, error) {
	cell := boc.NewCell()
	if err := p.WriteTo(cell); err != nil {
		return nil, err
	}
	return cell, nil
}

func ReadRoyaltyParams(cell *boc.Cell) (RoyaltyParams, error) {
	factor, err := cell.ReadUint(16)
	if err != nil {
		return RoyaltyParams{}, err
	}
	base, err := cell.ReadUint(16)
	if err != nil {
		return RoyaltyParams{}, err
	}
	dst, err := ReadStdAddress(cell)
	if err != nil {
		return RoyaltyParams{}, fmt.Errorf("royalty destination: %w", err)
	}
	return RoyaltyParams{Factor: uint16(factor), Base: uint16(base), Destination: dst}, nil
}

func ParseRoyaltyParams(cell *boc.Cell) (RoyaltyParams, error) {
	cell.ResetCounters()
	return ReadRoyaltyParams(cell)
}

// Royalty is either structured royalty params or a prebuilt cell.
type Royalty struct {
	params *RoyaltyParams
	raw    *boc.Cell
}

func StructuredRoyalty(p RoyaltyParams) Royalty {
	return Royalty{params: &p}
}

func RawRoyalty(c *boc.Cell) Royalty {
	return Royalty{raw: c}
}

func (r Royalty) ToCell() (*boc.Cell, error) {
	switch {
	case r.params != nil:
		return r.params.ToCell()
	case r.raw != nil:
		return r.raw, nil
	}
	return nil, errors.New("empty royalty")
}

// Resolve decodes the royalty into its structured form.
func (r Royalty) Resolve() (RoyaltyParams, error) {
	if r.params != nil {
		return *r.params, nil
	}
	if r.raw == nil {
		return RoyaltyParams{}, errors.New("empty royalty")
	}
	return ParseRoyaltyParams(r.raw)
}

// ItemRestrictions limit who may place the deploying bid.
type ItemRestrictions struct {
	ForceSender   *ton.AccountID
	RewriteSender *ton.AccountID
}

func (r ItemRestrictions) ToCell() (*boc.Cell, error) {
	cell := boc.NewCell()
	for _, a := range []*ton.AccountID{r.ForceSender, r.RewriteSender} {
		if err := cell.WriteBit(a != nil); err != nil {
			return nil, err
		}
		if a == nil {
			continue
		}
		if err := WriteAddress(cell, a); err != nil {
			return nil, err
		}
	}
	return cell, nil
}

func ParseItemRestrictions(cell *boc.Cell) (ItemRestrictions, error) {
	cell.ResetCounters()
	var out [2]*ton.AccountID
	for i := range out {
		exists, err := cell.ReadBit()
		if err != nil {
			return ItemRestrictions{}, err
		}
		if !exists {
			continue
		}
		a, err := ReadStdAddress(cell)
		if err != nil {
			return ItemRestrictions{}, err
		}
		out[i] = &a
	}
	return ItemRestrictions{ForceSender: out[0], RewriteSender: out[1]}, nil
}
