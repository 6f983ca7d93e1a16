package core

import (
	"fmt"
	"math/bits"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/tlb"
	"github.com/tonkeeper/tongo/ton"
)

const (
	addrNoneBits = 2
	addrStdBits  = 2 + 1 + 8 + 256
)

// WriteAddress stores a MsgAddress. A nil address is stored as addr_none.
func WriteAddress(c *boc.Cell, a *ton.AccountID) error {
	if a == nil {
		return tlb.Marshal(c, tlb.MsgAddress{SumType: "AddrNone"})
	}
	return tlb.Marshal(c, a.ToMsgAddress())
}

// ReadAddress loads a MsgAddress, returning nil for addr_none.
func ReadAddress(c *boc.Cell) (*ton.AccountID, error) {
	var addr tlb.MsgAddress
	if err := tlb.Unmarshal(c, &addr); err != nil {
		return nil, err
	}
	return ton.AccountIDFromTlb(addr)
}

// ReadStdAddress is ReadAddress for fields that must not be addr_none.
func ReadStdAddress(c *boc.Cell) (ton.AccountID, error) {
	a, err := ReadAddress(c)
	if err != nil {
		return ton.AccountID{}, err
	}
	if a == nil {
		return ton.AccountID{}, fmt.Errorf("unexpected addr_none")
	}
	return *a, nil
}

func AddressBits(a *ton.AccountID) int {
	if a == nil {
		return addrNoneBits
	}
	return addrStdBits
}

func WriteCoins(c *boc.Cell, v uint64) error {
	return tlb.Marshal(c, tlb.Grams(v))
}

func ReadCoins(c *boc.Cell) (uint64, error) {
	var g tlb.Grams
	if err := tlb.Unmarshal(c, &g); err != nil {
		return 0, err
	}
	return uint64(g), nil
}

// CoinsBits is the serialized size of a VarUInteger 16 amount.
func CoinsBits(v uint64) int {
	return 4 + 8*((bits.Len64(v)+7)/8)
}

// WriteText stores a TelemintText: a one byte length followed by the bytes.
func WriteText(c *boc.Cell, s string) error {
	if len(s) > 255 {
		return fmt.Errorf("text is too long: %v bytes", len(s))
	}
	if err := c.WriteUint(uint64(len(s)), 8); err != nil {
		return err
	}
	return c.WriteBytes([]byte(s))
}

func ReadText(c *boc.Cell) (string, error) {
	n, err := c.ReadUint(8)
	if err != nil {
		return "", err
	}
	b, err := c.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AppendCell writes the bits and references of src into dst.
func AppendCell(dst, src *boc.Cell) error {
	if src == nil {
		return nil
	}
	src.ResetCounters()
	if err := dst.WriteBitString(src.ReadRemainingBits()); err != nil {
		return err
	}
	src.ResetCounters()
	for _, ref := range src.Refs() {
		if err := dst.AddRef(ref); err != nil {
			return err
		}
	}
	return nil
}

// CopyRemaining builds a new cell from the unread part of c.
func CopyRemaining(c *boc.Cell) (*boc.Cell, error) {
	out := boc.NewCell()
	if err := out.WriteBitString(c.ReadRemainingBits()); err != nil {
		return nil, err
	}
	for c.RefsAvailableForRead() > 0 {
		ref, err := c.NextRef()
		if err != nil {
			return nil, err
		}
		if err := out.AddRef(ref); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func CellHash(c *boc.Cell) (ton.Bits256, error) {
	h, err := c.Hash256()
	if err != nil {
		return ton.Bits256{}, err
	}
	return ton.Bits256(h), nil
}

// ReadOp loads the leading op code. An empty body yields OpComment with ok=false.
func ReadOp(body *boc.Cell) (op Op, ok bool, err error) {
	if body == nil {
		return OpComment, false, nil
	}
	body.ResetCounters()
	if body.BitsAvailableForRead() == 0 && body.RefsAvailableForRead() == 0 {
		return OpComment, false, nil
	}
	if body.BitsAvailableForRead() < 32 {
		return 0, false, ErrInvalidLength
	}
	v, err := body.ReadUint(32)
	if err != nil {
		return 0, false, err
	}
	return Op(v), true, nil
}

func newBody(op Op, queryID *uint64) (*boc.Cell, error) {
	c := boc.NewCell()
	if err := c.WriteUint(uint64(op), 32); err != nil {
		return nil, err
	}
	if queryID != nil {
		if err := c.WriteUint(*queryID, 64); err != nil {
			return nil, err
		}
	}
	return c, nil
}
