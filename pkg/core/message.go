package core

import (
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
)

type SendMode uint8

const (
	SendModeDefault           SendMode = 0
	SendModePayFeesSeparately SendMode = 1
	SendModeIgnoreErrors      SendMode = 2
)

func (m SendMode) PayFeesSeparately() bool { return m&SendModePayFeesSeparately != 0 }
func (m SendMode) IgnoreErrors() bool      { return m&SendModeIgnoreErrors != 0 }

// StateInit is the contract-init section of a message.
type StateInit struct {
	SplitDepth *uint8
	Code       *boc.Cell
	Data       *boc.Cell
	Library    *boc.Cell
}

// InlineBits is the size of the StateInit's own bits.
func (s StateInit) InlineBits() uint64 {
	if s.SplitDepth != nil {
		return 10
	}
	return 5
}

func (s StateInit) RefCount() int {
	n := 0
	for _, c := range []*boc.Cell{s.Library, s.Code, s.Data} {
		if c != nil {
			n++
		}
	}
	return n
}

func (s StateInit) ToCell() (*boc.Cell, error) {
	cell := boc.NewCell()
	if err := cell.WriteBit(s.SplitDepth != nil); err != nil {
		return nil, err
	}
	if s.SplitDepth != nil {
		if err := cell.WriteUint(uint64(*s.SplitDepth), 5); err != nil {
			return nil, err
		}
	}
	// special:(Maybe TickTock)
	if err := cell.WriteBit(false); err != nil {
		return nil, err
	}
	for _, ref := range []*boc.Cell{s.Code, s.Data, s.Library} {
		if err := cell.WriteBit(ref != nil); err != nil {
			return nil, err
		}
		if ref == nil {
			continue
		}
		if err := cell.AddRef(ref); err != nil {
			return nil, err
		}
	}
	return cell, nil
}

// Address derives the account address the StateInit deploys to.
func (s StateInit) Address(workchain int32) (ton.AccountID, error) {
	cell, err := s.ToCell()
	if err != nil {
		return ton.AccountID{}, err
	}
	h, err := cell.Hash256()
	if err != nil {
		return ton.AccountID{}, err
	}
	return ton.AccountID{Workchain: workchain, Address: h}, nil
}

// Message is an internal or inbound external message. Source is nil for
// external messages.
type Message struct {
	Source      *ton.AccountID
	Destination ton.AccountID
	Value       uint64
	Bounce      bool
	Bounced     bool
	// FwdFee is the declared forward fee, the part of the fee the sender paid
	// that a receiver can observe.
	FwdFee    uint64
	CreatedLt uint64
	CreatedAt uint32
	Init      *StateInit
	Body      *boc.Cell
	Mode      SendMode
}

func (m Message) IsExternal() bool {
	return m.Source == nil
}

// feeFieldBits bounds the serialized size of the fee fields so the header
// size does not depend on the fee computed from it.
const feeFieldBits = 4 + 8*8

// HeaderBits is the size of the message header in its root cell.
func (m Message) HeaderBits() int {
	if m.IsExternal() {
		// ext_in_msg_info$10 src:addr_none dest import_fee
		return 2 + addrNoneBits + AddressBits(&m.Destination) + feeFieldBits
	}
	return 1 + 3 + AddressBits(m.Source) + AddressBits(&m.Destination) +
		CoinsBits(m.Value) + 1 + CoinsBits(0) + feeFieldBits + 64 + 32
}

// Op returns the op code of the body, or OpComment for an empty body.
func (m Message) Op() Op {
	op, _, err := ReadOp(m.Body)
	if err != nil {
		return OpComment
	}
	return op
}
