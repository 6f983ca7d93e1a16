package core

import (
	"fmt"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
)

// TopupComment is the only text comment a collection accepts as a top-up.
const TopupComment = "#topup"

func OpBody(op Op) (*boc.Cell, error) {
	return newBody(op, nil)
}

func QueryBody(op Op, queryID uint64) (*boc.Cell, error) {
	return newBody(op, &queryID)
}

// ReadQueryID loads the query id that follows an op code.
func ReadQueryID(body *boc.Cell) (uint64, error) {
	if body.BitsAvailableForRead() < 64 {
		return 0, ErrInvalidLength
	}
	return body.ReadUint(64)
}

func CommentBody(text string) (*boc.Cell, error) {
	c, err := newBody(OpComment, nil)
	if err != nil {
		return nil, err
	}
	if err := c.WriteBytes([]byte(text)); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadComment loads the text that follows a zero op code.
func ReadComment(body *boc.Cell) (string, error) {
	n := body.BitsAvailableForRead()
	if n%8 != 0 {
		return "", ErrInvalidLength
	}
	b, err := body.ReadBytes(n / 8)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ForwardPayload is the Either Cell ^Cell tail of transfer messages.
type ForwardPayload struct {
	Cell  *boc.Cell
	InRef bool
}

func (p ForwardPayload) WriteTo(c *boc.Cell) error {
	if err := c.WriteBit(p.InRef); err != nil {
		return err
	}
	if p.Cell == nil {
		return nil
	}
	if p.InRef {
		return c.AddRef(p.Cell)
	}
	return AppendCell(c, p.Cell)
}

func ReadForwardPayload(c *boc.Cell) (ForwardPayload, error) {
	if c.BitsAvailableForRead() == 0 {
		return ForwardPayload{Cell: boc.NewCell()}, nil
	}
	inRef, err := c.ReadBit()
	if err != nil {
		return ForwardPayload{}, err
	}
	if inRef {
		ref, err := c.NextRef()
		if err != nil {
			return ForwardPayload{}, err
		}
		return ForwardPayload{Cell: ref, InRef: true}, nil
	}
	rest, err := CopyRemaining(c)
	if err != nil {
		return ForwardPayload{}, err
	}
	return ForwardPayload{Cell: rest}, nil
}

type TransferRequest struct {
	QueryID             uint64
	NewOwner            ton.AccountID
	ResponseDestination *ton.AccountID
	CustomPayload       *boc.Cell
	ForwardAmount       uint64
	ForwardPayload      ForwardPayload
}

func (t TransferRequest) ToCell() (*boc.Cell, error) {
	c, err := QueryBody(OpTransfer, t.QueryID)
	if err != nil {
		return nil, err
	}
	if err := WriteAddress(c, &t.NewOwner); err != nil {
		return nil, err
	}
	if err := WriteAddress(c, t.ResponseDestination); err != nil {
		return nil, err
	}
	if err := c.WriteBit(t.CustomPayload != nil); err != nil {
		return nil, err
	}
	if t.CustomPayload != nil {
		if err := c.AddRef(t.CustomPayload); err != nil {
			return nil, err
		}
	}
	if err := WriteCoins(c, t.ForwardAmount); err != nil {
		return nil, err
	}
	if err := t.ForwardPayload.WriteTo(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadTransferRequest parses a transfer body positioned right after its op code.
func ReadTransferRequest(body *boc.Cell) (TransferRequest, error) {
	var (
		t   TransferRequest
		err error
	)
	if t.QueryID, err = ReadQueryID(body); err != nil {
		return TransferRequest{}, err
	}
	if t.NewOwner, err = ReadStdAddress(body); err != nil {
		return TransferRequest{}, fmt.Errorf("new owner: %w", err)
	}
	if t.ResponseDestination, err = ReadAddress(body); err != nil {
		return TransferRequest{}, fmt.Errorf("response destination: %w", err)
	}
	hasCustom, err := body.ReadBit()
	if err != nil {
		return TransferRequest{}, err
	}
	if hasCustom {
		if t.CustomPayload, err = body.NextRef(); err != nil {
			return TransferRequest{}, err
		}
	}
	if t.ForwardAmount, err = ReadCoins(body); err != nil {
		return TransferRequest{}, err
	}
	if t.ForwardPayload, err = ReadForwardPayload(body); err != nil {
		return TransferRequest{}, err
	}
	return t, nil
}

// OwnershipAssignedBody notifies the new owner about a plain transfer.
func OwnershipAssignedBody(queryID uint64, prevOwner *ton.AccountID, payload ForwardPayload) (*boc.Cell, error) {
	c, err := QueryBody(OpOwnershipAssigned, queryID)
	if err != nil {
		return nil, err
	}
	if err := WriteAddress(c, prevOwner); err != nil {
		return nil, err
	}
	if err := payload.WriteTo(c); err != nil {
		return nil, err
	}
	return c, nil
}

// BidInfo is the forward payload of an ownership notification sent when an
// auction is won.
type BidInfo struct {
	Bid   uint64
	BidTs uint32
}

func AuctionOwnershipAssignedBody(queryID uint64, prevOwner *ton.AccountID, info BidInfo) (*boc.Cell, error) {
	c, err := QueryBody(OpOwnershipAssigned, queryID)
	if err != nil {
		return nil, err
	}
	if err := WriteAddress(c, prevOwner); err != nil {
		return nil, err
	}
	if err := c.WriteBit(false); err != nil {
		return nil, err
	}
	if err := c.WriteUint(uint64(OpTeleitemBidInfo), 32); err != nil {
		return nil, err
	}
	if err := WriteCoins(c, info.Bid); err != nil {
		return nil, err
	}
	if err := c.WriteUint(uint64(info.BidTs), 32); err != nil {
		return nil, err
	}
	return c, nil
}

// OwnershipAssigned is the decoded form of an ownership notification.
type OwnershipAssigned struct {
	QueryID   uint64
	PrevOwner *ton.AccountID
	Payload   ForwardPayload
	BidInfo   *BidInfo
}

func ParseOwnershipAssigned(body *boc.Cell) (OwnershipAssigned, error) {
	op, _, err := ReadOp(body)
	if err != nil {
		return OwnershipAssigned{}, err
	}
	if op != OpOwnershipAssigned {
		return OwnershipAssigned{}, fmt.Errorf("unexpected op %v", op)
	}
	var o OwnershipAssigned
	if o.QueryID, err = ReadQueryID(body); err != nil {
		return OwnershipAssigned{}, err
	}
	if o.PrevOwner, err = ReadAddress(body); err != nil {
		return OwnershipAssigned{}, err
	}
	if o.Payload, err = ReadForwardPayload(body); err != nil {
		return OwnershipAssigned{}, err
	}
	p := o.Payload.Cell
	p.ResetCounters()
	if !o.Payload.InRef && p.BitsAvailableForRead() >= 32+4+32 {
		if tag, err := p.ReadUint(32); err == nil && Op(tag) == OpTeleitemBidInfo {
			bid, err := ReadCoins(p)
			if err != nil {
				return OwnershipAssigned{}, err
			}
			ts, err := p.ReadUint(32)
			if err != nil {
				return OwnershipAssigned{}, err
			}
			o.BidInfo = &BidInfo{Bid: bid, BidTs: uint32(ts)}
		}
	}
	return o, nil
}

func StartAuctionBody(queryID uint64, cfg AuctionConfig) (*boc.Cell, error) {
	c, err := QueryBody(OpStartAuction, queryID)
	if err != nil {
		return nil, err
	}
	cfgCell, err := cfg.ToCell()
	if err != nil {
		return nil, err
	}
	if err := c.AddRef(cfgCell); err != nil {
		return nil, err
	}
	return c, nil
}

func ReportStaticDataBody(queryID uint64, index ton.Bits256, collection ton.AccountID) (*boc.Cell, error) {
	c, err := QueryBody(OpReportStaticData, queryID)
	if err != nil {
		return nil, err
	}
	if err := c.WriteBytes(index[:]); err != nil {
		return nil, err
	}
	if err := WriteAddress(c, &collection); err != nil {
		return nil, err
	}
	return c, nil
}

func ReportRoyaltyBody(queryID uint64, p RoyaltyParams) (*boc.Cell, error) {
	c, err := QueryBody(OpReportRoyalty, queryID)
	if err != nil {
		return nil, err
	}
	if err := p.WriteTo(c); err != nil {
		return nil, err
	}
	return c, nil
}

// TeleitemDeploy is the message a collection sends to create or bid on an item.
type TeleitemDeploy struct {
	Bidder    ton.AccountID
	Bid       uint64
	TokenName string
	Domain    string
	Content   *boc.Cell
	Config    AuctionConfig
	Royalty   RoyaltyParams
}

func (d TeleitemDeploy) ToCell() (*boc.Cell, error) {
	c, err := OpBody(OpTeleitemDeploy)
	if err != nil {
		return nil, err
	}
	if err := WriteAddress(c, &d.Bidder); err != nil {
		return nil, err
	}
	if err := WriteCoins(c, d.Bid); err != nil {
		return nil, err
	}
	info := boc.NewCell()
	if err := WriteText(info, d.TokenName); err != nil {
		return nil, err
	}
	if err := WriteText(info, d.Domain); err != nil {
		return nil, err
	}
	cfg, err := d.Config.ToCell()
	if err != nil {
		return nil, err
	}
	royalty, err := d.Royalty.ToCell()
	if err != nil {
		return nil, err
	}
	for _, ref := range []*boc.Cell{info, d.Content, cfg, royalty} {
		if err := c.AddRef(ref); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ReadTeleitemDeploy parses a deploy body positioned right after its op code.
func ReadTeleitemDeploy(body *boc.Cell) (TeleitemDeploy, error) {
	var (
		d   TeleitemDeploy
		err error
	)
	if d.Bidder, err = ReadStdAddress(body); err != nil {
		return TeleitemDeploy{}, fmt.Errorf("bidder: %w", err)
	}
	if d.Bid, err = ReadCoins(body); err != nil {
		return TeleitemDeploy{}, err
	}
	info, err := body.NextRef()
	if err != nil {
		return TeleitemDeploy{}, err
	}
	info.ResetCounters()
	if d.TokenName, err = ReadText(info); err != nil {
		return TeleitemDeploy{}, err
	}
	if d.Domain, err = ReadText(info); err != nil {
		return TeleitemDeploy{}, err
	}
	if d.Content, err = body.NextRef(); err != nil {
		return TeleitemDeploy{}, err
	}
	cfg, err := body.NextRef()
	if err != nil {
		return TeleitemDeploy{}, err
	}
	if d.Config, err = ParseAuctionConfig(cfg); err != nil {
		return TeleitemDeploy{}, err
	}
	royalty, err := body.NextRef()
	if err != nil {
		return TeleitemDeploy{}, err
	}
	if d.Royalty, err = ParseRoyaltyParams(royalty); err != nil {
		return TeleitemDeploy{}, err
	}
	return d, nil
}
