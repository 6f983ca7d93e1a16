package auction

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
	"go.uber.org/zap"

	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/ledger"
)

// Collection authorizes the creation of items with requests signed by its key.
type Collection struct {
	logger *zap.Logger
	params Params

	Touched     bool
	SubwalletID uint32
	PublicKey   ed25519.PublicKey
	Content     *boc.Cell
	ItemCode    *boc.Cell
	FullDomain  string
	Royalty     core.RoyaltyParams
}

type CollectionOption func(c *Collection)

func WithCollectionLogger(logger *zap.Logger) CollectionOption {
	return func(c *Collection) {
		c.logger = logger
	}
}

func NewCollection(params Params, subwalletID uint32, key ed25519.PublicKey, content *boc.Cell, domain string, royalty core.RoyaltyParams, opts ...CollectionOption) *Collection {
	c := &Collection{
		logger:      zap.NewNop(),
		params:      params,
		SubwalletID: subwalletID,
		PublicKey:   key,
		Content:     content,
		ItemCode:    ItemCode(),
		FullDomain:  domain,
		Royalty:     royalty,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func CollectionFactory(params Params, opts ...CollectionOption) ledger.Factory {
	return func(init core.StateInit) (ledger.Contract, error) {
		if init.Data == nil {
			return nil, errors.New("collection without data")
		}
		return LoadCollection(params, init.Data, opts...)
	}
}

func (c *Collection) Code() *boc.Cell {
	return CollectionCode()
}

func (c *Collection) Clone() ledger.Contract {
	cp := *c
	return &cp
}

func (c *Collection) Data() (*boc.Cell, error) {
	cell := boc.NewCell()
	if err := cell.WriteBit(c.Touched); err != nil {
		return nil, err
	}
	if err := cell.WriteUint(uint64(c.SubwalletID), 32); err != nil {
		return nil, err
	}
	key := make([]byte, ed25519.PublicKeySize)
	copy(key, c.PublicKey)
	if err := cell.WriteBytes(key); err != nil {
		return nil, err
	}
	domain := boc.NewCell()
	if err := core.WriteText(domain, c.FullDomain); err != nil {
		return nil, err
	}
	royalty, err := c.Royalty.ToCell()
	if err != nil {
		return nil, err
	}
	content := c.Content
	if content == nil {
		content = boc.NewCell()
	}
	for _, ref := range []*boc.Cell{content, c.ItemCode, domain, royalty} {
		if err := cell.AddRef(ref); err != nil {
			return nil, err
		}
	}
	return cell, nil
}

func LoadCollection(params Params, data *boc.Cell, opts ...CollectionOption) (*Collection, error) {
	data.ResetCounters()
	touched, err := data.ReadBit()
	if err != nil {
		return nil, err
	}
	subwallet, err := data.ReadUint(32)
	if err != nil {
		return nil, err
	}
	key, err := data.ReadBytes(ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	content, err := data.NextRef()
	if err != nil {
		return nil, err
	}
	itemCode, err := data.NextRef()
	if err != nil {
		return nil, err
	}
	domainCell, err := data.NextRef()
	if err != nil {
		return nil, err
	}
	domainCell.ResetCounters()
	domain, err := core.ReadText(domainCell)
	if err != nil {
		return nil, err
	}
	royaltyCell, err := data.NextRef()
	if err != nil {
		return nil, err
	}
	royalty, err := core.ParseRoyaltyParams(royaltyCell)
	if err != nil {
		return nil, fmt.Errorf("collection royalty: %w", err)
	}
	c := NewCollection(params, uint32(subwallet), ed25519.PublicKey(key), content, domain, royalty, opts...)
	c.Touched = touched
	c.ItemCode = itemCode
	return c, nil
}

func (c *Collection) ReceiveInternal(ctx context.Context, tx *ledger.TxContext, msg core.Message) ([]core.Message, error) {
	if msg.Bounced || msg.Source == nil {
		return nil, nil
	}
	op, hasOp, err := core.ReadOp(msg.Body)
	if err != nil {
		return nil, err
	}
	if !hasOp {
		return nil, nil
	}
	switch op {
	case core.OpComment:
		text, err := core.ReadComment(msg.Body)
		if err != nil || text != core.TopupComment {
			return nil, core.ErrWrongTopupComment
		}
		return nil, nil
	case core.OpTelemintDeploy, core.OpTelemintDeployV2:
		return c.deployItem(tx, msg, op)
	case core.OpGetRoyaltyParams:
		return replyRoyalty(tx, msg, c.Royalty)
	}
	return nil, core.ErrUnknownOp
}

// ReceiveExternal accepts a single external message that marks the
// collection as touched.
func (c *Collection) ReceiveExternal(ctx context.Context, tx *ledger.TxContext, body *boc.Cell) ([]core.Message, error) {
	if _, hasOp, err := core.ReadOp(body); err != nil || hasOp {
		return nil, core.ErrUnknownOp
	}
	if c.Touched {
		return nil, core.ErrForbiddenTouch
	}
	c.Touched = true
	return nil, nil
}

// Authorize checks a signed deployment request against the collection key
// and the current time. The returned address is the recorded first bidder.
func (c *Collection) Authorize(now uint32, sender ton.AccountID, d core.SignedDeployment) (ton.AccountID, error) {
	r := d.Request
	switch {
	case !d.Verify(c.PublicKey):
		return ton.AccountID{}, core.ErrInvalidSignature
	case r.SubwalletID != c.SubwalletID:
		return ton.AccountID{}, core.ErrWrongSubwalletID
	case now <= r.ValidSince:
		return ton.AccountID{}, core.ErrNotYetValidSignature
	case now >= r.ValidTill:
		return ton.AccountID{}, core.ErrExpiredSignature
	}
	bidder := sender
	if rs := r.Restrictions; rs != nil {
		if rs.ForceSender != nil && *rs.ForceSender != sender {
			return ton.AccountID{}, core.ErrInvalidSenderAddress
		}
		if rs.RewriteSender != nil {
			bidder = *rs.RewriteSender
		}
	}
	return bidder, nil
}

// TokenIndex is the item index of a token name.
func TokenIndex(name string) ton.Bits256 {
	return sha256.Sum256([]byte(name))
}

func (c *Collection) deployItem(tx *ledger.TxContext, msg core.Message, op core.Op) ([]core.Message, error) {
	if msg.Source.Workchain != c.params.Workchain {
		return nil, core.ErrIncorrectWorkchain
	}
	signed, err := core.ReadSignedDeployment(msg.Body, op)
	if err != nil {
		return nil, err
	}
	bidder, err := c.Authorize(tx.Now, *msg.Source, signed)
	if err != nil {
		return nil, err
	}
	r := signed.Request
	if err := c.params.ValidateConfig(r.AuctionConfig); err != nil {
		return nil, err
	}
	if msg.Value < c.params.DeployReserve || msg.Value-c.params.DeployReserve < r.AuctionConfig.MinBid {
		return nil, core.ErrNotEnoughFunds
	}
	royalty := c.Royalty
	if r.Royalty != nil {
		if royalty, err = r.Royalty.Resolve(); err != nil {
			return nil, malformed(err)
		}
	}
	content, err := r.Content.ToCell()
	if err != nil {
		return nil, malformed(err)
	}
	index := TokenIndex(r.TokenName)
	data, err := ItemInitData(index, tx.Self)
	if err != nil {
		return nil, err
	}
	init := core.StateInit{Code: c.ItemCode, Data: data}
	itemAddr, err := init.Address(tx.Self.Workchain)
	if err != nil {
		return nil, err
	}
	body, err := core.TeleitemDeploy{
		Bidder:    bidder,
		Bid:       msg.Value - c.params.DeployReserve,
		TokenName: r.TokenName,
		Domain:    c.FullDomain,
		Content:   content,
		Config:    r.AuctionConfig,
		Royalty:   royalty,
	}.ToCell()
	if err != nil {
		return nil, err
	}
	deploy := core.Message{
		Destination: itemAddr,
		Value:       msg.Value,
		Bounce:      true,
		Init:        &init,
		Body:        body,
		Mode:        core.SendModePayFeesSeparately,
	}
	box := newOutbox(tx)
	if err := box.send(deploy); err != nil {
		return nil, err
	}
	c.logger.Info("item deploy authorized",
		zap.String("token", r.TokenName),
		zap.String("item", itemAddr.ToRaw()),
		zap.String("bidder", bidder.ToRaw()))
	return box.msgs, nil
}

type CollectionData struct {
	NextItemIndex int64
	Content       *boc.Cell
	Owner         *ton.AccountID
}

// CollectionData reports -1 as the next index since items are indexed by
// the hash of their token name.
func (c *Collection) CollectionData() CollectionData {
	return CollectionData{NextItemIndex: -1, Content: c.Content}
}

func (c *Collection) ItemAddress(self ton.AccountID, index ton.Bits256) (ton.AccountID, error) {
	data, err := ItemInitData(index, self)
	if err != nil {
		return ton.AccountID{}, err
	}
	return core.StateInit{Code: c.ItemCode, Data: data}.Address(self.Workchain)
}
