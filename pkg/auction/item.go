package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
	"go.uber.org/zap"

	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/ledger"
)

// Item is one auctionable token. A fresh item is created by its collection
// with an auction already running, the deploying bid being the first one.
type Item struct {
	logger *zap.Logger
	params Params

	Index      ton.Bits256
	Collection ton.AccountID
	Inited     bool
	Owner      *ton.AccountID
	Content    *boc.Cell
	TokenName  string
	Domain     string
	Royalty    core.RoyaltyParams
	Config     core.AuctionConfig
	State      core.AuctionState
}

type ItemOption func(it *Item)

func WithItemLogger(logger *zap.Logger) ItemOption {
	return func(it *Item) {
		it.logger = logger
	}
}

func NewItem(params Params, index ton.Bits256, collection ton.AccountID, opts ...ItemOption) *Item {
	it := &Item{
		logger:     zap.NewNop(),
		params:     params,
		Index:      index,
		Collection: collection,
	}
	for _, o := range opts {
		o(it)
	}
	return it
}

// ItemFactory creates items deployed by a collection or restored from storage.
func ItemFactory(params Params, opts ...ItemOption) ledger.Factory {
	return func(init core.StateInit) (ledger.Contract, error) {
		if init.Data == nil {
			return nil, errors.New("item without data")
		}
		return LoadItem(params, init.Data, opts...)
	}
}

func (it *Item) Code() *boc.Cell {
	return ItemCode()
}

func (it *Item) Clone() ledger.Contract {
	cp := *it
	return &cp
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", core.ErrInvalidLength, err)
}

func (it *Item) ReceiveInternal(ctx context.Context, tx *ledger.TxContext, msg core.Message) ([]core.Message, error) {
	if msg.Bounced || msg.Source == nil {
		return nil, nil
	}
	op, hasOp, err := core.ReadOp(msg.Body)
	if err != nil {
		return nil, err
	}
	if !it.Inited {
		if op != core.OpTeleitemDeploy {
			return nil, core.ErrUninited
		}
		return it.deploy(tx, msg)
	}
	sender := *msg.Source
	switch op {
	case core.OpComment:
		if hasOp {
			text, err := core.ReadComment(msg.Body)
			if err != nil {
				return nil, err
			}
			if text == core.TopupComment {
				return nil, nil
			}
		}
		return it.placeBid(tx, sender, msg.Value)
	case core.OpFillUp:
		return nil, nil
	case core.OpTeleitemDeploy:
		return it.deployBid(tx, msg)
	case core.OpStartAuction:
		return it.startAuction(tx, msg)
	case core.OpCancelAuction:
		return it.cancelAuction(tx, msg)
	case core.OpTransfer:
		return it.transfer(tx, msg)
	case core.OpGetStaticData:
		return it.reportStaticData(tx, msg)
	case core.OpGetRoyaltyParams:
		return replyRoyalty(tx, msg, it.Royalty)
	}
	return nil, core.ErrUnknownOp
}

// ReceiveExternal handles the end-of-auction check anyone may trigger.
func (it *Item) ReceiveExternal(ctx context.Context, tx *ledger.TxContext, body *boc.Cell) ([]core.Message, error) {
	if !it.Inited {
		return nil, core.ErrUninited
	}
	if _, hasOp, err := core.ReadOp(body); err != nil || hasOp {
		return nil, core.ErrUnknownOp
	}
	if it.Config.IsZero() {
		return nil, core.ErrNoAuction
	}
	if tx.Now < it.State.EndTime {
		return nil, core.ErrForbiddenNotStake
	}
	next := *it
	box := newOutbox(tx)
	if err := next.endAuction(tx, box); err != nil {
		return nil, err
	}
	*it = next
	return box.msgs, nil
}

func (it *Item) deploy(tx *ledger.TxContext, msg core.Message) ([]core.Message, error) {
	if *msg.Source != it.Collection {
		return nil, core.ErrForbiddenNotDeploy
	}
	d, err := core.ReadTeleitemDeploy(msg.Body)
	if err != nil {
		return nil, malformed(err)
	}
	next := *it
	next.Inited = true
	next.Content = d.Content
	next.TokenName = d.TokenName
	next.Domain = d.Domain
	next.Royalty = d.Royalty
	next.Config = d.Config
	next.State = core.AuctionState{
		Bidder:     &d.Bidder,
		Bid:        d.Bid,
		BidTs:      tx.Now,
		MinNextBid: NextBid(d.Bid, d.Config.MinBidStep, it.params.MinBidIncrement),
		EndTime:    tx.Now + d.Config.Duration,
	}
	box := newOutbox(tx)
	if d.Config.MaxBid != 0 && d.Bid >= d.Config.MaxBid {
		if err := next.endAuction(tx, box); err != nil {
			return nil, err
		}
	}
	*it = next
	recordEvent(eventDeploy)
	it.logger.Info("item deployed",
		zap.String("token", d.TokenName),
		zap.String("bidder", d.Bidder.ToRaw()),
		zap.Uint64("bid", d.Bid))
	return box.msgs, nil
}

// deployBid handles a repeated deploy of an existing item, a bid relayed by
// the collection. A bid the auction cannot take is returned to the bidder.
func (it *Item) deployBid(tx *ledger.TxContext, msg core.Message) ([]core.Message, error) {
	if *msg.Source != it.Collection {
		return nil, core.ErrForbiddenNotDeploy
	}
	d, err := core.ReadTeleitemDeploy(msg.Body)
	if err != nil {
		return nil, malformed(err)
	}
	out, err := it.placeBid(tx, d.Bidder, msg.Value)
	if !errors.Is(err, core.ErrTooSmallStake) && !errors.Is(err, core.ErrForbiddenTopup) {
		return out, err
	}
	body, err := core.OpBody(core.OpTeleitemReturnBid)
	if err != nil {
		return nil, err
	}
	box := newOutbox(tx)
	if _, err := box.sendFromValue(core.Message{Destination: d.Bidder, Value: msg.Value, Body: body}); err != nil {
		return nil, err
	}
	recordEvent(eventReturn)
	return box.msgs, nil
}

func (it *Item) placeBid(tx *ledger.TxContext, bidder ton.AccountID, value uint64) ([]core.Message, error) {
	if it.Config.IsZero() || tx.Now >= it.State.EndTime {
		return nil, core.ErrForbiddenTopup
	}
	if value < it.State.MinNextBid {
		return nil, core.ErrTooSmallStake
	}
	box := newOutbox(tx)
	if prev := it.State; prev.HasBid() {
		body, err := core.OpBody(core.OpOutbidNotification)
		if err != nil {
			return nil, err
		}
		refund := core.Message{
			Destination: *prev.Bidder,
			Value:       prev.Bid,
			Mode:        core.SendModePayFeesSeparately,
			Body:        body,
		}
		if err := box.send(refund); err != nil {
			return nil, err
		}
		recordEvent(eventOutbid)
	}
	next := *it
	endTime := it.State.EndTime
	if extended := tx.Now + it.Config.MinExtendTime; extended > endTime {
		endTime = extended
	}
	next.State = core.AuctionState{
		Bidder:     &bidder,
		Bid:        value,
		BidTs:      tx.Now,
		MinNextBid: NextBid(value, it.Config.MinBidStep, it.params.MinBidIncrement),
		EndTime:    endTime,
	}
	if it.Config.MaxBid != 0 && value >= it.Config.MaxBid {
		if err := next.endAuction(tx, box); err != nil {
			return nil, err
		}
	}
	*it = next
	recordEvent(eventBid)
	it.logger.Info("bid accepted",
		zap.String("token", it.TokenName),
		zap.String("bidder", bidder.ToRaw()),
		zap.Uint64("bid", value))
	return box.msgs, nil
}

// endAuction settles the current auction and clears it.
func (it *Item) endAuction(tx *ledger.TxContext, box *outbox) error {
	state, cfg := it.State, it.Config
	it.Config = core.AuctionConfig{}
	it.State = core.AuctionState{}
	if !state.HasBid() {
		recordEvent(eventExpire)
		return nil
	}
	s, err := Settle(tx, SettlementInput{
		Balance:     box.balance(),
		Reserve:     it.params.MinStorageReserve,
		Bid:         state.Bid,
		BidTs:       state.BidTs,
		QueryID:     tx.Lt,
		Winner:      *state.Bidder,
		PrevOwner:   it.Owner,
		Beneficiary: *cfg.Beneficiary,
		Royalty:     it.Royalty,
	})
	if err != nil {
		return err
	}
	for _, m := range s.Messages {
		if err := box.send(m); err != nil {
			return err
		}
	}
	it.Owner = state.Bidder
	recordEvent(eventSettle)
	it.logger.Info("auction settled",
		zap.String("token", it.TokenName),
		zap.String("winner", state.Bidder.ToRaw()),
		zap.Uint64("bid", state.Bid),
		zap.Uint64("royalty", s.Royalty),
		zap.Uint64("proceeds", s.Proceeds),
		zap.Bool("capped", s.Capped),
		zap.Bool("notified", s.Notified))
	return nil
}

func (it *Item) isOwner(a ton.AccountID) bool {
	return it.Owner != nil && *it.Owner == a
}

// replyOk returns the inbound value to the sender with a teleitem_ok body.
func replyOk(tx *ledger.TxContext, msg core.Message, queryID uint64) ([]core.Message, error) {
	body, err := core.QueryBody(core.OpTeleitemOk, queryID)
	if err != nil {
		return nil, err
	}
	box := newOutbox(tx)
	if _, err := box.sendFromValue(core.Message{Destination: *msg.Source, Value: msg.Value, Body: body}); err != nil {
		return nil, err
	}
	return box.msgs, nil
}

func (it *Item) startAuction(tx *ledger.TxContext, msg core.Message) ([]core.Message, error) {
	queryID, err := core.ReadQueryID(msg.Body)
	if err != nil {
		return nil, err
	}
	ref, err := msg.Body.NextRef()
	if err != nil {
		return nil, malformed(err)
	}
	cfg, err := core.ParseAuctionConfig(ref)
	if err != nil {
		return nil, malformed(err)
	}
	if !it.isOwner(*msg.Source) {
		return nil, core.ErrForbiddenAuction
	}
	if !it.Config.IsZero() {
		return nil, core.ErrForbiddenNotStake
	}
	if err := it.params.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	out, err := replyOk(tx, msg, queryID)
	if err != nil {
		return nil, err
	}
	it.Config = cfg
	it.State = core.AuctionState{
		MinNextBid: cfg.MinBid,
		EndTime:    tx.Now + cfg.Duration,
	}
	recordEvent(eventStart)
	it.logger.Info("auction started", zap.String("token", it.TokenName), zap.Uint64("min_bid", cfg.MinBid))
	return out, nil
}

func (it *Item) cancelAuction(tx *ledger.TxContext, msg core.Message) ([]core.Message, error) {
	queryID, err := core.ReadQueryID(msg.Body)
	if err != nil {
		return nil, err
	}
	if !it.isOwner(*msg.Source) {
		return nil, core.ErrForbiddenAuction
	}
	if it.Config.IsZero() {
		return nil, core.ErrNoAuction
	}
	if it.State.HasBid() {
		return nil, core.ErrAlreadyHasStakes
	}
	out, err := replyOk(tx, msg, queryID)
	if err != nil {
		return nil, err
	}
	it.Config = core.AuctionConfig{}
	it.State = core.AuctionState{}
	recordEvent(eventCancel)
	return out, nil
}

func (it *Item) transfer(tx *ledger.TxContext, msg core.Message) ([]core.Message, error) {
	req, err := core.ReadTransferRequest(msg.Body)
	if err != nil {
		return nil, malformed(err)
	}
	if !it.isOwner(*msg.Source) {
		return nil, core.ErrForbiddenTransfer
	}
	if req.NewOwner.Workchain != it.params.Workchain {
		return nil, core.ErrIncorrectWorkchain
	}
	if !it.Config.IsZero() {
		return nil, core.ErrForbiddenNotStake
	}
	out, err := PlanTransfer(tx, TransferInput{
		Request:   req,
		PrevOwner: *it.Owner,
		Value:     msg.Value,
		InFwdFee:  msg.FwdFee,
		Reserve:   it.params.MinStorageReserve,
	})
	if err != nil {
		return nil, err
	}
	it.Owner = &req.NewOwner
	recordEvent(eventTransfer)
	it.logger.Info("item transferred",
		zap.String("token", it.TokenName),
		zap.String("new_owner", req.NewOwner.ToRaw()))
	return out, nil
}

func (it *Item) reportStaticData(tx *ledger.TxContext, msg core.Message) ([]core.Message, error) {
	queryID, err := core.ReadQueryID(msg.Body)
	if err != nil {
		return nil, err
	}
	body, err := core.ReportStaticDataBody(queryID, it.Index, it.Collection)
	if err != nil {
		return nil, err
	}
	box := newOutbox(tx)
	if _, err := box.sendFromValue(core.Message{Destination: *msg.Source, Value: msg.Value, Body: body}); err != nil {
		return nil, err
	}
	return box.msgs, nil
}

func replyRoyalty(tx *ledger.TxContext, msg core.Message, p core.RoyaltyParams) ([]core.Message, error) {
	queryID, err := core.ReadQueryID(msg.Body)
	if err != nil {
		return nil, err
	}
	body, err := core.ReportRoyaltyBody(queryID, p)
	if err != nil {
		return nil, err
	}
	box := newOutbox(tx)
	if _, err := box.sendFromValue(core.Message{Destination: *msg.Source, Value: msg.Value, Body: body}); err != nil {
		return nil, err
	}
	return box.msgs, nil
}

type NftData struct {
	Inited     bool
	Index      ton.Bits256
	Collection ton.AccountID
	Owner      *ton.AccountID
	Content    *boc.Cell
}

func (it *Item) NftData() NftData {
	return NftData{
		Inited:     it.Inited,
		Index:      it.Index,
		Collection: it.Collection,
		Owner:      it.Owner,
		Content:    it.Content,
	}
}

func (it *Item) FullDomain() string {
	if it.Domain == "" {
		return it.TokenName
	}
	return it.TokenName + "." + it.Domain
}

// AuctionState returns the live auction, if there is one.
func (it *Item) AuctionState() (core.AuctionState, core.AuctionConfig, bool) {
	return it.State, it.Config, !it.Config.IsZero()
}
