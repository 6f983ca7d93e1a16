package auction

import (
	"github.com/tonkeeper/tongo/ton"

	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/fees"
	"github.com/arnac-io/teleauction/pkg/ledger"
)

// outbox collects the messages of one transaction and tracks how much of
// the balance they consume.
type outbox struct {
	tx    *ledger.TxContext
	msgs  []core.Message
	spent uint64
}

func newOutbox(tx *ledger.TxContext) *outbox {
	return &outbox{tx: tx}
}

// cost is what sending m takes from the balance.
func (o *outbox) cost(m core.Message) (uint64, fees.FwdFees, error) {
	f, err := o.tx.ForwardFees(m)
	if err != nil {
		return 0, fees.FwdFees{}, err
	}
	if m.Mode.PayFeesSeparately() {
		return m.Value + f.Total, f, nil
	}
	return m.Value, f, nil
}

func (o *outbox) send(m core.Message) error {
	c, _, err := o.cost(m)
	if err != nil {
		return err
	}
	o.spent += c
	o.msgs = append(o.msgs, m)
	return nil
}

// sendFromValue sends m paying the fee out of its value, dropping it when
// the value does not cover the fee.
func (o *outbox) sendFromValue(m core.Message) (bool, error) {
	m.Mode = core.SendModeDefault
	_, f, err := o.cost(m)
	if err != nil {
		return false, err
	}
	if m.Value <= f.Total {
		return false, nil
	}
	return true, o.send(m)
}

func (o *outbox) balance() uint64 {
	if o.spent >= o.tx.Balance {
		return 0
	}
	return o.tx.Balance - o.spent
}

// SettlementInput describes an auction that has ended with a winning bid.
type SettlementInput struct {
	Balance     uint64
	Reserve     uint64
	Bid         uint64
	BidTs       uint32
	QueryID     uint64
	Winner      ton.AccountID
	PrevOwner   *ton.AccountID
	Beneficiary ton.AccountID
	Royalty     core.RoyaltyParams
}

type Settlement struct {
	// Royalty and Proceeds are the amounts taken from the balance, each
	// receiver gets them minus the forward fee.
	Royalty  uint64
	Proceeds uint64
	Capped   bool
	// Notified is false when the balance could not pay for the ownership
	// notification without going below Reserve.
	Notified  bool
	Messages  []core.Message
	Ownership core.Message
}

// Settle splits the winning bid between the royalty destination and the
// beneficiary and notifies the winner. Nothing is paid out of the part of
// the balance that keeps it at Reserve, so a balance already at or below
// Reserve sends nothing.
func Settle(tx *ledger.TxContext, in SettlementInput) (Settlement, error) {
	ownershipBody, err := core.AuctionOwnershipAssignedBody(in.QueryID, in.PrevOwner, core.BidInfo{Bid: in.Bid, BidTs: in.BidTs})
	if err != nil {
		return Settlement{}, err
	}
	ownership := core.Message{
		Destination: in.Winner,
		Value:       notificationValue,
		Mode:        core.SendModePayFeesSeparately,
		Body:        ownershipBody,
	}
	box := newOutbox(tx)
	ownershipCost, _, err := box.cost(ownership)
	if err != nil {
		return Settlement{}, err
	}
	s := Settlement{Ownership: ownership}
	if in.Balance < in.Reserve+ownershipCost {
		s.Capped = true
		return s, nil
	}
	headroom := in.Balance - in.Reserve - ownershipCost

	royalty := in.Royalty.Amount(in.Bid)
	proceeds := in.Bid - royalty
	if in.Beneficiary == in.Royalty.Destination {
		proceeds = in.Bid
	}
	if royalty > headroom {
		royalty, s.Capped = headroom, true
	}
	headroom -= royalty
	if proceeds > headroom {
		proceeds, s.Capped = headroom, true
	}

	fillUp, err := core.OpBody(core.OpFillUp)
	if err != nil {
		return Settlement{}, err
	}
	if royalty > 0 {
		sent, err := box.sendFromValue(core.Message{Destination: in.Royalty.Destination, Value: royalty, Body: fillUp})
		if err != nil {
			return Settlement{}, err
		}
		if sent {
			s.Royalty = royalty
		}
	}
	if proceeds > 0 {
		sent, err := box.sendFromValue(core.Message{Destination: in.Beneficiary, Value: proceeds, Body: fillUp})
		if err != nil {
			return Settlement{}, err
		}
		if sent {
			s.Proceeds = proceeds
		}
	}
	if err := box.send(ownership); err != nil {
		return Settlement{}, err
	}
	s.Notified = true
	s.Messages = box.msgs
	return s, nil
}

// TransferInput describes a plain ownership transfer.
type TransferInput struct {
	Request   core.TransferRequest
	PrevOwner ton.AccountID
	// Value and InFwdFee come from the inbound transfer message.
	Value    uint64
	InFwdFee uint64
	Reserve  uint64
}

// PlanTransfer checks that the transfer message carries enough value and
// builds the notification and excess messages.
func PlanTransfer(tx *ledger.TxContext, in TransferInput) ([]core.Message, error) {
	req := in.Request
	var msgCount uint64
	if req.ForwardAmount > 0 {
		msgCount++
	}
	if req.ResponseDestination != nil {
		msgCount++
	}
	var topUp uint64
	if tx.Balance >= in.Value {
		if before := tx.Balance - in.Value; before < in.Reserve {
			topUp = in.Reserve - before
		}
	}
	required := req.ForwardAmount + in.InFwdFee*3/2*msgCount + topUp
	if in.Value < required {
		return nil, core.ErrNotEnoughFunds
	}
	box := newOutbox(tx)
	rest := in.Value - topUp
	if req.ForwardAmount > 0 {
		body, err := core.OwnershipAssignedBody(req.QueryID, &in.PrevOwner, req.ForwardPayload)
		if err != nil {
			return nil, err
		}
		notify := core.Message{
			Destination: req.NewOwner,
			Value:       req.ForwardAmount,
			Mode:        core.SendModePayFeesSeparately,
			Body:        body,
		}
		c, _, err := box.cost(notify)
		if err != nil {
			return nil, err
		}
		if c > rest {
			return nil, core.ErrNotEnoughFunds
		}
		rest -= c
		if err := box.send(notify); err != nil {
			return nil, err
		}
	}
	if req.ResponseDestination != nil && rest > 0 {
		body, err := core.QueryBody(core.OpExcesses, req.QueryID)
		if err != nil {
			return nil, err
		}
		if _, err := box.sendFromValue(core.Message{Destination: *req.ResponseDestination, Value: rest, Body: body}); err != nil {
			return nil, err
		}
	}
	return box.msgs, nil
}
