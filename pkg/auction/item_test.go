package auction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"

	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/ledger"
)

const deployTime = uint32(1_700_000_000)

var testIndex = TokenIndex("durov")

func internalMsg(src ton.AccountID, value uint64, body *boc.Cell) core.Message {
	return core.Message{
		Source:  &src,
		Value:   value,
		Bounce:  true,
		Body:    body,
		FwdFee:  tonUnits / 1000,
		Mode:    core.SendModePayFeesSeparately,
		Bounced: false,
	}
}

func deployBody(t *testing.T, bidder ton.AccountID, bid uint64, cfg core.AuctionConfig) *boc.Cell {
	content, err := core.OffchainContent("https://example.com/durov.json").ToCell()
	require.Nil(t, err)
	body, err := core.TeleitemDeploy{
		Bidder:    bidder,
		Bid:       bid,
		TokenName: "durov",
		Domain:    "t.me",
		Content:   content,
		Config:    cfg,
		Royalty:   core.RoyaltyParams{Factor: 5, Base: 100, Destination: alice},
	}.ToCell()
	require.Nil(t, err)
	return body
}

// deployedItem returns an item deployed by alice's collection with carol's
// opening bid.
func deployedItem(t *testing.T, bid uint64, cfg core.AuctionConfig) (*Item, []core.Message) {
	it := NewItem(DefaultParams(), testIndex, alice)
	tx := testTx(t, carol, deployTime, bid)
	out, err := it.ReceiveInternal(context.Background(), tx, internalMsg(alice, bid, deployBody(t, carol, bid, cfg)))
	require.Nil(t, err)
	require.True(t, it.Inited)
	return it, out
}

// ownedItem returns an item whose auction dave has won.
func ownedItem(t *testing.T) *Item {
	bid := 10 * tonUnits
	it, out := deployedItem(t, bid, testConfig(bid, bid))
	require.NotEmpty(t, out)
	require.Equal(t, &dave, ownerAfterTransfer(t, it, dave))
	return it
}

func ownerAfterTransfer(t *testing.T, it *Item, to ton.AccountID) *ton.AccountID {
	body, err := core.TransferRequest{QueryID: 1, NewOwner: to}.ToCell()
	require.Nil(t, err)
	tx := testTx(t, carol, deployTime+10, 10*tonUnits)
	_, err = it.ReceiveInternal(context.Background(), tx, internalMsg(*it.Owner, tonUnits/10, body))
	require.Nil(t, err)
	return it.Owner
}

func TestItemDeploy(t *testing.T) {
	bid := 10 * tonUnits
	it, out := deployedItem(t, bid, testConfig(bid, 0))
	require.Empty(t, out)
	require.Nil(t, it.Owner)
	require.Equal(t, "durov.t.me", it.FullDomain())

	state, cfg, open := it.AuctionState()
	require.True(t, open)
	require.Equal(t, testConfig(bid, 0), cfg)
	require.Equal(t, &carol, state.Bidder)
	require.Equal(t, bid, state.Bid)
	require.Equal(t, deployTime, state.BidTs)
	require.Equal(t, 11*tonUnits, state.MinNextBid)
	require.Equal(t, deployTime+3600, state.EndTime)
}

func TestItemRejectsBeforeDeploy(t *testing.T) {
	bid := 10 * tonUnits
	tests := []struct {
		name    string
		msg     core.Message
		wantErr error
	}{
		{name: "plain bid", msg: internalMsg(carol, bid, nil), wantErr: core.ErrUninited},
		{name: "deploy from stranger", msg: internalMsg(bob, bid, deployBody(t, carol, bid, testConfig(bid, 0))), wantErr: core.ErrForbiddenNotDeploy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewItem(DefaultParams(), testIndex, alice)
			_, err := it.ReceiveInternal(context.Background(), testTx(t, carol, deployTime, bid), tt.msg)
			require.ErrorIs(t, err, tt.wantErr)
			require.False(t, it.Inited)
		})
	}
}

func TestItemBids(t *testing.T) {
	bid := 10 * tonUnits
	ctx := context.Background()
	it, _ := deployedItem(t, bid, testConfig(bid, 0))

	tx := testTx(t, carol, deployTime+100, 30*tonUnits)
	_, err := it.ReceiveInternal(ctx, tx, internalMsg(dave, 11*tonUnits-1, nil))
	require.ErrorIs(t, err, core.ErrTooSmallStake)

	out, err := it.ReceiveInternal(ctx, tx, internalMsg(dave, 11*tonUnits, nil))
	require.Nil(t, err)
	require.Len(t, out, 1)
	require.Equal(t, carol, out[0].Destination)
	require.Equal(t, bid, out[0].Value)
	require.Equal(t, core.OpOutbidNotification, out[0].Op())
	require.True(t, out[0].Mode.PayFeesSeparately())

	state, _, _ := it.AuctionState()
	require.Equal(t, &dave, state.Bidder)
	require.Equal(t, 11*tonUnits, state.Bid)
	require.Equal(t, deployTime+3600, state.EndTime)

	late := testTx(t, carol, state.EndTime-10, 50*tonUnits)
	_, err = it.ReceiveInternal(ctx, late, internalMsg(bob, state.MinNextBid, nil))
	require.Nil(t, err)
	state, _, _ = it.AuctionState()
	require.Equal(t, &bob, state.Bidder)
	require.Equal(t, late.Now+600, state.EndTime)

	ended := testTx(t, carol, state.EndTime, 50*tonUnits)
	_, err = it.ReceiveInternal(ctx, ended, internalMsg(dave, 100*tonUnits, nil))
	require.ErrorIs(t, err, core.ErrForbiddenTopup)
}

func TestItemComments(t *testing.T) {
	bid := 10 * tonUnits
	topup, err := core.CommentBody(core.TopupComment)
	require.Nil(t, err)
	other, err := core.CommentBody("my bid")
	require.Nil(t, err)

	tests := []struct {
		name   string
		body   *boc.Cell
		bidder *ton.AccountID
	}{
		{name: "topup keeps the bid", body: topup, bidder: &carol},
		{name: "any other comment is a bid", body: other, bidder: &dave},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, _ := deployedItem(t, bid, testConfig(bid, 0))
			tx := testTx(t, carol, deployTime+1, 30*tonUnits)
			_, err := it.ReceiveInternal(context.Background(), tx, internalMsg(dave, 11*tonUnits, tt.body))
			require.Nil(t, err)
			state, _, _ := it.AuctionState()
			require.Equal(t, tt.bidder, state.Bidder)
		})
	}
}

func TestItemMaxBid(t *testing.T) {
	tests := []struct {
		name    string
		bid     uint64
		maxBid  uint64
		settled bool
	}{
		{name: "reaches max bid", bid: 20 * tonUnits, maxBid: 20 * tonUnits, settled: true},
		{name: "above max bid", bid: 25 * tonUnits, maxBid: 20 * tonUnits, settled: true},
		{name: "below max bid", bid: 20*tonUnits - 1, maxBid: 20 * tonUnits},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, out := deployedItem(t, tt.bid, testConfig(10*tonUnits, tt.maxBid))
			_, _, open := it.AuctionState()
			require.Equal(t, !tt.settled, open)
			if !tt.settled {
				require.Nil(t, it.Owner)
				require.Empty(t, out)
				return
			}
			require.Equal(t, &carol, it.Owner)
			require.Len(t, out, 3)
			require.Equal(t, alice, out[0].Destination)
			require.Equal(t, bob, out[1].Destination)
			require.Equal(t, carol, out[2].Destination)
			require.Equal(t, core.OpOwnershipAssigned, out[2].Op())
		})
	}
}

func TestItemCheckEnd(t *testing.T) {
	bid := 10 * tonUnits
	ctx := context.Background()
	it, _ := deployedItem(t, bid, testConfig(bid, 0))
	end := it.State.EndTime

	_, err := it.ReceiveExternal(ctx, testTx(t, carol, end-1, bid), nil)
	require.ErrorIs(t, err, core.ErrForbiddenNotStake)

	withOp, err := core.OpBody(core.OpFillUp)
	require.Nil(t, err)
	_, err = it.ReceiveExternal(ctx, testTx(t, carol, end, bid), withOp)
	require.ErrorIs(t, err, core.ErrUnknownOp)

	tx := testTx(t, carol, end, bid)
	out, err := it.ReceiveExternal(ctx, tx, nil)
	require.Nil(t, err)
	require.Equal(t, &carol, it.Owner)
	require.Len(t, out, 3)
	require.LessOrEqual(t, totalCost(t, tx, out), bid-DefaultParams().MinStorageReserve)

	_, err = it.ReceiveExternal(ctx, testTx(t, carol, end+1, bid), nil)
	require.ErrorIs(t, err, core.ErrNoAuction)
}

func TestItemCheckEndWithoutBids(t *testing.T) {
	it := ownedItem(t)
	ctx := context.Background()
	cfg := testConfig(10*tonUnits, 0)
	body, err := core.StartAuctionBody(3, cfg)
	require.Nil(t, err)
	_, err = it.ReceiveInternal(ctx, testTx(t, carol, deployTime+20, tonUnits), internalMsg(dave, tonUnits/10, body))
	require.Nil(t, err)

	out, err := it.ReceiveExternal(ctx, testTx(t, carol, it.State.EndTime, tonUnits), nil)
	require.Nil(t, err)
	require.Empty(t, out)
	require.Equal(t, &dave, it.Owner)
	_, _, open := it.AuctionState()
	require.False(t, open)
}

func TestItemStartAuction(t *testing.T) {
	ctx := context.Background()
	valid := testConfig(10*tonUnits, 0)
	invalid := valid
	invalid.MinBidStep = 0

	tests := []struct {
		name    string
		sender  ton.AccountID
		cfg     core.AuctionConfig
		wantErr error
	}{
		{name: "owner", sender: dave, cfg: valid},
		{name: "stranger", sender: bob, cfg: valid, wantErr: core.ErrForbiddenAuction},
		{name: "invalid config", sender: dave, cfg: invalid, wantErr: core.ErrInvalidAuctionConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := ownedItem(t)
			body, err := core.StartAuctionBody(77, tt.cfg)
			require.Nil(t, err)
			tx := testTx(t, carol, deployTime+20, tonUnits)
			out, err := it.ReceiveInternal(ctx, tx, internalMsg(tt.sender, tonUnits/10, body))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.True(t, it.Config.IsZero())
				return
			}
			require.Nil(t, err)
			require.Len(t, out, 1)
			require.Equal(t, dave, out[0].Destination)
			require.Equal(t, core.OpTeleitemOk, out[0].Op())
			queryID, err := core.ReadQueryID(out[0].Body)
			require.Nil(t, err)
			require.Equal(t, uint64(77), queryID)

			state, cfg, open := it.AuctionState()
			require.True(t, open)
			require.Equal(t, tt.cfg, cfg)
			require.Nil(t, state.Bidder)
			require.Equal(t, tt.cfg.MinBid, state.MinNextBid)
			require.Equal(t, tx.Now+tt.cfg.Duration, state.EndTime)

			_, err = it.ReceiveInternal(ctx, tx, internalMsg(dave, tonUnits/10, body))
			require.ErrorIs(t, err, core.ErrForbiddenNotStake)
		})
	}
}

func TestItemCancelAuction(t *testing.T) {
	ctx := context.Background()
	cancel, err := core.QueryBody(core.OpCancelAuction, 4)
	require.Nil(t, err)

	it := ownedItem(t)
	tx := testTx(t, carol, deployTime+20, tonUnits)
	_, err = it.ReceiveInternal(ctx, tx, internalMsg(dave, tonUnits/10, cancel))
	require.ErrorIs(t, err, core.ErrNoAuction)

	start, err := core.StartAuctionBody(3, testConfig(10*tonUnits, 0))
	require.Nil(t, err)
	_, err = it.ReceiveInternal(ctx, tx, internalMsg(dave, tonUnits/10, start))
	require.Nil(t, err)

	_, err = it.ReceiveInternal(ctx, tx, internalMsg(bob, tonUnits/10, cancel))
	require.ErrorIs(t, err, core.ErrForbiddenAuction)

	out, err := it.ReceiveInternal(ctx, tx, internalMsg(dave, tonUnits/10, cancel))
	require.Nil(t, err)
	require.Len(t, out, 1)
	require.Equal(t, core.OpTeleitemOk, out[0].Op())
	_, _, open := it.AuctionState()
	require.False(t, open)

	_, err = it.ReceiveInternal(ctx, tx, internalMsg(dave, tonUnits/10, start))
	require.Nil(t, err)
	_, err = it.ReceiveInternal(ctx, testTx(t, carol, deployTime+30, 20*tonUnits), internalMsg(bob, 10*tonUnits, nil))
	require.Nil(t, err)
	_, err = it.ReceiveInternal(ctx, tx, internalMsg(dave, tonUnits/10, cancel))
	require.ErrorIs(t, err, core.ErrAlreadyHasStakes)
}

func TestItemTransfer(t *testing.T) {
	ctx := context.Background()
	it := ownedItem(t)

	body, err := core.TransferRequest{
		QueryID:             8,
		NewOwner:            bob,
		ResponseDestination: &dave,
		ForwardAmount:       tonUnits / 100,
	}.ToCell()
	require.Nil(t, err)
	tx := testTx(t, carol, deployTime+20, tonUnits)

	_, err = it.ReceiveInternal(ctx, tx, internalMsg(carol, tonUnits/10, body))
	require.ErrorIs(t, err, core.ErrForbiddenTransfer)

	masterchain := bob
	masterchain.Workchain = -1
	toMasterchain, err := core.TransferRequest{QueryID: 8, NewOwner: masterchain}.ToCell()
	require.Nil(t, err)
	_, err = it.ReceiveInternal(ctx, tx, internalMsg(dave, tonUnits/10, toMasterchain))
	require.ErrorIs(t, err, core.ErrIncorrectWorkchain)
	require.Equal(t, &dave, it.Owner)

	out, err := it.ReceiveInternal(ctx, tx, internalMsg(dave, tonUnits/10, body))
	require.Nil(t, err)
	require.Equal(t, &bob, it.Owner)
	require.Len(t, out, 2)
	notice, err := core.ParseOwnershipAssigned(out[0].Body)
	require.Nil(t, err)
	require.Equal(t, &dave, notice.PrevOwner)
	require.Nil(t, notice.BidInfo)

	start, err := core.StartAuctionBody(3, testConfig(10*tonUnits, 0))
	require.Nil(t, err)
	_, err = it.ReceiveInternal(ctx, tx, internalMsg(bob, tonUnits/10, start))
	require.Nil(t, err)
	back, err := core.TransferRequest{QueryID: 9, NewOwner: dave}.ToCell()
	require.Nil(t, err)
	_, err = it.ReceiveInternal(ctx, tx, internalMsg(bob, tonUnits/10, back))
	require.ErrorIs(t, err, core.ErrForbiddenNotStake)
}

func TestItemRedeployIsABid(t *testing.T) {
	bid := 10 * tonUnits
	ctx := context.Background()

	tests := []struct {
		name      string
		value     uint64
		returned  bool
		newBidder *ton.AccountID
	}{
		{name: "outbids", value: 11 * tonUnits, newBidder: &dave},
		{name: "too small is returned", value: 10 * tonUnits, returned: true, newBidder: &carol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, _ := deployedItem(t, bid, testConfig(bid, 0))
			tx := testTx(t, carol, deployTime+5, 40*tonUnits)
			out, err := it.ReceiveInternal(ctx, tx, internalMsg(alice, tt.value, deployBody(t, dave, tt.value, testConfig(bid, 0))))
			require.Nil(t, err)
			state, _, _ := it.AuctionState()
			require.Equal(t, tt.newBidder, state.Bidder)
			require.Len(t, out, 1)
			if tt.returned {
				require.Equal(t, dave, out[0].Destination)
				require.Equal(t, core.OpTeleitemReturnBid, out[0].Op())
				require.Equal(t, tt.value, out[0].Value)
				return
			}
			require.Equal(t, carol, out[0].Destination)
			require.Equal(t, core.OpOutbidNotification, out[0].Op())
		})
	}
}

func TestItemQueries(t *testing.T) {
	ctx := context.Background()
	it, _ := deployedItem(t, 10*tonUnits, testConfig(10*tonUnits, 0))
	tx := testTx(t, carol, deployTime+1, 20*tonUnits)

	staticData, err := core.QueryBody(core.OpGetStaticData, 11)
	require.Nil(t, err)
	out, err := it.ReceiveInternal(ctx, tx, internalMsg(bob, tonUnits/10, staticData))
	require.Nil(t, err)
	require.Len(t, out, 1)
	require.Equal(t, core.OpReportStaticData, out[0].Op())
	_, err = core.ReadQueryID(out[0].Body)
	require.Nil(t, err)
	raw, err := out[0].Body.ReadBytes(32)
	require.Nil(t, err)
	require.Equal(t, testIndex[:], raw)

	royalty, err := core.QueryBody(core.OpGetRoyaltyParams, 12)
	require.Nil(t, err)
	out, err = it.ReceiveInternal(ctx, tx, internalMsg(bob, tonUnits/10, royalty))
	require.Nil(t, err)
	require.Len(t, out, 1)
	require.Equal(t, core.OpReportRoyalty, out[0].Op())
	_, err = core.ReadQueryID(out[0].Body)
	require.Nil(t, err)
	params, err := core.ReadRoyaltyParams(out[0].Body)
	require.Nil(t, err)
	require.Equal(t, it.Royalty, params)

	unknown, err := core.QueryBody(core.OpExcesses, 1)
	require.Nil(t, err)
	_, err = it.ReceiveInternal(ctx, tx, internalMsg(bob, tonUnits/10, unknown))
	require.ErrorIs(t, err, core.ErrUnknownOp)
}

func TestItemDataRoundTrip(t *testing.T) {
	bid := 10 * tonUnits
	live, _ := deployedItem(t, bid, testConfig(bid, 0))
	owned := ownedItem(t)
	fresh := NewItem(DefaultParams(), testIndex, alice)

	for name, it := range map[string]*Item{"live auction": live, "owned": owned, "uninited": fresh} {
		t.Run(name, func(t *testing.T) {
			data, err := it.Data()
			require.Nil(t, err)
			got, err := LoadItem(DefaultParams(), data)
			require.Nil(t, err)
			require.Equal(t, it.Index, got.Index)
			require.Equal(t, it.Collection, got.Collection)
			require.Equal(t, it.Inited, got.Inited)
			require.Equal(t, it.Owner, got.Owner)
			require.Equal(t, it.TokenName, got.TokenName)
			require.Equal(t, it.Domain, got.Domain)
			require.Equal(t, it.Config, got.Config)
			require.Equal(t, it.State, got.State)
			if it.Inited {
				require.Equal(t, it.Royalty, got.Royalty)
			}
		})
	}
}

func TestItemAddressIsStable(t *testing.T) {
	first, err := ItemAddress(0, testIndex, alice)
	require.Nil(t, err)
	second, err := ItemAddress(0, testIndex, alice)
	require.Nil(t, err)
	other, err := ItemAddress(0, TokenIndex("pavel"), alice)
	require.Nil(t, err)
	require.Equal(t, first, second)
	require.NotEqual(t, first, other)

	it := NewItem(DefaultParams(), testIndex, alice)
	init, err := ledger.StateInit(it)
	require.Nil(t, err)
	addr, err := init.Address(0)
	require.Nil(t, err)
	require.Equal(t, first, addr)
}
