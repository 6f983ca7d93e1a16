package auction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tonkeeper/tongo/ton"

	"github.com/arnac-io/teleauction/pkg/blockchain"
	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/ledger"
)

var (
	alice = ton.MustParseAccountID("0:2cf3b5b8c891e517c9addbda1c0386a09ccacbb0e3faf630b51cfc8152325acb")
	bob   = ton.MustParseAccountID("0:14ac072c56291232d7cd93ddec120235c5e5cf5e2027f49bbc5aa276e5d224d8")
	carol = ton.MustParseAccountID("0:3b9bbfd0ad5338b9700f0833380ee17d463e51c1ae671ee6f08901bde899b202")
	dave  = ton.MustParseAccountID("0:0e0ef6dac3a64b9f29e4b9c5c98ad0b8a0a3f05d6e2cb52b2a4fcb43c32c1c06")
)

const tonUnits = uint64(ton.OneTON)

func testPrices(t *testing.T) blockchain.Prices {
	p, err := blockchain.LoadPrices(context.Background(), blockchain.DefaultConfig(), 0)
	require.Nil(t, err)
	return p
}

func testTx(t *testing.T, self ton.AccountID, now uint32, balance uint64) *ledger.TxContext {
	return &ledger.TxContext{
		Self:    self,
		Now:     now,
		Lt:      1000,
		Balance: balance,
		Prices:  testPrices(t),
	}
}

// testConfig is an auction config with the given bid bounds and a one hour
// duration.
func testConfig(minBid, maxBid uint64) core.AuctionConfig {
	return core.AuctionConfig{
		Beneficiary:   &bob,
		MinBid:        minBid,
		MaxBid:        maxBid,
		MinBidStep:    10,
		MinExtendTime: 600,
		Duration:      3600,
	}
}

// messageCost is what sending m took from the sender balance.
func messageCost(t *testing.T, tx *ledger.TxContext, m core.Message) uint64 {
	f, err := tx.ForwardFees(m)
	require.Nil(t, err)
	if m.Mode.PayFeesSeparately() {
		return m.Value + f.Total
	}
	return m.Value
}

func totalCost(t *testing.T, tx *ledger.TxContext, msgs []core.Message) uint64 {
	var sum uint64
	for _, m := range msgs {
		sum += messageCost(t, tx, m)
	}
	return sum
}
