package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/tonkeeper/tongo/ton"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/arnac-io/teleauction/pkg/app"
	"github.com/arnac-io/teleauction/pkg/auction"
	"github.com/arnac-io/teleauction/pkg/config"
	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/ledger"
	"github.com/arnac-io/teleauction/pkg/sentry"
)

const (
	subwalletID   = 1
	walletBalance = 10_000 * uint64(ton.OneTON)
)

type step struct {
	name string
	run  func() ([]ledger.Transaction, error)
}

// simulate deploys a collection, lets two wallets bid on one token and
// settles the auction once it expires.
func simulate(c *cli.Context, logger *zap.Logger, cfg config.Config) error {
	if err := sentry.Init(cfg.App.SentryDSN); err != nil {
		logger.Warn("sentry disabled", zap.Error(err))
	}
	defer sentry.Flush()
	if c.Bool("metrics") {
		stop := app.ServeMetrics(logger, cfg.App.MetricsPort)
		defer stop()
	}
	src, err := configSource(c, logger, cfg)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	params := cfg.AuctionParams()
	sandbox := ledger.NewSandbox(
		ledger.WithLogger(logger),
		ledger.WithConfig(src),
		ledger.WithStore(store),
		ledger.WithMaxGoroutines(cfg.Ledger.MaxGoroutines),
	)
	defer sandbox.Close()
	sandbox.RegisterCode(auction.ItemCode(), auction.ItemFactory(params, auction.WithItemLogger(logger)))
	sandbox.RegisterCode(auction.CollectionCode(), auction.CollectionFactory(params, auction.WithCollectionLogger(logger)))

	ctx := c.Context
	wallets := make([]ton.AccountID, 3)
	for i := range wallets {
		if wallets[i], err = sandbox.Deploy(ctx, ledger.NewWallet(uint32(i)), walletBalance); err != nil {
			return err
		}
	}
	owner, first, second := wallets[0], wallets[1], wallets[2]

	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	content, err := core.OffchainContent("https://example.com/collection.json").ToCell()
	if err != nil {
		return err
	}
	royalty := core.RoyaltyParams{Factor: 5, Base: 100, Destination: owner}
	collection := auction.NewCollection(params, subwalletID, pub, content, "t.me", royalty,
		auction.WithCollectionLogger(logger))
	collectionAddr, err := sandbox.Deploy(ctx, collection, uint64(ton.OneTON))
	if err != nil {
		return err
	}

	now := sandbox.Now()
	minBid := c.Uint64("min-bid")
	body, err := core.SignDeployment(key, core.OpTelemintDeployV2, core.DeploymentRequest{
		SubwalletID: subwalletID,
		ValidSince:  now - 60,
		ValidTill:   now + 600,
		TokenName:   c.String("token"),
		Content:     core.OffchainContent("https://example.com/" + c.String("token") + ".json"),
		AuctionConfig: core.AuctionConfig{
			Beneficiary:   &owner,
			MinBid:        minBid,
			MaxBid:        c.Uint64("max-bid"),
			MinBidStep:    5,
			MinExtendTime: 600,
			Duration:      uint32(c.Uint("duration")),
		},
	})
	if err != nil {
		return err
	}
	index := auction.TokenIndex(c.String("token"))
	itemAddr, err := collection.ItemAddress(collectionAddr, index)
	if err != nil {
		return err
	}
	steps := []step{
		{"deploy", func() ([]ledger.Transaction, error) {
			return sandbox.Send(ctx, core.Message{
				Source:      &first,
				Destination: collectionAddr,
				Value:       minBid + params.DeployReserve,
				Bounce:      true,
				Body:        body,
				Mode:        core.SendModePayFeesSeparately,
			})
		}},
		{"outbid", func() ([]ledger.Transaction, error) {
			it, ok := sandbox.Contract(itemAddr)
			if !ok {
				return nil, fmt.Errorf("item %v was not deployed", itemAddr.ToRaw())
			}
			state, _, _ := it.(*auction.Item).AuctionState()
			return sandbox.Send(ctx, core.Message{
				Source:      &second,
				Destination: itemAddr,
				Value:       state.MinNextBid,
				Bounce:      true,
				Mode:        core.SendModePayFeesSeparately,
			})
		}},
		{"check end", func() ([]ledger.Transaction, error) {
			it, ok := sandbox.Contract(itemAddr)
			if !ok {
				return nil, nil
			}
			state, _, open := it.(*auction.Item).AuctionState()
			if !open {
				return nil, nil
			}
			sandbox.SetNow(state.EndTime)
			return sandbox.SendExternal(ctx, itemAddr, nil)
		}},
	}
	for _, st := range steps {
		txs, err := st.run()
		if err != nil {
			return fmt.Errorf("%v: %w", st.name, err)
		}
		fmt.Printf("== %v\n", st.name)
		for _, tx := range txs {
			printTransaction(tx)
		}
	}
	fmt.Println("== balances")
	for _, addr := range sandbox.Accounts() {
		fmt.Printf("%v %v TON\n", addr.ToRaw(), formatTON(sandbox.Balance(addr)))
	}
	return nil
}

func openStore(cfg config.Config) (ledger.Store, error) {
	if cfg.Ledger.StorePath == "" {
		return ledger.NewMemoryStore(), nil
	}
	return ledger.NewBoltStore(cfg.Ledger.StorePath)
}

func printTransaction(tx ledger.Transaction) {
	status := "ok"
	if tx.Aborted {
		status = fmt.Sprintf("aborted (%v)", tx.Err)
	}
	fmt.Printf("%v lt=%v op=%v value=%v %v\n",
		tx.Account.ToRaw(), tx.Lt, tx.InMsg.Op(), formatTON(tx.InMsg.Value), status)
	for _, m := range tx.OutMsgs {
		fmt.Printf("  -> %v op=%v value=%v fwd_fee=%v\n",
			m.Destination.ToRaw(), m.Op(), formatTON(m.Value), formatTON(m.FwdFee))
	}
}
