package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/shopspring/decimal"
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/ton"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/arnac-io/teleauction/pkg/app"
	"github.com/arnac-io/teleauction/pkg/blockchain"
	"github.com/arnac-io/teleauction/pkg/config"
	"github.com/arnac-io/teleauction/pkg/core"
	"github.com/arnac-io/teleauction/pkg/fees"
)

func main() {
	cfg := config.Load()
	logger := app.Logger(cfg.App.LogLevel)
	defer logger.Sync()

	application := &cli.App{
		Name:  "feecalc",
		Usage: "reproduce ledger fees and run auctions in a local sandbox",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config-boc", Usage: "blockchain config dictionary as base64 BOC", EnvVars: []string{"CONFIG_BOC"}},
			&cli.BoolFlag{Name: "live", Usage: "read prices from lite servers"},
			&cli.IntFlag{Name: "workchain", Value: int(cfg.Ledger.Workchain)},
		},
		Commands: []*cli.Command{
			{
				Name:  "forward",
				Usage: "forward fee of a message",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "body", Usage: "message body as base64 BOC"},
					&cli.StringFlag{Name: "code", Usage: "state init code as base64 BOC"},
					&cli.StringFlag{Name: "data", Usage: "state init data as base64 BOC"},
					&cli.IntFlag{Name: "split-depth", Value: -1},
					&cli.Uint64Flag{Name: "declared", Usage: "declared forward fee to reconstruct the split from"},
				},
				Action: func(c *cli.Context) error {
					return forward(c, logger, cfg)
				},
			},
			{
				Name:  "storage",
				Usage: "storage fee of a cell tree",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cell", Usage: "root cell as base64 BOC", Required: true},
					&cli.UintFlag{Name: "duration", Usage: "seconds", Value: 365 * 24 * 60 * 60},
				},
				Action: func(c *cli.Context) error {
					return storage(c, logger, cfg)
				},
			},
			{
				Name:  "simulate",
				Usage: "run an auction in the sandbox and print its transactions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "token", Value: "example"},
					&cli.Uint64Flag{Name: "min-bid", Value: 10 * uint64(ton.OneTON)},
					&cli.Uint64Flag{Name: "max-bid", Value: 0},
					&cli.UintFlag{Name: "duration", Value: 3600},
					&cli.BoolFlag{Name: "metrics", Usage: "serve /metrics while running"},
				},
				Action: func(c *cli.Context) error {
					return simulate(c, logger, cfg)
				},
			},
		},
	}
	if err := application.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func configSource(c *cli.Context, logger *zap.Logger, cfg config.Config) (blockchain.ConfigSource, error) {
	if s := c.String("config-boc"); s != "" {
		return blockchain.StaticConfigFromBase64(s)
	}
	if !c.Bool("live") {
		return blockchain.DefaultConfig(), nil
	}
	lite, err := blockchain.NewLiteConfigSource(logger, blockchain.WithLiteServers(cfg.LiteServers()))
	if err != nil {
		return nil, err
	}
	return lite.Snapshot(c.Context)
}

func loadPrices(c *cli.Context, logger *zap.Logger, cfg config.Config) (blockchain.Prices, error) {
	src, err := configSource(c, logger, cfg)
	if err != nil {
		return blockchain.Prices{}, err
	}
	return blockchain.LoadPrices(context.Background(), src, int32(c.Int("workchain")))
}

func optionalCell(s string) (*boc.Cell, error) {
	if s == "" {
		return nil, nil
	}
	return boc.DeserializeSinglRootBase64(s)
}

func formatTON(nano uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(nano), -9).String()
}

func forward(c *cli.Context, logger *zap.Logger, cfg config.Config) error {
	prices, err := loadPrices(c, logger, cfg)
	if err != nil {
		return err
	}
	body, err := optionalCell(c.String("body"))
	if err != nil {
		return fmt.Errorf("body: %w", err)
	}
	code, err := optionalCell(c.String("code"))
	if err != nil {
		return fmt.Errorf("code: %w", err)
	}
	data, err := optionalCell(c.String("data"))
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	wc := int32(c.Int("workchain"))
	msg := core.Message{
		Source:      &ton.AccountID{Workchain: wc},
		Destination: ton.AccountID{Workchain: wc},
		Body:        body,
	}
	if code != nil || data != nil {
		msg.Init = &core.StateInit{Code: code, Data: data}
		if d := c.Int("split-depth"); d >= 0 {
			depth := uint8(d)
			msg.Init.SplitDepth = &depth
		}
	}
	var f fees.FwdFees
	if declared := c.Uint64("declared"); declared > 0 {
		msg.FwdFee = declared
		f, err = fees.MessageForwardFee(prices.Msg, &msg)
	} else {
		var layout fees.Layout
		f, layout, err = fees.ComputeMessageFees(prices.Msg, &msg)
		fmt.Printf("init in ref: %v, body in ref: %v\n", layout.InitInRef, layout.BodyInRef)
	}
	if err != nil {
		return err
	}
	fmt.Printf("total:     %v TON\nihr:       %v TON\nremaining: %v TON\n",
		formatTON(f.Total), formatTON(f.IHR), formatTON(f.Remaining))
	return nil
}

func storage(c *cli.Context, logger *zap.Logger, cfg config.Config) error {
	prices, err := loadPrices(c, logger, cfg)
	if err != nil {
		return err
	}
	cell, err := boc.DeserializeSinglRootBase64(c.String("cell"))
	if err != nil {
		return err
	}
	stats, err := fees.CollectCellStats(cell, fees.Visited{}, false, false)
	if err != nil {
		return err
	}
	fee := prices.StorageFee(stats, uint32(c.Uint("duration")))
	fmt.Printf("cells: %v, bits: %v\nstorage fee: %v TON\n", stats.Cells, stats.Bits, formatTON(fee))
	return nil
}
