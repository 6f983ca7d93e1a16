package config

import (
	"log"
	"reflect"

	"github.com/caarlos0/env/v6"
	"github.com/tonkeeper/tongo/config"

	"github.com/arnac-io/teleauction/pkg/auction"
)

type Config struct {
	App struct {
		LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`
		MetricsPort int    `env:"METRICS_PORT" envDefault:"9010"`
		SentryDSN   string `env:"SENTRY_DSN"`
	}
	Ledger struct {
		LiteServers   liteServers `env:"LITE_SERVERS"`
		Workchain     int32       `env:"WORKCHAIN" envDefault:"0"`
		StorePath     string      `env:"ITEM_STORE_PATH"`
		MaxGoroutines int         `env:"MAX_GOROUTINES" envDefault:"0"`
	}
	Auction struct {
		MinStorageReserve uint64 `env:"MIN_STORAGE_RESERVE" envDefault:"30000000"`
		MinBidIncrement   uint64 `env:"MIN_BID_INCREMENT" envDefault:"1000000000"`
		DeployReserve     uint64 `env:"DEPLOY_RESERVE" envDefault:"30000000"`
		MaxDuration       uint32 `env:"MAX_AUCTION_DURATION" envDefault:"31536000"`
		MaxExtendTime     uint32 `env:"MAX_EXTEND_TIME" envDefault:"604800"`
	}
}

type liteServers []config.LiteServer

func Load() Config {
	var c Config
	if err := env.ParseWithFuncs(&c, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(liteServers{}): func(v string) (interface{}, error) {
			servers, err := config.ParseLiteServersEnvVar(v)
			if err != nil {
				return nil, err
			}
			return liteServers(servers), nil
		}}); err != nil {
		log.Panicf("[‼️  Config parsing failed] %+v\n", err)
	}

	return c
}

func (c Config) LiteServers() []config.LiteServer {
	return c.Ledger.LiteServers
}

func (c Config) AuctionParams() auction.Params {
	return auction.Params{
		MinStorageReserve: c.Auction.MinStorageReserve,
		MinBidIncrement:   c.Auction.MinBidIncrement,
		DeployReserve:     c.Auction.DeployReserve,
		MaxDuration:       c.Auction.MaxDuration,
		MaxExtendTime:     c.Auction.MaxExtendTime,
		Workchain:         c.Ledger.Workchain,
	}
}
