package blockchain

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/config"
	"github.com/tonkeeper/tongo/liteapi"
	"github.com/tonkeeper/tongo/tlb"
	"go.uber.org/zap"
)

var configFetchHistogram = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "teleauction_config_fetch_time",
		Help:    "Blockchain config fetch duration distribution in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	},
	[]string{"source"},
)

// LiteConfigSource reads config params from lite servers.
type LiteConfigSource struct {
	logger *zap.Logger
	client *liteapi.Client
}

type Options struct {
	servers []config.LiteServer
}

type Option func(o *Options)

func WithLiteServers(servers []config.LiteServer) Option {
	return func(o *Options) {
		o.servers = servers
	}
}

func NewLiteConfigSource(log *zap.Logger, opts ...Option) (*LiteConfigSource, error) {
	o := &Options{}
	for i := range opts {
		opts[i](o)
	}
	var (
		client *liteapi.Client
		err    error
	)
	if len(o.servers) == 0 {
		log.Warn("USING PUBLIC CONFIG! BE CAREFUL!")
		client, err = liteapi.NewClientWithDefaultMainnet()
	} else {
		client, err = liteapi.NewClient(liteapi.WithLiteServers(o.servers))
	}
	if err != nil {
		return nil, err
	}
	return &LiteConfigSource{logger: log, client: client}, nil
}

// ConfigParam fetches the latest config on every call.
func (s *LiteConfigSource) ConfigParam(ctx context.Context, id uint32) (*boc.Cell, error) {
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		configFetchHistogram.WithLabelValues("lite").Observe(v)
	}))
	defer timer.ObserveDuration()

	var params tlb.ConfigParams
	err := retry.Do(func() error {
		p, err := s.client.GetConfigAll(ctx, 0)
		if err != nil {
			return err
		}
		params = p
		return nil
	}, retry.Attempts(10), retry.Delay(10*time.Millisecond), retry.Context(ctx))
	if err != nil {
		s.logger.Error("failed to fetch blockchain config", zap.Uint32("param", id), zap.Error(err))
		return nil, err
	}
	ref, ok := params.Config.Get(tlb.Uint32(id))
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrParamNotFound, id)
	}
	cell := ref.Value
	return &cell, nil
}

// Snapshot fetches the whole config once and keeps it as a StaticConfig.
func (s *LiteConfigSource) Snapshot(ctx context.Context) (*StaticConfig, error) {
	params, err := s.client.GetConfigAll(ctx, 0)
	if err != nil {
		return nil, err
	}
	return StaticConfigFromParams(params)
}
