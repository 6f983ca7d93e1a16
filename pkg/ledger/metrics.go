package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	txTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teleauction_ledger_tx_seconds",
			Help:    "Time spent executing one transaction",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"kind"},
	)
	abortedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teleauction_ledger_aborted_tx",
			Help: "Number of aborted transactions by exit code",
		},
		[]string{"exit_code"},
	)
	desyncCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teleauction_fee_model_desync",
			Help: "Number of outbound messages whose forward fee could not be reproduced",
		},
	)
)
