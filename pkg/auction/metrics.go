package auction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var auctionEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "teleauction_auction_events",
		Help: "Number of accepted auction transitions",
	},
	[]string{"event"},
)

const (
	eventDeploy   = "deploy"
	eventBid      = "bid"
	eventOutbid   = "outbid"
	eventSettle   = "settle"
	eventExpire   = "expire"
	eventStart    = "start"
	eventCancel   = "cancel"
	eventTransfer = "transfer"
	eventReturn   = "return_bid"
)

func recordEvent(event string) {
	auctionEvents.WithLabelValues(event).Inc()
}
