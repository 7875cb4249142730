package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_checkin_tokens_issued_total",
		Help: "Check-in tokens issued.",
	})

	redeemOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_checkin_redeems_total",
		Help: "Check-in redeem attempts by outcome.",
	}, []string{"outcome"})
)
