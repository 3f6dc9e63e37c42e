package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeIssued             = "issued"
	outcomeCached             = "cached"
	outcomePreview            = "preview"
	outcomeNotFound           = "campaign_unavailable"
	outcomeDisabled           = "discount_disabled"
	outcomeRateLimited        = "rate_limited"
	outcomeProvisioningFailed = "provisioning_failed"
	outcomeError              = "error"
)

var (
	issuanceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discount_issuance_total",
			Help: "Total discount issuance attempts by outcome.",
		},
		[]string{"outcome"},
	)

	provisioningDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discount_provisioning_duration_seconds",
			Help:    "Latency of provisioning gateway calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5},
		},
	)
)

func recordOutcome(outcome string) {
	issuanceTotal.WithLabelValues(outcome).Inc()
}

func observeProvisioning(seconds float64) {
	provisioningDuration.Observe(seconds)
}
