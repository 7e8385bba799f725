package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BountiesTotal counts bounty lifecycle transitions by outcome status
	BountiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_transitions_total",
			Help: "Total number of bounty lifecycle transitions",
		},
		[]string{"status"},
	)

	// PayoutAmount tracks paid out amounts by token
	PayoutAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bounty_payout_amount",
			Help:    "Amount of tokens paid out per completed bounty",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 10000, 100000},
		},
		[]string{"token"},
	)

	// WebhookDeliveries counts inbound webhook deliveries by terminal status
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_webhook_deliveries_total",
			Help: "Total number of inbound webhook deliveries",
		},
		[]string{"status"},
	)

	// SweepCycles counts relayer sweep cycles by result
	SweepCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_sweep_cycles_total",
			Help: "Total number of relayer sweep cycles",
		},
		[]string{"result"},
	)

	// SweepDuration tracks how long a full sweep cycle takes
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bounty_sweep_duration_seconds",
			Help:    "Relayer sweep cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SweepProcessed counts claimed bounties examined by a sweep, by outcome
	SweepProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_sweep_processed_total",
			Help: "Total number of claimed bounties examined by the sweep",
		},
		[]string{"outcome"},
	)

	// EscrowCalls counts on-chain escrow contract calls by operation and status
	EscrowCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_escrow_calls_total",
			Help: "Total number of escrow contract transactions",
		},
		[]string{"operation", "status"},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bounty_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
