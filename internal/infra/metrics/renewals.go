package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(renewalsTotal, renewalScanDue, reconcilerSweptTotal, settlementMismatchTotal, periodsExpiredTotal)
}

var (
	renewalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "renewals_total",
			Help: "Recurring charge outcomes by provider.",
		},
		[]string{"provider", "outcome"}, // outcome: 'success', 'declined', 'error'
	)

	renewalScanDue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "renewal_scan_due",
			Help: "Periods picked up by the last renewal scan.",
		},
	)

	reconcilerSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_swept_total",
			Help: "Stale pending transactions canceled by the reconciler.",
		},
	)

	settlementMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_mismatch_total",
			Help: "Paid transactions found without a matching period row.",
		},
	)

	periodsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "periods_expired_total",
			Help: "Lapsed periods closed out as expired.",
		},
	)
)

func IncRenewal(provider, outcome string) {
	renewalsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func SetRenewalDue(n int) {
	renewalScanDue.Set(float64(n))
}

func AddReconcilerSwept(n int) {
	reconcilerSweptTotal.Add(float64(n))
}

func IncSettlementMismatch() {
	settlementMismatchTotal.Inc()
}

func AddPeriodsExpired(n int) {
	periodsExpiredTotal.Add(float64(n))
}
