package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		merchantRequestsTotal,
		merchantLatencyMs,
		transactionsTotal,
		transactionsRevenueTiyin,
		cardTokenizationsTotal,
	)
}

var (
	merchantRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merchant_requests_total",
			Help: "Merchant webhook calls by method and outcome.",
		},
		[]string{"method", "outcome"}, // outcome: 'ok', 'error'
	)

	merchantLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "merchant_request_latency_ms",
			Help:    "Merchant webhook handling latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000},
		},
		[]string{"method"},
	)

	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_total",
			Help: "Transaction terminal outcomes by provider.",
		},
		[]string{"provider", "status"}, // status: 'paid', 'canceled', 'failed'
	)

	transactionsRevenueTiyin = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_revenue_tiyin_total",
			Help: "Settled revenue per provider, in tiyin.",
		},
		[]string{"provider"},
	)

	cardTokenizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "card_tokenizations_total",
			Help: "Card tokenization attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"}, // outcome: 'issued', 'verified', 'failed'
	)
)

func IncMerchantRequest(method, outcome string) {
	merchantRequestsTotal.WithLabelValues(norm(method), norm(outcome)).Inc()
}

func ObserveMerchantLatency(method string, ms float64) {
	merchantLatencyMs.WithLabelValues(norm(method)).Observe(ms)
}

func IncTransaction(provider, status string) {
	transactionsTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func AddRevenue(provider string, amountTiyin int64) {
	transactionsRevenueTiyin.WithLabelValues(norm(provider)).Add(float64(amountTiyin))
}

func IncCardTokenization(provider, outcome string) {
	cardTokenizationsTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}
