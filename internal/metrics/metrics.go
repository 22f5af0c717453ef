package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records round loop measurements into a Prometheus registry.
type Metrics struct {
	Rounds          prometheus.Counter
	CrashPoints     prometheus.Histogram
	BetsPlaced      prometheus.Counter
	Wagered         prometheus.Counter
	BetsRejected    *prometheus.CounterVec
	Paid            prometheus.Counter
	CreditFailures  *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	TickSeconds     prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_rounds_total",
			Help: "Total rounds started",
		}),
		CrashPoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crash_round_crash_point",
			Help:    "Crash point of settled rounds",
			Buckets: []float64{1, 1.5, 2, 3, 5, 10, 25, 100, 1000},
		}),
		BetsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_bets_placed_total",
			Help: "Total bets admitted to a round",
		}),
		Wagered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_wagered_cents_total",
			Help: "Total cents debited for admitted bets",
		}),
		BetsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crash_bets_rejected_total",
			Help: "Total rejected bets by reason",
		}, []string{"reason"}),
		Paid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crash_paid_cents_total",
			Help: "Total cents paid out to winning bets",
		}),
		CreditFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crash_credit_failed_total",
			Help: "Total failed wallet credits by reason",
		}, []string{"reason"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crash_publish_failed_total",
			Help: "Total failed event publishes by event type",
		}, []string{"type"}),
		TickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crash_tick_duration_seconds",
			Help:    "Time spent in one synchronous tick",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
	}

	reg.MustRegister(
		m.Rounds,
		m.CrashPoints,
		m.BetsPlaced,
		m.Wagered,
		m.BetsRejected,
		m.Paid,
		m.CreditFailures,
		m.PublishFailures,
		m.TickSeconds,
	)
	return m
}

func (m *Metrics) RoundStarted() { m.Rounds.Inc() }

func (m *Metrics) RoundCrashed(crashPoint float64) { m.CrashPoints.Observe(crashPoint) }

func (m *Metrics) BetPlaced(amountCents int64) {
	m.BetsPlaced.Inc()
	m.Wagered.Add(float64(amountCents))
}

func (m *Metrics) BetRejected(reason string)    { m.BetsRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) Payout(cents int64)           { m.Paid.Add(float64(cents)) }
func (m *Metrics) CreditFailed(reason string)   { m.CreditFailures.WithLabelValues(reason).Inc() }
func (m *Metrics) PublishFailed(kind string)    { m.PublishFailures.WithLabelValues(kind).Inc() }
func (m *Metrics) TickDuration(d time.Duration) { m.TickSeconds.Observe(d.Seconds()) }
