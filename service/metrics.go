package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names
const (
	MetricChallengesIssued   = "walletlink_challenges_issued_total"
	MetricVerifications      = "walletlink_verifications_total"
	MetricSuspiciousActivity = "walletlink_suspicious_activity_total"
)

// Verification outcomes used as the outcome label
const (
	OutcomeVerified         = "verified"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeNoChallenge      = "no_challenge"
	OutcomeRateLimited      = "rate_limited"
	OutcomeError            = "error"
)

// Metrics holds the Prometheus collectors of the wallet service.
// All operations are thread-safe.
type Metrics struct {
	challengesIssued prometheus.Counter
	verifications    *prometheus.CounterVec
	suspicious       *prometheus.CounterVec
}

// NewMetrics creates the collectors. They are not registered; call Register.
func NewMetrics() *Metrics {
	return &Metrics{
		challengesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricChallengesIssued,
			Help: "Total number of wallet ownership challenges issued",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricVerifications,
			Help: "Total number of signed challenge submissions by outcome",
		}, []string{"outcome"}),
		suspicious: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSuspiciousActivity,
			Help: "Total number of suspicious activity records by reason",
		}, []string{"reason"}),
	}
}

// Register registers all collectors with reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns every collector owned by m
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.challengesIssued,
		m.verifications,
		m.suspicious,
	}
}

func (m *Metrics) incChallengesIssued() {
	m.challengesIssued.Inc()
}

func (m *Metrics) incVerification(outcome string) {
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incSuspicious(reason string) {
	m.suspicious.WithLabelValues(reason).Inc()
}
