package rollout

import (
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	convoymetrics "github.com/convoycd/convoy/metrics"
)

type Metrics struct {
	RolloutDuration metrics.Histogram
}

const labelStatus = "status"

func NewMetrics() Metrics {
	return Metrics{
		RolloutDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "convoy",
			Subsystem: "rollout",
			Name:      "duration_seconds",
			Help:      "Duration of rollouts, in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{convoymetrics.LabelStrategy, labelStatus}),
	}
}

func (m Metrics) observeRollout(strategy string, begin time.Time, status Status) {
	if m.RolloutDuration == nil {
		return
	}
	m.RolloutDuration.With(
		convoymetrics.LabelStrategy, strategy,
		labelStatus, string(status),
	).Observe(time.Since(begin).Seconds())
}
