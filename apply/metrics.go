package apply

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	convoymetrics "github.com/convoycd/convoy/metrics"
)

type Metrics struct {
	StepDuration metrics.Histogram
}

func NewMetrics() Metrics {
	return Metrics{
		StepDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "convoy",
			Subsystem: "apply",
			Name:      "step_duration_seconds",
			Help:      "Duration of each apply step, in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{convoymetrics.LabelInstance, convoymetrics.LabelStep, convoymetrics.LabelSuccess}),
	}
}

func (m Metrics) observeStep(instanceName, step string, begin time.Time, err error) {
	if m.StepDuration == nil {
		return
	}
	m.StepDuration.With(
		convoymetrics.LabelInstance, instanceName,
		convoymetrics.LabelStep, step,
		convoymetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(begin).Seconds())
}
