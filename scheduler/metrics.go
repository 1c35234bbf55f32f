package scheduler

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	convoymetrics "github.com/convoycd/convoy/metrics"
)

type Metrics struct {
	JobDuration   metrics.Histogram
	StageDuration metrics.Histogram
}

func NewMetrics() Metrics {
	return Metrics{
		JobDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "convoy",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Duration of individual jobs, in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{convoymetrics.LabelJob, convoymetrics.LabelStage, convoymetrics.LabelSuccess}),
		StageDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "convoy",
			Subsystem: "scheduler",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each stage, barrier to barrier, in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{convoymetrics.LabelStage}),
	}
}

func (m Metrics) observeJob(job, stage string, begin time.Time, err error) {
	if m.JobDuration == nil {
		return
	}
	m.JobDuration.With(
		convoymetrics.LabelJob, job,
		convoymetrics.LabelStage, stage,
		convoymetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(begin).Seconds())
}

func (m Metrics) observeStage(stage string, begin time.Time) {
	if m.StageDuration == nil {
		return
	}
	m.StageDuration.With(convoymetrics.LabelStage, stage).Observe(time.Since(begin).Seconds())
}
