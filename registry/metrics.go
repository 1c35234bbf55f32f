package registry

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	convoymetrics "github.com/convoycd/convoy/metrics"
)

type Metrics struct {
	// Latency of each registry request, by kind of request.
	RequestDuration metrics.Histogram
}

const (
	LabelRequestKind = "kind"

	RequestKindPush    = "push"
	RequestKindPull    = "pull"
	RequestKindTag     = "tag"
	RequestKindResolve = "resolve"
)

func NewMetrics() Metrics {
	return Metrics{
		RequestDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "convoy",
			Subsystem: "registry",
			Name:      "request_duration_seconds",
			Help:      "Duration of artifact registry requests, in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{LabelRequestKind, convoymetrics.LabelSuccess}),
	}
}

// Instrument wraps a Client so every request is timed.
func Instrument(c Client, m Metrics) Client {
	return &instrumentedClient{next: c, metrics: m}
}

type instrumentedClient struct {
	next    Client
	metrics Metrics
}

func (i *instrumentedClient) observe(kind string, begin time.Time, err error) {
	i.metrics.RequestDuration.With(
		LabelRequestKind, kind,
		convoymetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(begin).Seconds())
}

func (i *instrumentedClient) Push(ctx context.Context, key string, content io.Reader) (a Artifact, err error) {
	defer func(begin time.Time) { i.observe(RequestKindPush, begin, err) }(time.Now())
	return i.next.Push(ctx, key, content)
}

func (i *instrumentedClient) Pull(ctx context.Context, key string) (a Artifact, rc io.ReadCloser, err error) {
	defer func(begin time.Time) { i.observe(RequestKindPull, begin, err) }(time.Now())
	return i.next.Pull(ctx, key)
}

func (i *instrumentedClient) Tag(ctx context.Context, key, alias string) (err error) {
	defer func(begin time.Time) { i.observe(RequestKindTag, begin, err) }(time.Now())
	return i.next.Tag(ctx, key, alias)
}

func (i *instrumentedClient) Resolve(ctx context.Context, alias string) (a Artifact, err error) {
	defer func(begin time.Time) { i.observe(RequestKindResolve, begin, err) }(time.Now())
	return i.next.Resolve(ctx, alias)
}
