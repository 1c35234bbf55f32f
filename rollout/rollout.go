// Package rollout sequences apply calls across a set of instances to
// realize a deployment strategy without taking every instance down at
// once.
package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/convoycd/convoy/apply"
	"github.com/convoycd/convoy/instance"
	"github.com/convoycd/convoy/pipeline"
)

// Applier is what the coordinator drives; in production it is
// *apply.Engine.
type Applier interface {
	ApplyState(ctx context.Context, inst instance.Instance, desiredKey string) (apply.Result, error)
}

type Status string

const (
	Success Status = "success"
	// PartialFailure means some instances took the artifact and some
	// did not. Nothing is rolled back; the per-instance results say
	// which are which.
	PartialFailure Status = "partial-failure"
	Failed         Status = "failed"
)

type InstanceResult struct {
	Status string       `json:"status"` // "success", "failed", "skipped"
	Error  string       `json:"error,omitempty"`
	Apply  apply.Result `json:"apply"`
}

const (
	instanceSuccess = "success"
	instanceFailed  = "failed"
	instanceSkipped = "skipped"
)

// Result maps every instance in the set to what happened to it.
// Order preserves the fixed, documented application order.
type Result struct {
	Status    Status                    `json:"status"`
	Order     []string                  `json:"order"`
	Instances map[string]InstanceResult `json:"instances"`
}

type Coordinator struct {
	applier Applier
	store   instance.Store
	logger  log.Logger
	metrics Metrics
}

func NewCoordinator(applier Applier, store instance.Store, logger log.Logger, metrics Metrics) *Coordinator {
	return &Coordinator{applier: applier, store: store, logger: logger, metrics: metrics}
}

// Rollout applies artifactKey to the named instances per the
// strategy.
//
// Rolling goes one instance at a time and halts at the first failure,
// leaving the rest untouched; used for a single staging instance, and
// safe for more.
//
// Fixed-set applies to each instance in the given order and keeps
// going past failures: each instance's stop/remove/run is an
// independent chain with no shared failure gate. A mixed outcome is
// PartialFailure, not Failed.
func (c *Coordinator) Rollout(ctx context.Context, strategy string, instanceNames []string, artifactKey string) (res Result, err error) {
	defer func(begin time.Time) {
		c.metrics.observeRollout(strategy, begin, res.Status)
	}(time.Now())

	switch strategy {
	case pipeline.StrategyRolling:
		return c.rolling(ctx, instanceNames, artifactKey), nil
	case pipeline.StrategyFixedSet:
		return c.fixedSet(ctx, instanceNames, artifactKey), nil
	}
	return Result{}, fmt.Errorf("unknown rollout strategy %q", strategy)
}

func (c *Coordinator) rolling(ctx context.Context, names []string, key string) Result {
	res := newResult(names)
	halted := false
	for _, name := range names {
		if halted {
			res.Instances[name] = InstanceResult{Status: instanceSkipped}
			continue
		}
		ir := c.applyOne(ctx, name, key)
		res.Instances[name] = ir
		if ir.Status == instanceFailed {
			halted = true
		}
	}
	res.Status = aggregate(res)
	return res
}

func (c *Coordinator) fixedSet(ctx context.Context, names []string, key string) Result {
	res := newResult(names)
	for _, name := range names {
		res.Instances[name] = c.applyOne(ctx, name, key)
	}
	res.Status = aggregate(res)
	return res
}

func (c *Coordinator) applyOne(ctx context.Context, name, key string) InstanceResult {
	inst, err := c.store.Get(name)
	if err != nil {
		c.logger.Log("instance", name, "err", err)
		return InstanceResult{Status: instanceFailed, Error: err.Error()}
	}
	applied, err := c.applier.ApplyState(ctx, inst, key)
	if err != nil {
		c.logger.Log("instance", name, "artifact", key, "err", err)
		return InstanceResult{Status: instanceFailed, Error: err.Error(), Apply: applied}
	}
	c.logger.Log("instance", name, "artifact", key, "rolled_out", true)
	return InstanceResult{Status: instanceSuccess, Apply: applied}
}

func newResult(names []string) Result {
	return Result{
		Order:     append([]string(nil), names...),
		Instances: make(map[string]InstanceResult, len(names)),
	}
}

func aggregate(res Result) Status {
	var succeeded, failed int
	for _, ir := range res.Instances {
		switch ir.Status {
		case instanceSuccess:
			succeeded++
		case instanceFailed:
			failed++
		}
	}
	switch {
	case failed == 0:
		return Success
	case succeeded == 0:
		return Failed
	default:
		return PartialFailure
	}
}
