// Package apply is the remote apply engine: it drives one instance
// from whatever it is running now to a desired artifact, as a fixed
// sequence of individually idempotent steps. The engine never
// retries; repeat the whole apply and every step tolerates work that
// is already done. That at-least-once design is the only defense
// against concurrent or repeated invocation, since the instance is
// external state no in-process lock can protect.
package apply

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/convoycd/convoy/instance"
	"github.com/convoycd/convoy/registry"
	"github.com/convoycd/convoy/runtime"
)

// The steps, in the only order that keeps the host/port binding held
// by at most one process.
const (
	StepStop   = "stop"
	StepRemove = "remove"
	StepPull   = "pull"
	StepStart  = "start"
	StepRecord = "record"
)

// StepError names the step that failed and keeps the underlying cause
// for the operator.
type StepError struct {
	Instance string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("instance %s: step %s: %v", e.Instance, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Result reports which steps ran. On failure, Failed names the step
// and the returned error is the matching *StepError.
type Result struct {
	Instance    string   `json:"instance"`
	ArtifactKey string   `json:"artifactKey"`
	Completed   []string `json:"completed"`
	Failed      string   `json:"failed,omitempty"`
}

type Engine struct {
	registry  registry.Client
	runtime   runtime.Runtime
	instances instance.Store
	logger    log.Logger
	metrics   Metrics
}

func NewEngine(reg registry.Client, rt runtime.Runtime, store instance.Store, logger log.Logger, metrics Metrics) *Engine {
	return &Engine{
		registry:  reg,
		runtime:   rt,
		instances: store,
		logger:    logger,
		metrics:   metrics,
	}
}

// ApplyState brings inst to desiredKey: stop whatever is running,
// remove its container, make sure the artifact is available, start
// the new process on the instance's binding, and only then record the
// key against the instance.
func (e *Engine) ApplyState(ctx context.Context, inst instance.Instance, desiredKey string) (Result, error) {
	res := Result{Instance: inst.Name, ArtifactKey: desiredKey}

	step := func(name string, fn func() error) error {
		var err error
		defer func(begin time.Time) {
			e.metrics.observeStep(inst.Name, name, begin, err)
		}(time.Now())
		if err = fn(); err != nil {
			res.Failed = name
			e.logger.Log("instance", inst.Name, "step", name, "err", err)
			return &StepError{Instance: inst.Name, Step: name, Err: err}
		}
		res.Completed = append(res.Completed, name)
		return nil
	}

	if err := step(StepStop, func() error {
		return e.runtime.Stop(ctx, inst.Host, inst.ContainerName())
	}); err != nil {
		return res, err
	}
	if err := step(StepRemove, func() error {
		return e.runtime.Remove(ctx, inst.Host, inst.ContainerName())
	}); err != nil {
		return res, err
	}
	if err := step(StepPull, func() error {
		_, rc, err := e.registry.Pull(ctx, desiredKey)
		if err != nil {
			return err
		}
		return rc.Close()
	}); err != nil {
		return res, err
	}
	if err := step(StepStart, func() error {
		spec := runtime.RunSpec{
			Name:          inst.ContainerName(),
			Image:         desiredKey,
			Ports:         []runtime.PortMapping{inst.Binding},
			RestartPolicy: "always",
		}
		if err := e.runtime.Run(ctx, inst.Host, spec); err != nil {
			return err
		}
		running, err := e.runtime.Running(ctx, inst.Host, inst.ContainerName())
		if err != nil {
			return err
		}
		if !running {
			return fmt.Errorf("container %s did not come up", inst.ContainerName())
		}
		return nil
	}); err != nil {
		return res, err
	}
	if err := step(StepRecord, func() error {
		return e.instances.RecordArtifact(inst.Name, desiredKey)
	}); err != nil {
		return res, err
	}

	e.logger.Log("instance", inst.Name, "artifact", desiredKey, "applied", true)
	return res, nil
}
