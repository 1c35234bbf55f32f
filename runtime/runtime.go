// Package runtime abstracts the container engine on a deployment
// target. Stop and Remove are idempotent: acting on a container that
// is already gone is success, the `docker stop x || true` contract.
package runtime

import "context"

// PortMapping binds a host port to a container port.
type PortMapping struct {
	HostPort      int `json:"hostPort" yaml:"hostPort"`
	ContainerPort int `json:"containerPort" yaml:"containerPort"`
}

type RunSpec struct {
	Name          string
	Image         string
	Ports         []PortMapping
	RestartPolicy string // e.g. "always"; empty means the engine default
}

type Runtime interface {
	// Stop halts the named container if it is running; absence is
	// success.
	Stop(ctx context.Context, target, name string) error

	// Remove deletes the stopped container reference if present;
	// absence is success.
	Remove(ctx context.Context, target, name string) error

	// Run starts a container per spec. It fails if the name or a
	// host port is already taken; stop-before-start is the caller's
	// invariant.
	Run(ctx context.Context, target string, spec RunSpec) error

	// Running reports whether the named container is up, so callers
	// can confirm a start before recording it.
	Running(ctx context.Context, target, name string) (bool, error)
}
