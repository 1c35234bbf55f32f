// Package registry provides the artifact registry client: immutable,
// content-keyed build artifacts, plus mutable aliases ("latest", a
// release tag) pointing at exactly one artifact each.
package registry

import (
	"context"
	"io"
	"time"
)

// Artifact is an immutable build output. Once a key is pushed the
// content behind it never changes; cleaning old artifacts up is the
// backing registry's policy, not ours.
type Artifact struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client is a handle to a registry. It is an interface so we can wrap
// it in instrumentation, write fakes, and swap storage backends.
type Client interface {
	// Push stores content under key. Pushing a key that already
	// exists succeeds without overwriting; artifacts are immutable
	// and pushes are at-least-once.
	Push(ctx context.Context, key string, content io.Reader) (Artifact, error)

	// Pull fetches the artifact and its content. A missing key is a
	// *convoy.ArtifactNotFoundError.
	Pull(ctx context.Context, key string) (Artifact, io.ReadCloser, error)

	// Tag points alias at key, last writer wins. Tagging a key that
	// doesn't exist fails, so an alias never dangles at the moment
	// it is written.
	Tag(ctx context.Context, key, alias string) error

	// Resolve returns the artifact an alias currently points at.
	Resolve(ctx context.Context, alias string) (Artifact, error)
}

// AuthError is a rejected credential from the backing registry.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "registry authorization failed: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError is a failure to reach the backing registry at all.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "registry unreachable: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }
