package registry

import (
	"context"
	"io"
	"io/ioutil"
	"strings"
	"sync"
)

// Mock is a configurable fake for tests: every method returns the
// corresponding canned error if set, and records the calls it saw.
type Mock struct {
	PushErr    error
	PullErr    error
	TagErr     error
	ResolveErr error
	Artifact   Artifact

	mtx   sync.Mutex
	Calls []string
}

func (m *Mock) record(call string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *Mock) Push(_ context.Context, key string, content io.Reader) (Artifact, error) {
	m.record("push " + key)
	if m.PushErr != nil {
		return Artifact{}, m.PushErr
	}
	return Artifact{Key: key, CreatedAt: m.Artifact.CreatedAt}, nil
}

func (m *Mock) Pull(_ context.Context, key string) (Artifact, io.ReadCloser, error) {
	m.record("pull " + key)
	if m.PullErr != nil {
		return Artifact{}, nil, m.PullErr
	}
	return Artifact{Key: key, CreatedAt: m.Artifact.CreatedAt}, ioutil.NopCloser(strings.NewReader("")), nil
}

func (m *Mock) Tag(_ context.Context, key, alias string) error {
	m.record("tag " + key + " as " + alias)
	return m.TagErr
}

func (m *Mock) Resolve(_ context.Context, alias string) (Artifact, error) {
	m.record("resolve " + alias)
	if m.ResolveErr != nil {
		return Artifact{}, m.ResolveErr
	}
	return m.Artifact, nil
}
