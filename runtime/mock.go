package runtime

import (
	"context"
	"fmt"
	"sync"
)

// Mock is an in-memory engine for tests. Containers are tracked per
// target; Stop/Remove on an absent name succeed like the real thing.
type Mock struct {
	// FailRun, if set, fails Run for the named containers.
	FailRun map[string]error

	mtx        sync.Mutex
	containers map[string]*mockContainer // keyed by target+"/"+name
	Ops        []string
}

type mockContainer struct {
	spec    RunSpec
	running bool
}

func NewMock() *Mock {
	return &Mock{containers: map[string]*mockContainer{}}
}

func (m *Mock) key(target, name string) string { return target + "/" + name }

func (m *Mock) record(op string) { m.Ops = append(m.Ops, op) }

func (m *Mock) Stop(_ context.Context, target, name string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.record("stop " + m.key(target, name))
	if c, ok := m.containers[m.key(target, name)]; ok {
		c.running = false
	}
	return nil
}

func (m *Mock) Remove(_ context.Context, target, name string) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.record("remove " + m.key(target, name))
	if c, ok := m.containers[m.key(target, name)]; ok {
		if c.running {
			return fmt.Errorf("container %s is running; stop it first", name)
		}
		delete(m.containers, m.key(target, name))
	}
	return nil
}

func (m *Mock) Run(_ context.Context, target string, spec RunSpec) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.record("run " + m.key(target, spec.Name) + " " + spec.Image)
	if err, ok := m.FailRun[spec.Name]; ok {
		return err
	}
	if _, ok := m.containers[m.key(target, spec.Name)]; ok {
		return fmt.Errorf("container name %s already in use", spec.Name)
	}
	m.containers[m.key(target, spec.Name)] = &mockContainer{spec: spec, running: true}
	return nil
}

func (m *Mock) Running(_ context.Context, target, name string) (bool, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	c, ok := m.containers[m.key(target, name)]
	return ok && c.running, nil
}

// Image reports the image the named container was started with, for
// test assertions.
func (m *Mock) Image(target, name string) string {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if c, ok := m.containers[m.key(target, name)]; ok {
		return c.spec.Image
	}
	return ""
}
