// Package instance models named deployment targets: "blue",
// "staging", and so on. The artifact recorded against an instance is
// last-known state, written only after a start has been confirmed;
// the target itself is external, and queries report the recorded
// state without consulting it.
package instance

import (
	"fmt"
	"sort"
	"sync"

	"github.com/convoycd/convoy/runtime"
)

type Instance struct {
	Name string `json:"name"`
	// Host is the transport target the instance lives on.
	Host string `json:"host"`
	// Binding is the host/port mapping the instance's process is
	// bound to; no two processes may hold it at once.
	Binding runtime.PortMapping `json:"binding"`
	// CurrentArtifactKey is the last artifact confirmed running,
	// empty if none has been recorded.
	CurrentArtifactKey string `json:"currentArtifactKey,omitempty"`
}

// ContainerName is the name the instance's process runs under in the
// container engine.
func (i Instance) ContainerName() string {
	return "convoy-" + i.Name
}

type Store interface {
	Get(name string) (Instance, error)
	List() []Instance
	// RecordArtifact updates last-known state after a confirmed
	// start.
	RecordArtifact(name, artifactKey string) error
}

type UnknownInstanceError struct {
	Name string
}

func (e *UnknownInstanceError) Error() string { return fmt.Sprintf("no such instance %q", e.Name) }

// InMem is the standalone daemon's store, seeded from configuration.
type InMem struct {
	mtx       sync.RWMutex
	instances map[string]Instance
}

func NewInMem(instances []Instance) *InMem {
	m := make(map[string]Instance, len(instances))
	for _, inst := range instances {
		m[inst.Name] = inst
	}
	return &InMem{instances: m}
}

func (s *InMem) Get(name string) (Instance, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	inst, ok := s.instances[name]
	if !ok {
		return Instance{}, &UnknownInstanceError{Name: name}
	}
	return inst, nil
}

func (s *InMem) List() []Instance {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	out := make([]Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *InMem) RecordArtifact(name, artifactKey string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	inst, ok := s.instances[name]
	if !ok {
		return &UnknownInstanceError{Name: name}
	}
	inst.CurrentArtifactKey = artifactKey
	s.instances[name] = inst
	return nil
}
