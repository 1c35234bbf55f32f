package registry

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/convoycd/convoy"
)

// InMem is a Client backed by process memory. It is the default
// backend for a standalone daemon, and what tests run against.
type InMem struct {
	mtx       sync.RWMutex
	artifacts map[string]inmemArtifact
	aliases   map[string]string
	now       func() time.Time
}

type inmemArtifact struct {
	meta    Artifact
	content []byte
}

func NewInMem() *InMem {
	return &InMem{
		artifacts: map[string]inmemArtifact{},
		aliases:   map[string]string{},
		now:       time.Now,
	}
}

func (r *InMem) Push(_ context.Context, key string, content io.Reader) (Artifact, error) {
	buf, err := ioutil.ReadAll(content)
	if err != nil {
		return Artifact{}, err
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if existing, ok := r.artifacts[key]; ok {
		// Immutable; a re-push of the same key is a no-op.
		return existing.meta, nil
	}
	a := inmemArtifact{
		meta:    Artifact{Key: key, CreatedAt: r.now()},
		content: buf,
	}
	r.artifacts[key] = a
	return a.meta, nil
}

func (r *InMem) Pull(_ context.Context, key string) (Artifact, io.ReadCloser, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	a, ok := r.artifacts[key]
	if !ok {
		return Artifact{}, nil, &convoy.ArtifactNotFoundError{Key: key}
	}
	return a.meta, ioutil.NopCloser(bytes.NewReader(a.content)), nil
}

// Tag checks the key under the same lock that moves the alias, so a
// reader can never observe an alias pointing at a missing artifact.
func (r *InMem) Tag(_ context.Context, key, alias string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, ok := r.artifacts[key]; !ok {
		return &convoy.ArtifactNotFoundError{Key: key}
	}
	r.aliases[alias] = key
	return nil
}

func (r *InMem) Resolve(_ context.Context, alias string) (Artifact, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	key, ok := r.aliases[alias]
	if !ok {
		return Artifact{}, &convoy.ArtifactNotFoundError{Key: alias}
	}
	return r.artifacts[key].meta, nil
}
