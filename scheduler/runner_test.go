package scheduler

import (
	"context"
	"errors"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-kit/kit/log"

	"github.com/convoycd/convoy/apply"
	"github.com/convoycd/convoy/instance"
	"github.com/convoycd/convoy/pipeline"
	"github.com/convoycd/convoy/registry"
	"github.com/convoycd/convoy/remote"
	"github.com/convoycd/convoy/rollout"
	"github.com/convoycd/convoy/runtime"
)

func TestExpand(t *testing.T) {
	ctx := masterCtx()
	got := Expand("nginx-custom:{revision} on {ref} ({short_revision})", ctx)
	want := "nginx-custom:abc123def456 on master (abc123de)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestScriptToleranceAndFailure(t *testing.T) {
	transport := &remote.MockTransport{
		Responses: map[string]remote.Result{
			"docker rmi": {ExitCode: 1, Stderr: "no dangling images"},
		},
	}
	r := &JobRunner{Transport: transport, Target: "local", Logger: log.NewNopLogger()}

	tolerated := &pipeline.Job{Name: "cleanup", Script: []pipeline.Command{
		{Line: "docker rmi dangling", AllowNonZero: true},
	}}
	if _, err := r.RunJob(context.Background(), masterCtx(), tolerated); err != nil {
		t.Errorf("tolerated nonzero exit failed the job: %v", err)
	}

	strict := &pipeline.Job{Name: "build", Script: []pipeline.Command{
		{Line: "docker rmi dangling"},
	}}
	if _, err := r.RunJob(context.Background(), masterCtx(), strict); err == nil {
		t.Error("nonzero exit without allow_nonzero should fail the job")
	}
}

type stubApplier struct {
	fail map[string]error

	mtx     sync.Mutex
	applied map[string]string
}

func (s *stubApplier) ApplyState(_ context.Context, inst instance.Instance, key string) (apply.Result, error) {
	s.mtx.Lock()
	if s.applied == nil {
		s.applied = map[string]string{}
	}
	s.applied[inst.Name] = key
	s.mtx.Unlock()
	if err, ok := s.fail[inst.Name]; ok {
		return apply.Result{Instance: inst.Name}, err
	}
	return apply.Result{Instance: inst.Name, ArtifactKey: key}, nil
}

func deployRunner(fail map[string]error) (*JobRunner, *stubApplier) {
	store := instance.NewInMem([]instance.Instance{
		{Name: "blue", Host: "h", Binding: runtime.PortMapping{HostPort: 1, ContainerPort: 80}},
		{Name: "green", Host: "h", Binding: runtime.PortMapping{HostPort: 2, ContainerPort: 80}},
	})
	applier := &stubApplier{fail: fail}
	coord := rollout.NewCoordinator(applier, store, log.NewNopLogger(), rollout.Metrics{})
	return &JobRunner{Rollouts: coord, Logger: log.NewNopLogger()}, applier
}

func deployJob() *pipeline.Job {
	return &pipeline.Job{
		Name: "deploy",
		Deploy: &pipeline.DeploySpec{
			Strategy:  pipeline.StrategyFixedSet,
			Instances: []string{"blue", "green"},
			Artifact:  "nginx:{revision}",
		},
	}
}

func TestDeployJobOutcomes(t *testing.T) {
	// All instances fine: clean outcome.
	r, _ := deployRunner(nil)
	out, err := r.RunJob(context.Background(), masterCtx(), deployJob())
	if err != nil || out.Degraded {
		t.Errorf("clean rollout: degraded=%v err=%v", out.Degraded, err)
	}

	// One instance down: degraded, not failed.
	r, _ = deployRunner(map[string]error{"green": errors.New("dead host")})
	out, err = r.RunJob(context.Background(), masterCtx(), deployJob())
	if err != nil {
		t.Errorf("partial failure should not error: %v", err)
	}
	if !out.Degraded {
		t.Error("partial failure should degrade the outcome")
	}

	// Everything down: the job fails.
	r, _ = deployRunner(map[string]error{
		"blue": errors.New("dead"), "green": errors.New("dead"),
	})
	if _, err = r.RunJob(context.Background(), masterCtx(), deployJob()); err == nil {
		t.Error("total rollout failure should fail the job")
	}
}

func pushJob(file string) *pipeline.Job {
	return &pipeline.Job{
		Name: "push-latest",
		Push: &pipeline.PushSpec{
			Artifact: "nginx:{revision}",
			File:     file,
			Alias:    "stable",
		},
	}
}

func TestPushJobPublishesAndPromotes(t *testing.T) {
	file := filepath.Join(t.TempDir(), "image.tar")
	if err := ioutil.WriteFile(file, []byte("layers"), 0600); err != nil {
		t.Fatal(err)
	}
	reg := registry.NewInMem()
	r := &JobRunner{Registry: reg, Logger: log.NewNopLogger()}

	out, err := r.RunJob(context.Background(), masterCtx(), pushJob(file))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Log) != 2 {
		t.Errorf("expected push and alias log lines, got %v", out.Log)
	}

	ctx := context.Background()
	if _, body, err := reg.Pull(ctx, "nginx:abc123def456"); err != nil {
		t.Errorf("pushed artifact not pullable: %v", err)
	} else {
		content, _ := ioutil.ReadAll(body)
		body.Close()
		if string(content) != "layers" {
			t.Errorf("artifact content = %q, want the file content", content)
		}
	}
	a, err := reg.Resolve(ctx, "stable")
	if err != nil {
		t.Fatal(err)
	}
	if a.Key != "nginx:abc123def456" {
		t.Errorf("alias points at %q", a.Key)
	}
}

func TestPromoteOnlyPushNeedsExistingArtifact(t *testing.T) {
	r := &JobRunner{Registry: registry.NewInMem(), Logger: log.NewNopLogger()}
	job := pushJob("")
	if _, err := r.RunJob(context.Background(), masterCtx(), job); err == nil {
		t.Error("promoting a key that was never pushed should fail the job")
	}
}

func TestPushJobRegistryErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "image.tar")
	if err := ioutil.WriteFile(file, []byte("layers"), 0600); err != nil {
		t.Fatal(err)
	}

	reg := &registry.Mock{PushErr: &registry.NetworkError{Err: errors.New("conn refused")}}
	r := &JobRunner{Registry: reg, Logger: log.NewNopLogger()}
	if _, err := r.RunJob(context.Background(), masterCtx(), pushJob(file)); err == nil {
		t.Error("unreachable registry should fail the push job")
	}
	if len(reg.Calls) != 1 || !strings.HasPrefix(reg.Calls[0], "push ") {
		t.Errorf("calls = %v, want a single push", reg.Calls)
	}

	reg = &registry.Mock{TagErr: &registry.AuthError{Err: errors.New("denied")}}
	r = &JobRunner{Registry: reg, Logger: log.NewNopLogger()}
	if _, err := r.RunJob(context.Background(), masterCtx(), pushJob(file)); err == nil {
		t.Error("rejected credentials should fail the promotion")
	}
	if len(reg.Calls) != 2 || reg.Calls[1] != "tag nginx:abc123def456 as stable" {
		t.Errorf("calls = %v, want push then tag", reg.Calls)
	}

	if _, err := r.RunJob(context.Background(), masterCtx(), pushJob(filepath.Join(t.TempDir(), "absent.tar"))); err == nil || !strings.Contains(err.Error(), "opening artifact content") {
		t.Errorf("missing content file should fail the job, got %v", err)
	}
}

func TestDeployResolvesAlias(t *testing.T) {
	reg := registry.NewInMem()
	ctx := context.Background()
	if _, err := reg.Push(ctx, "nginx:abc123def456", strings.NewReader("layers")); err != nil {
		t.Fatal(err)
	}
	if err := reg.Tag(ctx, "nginx:abc123def456", "stable"); err != nil {
		t.Fatal(err)
	}

	r, applier := deployRunner(nil)
	r.Registry = reg
	job := deployJob()
	job.Deploy.Artifact = "nginx:stable"
	if _, err := r.RunJob(ctx, masterCtx(), job); err != nil {
		t.Fatal(err)
	}
	for _, inst := range []string{"blue", "green"} {
		if got := applier.applied[inst]; got != "nginx:abc123def456" {
			t.Errorf("%s got %q, want the alias pinned to its artifact", inst, got)
		}
	}
}
