package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/pipeline"
)

type fakeRunner struct {
	mtx     sync.Mutex
	started []string
	ran     []string
	fail    map[string]error
	degrade map[string]bool
	logs    map[string][]string
	block   map[string]chan struct{}
}

func (f *fakeRunner) RunJob(_ context.Context, _ convoy.RunContext, job *pipeline.Job) (Outcome, error) {
	f.mtx.Lock()
	f.started = append(f.started, job.Name)
	blocker := f.block[job.Name]
	f.mtx.Unlock()
	if blocker != nil {
		<-blocker
	}
	f.mtx.Lock()
	f.ran = append(f.ran, job.Name)
	f.mtx.Unlock()
	if err, ok := f.fail[job.Name]; ok {
		return Outcome{}, err
	}
	return Outcome{Degraded: f.degrade[job.Name], Log: f.logs[job.Name]}, nil
}

func (f *fakeRunner) didRun(name string) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	for _, r := range f.ran {
		if r == name {
			return true
		}
	}
	return false
}

const testDefinition = `
stages: [build, test, push, deploy, cleanup]

build-image:
  stage: build
  script: ['docker build .']

unit-test:
  stage: test
  script: ['run tests']

push-latest:
  stage: push
  only: {branch: master}
  script: ['docker push latest']

push-release:
  stage: push
  only: {tags: true}
  script: ['docker push release']

deploy-production:
  stage: deploy
  when: manual
  only: {branch: master}
  script: ['deploy']

cleanup:
  stage: cleanup
  when: always
  allow_failure: true
  script: ['prune']
`

func testGraph(t *testing.T) *pipeline.Graph {
	t.Helper()
	g, err := pipeline.Parse([]byte(testDefinition))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func masterCtx() convoy.RunContext {
	return convoy.RunContext{
		ID:        convoy.NewRunID(),
		Revision:  "abc123def456",
		Ref:       "master",
		RefKind:   convoy.RefKindBranch,
		StartedAt: time.Now(),
	}
}

func newTestRun(t *testing.T, runner Runner, runCtx convoy.RunContext) *Run {
	t.Helper()
	s := New(runner, log.NewNopLogger(), Metrics{})
	return s.NewRun(testGraph(t), runCtx)
}

func jobStatus(res Result, name string) JobResult {
	for _, stage := range res.Stages {
		for _, j := range stage.Jobs {
			if j.Name == name {
				return j
			}
		}
	}
	return JobResult{}
}

func TestRunHappyPathWithApproval(t *testing.T) {
	runner := &fakeRunner{}
	run := newTestRun(t, runner, masterCtx())
	run.Approve("deploy-production")

	res := run.Execute(context.Background())
	if res.Status != convoy.RunSuccess {
		t.Fatalf("status %s: %+v", res.Status, res)
	}
	for _, name := range []string{"build-image", "unit-test", "push-latest", "deploy-production", "cleanup"} {
		if !runner.didRun(name) {
			t.Errorf("%s did not run", name)
		}
	}
	// Tag-only job is gate-skipped for a branch run; not an error.
	if runner.didRun("push-release") {
		t.Error("push-release ran for a branch commit")
	}
	if jobStatus(res, "push-release").Status != convoy.JobSkipped {
		t.Errorf("push-release: %+v", jobStatus(res, "push-release"))
	}
}

func TestTagRunsReleaseNotLatest(t *testing.T) {
	runner := &fakeRunner{}
	runCtx := masterCtx()
	runCtx.Ref, runCtx.RefKind = "v1.2.3", convoy.RefKindTag
	run := newTestRun(t, runner, runCtx)

	res := run.Execute(context.Background())
	if runner.didRun("push-latest") {
		t.Error("push-latest ran for a tag")
	}
	if !runner.didRun("push-release") {
		t.Error("push-release did not run for a tag")
	}
	// The manual production deploy is branch-gated, so the tag run
	// completes without waiting for an approval.
	if res.Status != convoy.RunSuccess {
		t.Errorf("status %s", res.Status)
	}
}

func TestFailureSkipsDownstreamButNotAlways(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"build-image": errors.New("compiler on fire")}}
	run := newTestRun(t, runner, masterCtx())

	res := run.Execute(context.Background())
	if res.Status != convoy.RunFailed {
		t.Fatalf("status %s", res.Status)
	}
	for _, name := range []string{"unit-test", "push-latest", "deploy-production"} {
		if runner.didRun(name) {
			t.Errorf("%s ran after upstream failure", name)
		}
		if got := jobStatus(res, name).Status; got != convoy.JobSkipped {
			t.Errorf("%s status %s, want skipped", name, got)
		}
	}
	if !runner.didRun("cleanup") {
		t.Error("cleanup (always) did not run after failure")
	}
	if got := jobStatus(res, "build-image"); got.Status != convoy.JobFailed || got.Error == "" {
		t.Errorf("build-image: %+v", got)
	}
}

func TestAllowFailureDoesNotSinkRun(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"cleanup": errors.New("prune failed")}}
	run := newTestRun(t, runner, masterCtx())
	run.Approve("deploy-production")

	res := run.Execute(context.Background())
	if res.Status != convoy.RunSuccess {
		t.Errorf("status %s; a tolerated failure should not fail the run", res.Status)
	}
	if got := jobStatus(res, "cleanup").Status; got != convoy.JobFailed {
		t.Errorf("cleanup status %s", got)
	}
}

func TestManualJobStaysPendingWithoutApproval(t *testing.T) {
	runner := &fakeRunner{}
	run := newTestRun(t, runner, masterCtx())

	resultCh := make(chan Result, 1)
	go func() { resultCh <- run.Execute(context.Background()) }()

	// Give the run ample time to reach the deploy stage.
	deadline := time.After(2 * time.Second)
	for {
		pending := run.PendingApprovals()
		if len(pending) == 1 && pending[0] == "deploy-production" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("deploy-production never became pending; pending=%v", pending)
		case <-time.After(10 * time.Millisecond):
		}
	}

	select {
	case <-resultCh:
		t.Fatal("run completed without approval of a manual job")
	case <-time.After(100 * time.Millisecond):
	}
	if runner.didRun("deploy-production") {
		t.Fatal("manual job executed without approve")
	}
	if got := run.Snapshot(); jobStatus(got, "deploy-production").Status != convoy.JobPending {
		t.Errorf("manual job status %s, want pending", jobStatus(got, "deploy-production").Status)
	}

	if err := run.Approve("deploy-production"); err != nil {
		t.Fatal(err)
	}
	res := <-resultCh
	if !runner.didRun("deploy-production") {
		t.Error("approved job did not run")
	}
	if res.Status != convoy.RunSuccess {
		t.Errorf("status %s", res.Status)
	}
	if len(res.Approvals) != 0 {
		t.Errorf("approvals still pending: %v", res.Approvals)
	}
}

func TestApproveErrors(t *testing.T) {
	run := newTestRun(t, &fakeRunner{}, masterCtx())
	if err := run.Approve("no-such-job"); err == nil {
		t.Error("expected unknown job error")
	}
	if err := run.Approve("unit-test"); err == nil {
		t.Error("expected non-manual job to be unapprovable")
	}
	// Double approval is idempotent.
	if err := run.Approve("deploy-production"); err != nil {
		t.Fatal(err)
	}
	if err := run.Approve("deploy-production"); err != nil {
		t.Fatal(err)
	}
}

func TestDegradedOutcome(t *testing.T) {
	runner := &fakeRunner{degrade: map[string]bool{"unit-test": true}}
	run := newTestRun(t, runner, masterCtx())
	run.Approve("deploy-production")
	res := run.Execute(context.Background())
	if res.Status != convoy.RunDegraded {
		t.Errorf("status %s, want degraded", res.Status)
	}
}

func TestSameStageNeeds(t *testing.T) {
	def := `
stages: [test]
unit:
  stage: test
  script: ['a']
integration:
  stage: test
  needs: [unit]
  script: ['b']
`
	g, err := pipeline.Parse([]byte(def))
	if err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{}
	s := New(runner, log.NewNopLogger(), Metrics{})
	res := s.NewRun(g, masterCtx()).Execute(context.Background())
	if res.Status != convoy.RunSuccess {
		t.Fatalf("status %s", res.Status)
	}
	if len(runner.ran) != 2 || runner.ran[0] != "unit" || runner.ran[1] != "integration" {
		t.Errorf("order %v, want [unit integration]", runner.ran)
	}

	// And when the dependency fails, the dependent is skipped.
	runner2 := &fakeRunner{fail: map[string]error{"unit": errors.New("nope")}}
	res2 := New(runner2, log.NewNopLogger(), Metrics{}).NewRun(mustParse(t, def), masterCtx()).Execute(context.Background())
	if runner2.didRun("integration") {
		t.Error("dependent ran after its dependency failed")
	}
	if got := jobStatus(res2, "integration").Status; got != convoy.JobSkipped {
		t.Errorf("integration status %s", got)
	}
}

func mustParse(t *testing.T, def string) *pipeline.Graph {
	t.Helper()
	g, err := pipeline.Parse([]byte(def))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCancellationSkipsLaterStagesExceptAlways(t *testing.T) {
	blocker := make(chan struct{})
	runner := &fakeRunner{block: map[string]chan struct{}{"build-image": blocker}}
	run := newTestRun(t, runner, masterCtx())

	ctx, cancel := context.WithCancel(context.Background())
	resultCh := make(chan Result, 1)
	go func() { resultCh <- run.Execute(ctx) }()

	// Cancel while build-image is in flight, then let it finish.
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(blocker)

	res := <-resultCh
	// The in-flight job was allowed to finish.
	if !runner.didRun("build-image") {
		t.Error("in-flight job was interrupted")
	}
	if got := jobStatus(res, "build-image").Status; got != convoy.JobSucceeded {
		t.Errorf("build-image status %s", got)
	}
	// Everything later was skipped, except the always job.
	for _, name := range []string{"unit-test", "push-latest", "deploy-production"} {
		if runner.didRun(name) {
			t.Errorf("%s ran after cancellation", name)
		}
	}
	if !runner.didRun("cleanup") {
		t.Error("cleanup (always) skipped on cancellation")
	}
}

func TestSiblingFailureDoesNotSkipCollectedJobs(t *testing.T) {
	def := `
stages: [deploy, verify]
deploy-blue: {stage: deploy, script: ['x']}
deploy-green: {stage: deploy, script: ['y']}
verify: {stage: verify, script: ['z']}
`
	blocker := make(chan struct{})
	runner := &fakeRunner{
		fail:  map[string]error{"deploy-blue": errors.New("bad artifact")},
		block: map[string]chan struct{}{"deploy-green": blocker},
	}
	run := New(runner, log.NewNopLogger(), Metrics{}).NewRun(mustParse(t, def), masterCtx())

	resultCh := make(chan Result, 1)
	go func() { resultCh <- run.Execute(context.Background()) }()

	// Hold deploy-green until its sibling's failure has been recorded.
	// Having been collected with its stage, it must still run.
	deadline := time.After(2 * time.Second)
	for !runner.didRun("deploy-blue") {
		select {
		case <-deadline:
			t.Fatal("deploy-blue never finished")
		case <-time.After(10 * time.Millisecond):
		}
	}
	close(blocker)

	res := <-resultCh
	if res.Status != convoy.RunFailed {
		t.Fatalf("status %s", res.Status)
	}
	if got := jobStatus(res, "deploy-green").Status; got != convoy.JobSucceeded {
		t.Errorf("deploy-green status %s; a same-stage failure must not skip it", got)
	}
	if runner.didRun("verify") {
		t.Error("verify ran after the deploy stage failed")
	}
	if got := jobStatus(res, "verify").Status; got != convoy.JobSkipped {
		t.Errorf("verify status %s", got)
	}
}

func TestJobLogSurfacesInResult(t *testing.T) {
	runner := &fakeRunner{logs: map[string][]string{
		"unit-test": {"$ run tests (exit 0)"},
	}}
	run := newTestRun(t, runner, masterCtx())
	run.Approve("deploy-production")
	res := run.Execute(context.Background())
	if got := jobStatus(res, "unit-test").Log; len(got) != 1 || got[0] != "$ run tests (exit 0)" {
		t.Errorf("unit-test log = %v", got)
	}
}

func TestIntraStageConcurrency(t *testing.T) {
	def := `
stages: [push]
a: {stage: push, script: ['x']}
b: {stage: push, script: ['y']}
`
	release := make(chan struct{})
	runner := &fakeRunner{block: map[string]chan struct{}{"a": release, "b": release}}
	run := New(runner, log.NewNopLogger(), Metrics{}).NewRun(mustParse(t, def), masterCtx())

	resultCh := make(chan Result, 1)
	go func() { resultCh <- run.Execute(context.Background()) }()

	// Both jobs must be in flight at once before either is released;
	// a serial stage would only ever have one started.
	deadline := time.After(2 * time.Second)
	for {
		runner.mtx.Lock()
		n := len(runner.started)
		runner.mtx.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d of 2 jobs started concurrently", n)
		case <-time.After(10 * time.Millisecond):
		}
	}
	close(release)
	res := <-resultCh
	if res.Status != convoy.RunSuccess {
		t.Errorf("status %s", res.Status)
	}
}
