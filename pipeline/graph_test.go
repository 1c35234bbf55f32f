package pipeline

import (
	"testing"

	"github.com/convoycd/convoy"
)

func mkJob(name, stage string, needs ...string) Job {
	return Job{Name: name, Stage: stage, Script: []Command{{Line: "true"}}, Needs: needs}
}

func TestAddJobDuplicateName(t *testing.T) {
	g := NewGraph([]string{"build"})
	if err := g.AddJob(mkJob("compile", "build")); err != nil {
		t.Fatal(err)
	}
	err := g.AddJob(mkJob("compile", "build"))
	if err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if _, ok := err.(*convoy.ConfigError); !ok {
		t.Errorf("expected *convoy.ConfigError, got %T", err)
	}
}

func TestAddJobCycleLeavesGraphUnmodified(t *testing.T) {
	g := NewGraph([]string{"build"})
	if err := g.AddJob(mkJob("a", "build", "b")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddJob(mkJob("c", "build", "a")); err != nil {
		t.Fatal(err)
	}
	// b -> c -> a -> b closes the loop.
	err := g.AddJob(mkJob("b", "build", "c"))
	if err == nil {
		t.Fatal("expected cycle to be rejected")
	}
	if _, ok := err.(*convoy.ConfigError); !ok {
		t.Errorf("expected *convoy.ConfigError, got %T", err)
	}
	if _, ok := g.Job("b"); ok {
		t.Error("rejected job was inserted anyway")
	}
	// The graph should still accept a legal version of the same job.
	if err := g.AddJob(mkJob("b", "build")); err != nil {
		t.Errorf("graph left in a bad state after rejected insert: %v", err)
	}
}

func TestAddJobSelfDependency(t *testing.T) {
	g := NewGraph([]string{"build"})
	if err := g.AddJob(mkJob("a", "build", "a")); err == nil {
		t.Fatal("expected self-dependency to be rejected")
	}
}

func TestAddJobCrossStageNeeds(t *testing.T) {
	g := NewGraph([]string{"build", "test"})
	if err := g.AddJob(mkJob("compile", "build")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddJob(mkJob("unit", "test", "compile")); err == nil {
		t.Fatal("expected cross-stage needs to be rejected")
	}
}

func TestValidateUnknownNeeds(t *testing.T) {
	g := NewGraph([]string{"build"})
	if err := g.AddJob(mkJob("a", "build", "ghost")); err != nil {
		t.Fatal(err)
	}
	if err := g.Validate(); err == nil {
		t.Fatal("expected unknown needs to fail validation")
	}
}

func TestTopologicalOrderStageNonDecreasing(t *testing.T) {
	g := NewGraph([]string{"build", "test", "deploy"})
	for _, j := range []Job{
		mkJob("smoke", "test"),
		mkJob("compile", "build"),
		mkJob("rollout", "deploy"),
		mkJob("unit", "test"),
	} {
		if err := g.AddJob(j); err != nil {
			t.Fatal(err)
		}
	}
	order := g.TopologicalOrder()
	if len(order) != 3 {
		t.Fatalf("expected 3 stage groups, got %d", len(order))
	}
	stageOf := map[string]int{"build": 0, "test": 1, "deploy": 2}
	last := 0
	for _, group := range order {
		for _, j := range group {
			if stageOf[j.Stage] < last {
				t.Errorf("job %s out of stage order", j.Name)
			}
			last = stageOf[j.Stage]
		}
	}
}

func TestTopologicalOrderStableWithinStage(t *testing.T) {
	g := NewGraph([]string{"test"})
	// Declared b, a, c; c needs a; expected order b, a, c: declaration
	// order among ready jobs, dependencies still respected.
	for _, j := range []Job{
		mkJob("b", "test"),
		mkJob("a", "test"),
		mkJob("c", "test", "a"),
	} {
		if err := g.AddJob(j); err != nil {
			t.Fatal(err)
		}
	}
	got := g.TopologicalOrder()[0]
	want := []string{"b", "a", "c"}
	for i, j := range got {
		if j.Name != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, j.Name, want[i])
		}
	}

	// A dependency on the first-declared job reorders correctly.
	g2 := NewGraph([]string{"test"})
	for _, j := range []Job{
		mkJob("b", "test", "c"),
		mkJob("a", "test"),
		mkJob("c", "test"),
	} {
		if err := g2.AddJob(j); err != nil {
			t.Fatal(err)
		}
	}
	got2 := g2.TopologicalOrder()[0]
	want2 := []string{"a", "c", "b"}
	for i, j := range got2 {
		if j.Name != want2[i] {
			t.Fatalf("position %d: got %s, want %s", i, j.Name, want2[i])
		}
	}
}
