package pipeline

import (
	"github.com/convoycd/convoy"
)

// Graph is the validated job graph: stages in declaration order, jobs
// keyed by name, dependency edges between same-stage jobs. It is
// acyclic by construction; AddJob refuses any insert that would break
// that, leaving the graph unmodified.
type Graph struct {
	stages     []string
	stageIndex map[string]int
	jobs       map[string]*Job
	decl       []*Job // declaration order, across all stages
}

func NewGraph(stages []string) *Graph {
	idx := make(map[string]int, len(stages))
	for i, s := range stages {
		idx[s] = i
	}
	return &Graph{
		stages:     stages,
		stageIndex: idx,
		jobs:       map[string]*Job{},
	}
}

func (g *Graph) Stages() []string { return g.stages }

func (g *Graph) Job(name string) (*Job, bool) {
	j, ok := g.jobs[name]
	return j, ok
}

// AddJob validates then inserts; on error nothing is recorded.
func (g *Graph) AddJob(job Job) error {
	if _, ok := g.jobs[job.Name]; ok {
		return convoy.Errorf("duplicate job name %q", job.Name)
	}
	if _, ok := g.stageIndex[job.Stage]; !ok {
		return convoy.Errorf("job %q: unknown stage %q", job.Name, job.Stage)
	}
	for _, need := range job.Needs {
		if need == job.Name {
			return convoy.Errorf("job %q depends on itself", job.Name)
		}
		if dep, ok := g.jobs[need]; ok && dep.Stage != job.Stage {
			return convoy.Errorf("job %q needs %q, which is in stage %q, not %q; cross-stage ordering is implicit", job.Name, need, dep.Stage, job.Stage)
		}
	}
	if g.wouldCycle(&job) {
		return convoy.Errorf("job %q: dependency cycle detected", job.Name)
	}
	j := job
	g.jobs[j.Name] = &j
	g.decl = append(g.decl, &j)
	return nil
}

// wouldCycle checks whether the candidate's edges close a cycle among
// the jobs known so far. Edges to names not yet added cannot complete
// a cycle until the other end is inserted, at which point that insert
// is the one refused.
func (g *Graph) wouldCycle(candidate *Job) bool {
	// Walk from each dependency; if we can reach a job that needs the
	// candidate, inserting the candidate closes a loop.
	seen := map[string]bool{}
	var reaches func(name string) bool
	reaches = func(name string) bool {
		if name == candidate.Name {
			return true
		}
		if seen[name] {
			return false
		}
		seen[name] = true
		j, ok := g.jobs[name]
		if !ok {
			return false
		}
		for _, need := range j.Needs {
			if reaches(need) {
				return true
			}
		}
		return false
	}
	for _, need := range candidate.Needs {
		if reaches(need) {
			return true
		}
	}
	return false
}

// Validate checks the cross-references AddJob could not: every needs
// entry must name a job that exists.
func (g *Graph) Validate() error {
	for _, j := range g.decl {
		for _, need := range j.Needs {
			if _, ok := g.jobs[need]; !ok {
				return convoy.Errorf("job %q needs unknown job %q", j.Name, need)
			}
		}
	}
	return nil
}

// TopologicalOrder returns the jobs grouped by stage, in stage order.
// Within a stage, jobs are topologically sorted with ties broken by
// declaration order, so the sequence is deterministic run to run.
func (g *Graph) TopologicalOrder() [][]*Job {
	byStage := make([][]*Job, len(g.stages))
	for _, j := range g.decl {
		i := g.stageIndex[j.Stage]
		byStage[i] = append(byStage[i], j)
	}
	for i, jobs := range byStage {
		byStage[i] = stableTopo(jobs)
	}
	return byStage
}

// stableTopo is Kahn's algorithm over one stage's jobs, always taking
// the earliest-declared ready job next.
func stableTopo(jobs []*Job) []*Job {
	indegree := map[string]int{}
	dependents := map[string][]string{}
	position := map[string]int{}
	byName := map[string]*Job{}
	for i, j := range jobs {
		position[j.Name] = i
		byName[j.Name] = j
		indegree[j.Name] += 0
	}
	for _, j := range jobs {
		for _, need := range j.Needs {
			if _, same := byName[need]; same {
				indegree[j.Name]++
				dependents[need] = append(dependents[need], j.Name)
			}
		}
	}

	var ready []string
	for _, j := range jobs {
		if indegree[j.Name] == 0 {
			ready = append(ready, j.Name)
		}
	}
	var out []*Job
	for len(ready) > 0 {
		next, at := ready[0], 0
		for i, name := range ready[1:] {
			if position[name] < position[next] {
				next, at = name, i+1
			}
		}
		ready = append(ready[:at], ready[at+1:]...)
		out = append(out, byName[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return out
}
