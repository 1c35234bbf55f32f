// Package pipeline models a declarative pipeline definition: ordered
// stages containing named, gated jobs. A definition is parsed once
// into a Graph, validated up front, and never mutated during a run.
package pipeline

import (
	"github.com/Masterminds/semver/v3"
	"github.com/ryanuber/go-glob"

	"github.com/convoycd/convoy"
)

// Command is one line of a job's script. AllowNonZero marks the
// `|| true` analogue: a nonzero exit is reported but tolerated.
type Command struct {
	Line         string
	AllowNonZero bool
}

// PushSpec makes a job a publishing job: it pushes built content into
// the artifact registry under a key, and optionally points an alias
// at that key. A push with no file promotes an existing artifact.
type PushSpec struct {
	Artifact string `yaml:"artifact"` // key template; {revision} and {ref} expand per run
	File     string `yaml:"file"`     // path whose content becomes the artifact; empty means promote only
	Alias    string `yaml:"alias"`    // alias to point at the key, e.g. "stable"
}

// DeploySpec makes a job a deployment job: instead of a script, the
// job rolls the named artifact out across a set of instances.
type DeploySpec struct {
	Strategy  string   `yaml:"strategy"` // "rolling" or "fixed-set"
	Instances []string `yaml:"instances"`
	Artifact  string   `yaml:"artifact"` // key template; {revision} and {ref} expand per run
}

const (
	StrategyRolling  = "rolling"
	StrategyFixedSet = "fixed-set"
)

// Gate is the predicate deciding whether a job runs for a given
// RunContext. Match is a pure function of the context; approval for
// Manual jobs is tracked by the scheduler, not here.
type Gate struct {
	// only: constraints. Zero values mean unconstrained.
	Branch string   // ref kind is branch and name equals this
	Tags   bool     // ref kind is tag
	Semver bool     // ref kind is tag and the name parses as a semantic version
	Refs   []string // ref name matches any of these glob patterns

	// when: modifiers.
	Manual bool // runs only after an explicit approve
	Always bool // runs even when an earlier stage failed
}

func (g Gate) Match(ctx convoy.RunContext) bool {
	if g.Branch != "" && (ctx.RefKind != convoy.RefKindBranch || ctx.Ref != g.Branch) {
		return false
	}
	if g.Tags && ctx.RefKind != convoy.RefKindTag {
		return false
	}
	if g.Semver {
		if ctx.RefKind != convoy.RefKindTag {
			return false
		}
		if _, err := semver.NewVersion(ctx.Ref); err != nil {
			return false
		}
	}
	if len(g.Refs) > 0 {
		matched := false
		for _, pattern := range g.Refs {
			if glob.Glob(pattern, ctx.Ref) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

// Job is a single unit of work within a stage.
type Job struct {
	Name         string
	Stage        string
	Gate         Gate
	Script       []Command
	Push         *PushSpec
	Deploy       *DeploySpec
	AllowFailure bool
	// Needs names same-stage jobs that must finish before this one
	// starts. Cross-stage ordering is implicit in stage order.
	Needs []string
}
