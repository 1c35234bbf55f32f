package pipeline

import (
	"io/ioutil"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/convoycd/convoy"
)

// A definition looks like:
//
//	stages: [build, test, push, deploy, cleanup]
//
//	build-image:
//	  stage: build
//	  script:
//	    - docker build -t nginx-custom:{revision} .
//	    - run: docker rmi -f dangling
//	      allow_nonzero: true
//	  only:
//	    branch: master
//
// Top-level keys other than "stages" are jobs; their order in the file
// is the declaration order used for deterministic scheduling.

type jobSpec struct {
	Stage        string      `yaml:"stage"`
	Script       []Command   `yaml:"script"`
	Only         *onlySpec   `yaml:"only"`
	When         string      `yaml:"when"`
	AllowFailure bool        `yaml:"allow_failure"`
	Needs        []string    `yaml:"needs"`
	Push         *PushSpec   `yaml:"push"`
	Deploy       *DeploySpec `yaml:"deploy"`
}

type onlySpec struct {
	Branch string   `yaml:"branch"`
	Tags   bool     `yaml:"tags"`
	Semver bool     `yaml:"semver"`
	Refs   []string `yaml:"refs"`
}

func (c *Command) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var line string
	if err := unmarshal(&line); err == nil {
		c.Line = line
		c.AllowNonZero = false
		return nil
	}
	var full struct {
		Run          string `yaml:"run"`
		AllowNonZero bool   `yaml:"allow_nonzero"`
	}
	if err := unmarshal(&full); err != nil {
		return err
	}
	if full.Run == "" {
		return errors.New("script entry must be a string or have a run: line")
	}
	c.Line = full.Run
	c.AllowNonZero = full.AllowNonZero
	return nil
}

// Parse turns a YAML definition into a validated Graph. Any problem is
// a *convoy.ConfigError; nothing about a bad definition is recoverable
// at run time.
func Parse(data []byte) (*Graph, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &convoy.ConfigError{Err: err}
	}

	var stages []string
	for _, item := range doc {
		if item.Key == "stages" {
			if err := reunmarshal(item.Value, &stages); err != nil {
				return nil, &convoy.ConfigError{Err: errors.Wrap(err, "stages")}
			}
		}
	}
	if len(stages) == 0 {
		return nil, convoy.Errorf("no stages declared")
	}

	graph := NewGraph(stages)
	jobCount := 0
	for _, item := range doc {
		name, ok := item.Key.(string)
		if !ok {
			return nil, convoy.Errorf("non-string top-level key %v", item.Key)
		}
		if name == "stages" {
			continue
		}
		var spec jobSpec
		if err := reunmarshalStrict(item.Value, &spec); err != nil {
			return nil, &convoy.ConfigError{Err: errors.Wrapf(err, "job %s", name)}
		}
		job, err := spec.job(name)
		if err != nil {
			return nil, err
		}
		if err := graph.AddJob(job); err != nil {
			return nil, err
		}
		jobCount++
	}
	if jobCount == 0 {
		return nil, convoy.Errorf("no jobs declared")
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return graph, nil
}

func ParseFile(path string) (*Graph, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &convoy.ConfigError{Err: err}
	}
	return Parse(data)
}

func (s jobSpec) job(name string) (Job, error) {
	job := Job{
		Name:         name,
		Stage:        s.Stage,
		Script:       s.Script,
		Push:         s.Push,
		Deploy:       s.Deploy,
		AllowFailure: s.AllowFailure,
		Needs:        s.Needs,
	}
	if s.Stage == "" {
		return Job{}, convoy.Errorf("job %q has no stage", name)
	}
	kinds := 0
	if len(s.Script) > 0 {
		kinds++
	}
	if s.Push != nil {
		kinds++
	}
	if s.Deploy != nil {
		kinds++
	}
	if kinds == 0 {
		return Job{}, convoy.Errorf("job %q has no script, push or deploy", name)
	}
	if kinds > 1 {
		return Job{}, convoy.Errorf("job %q has more than one of script, push and deploy", name)
	}
	if s.Only != nil {
		job.Gate.Branch = s.Only.Branch
		job.Gate.Tags = s.Only.Tags
		job.Gate.Semver = s.Only.Semver
		job.Gate.Refs = s.Only.Refs
	}
	switch s.When {
	case "":
	case "manual":
		job.Gate.Manual = true
	case "always":
		job.Gate.Always = true
	default:
		return Job{}, convoy.Errorf("job %q: unknown when: %q (want manual or always)", name, s.When)
	}
	if p := s.Push; p != nil {
		if p.Artifact == "" {
			return Job{}, convoy.Errorf("job %q: push has no artifact", name)
		}
		if p.File == "" && p.Alias == "" {
			return Job{}, convoy.Errorf("job %q: push has neither file nor alias", name)
		}
	}
	if d := s.Deploy; d != nil {
		if d.Strategy != StrategyRolling && d.Strategy != StrategyFixedSet {
			return Job{}, convoy.Errorf("job %q: unknown deploy strategy %q", name, d.Strategy)
		}
		if len(d.Instances) == 0 {
			return Job{}, convoy.Errorf("job %q: deploy has no instances", name)
		}
		if d.Artifact == "" {
			return Job{}, convoy.Errorf("job %q: deploy has no artifact", name)
		}
	}
	return job, nil
}

// reunmarshal decodes a value plucked out of a MapSlice into a typed
// destination, by round-tripping through YAML.
func reunmarshal(value interface{}, dst interface{}) error {
	buf, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(buf, dst)
}

func reunmarshalStrict(value interface{}, dst interface{}) error {
	buf, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(buf, dst)
}
