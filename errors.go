package convoy

import "fmt"

// The error taxonomy, roughly in order of when each can occur.
//
// A ConfigError is detectable before any job runs and aborts the whole
// run. A JobError is a single job's failure; whether it sinks the run
// depends on the job's allow_failure setting. An ArtifactNotFoundError
// fails the job that needed the artifact without touching its
// siblings. Partial rollout failures are aggregated by the rollout
// package and degrade, rather than fail, the run.

// ConfigError marks a pipeline definition problem: a cyclic graph, a
// duplicate job name, an unknown gate field.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "invalid pipeline: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

func Errorf(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// JobError is a job's command sequence exiting nonzero, or a deploy
// job's rollout failing outright. It carries the job name so the
// operator can tell which of a stage's concurrent jobs sank the run.
type JobError struct {
	Job string
	Err error
}

func (e *JobError) Error() string { return fmt.Sprintf("job %s: %v", e.Job, e.Err) }
func (e *JobError) Unwrap() error { return e.Err }

// ArtifactNotFoundError means the registry has no artifact under the
// requested key.
type ArtifactNotFoundError struct {
	Key string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("artifact %q not found in registry", e.Key)
}

// UnknownJobError is returned by approve and status lookups for a job
// name the pipeline doesn't define.
type UnknownJobError struct {
	Job string
}

func (e *UnknownJobError) Error() string { return fmt.Sprintf("no such job %q", e.Job) }
