package main

import (
	"errors"
)

type usageError struct {
	error
}

func newUsageError(msg string) usageError {
	return usageError{error: errors.New(msg)}
}

// runFailedError signals that the daemon executed the run but a job
// failed; the command worked, the pipeline did not.
type runFailedError struct {
	error
}

var errorWantedNoArgs = newUsageError("expected no (non-flag) arguments")
