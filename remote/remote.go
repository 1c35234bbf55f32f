// Package remote abstracts running a command line on a named target,
// the way the deploy half of a CI pipeline shells out over SSH. The
// transport reports nonzero exits rather than failing on them; the
// caller decides per command whether nonzero is tolerated.
package remote

import (
	"context"
	"fmt"
)

// Result is what came back from running one command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Transport executes a command line on a target. The error return is
// for transport problems only (target unreachable, session torn
// down); a command that ran and exited nonzero is a Result, not an
// error.
type Transport interface {
	Exec(ctx context.Context, target, commandLine string) (Result, error)
}

// ExitError is a command that ran but exited nonzero, where the
// caller did not allow that.
type ExitError struct {
	Target  string
	Command string
	Result  Result
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q on %s exited %d", e.Command, e.Target, e.Result.ExitCode)
	if e.Result.Stderr != "" {
		msg += ": " + e.Result.Stderr
	}
	return msg
}

// Run executes one command and applies its tolerance flag: with
// allowNonZero a nonzero exit is returned as a plain Result, the
// `|| true` analogue; without it the nonzero exit becomes an
// *ExitError.
func Run(ctx context.Context, t Transport, target, commandLine string, allowNonZero bool) (Result, error) {
	res, err := t.Exec(ctx, target, commandLine)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 && !allowNonZero {
		return res, &ExitError{Target: target, Command: commandLine, Result: res}
	}
	return res, nil
}
