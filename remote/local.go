package remote

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/go-kit/kit/log"
)

// Local runs commands on the daemon's own host through the shell.
// The target name is carried for logging only; a standalone daemon
// treats every target as itself.
type Local struct {
	Shell  string // defaults to /bin/sh
	Logger log.Logger
}

func (l *Local) Exec(ctx context.Context, target, commandLine string) (Result, error) {
	shell := l.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", commandLine)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			// Never started; that's a transport problem.
			return res, err
		}
		res.ExitCode = exitErr.ExitCode()
	}
	if l.Logger != nil {
		l.Logger.Log("target", target, "cmd", commandLine, "exit", res.ExitCode)
	}
	return res, nil
}
