package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/convoycd/convoy/remote"
)

// Docker drives the docker CLI on the target host through a remote
// transport. It shells out rather than speaking the engine API so the
// same transport that runs deploy scripts reaches the engine.
type Docker struct {
	Transport remote.Transport
}

// absentMarkers are how the docker CLI says "that container doesn't
// exist"; those failures are the idempotent-absence case.
var absentMarkers = []string{
	"No such container",
	"No such object",
	"is not running",
}

func absent(res remote.Result) bool {
	for _, marker := range absentMarkers {
		if strings.Contains(res.Stderr, marker) {
			return true
		}
	}
	return false
}

func (d *Docker) Stop(ctx context.Context, target, name string) error {
	res, err := d.Transport.Exec(ctx, target, "docker stop "+name)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !absent(res) {
		return fmt.Errorf("docker stop %s exited %d: %s", name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (d *Docker) Remove(ctx context.Context, target, name string) error {
	res, err := d.Transport.Exec(ctx, target, "docker rm "+name)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !absent(res) {
		return fmt.Errorf("docker rm %s exited %d: %s", name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (d *Docker) Run(ctx context.Context, target string, spec RunSpec) error {
	var b strings.Builder
	b.WriteString("docker run -d --name " + spec.Name)
	if spec.RestartPolicy != "" {
		b.WriteString(" --restart " + spec.RestartPolicy)
	}
	for _, p := range spec.Ports {
		fmt.Fprintf(&b, " -p %d:%d", p.HostPort, p.ContainerPort)
	}
	b.WriteString(" " + spec.Image)

	_, err := remote.Run(ctx, d.Transport, target, b.String(), false)
	return err
}

func (d *Docker) Running(ctx context.Context, target, name string) (bool, error) {
	res, err := d.Transport.Exec(ctx, target, "docker inspect -f {{.State.Running}} "+name)
	if err != nil {
		return false, err
	}
	if res.ExitCode != 0 {
		if absent(res) {
			return false, nil
		}
		return false, fmt.Errorf("docker inspect %s exited %d: %s", name, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout) == "true", nil
}
