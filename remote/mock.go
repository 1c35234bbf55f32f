package remote

import (
	"context"
	"strings"
	"sync"
)

// MockTransport scripts responses by substring match on the command
// line, and records everything executed.
type MockTransport struct {
	// Responses maps a substring of the command line to its result.
	// Commands with no match exit 0 with empty output.
	Responses map[string]Result
	// Err, if set, fails every Exec at the transport level.
	Err error

	mtx      sync.Mutex
	Executed []string
}

func (m *MockTransport) Exec(_ context.Context, target, commandLine string) (Result, error) {
	m.mtx.Lock()
	m.Executed = append(m.Executed, target+": "+commandLine)
	m.mtx.Unlock()
	if m.Err != nil {
		return Result{}, m.Err
	}
	for substr, res := range m.Responses {
		if strings.Contains(commandLine, substr) {
			return res, nil
		}
	}
	return Result{}, nil
}
