package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner answers invocations from a table keyed by the joined command
// line. It records every call and is safe for concurrent use.
type FakeRunner struct {
	mu      sync.Mutex
	Outputs map[string]string
	Errors  map[string]error
	Calls   []string
}

// NewFakeRunner returns an empty fake.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		Outputs: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// On registers stdout for the command line.
func (f *FakeRunner) On(line, output string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Outputs[line] = output
	return f
}

// Fail registers an error for the command line.
func (f *FakeRunner) Fail(line string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[line] = err
	return f
}

// Count returns how many times the command line was run.
func (f *FakeRunner) Count(line string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.Calls {
		if call == line {
			n++
		}
	}
	return n
}

func (f *FakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, line)

	if err, ok := f.Errors[line]; ok {
		return nil, err
	}
	if out, ok := f.Outputs[line]; ok {
		return []byte(out), nil
	}
	return nil, &Error{Args: append([]string{name}, args...), ExitCode: 1,
		Output: []string{fmt.Sprintf("%s: not found", name)}}
}
