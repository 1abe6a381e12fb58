// Package cmdrunner is the injectable subprocess capability used by the
// block backend to invoke lvcreate/dmsetup.
//
// Design note (spec §9): "Subprocess invocation (lvcreate, dmsetup,
// iscsiadm) -> model as an injectable command runner capability so that
// tests can supply a fake; do not couple the backend to a specific
// process-spawn API." Runner is that seam.
package cmdrunner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner executes external commands.
type Runner interface {
	// Run executes name with args, returning combined stdout and the
	// error (nil on exit code 0). Stderr is folded into the returned
	// error's message on failure.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Exec runs commands via os/exec. Production implementation.
type Exec struct{}

// NewExec returns a production Runner.
func NewExec() Exec { return Exec{} }

func (Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s %v: %w: %s", name, args, err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// Call records one invocation, for use by Fake.
type Call struct {
	Name string
	Args []string
}

// Fake is a scriptable Runner for tests.
type Fake struct {
	Calls []Call
	// Results is consulted in order popped (FIFO) per call; if exhausted,
	// the last entry repeats.
	Results []FakeResult
	next    int
}

// FakeResult is one canned response.
type FakeResult struct {
	Output []byte
	Err    error
}

func (f *Fake) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.Calls = append(f.Calls, Call{Name: name, Args: args})

	if len(f.Results) == 0 {
		return nil, nil
	}

	idx := f.next
	if idx >= len(f.Results) {
		idx = len(f.Results) - 1
	} else {
		f.next++
	}

	r := f.Results[idx]

	return r.Output, r.Err
}

var (
	_ Runner = Exec{}
	_ Runner = (*Fake)(nil)
)
