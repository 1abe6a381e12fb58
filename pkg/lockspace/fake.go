package lockspace

import (
	"context"
	"time"
)

// FakeDaemon is a scriptable LockDaemon for tests.
type FakeDaemon struct {
	AddErrs []error // consumed in order, FIFO; nil once exhausted
	AddCalls int

	RemCalls int
	RemErr   error
}

func (f *FakeDaemon) AddLockspace(_ context.Context, _ string, _ int, _ string) error {
	idx := f.AddCalls
	f.AddCalls++

	if idx >= len(f.AddErrs) {
		return nil
	}

	return f.AddErrs[idx]
}

func (f *FakeDaemon) RemLockspace(_ context.Context, _ string, _ int, _ string) error {
	f.RemCalls++

	return f.RemErr
}

var _ LockDaemon = (*FakeDaemon)(nil)

// FakeClock records sleep durations instead of actually sleeping.
type FakeClock struct {
	Sleeps []time.Duration
}

func (c *FakeClock) Sleep(d time.Duration) {
	c.Sleeps = append(c.Sleeps, d)
}

var _ Clock = (*FakeClock)(nil)
