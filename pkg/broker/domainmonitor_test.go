package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ovirt/hosted-engine-ha/internal/osfs"
	"github.com/ovirt/hosted-engine-ha/pkg/liveness"
)

type fakeBrokerClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeBrokerClock) Now() time.Time { return c.now }
func (c *fakeBrokerClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func TestStartDomainMonitor_PollsUntilAcquired(t *testing.T) {
	ctx := context.Background()

	fs := osfs.NewFake()
	clock := &fakeBrokerClock{now: time.Unix(0, 0)}
	hv := &FakeHypervisor{
		Stats: []map[string]RepoStat{
			{"sd-1": {Acquired: false}},
			{"sd-1": {Acquired: false}},
			{"sd-1": {Acquired: true}},
		},
	}

	b := New(fs, fakeBackend{}, hv, clock, "sd-1", liveness.NewCache(nil, time.Second))

	if err := b.StartDomainMonitor(ctx, 1); err != nil {
		t.Fatalf("StartDomainMonitor: %v", err)
	}

	if b.DomainMonitorStatus() != StatusAcquired {
		t.Fatalf("status=%v, want ACQUIRED", b.DomainMonitorStatus())
	}

	if hv.StartCalls != 1 {
		t.Fatalf("StartCalls=%d, want 1", hv.StartCalls)
	}

	if len(clock.sleeps) != 2 {
		t.Fatalf("sleeps=%d, want 2 (polled 3 times total)", len(clock.sleeps))
	}
}

func TestStartDomainMonitor_AlreadyStartedIsNoOp(t *testing.T) {
	ctx := context.Background()

	fs := osfs.NewFake()
	hv := &FakeHypervisor{Stats: []map[string]RepoStat{{"sd-1": {Acquired: true}}}}

	b := New(fs, fakeBackend{}, hv, &fakeBrokerClock{now: time.Unix(0, 0)}, "sd-1", liveness.NewCache(nil, time.Second))

	if err := b.StartDomainMonitor(ctx, 1); err != nil {
		t.Fatalf("first StartDomainMonitor: %v", err)
	}

	if err := b.StartDomainMonitor(ctx, 1); err != nil {
		t.Fatalf("second StartDomainMonitor: %v", err)
	}

	if hv.StartCalls != 1 {
		t.Fatalf("StartCalls=%d, want 1 (second call should be a no-op)", hv.StartCalls)
	}
}

func TestStopDomainMonitor_SwallowsHypervisorError(t *testing.T) {
	ctx := context.Background()

	fs := osfs.NewFake()
	hv := &FakeHypervisor{
		Stats:   []map[string]RepoStat{{"sd-1": {Acquired: true}}},
		StopErr: errors.New("boom"),
	}

	b := New(fs, fakeBackend{}, hv, &fakeBrokerClock{now: time.Unix(0, 0)}, "sd-1", liveness.NewCache(nil, time.Second))

	if err := b.StartDomainMonitor(ctx, 1); err != nil {
		t.Fatalf("StartDomainMonitor: %v", err)
	}

	var loggedErr error
	b.StopDomainMonitor(ctx, func(err error) { loggedErr = err })

	if loggedErr == nil {
		t.Fatalf("expected stop error to be surfaced to the logging callback")
	}

	if b.DomainMonitorStatus() != StatusNone {
		t.Fatalf("status=%v, want NONE even though hypervisor stop failed", b.DomainMonitorStatus())
	}
}
