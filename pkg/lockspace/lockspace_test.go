package lockspace

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	hostedha "github.com/ovirt/hosted-engine-ha"
)

func TestManager_Acquire_SucceedsImmediately(t *testing.T) {
	daemon := &FakeDaemon{}
	clock := &FakeClock{}
	mgr := NewManager(daemon, clock, 5, time.Millisecond)

	h, err := mgr.Acquire(context.Background(), 7, "/dom/lockspace")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if daemon.AddCalls != 1 {
		t.Fatalf("AddCalls=%d, want 1", daemon.AddCalls)
	}

	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if daemon.RemCalls != 1 {
		t.Fatalf("RemCalls=%d, want 1", daemon.RemCalls)
	}
}

func TestManager_Acquire_EEXISTTreatedAsSuccess(t *testing.T) {
	daemon := &FakeDaemon{AddErrs: []error{syscall.EEXIST}}
	mgr := NewManager(daemon, &FakeClock{}, 5, time.Millisecond)

	_, err := mgr.Acquire(context.Background(), 1, "/lease")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
}

func TestManager_Acquire_EINVALIsFatalNoRetry(t *testing.T) {
	daemon := &FakeDaemon{AddErrs: []error{syscall.EINVAL}}
	mgr := NewManager(daemon, &FakeClock{}, 5, time.Millisecond)

	_, err := mgr.Acquire(context.Background(), 1, "/lease")
	if !errors.Is(err, hostedha.ErrSanlockInit) {
		t.Fatalf("err=%v, want wrapping ErrSanlockInit", err)
	}

	if daemon.AddCalls != 1 {
		t.Fatalf("AddCalls=%d, want 1 (no retry on EINVAL)", daemon.AddCalls)
	}
}

// TestManager_Acquire_S6 is spec scenario S6: k < WAIT_FOR_STORAGE_RETRY
// EINTR failures followed by success yields exactly k+1 add-lockspace
// calls and k sleeps of WAIT_FOR_STORAGE_DELAY.
func TestManager_Acquire_S6(t *testing.T) {
	const k = 3
	const retryBudget = 5
	const delay = 10 * time.Millisecond

	errs := make([]error, k)
	for i := range errs {
		errs[i] = syscall.EINTR
	}

	daemon := &FakeDaemon{AddErrs: errs} // succeeds on call k+1 (errs exhausted -> nil)
	clock := &FakeClock{}
	mgr := NewManager(daemon, clock, retryBudget, delay)

	_, err := mgr.Acquire(context.Background(), 2, "/lease")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if daemon.AddCalls != k+1 {
		t.Fatalf("AddCalls=%d, want %d", daemon.AddCalls, k+1)
	}

	if len(clock.Sleeps) != k {
		t.Fatalf("sleeps=%d, want %d", len(clock.Sleeps), k)
	}

	for _, s := range clock.Sleeps {
		if s != delay {
			t.Fatalf("sleep=%v, want %v", s, delay)
		}
	}
}

func TestManager_Acquire_ExhaustsRetryBudget(t *testing.T) {
	errs := make([]error, 10)
	for i := range errs {
		errs[i] = syscall.EINTR
	}

	daemon := &FakeDaemon{AddErrs: errs}
	mgr := NewManager(daemon, &FakeClock{}, 3, time.Millisecond)

	_, err := mgr.Acquire(context.Background(), 1, "/lease")
	if !errors.Is(err, hostedha.ErrSanlockInit) {
		t.Fatalf("err=%v, want wrapping ErrSanlockInit", err)
	}

	if daemon.AddCalls != 3 {
		t.Fatalf("AddCalls=%d, want 3 (retry budget)", daemon.AddCalls)
	}
}

// TestManager_Acquire_IdempotentWithinProcess is testable property #6:
// calling acquire twice in succession with the same arguments succeeds
// both times and leaves exactly one add-lockspace effect.
func TestManager_Acquire_IdempotentWithinProcess(t *testing.T) {
	daemon := &FakeDaemon{}
	mgr := NewManager(daemon, &FakeClock{}, 5, time.Millisecond)

	h1, err := mgr.Acquire(context.Background(), 4, "/lease")
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	h2, err := mgr.Acquire(context.Background(), 4, "/lease")
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}

	if daemon.AddCalls != 1 {
		t.Fatalf("AddCalls=%d, want 1", daemon.AddCalls)
	}

	_ = h1.Close(context.Background())
	_ = h2.Close(context.Background())
}

func TestHandle_Close_Idempotent(t *testing.T) {
	daemon := &FakeDaemon{}
	mgr := NewManager(daemon, &FakeClock{}, 5, time.Millisecond)

	h, err := mgr.Acquire(context.Background(), 1, "/lease")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	if err := h.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if daemon.RemCalls != 1 {
		t.Fatalf("RemCalls=%d, want 1 (Close must be idempotent)", daemon.RemCalls)
	}
}

func TestManager_Acquire_OtherErrnoRetriesUnderBudget(t *testing.T) {
	daemon := &FakeDaemon{AddErrs: []error{syscall.ENOENT, syscall.EINPROGRESS}}
	mgr := NewManager(daemon, &FakeClock{}, 5, time.Millisecond)

	_, err := mgr.Acquire(context.Background(), 1, "/lease")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if daemon.AddCalls != 3 {
		t.Fatalf("AddCalls=%d, want 3", daemon.AddCalls)
	}
}
