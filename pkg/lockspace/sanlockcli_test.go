package lockspace

import (
	"context"
	"errors"
	"testing"

	"github.com/ovirt/hosted-engine-ha/internal/cmdrunner"
)

func TestCLIDaemon_AddLockspace_InvokesSanlockClient(t *testing.T) {
	runner := &cmdrunner.Fake{}
	d := NewCLIDaemon(runner)

	if err := d.AddLockspace(context.Background(), "hosted-engine", 3, "/mnt/lease"); err != nil {
		t.Fatalf("AddLockspace: %v", err)
	}

	if len(runner.Calls) != 1 || runner.Calls[0].Name != "sanlock" {
		t.Fatalf("calls=%v, want one sanlock invocation", runner.Calls)
	}
}

func TestTranslateExitCode_PassesThroughNonExitErrors(t *testing.T) {
	wantErr := errors.New("boom")

	if got := translateExitCode(wantErr); !errors.Is(got, wantErr) {
		t.Fatalf("translateExitCode(%v) = %v, want passthrough", wantErr, got)
	}
}

func TestTranslateExitCode_Nil(t *testing.T) {
	if err := translateExitCode(nil); err != nil {
		t.Fatalf("translateExitCode(nil) = %v, want nil", err)
	}
}

func TestCLIDaemon_RemLockspace_InvokesSanlockClient(t *testing.T) {
	runner := &cmdrunner.Fake{}
	d := NewCLIDaemon(runner)

	if err := d.RemLockspace(context.Background(), "hosted-engine", 3, "/mnt/lease"); err != nil {
		t.Fatalf("RemLockspace: %v", err)
	}

	if len(runner.Calls) != 1 || runner.Calls[0].Args[1] != "rem_lockspace" {
		t.Fatalf("calls=%v, want rem_lockspace", runner.Calls)
	}
}

