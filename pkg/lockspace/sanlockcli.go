package lockspace

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/ovirt/hosted-engine-ha/internal/cmdrunner"
)

// CLIDaemon is a LockDaemon that shells out to the sanlock client CLI,
// reusing the same injectable cmdrunner.Runner seam the block backend uses
// for lvcreate/dmsetup (spec §9: "model as an injectable command runner
// capability"). sanlock's client tool reports failures as a negative
// errno process exit code; CLIDaemon translates that back into the errno
// Manager.Acquire switches on.
type CLIDaemon struct {
	runner cmdrunner.Runner
}

// NewCLIDaemon wraps runner as a LockDaemon.
func NewCLIDaemon(runner cmdrunner.Runner) *CLIDaemon {
	return &CLIDaemon{runner: runner}
}

func (d *CLIDaemon) AddLockspace(ctx context.Context, lockspaceName string, hostID int, leasePath string) error {
	_, err := d.runner.Run(ctx, "sanlock", "client", "add_lockspace",
		"-s", fmt.Sprintf("%s:%d:%s:0", lockspaceName, hostID, leasePath))

	return translateExitCode(err)
}

func (d *CLIDaemon) RemLockspace(ctx context.Context, lockspaceName string, hostID int, leasePath string) error {
	_, err := d.runner.Run(ctx, "sanlock", "client", "rem_lockspace",
		"-s", fmt.Sprintf("%s:%d:%s:0", lockspaceName, hostID, leasePath))

	return translateExitCode(err)
}

// translateExitCode recovers the errno sanlock encodes as a negative exit
// code. The kernel keeps only the low 8 bits of an exit status, so exit(-e)
// arrives as 256-e (129..255); any other failure shape (a status of 1..128,
// a signal death, a non-exit error) is returned unchanged so
// Manager.Acquire's "other errno: retry under budget" branch still applies.
func translateExitCode(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError

	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 128 {
			return syscall.Errno(256 - code)
		}
	}

	return err
}

var _ LockDaemon = (*CLIDaemon)(nil)
