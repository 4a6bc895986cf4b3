//go:build !windows

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"
)

// setupProcessGroup puts the child in its own process group so that stop and
// kill signals reach grandchildren too (dev servers fork freely).
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup asks the child's whole process group to terminate.
func signalGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
}

// killGroup forcibly kills the child's whole process group.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// exitStatus extracts the exit code and, when the process died on a signal,
// the signal name. Code is -1 for signal deaths.
func exitStatus(cmd *exec.Cmd, waitErr error) (int, string) {
	ps := cmd.ProcessState
	if ps == nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			ps = exitErr.ProcessState
		}
	}
	if ps == nil {
		return -1, ""
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -1, ws.Signal().String()
	}
	return ps.ExitCode(), ""
}
