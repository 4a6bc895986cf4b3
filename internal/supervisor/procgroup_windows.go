//go:build windows

package supervisor

import (
	"errors"
	"os/exec"
)

// setupProcessGroup is a no-op on Windows where Setpgid is unavailable.
func setupProcessGroup(cmd *exec.Cmd) {}

// signalGroup has no graceful equivalent on Windows; the process is killed
// outright and grandchild cleanup is best-effort.
func signalGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// killGroup kills the process directly.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

// exitStatus extracts the exit code; Windows has no signal deaths.
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
	return ps.ExitCode(), ""
}
