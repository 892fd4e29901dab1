//go:build unix

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func setProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup sends SIGKILL to the process group led by pid. ESRCH is expected
// once the group is gone.
func killGroup(pid int) {
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func exitStatusFrom(state *os.ProcessState) ExitStatus {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Kind: ExitSignal, Value: int(ws.Signal())}
	}
	if code := state.ExitCode(); code != 0 {
		return ExitStatus{Kind: ExitCode, Value: code}
	}
	return ExitStatus{Kind: ExitSuccess}
}
