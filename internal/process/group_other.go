//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func killGroup(pid int) {
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}

func exitStatusFrom(state *os.ProcessState) ExitStatus {
	if code := state.ExitCode(); code != 0 {
		return ExitStatus{Kind: ExitCode, Value: code}
	}
	return ExitStatus{Kind: ExitSuccess}
}
