//go:build windows

package runner

import (
	"os"
	"os/exec"
)

// Windows has no process-group signal delivery; the best the runner
// can do is kill the immediate child directly.
func configureProcessGroup(_ *exec.Cmd) {}

func forwardToGroup(cmd *exec.Cmd, _ os.Signal) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}

func fatalSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

func signalNumber(sig os.Signal) int {
	if sig == os.Interrupt {
		return 2
	}
	return 0
}
