//go:build !windows

package runner

import (
	"os"
	"os/exec"
	"syscall"
)

// configureProcessGroup places cmd in its own process group so a
// forwarded signal reaches the whole subtree it spawns, not just the
// immediate child. Grounded on core/decorator/local_session_unix.go.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func forwardToGroup(cmd *exec.Cmd, sig os.Signal) {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, s)
}

func fatalSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
}

func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 0
}
