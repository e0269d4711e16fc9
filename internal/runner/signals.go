package runner

import (
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"sync/atomic"
)

// signalGuard forwards fatal signals to the currently running child by
// way of its process group, per spec.md §5. Installing a second guard
// in the same process panics: only one Run invocation owns the signal
// channel at a time.
type signalGuard struct {
	ch       chan os.Signal
	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int32 // set when a fatal signal arrives with no child running
}

var guardInstalled int32

func installSignalGuard() *signalGuard {
	if !atomic.CompareAndSwapInt32(&guardInstalled, 0, 1) {
		panic("runner: signal guard installed twice")
	}

	g := &signalGuard{
		ch:   make(chan os.Signal, 1),
		done: make(chan struct{}),
	}
	signal.Notify(g.ch, fatalSignals()...)

	go g.loop()
	return g
}

func (g *signalGuard) loop() {
	for {
		select {
		case sig, ok := <-g.ch:
			if !ok {
				return
			}
			g.mu.Lock()
			cmd := g.cmd
			g.mu.Unlock()
			if cmd != nil && cmd.Process != nil {
				forwardToGroup(cmd, sig)
				continue
			}
			// Idle: record the exit code spec.md §5 mandates (128 + signal
			// number) and exit the process at once with it.
			atomic.StoreInt32(&g.exitCode, int32(128+signalNumber(sig)))
			os.Exit(int(atomic.LoadInt32(&g.exitCode)))
		case <-g.done:
			return
		}
	}
}

// attach registers cmd as the currently running child so a received
// signal can be forwarded to it. detach clears the registration once
// the child has exited.
func (g *signalGuard) attach(cmd *exec.Cmd) {
	g.mu.Lock()
	g.cmd = cmd
	g.mu.Unlock()
}

func (g *signalGuard) detach() {
	g.mu.Lock()
	g.cmd = nil
	g.mu.Unlock()
}

func (g *signalGuard) release() {
	signal.Stop(g.ch)
	close(g.done)
	atomic.StoreInt32(&guardInstalled, 0)
}
