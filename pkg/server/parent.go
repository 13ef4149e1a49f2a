package server

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"
)

// parentPollInterval is how often a stdio server checks that the process
// that launched it is still alive.
const parentPollInterval = 2 * time.Second

// isProcessRunning reports whether pid names a live process. Signal 0
// performs the existence and permission checks without delivering
// anything.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// monitorParent shuts the server down when its parent process exits, so
// an orphaned stdio server does not linger after the client is gone.
func (s *Server) monitorParent(ctx context.Context, interval time.Duration) {
	ppid := os.Getppid()
	if ppid <= 1 {
		return
	}
	s.logger.Debug("monitoring parent process", "ppid", ppid)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if os.Getppid() != ppid || !isProcessRunning(ppid) {
				s.logger.Info("parent process exited, shutting down", "ppid", ppid)
				s.Shutdown()
				return
			}
		}
	}
}
