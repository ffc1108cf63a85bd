package daemon

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/mu-kernel/mukernel/pkg/kernel"
)

// writePIDFile writes the current process id to path, refusing if path
// already points at a process that is still alive (spec.md §4.7).
func writePIDFile(path string) error {
	if existing, ok := readLivePID(path); ok {
		return fmt.Errorf("daemon already running with pid %d (%s): %w", existing, path, kernel.ErrAlreadyExists)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// removePIDFile removes path, ignoring a not-exist error so a doubly
// invoked Stop is harmless.
func removePIDFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// readLivePID reads the pid recorded at path and reports whether that
// process is still alive. A missing or unparseable file is treated as no
// live process.
func readLivePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !processAlive(pid) {
		return 0, false
	}
	return pid, true
}

// processAlive reports whether pid identifies a running process. On
// POSIX systems, os.FindProcess always succeeds; signal 0 is the
// portable way to probe liveness without affecting the target.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
