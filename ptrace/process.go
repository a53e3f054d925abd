package ptrace

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/soltesz/inferior/internal/errs"
)

// Threads returns the task (thread) identifiers of the process, read from
// /proc/<pid>/task the way the teacher's common/process.go does.
func (p Process) Threads() ([]Process, error) {
	entries, err := os.ReadDir(fmt.Sprintf("/proc/%d/task", p))
	if err != nil {
		return nil, errs.Wrapf(errs.ErrIO, "process not found: %d", p)
	}

	threads := make([]Process, 0, len(entries))
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		threads = append(threads, Process(tid))
	}

	return threads, nil
}

// WaitStatus is the raw decoded status of a waitpid(2) call.
type WaitStatus = unix.WaitStatus

// Wait4 performs a single non-blocking waitpid(-pgid, WNOHANG) call and
// returns the reaped pid (0 if nothing changed) and decoded status.
// ProcessController layers the bounded/blocking retry policy of
// wait/wait_until on top of this primitive (spec.md §4.7).
func (p Process) Wait4(pgid int) (Process, WaitStatus, error) {
	var status unix.WaitStatus
	wpid, err := unix.Wait4(-pgid, &status, unix.WALL|unix.WUNTRACED|unix.WNOHANG, nil)
	if err != nil {
		return 0, status, errs.Wrap(errs.ErrKernel, err.Error())
	}
	return Process(wpid), status, nil
}

// Getpgid returns the process group id of the process.
func (p Process) Getpgid() int {
	pgid, _ := unix.Getpgid(int(p))
	return pgid
}

// Kill sends a signal to the process.
func (p Process) Kill(sig unix.Signal) error {
	return wrap(unix.Kill(int(p), sig))
}
