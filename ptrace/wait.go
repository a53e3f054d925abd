package ptrace

import (
	"runtime"
	"time"

	"github.com/soltesz/inferior/internal/errs"
)

// WaitBlocking polls Wait4 until a status change is reaped or timeout
// elapses, the way the teacher's common/process.go simpleWait/Wait do.
// Step-over, the initial launch/attach stop and teardown reaps go through
// this; ProcessController.wait_until runs its own polling loop over Wait.
func (p Process) WaitBlocking(pgid int, timeout time.Duration) (Process, WaitStatus, error) {
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			return 0, WaitStatus(0), errs.Wrap(errs.ErrTimeout, "waitpid timed out")
		}

		wpid, status, err := p.Wait4(pgid)
		if err != nil {
			return 0, status, err
		}

		if wpid <= 0 {
			runtime.Gosched()
			continue
		}

		return wpid, status, nil
	}
}
