package executor

import "os"

// Status is the outcome of a command or subtree. 0 is success.
type Status int

const (
	Success Status = 0
	Failure Status = 1

	// ShellExit is returned for a node the evaluator does not recognise.
	// It is never produced by a well-formed tree.
	ShellExit Status = -100
)

// OK reports whether st is success.
func (st Status) OK() bool { return st == Success }

// statusOf maps a process's termination to a Status. Anything other than a
// normal exit (for example death by signal) is Failure.
func statusOf(state *os.ProcessState) Status {
	if state == nil || !state.Exited() {
		return Failure
	}
	return Status(state.ExitCode())
}

// both is Success iff a and b are both Success.
func both(a, b Status) Status {
	if a.OK() && b.OK() {
		return Success
	}
	return Failure
}
