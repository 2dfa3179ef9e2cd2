package filter

import "errors"

// Exit statuses understood by the invoking MTA when the exit policy
// terminates the process.
const (
	// ExitDelivered tells the MTA the message is fully handled.
	ExitDelivered = 0
	// ExitTempFail asks the MTA to requeue and retry later.
	ExitTempFail = 75
	// ExitRejected tells the MTA to bounce the message to its sender.
	ExitRejected = 100
)

// ErrGaveUp reports that the recovery cascade ran out of options and the
// message was handed back to the MTA for a retry.
var ErrGaveUp = errors.New("recovery cascade exhausted")

// RejectError is the outcome of Session.Reject: the message should
// bounce to its sender, optionally with a human-readable reason.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string {
	if e.Reason == "" {
		return "message rejected"
	}
	return "message rejected: " + e.Reason
}

// ExitCode maps a terminal action's result to the process exit status
// the MTA expects: nil is delivered, a RejectError is a bounce, anything
// else is a temporary failure.
func ExitCode(err error) int {
	var rejected *RejectError
	switch {
	case err == nil:
		return ExitDelivered
	case errors.As(err, &rejected):
		return ExitRejected
	default:
		return ExitTempFail
	}
}
