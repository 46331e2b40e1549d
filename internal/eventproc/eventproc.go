// Package eventproc is the pure decision layer sitting between the
// front model's pending-work buckets and the channel it uses to talk
// to the back cache: Decide looks at what's pending and what's ready
// and says which single command, if any, to send next.
package eventproc

// Command is what the front should do as the result of one Decide call.
type Command int

const (
	// DoNothing means no command should be sent this round.
	DoNothing Command = iota
	// SendEasy is a window/selection/hint adjustment that doesn't
	// touch storage.
	SendEasy
	// SendHeavy is a write and/or re-selection against storage.
	SendHeavy
	// SendUserQuery runs a one-off read-only pass-through query.
	SendUserQuery
)

func (c Command) String() string {
	switch c {
	case DoNothing:
		return "DoNothing"
	case SendEasy:
		return "SendEasy"
	case SendHeavy:
		return "SendHeavy"
	case SendUserQuery:
		return "SendUserQuery"
	default:
		return "Command(?)"
	}
}

// State is the front model's pending-work snapshot at decision time.
// Decide is a pure function of State; it has no side effects and
// touches no channel or timer itself.
type State struct {
	// TerminalError is true once the back has reported an
	// unrecoverable storage failure; every subsequent Decide call
	// returns DoNothing.
	TerminalError bool
	// BackendReady is true when there is no in-flight heavy op, no
	// pending write buffer, no pending clear, and no pending user
	// query already dispatched.
	BackendReady bool
	// FrontendReady is false during the initial load, before the
	// first window has been shown.
	FrontendReady bool

	PendingUserQuery    bool
	PendingUserEasy     bool
	PendingUserHeavy    bool
	PendingDataIncoming bool

	// TimerElapsed reports the debounce timer's IsOperationSendAllowed
	// flag: heavy operations (user-initiated or data-driven) wait for
	// it before firing.
	TimerElapsed bool
}

// Decide returns the single command State calls for, highest priority
// first: terminal error and backend-busy both force DoNothing; while
// the frontend is still in its initial load only data-driven heavy
// writes are considered (the stream must keep flowing even before the
// view is shown); once the frontend is ready, a pending user query
// outranks a pending easy adjustment, which outranks a heavy write
// that is still waiting on the debounce timer.
func Decide(s State) Command {
	if s.TerminalError || !s.BackendReady {
		return DoNothing
	}

	if !s.FrontendReady {
		if s.PendingDataIncoming {
			return SendHeavy
		}
		return DoNothing
	}

	switch {
	case s.PendingUserQuery:
		return SendUserQuery
	case s.PendingUserEasy:
		return SendEasy
	case (s.PendingUserHeavy || s.PendingDataIncoming) && s.TimerElapsed:
		return SendHeavy
	default:
		return DoNothing
	}
}

// Busy reports the cursor-busy predicate: true iff the frontend is
// ready but the backend isn't, or there is heavy or data work still
// pending.
func Busy(s State) bool {
	return s.FrontendReady && (!s.BackendReady || s.PendingUserHeavy || s.PendingDataIncoming)
}
