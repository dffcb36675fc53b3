package submission

// State is a step of the submission lifecycle:
// Building → Forged → Signed → Preapplied → Injected → Pending → {Confirmed, Refused, TimedOut}.
// Failed marks a submission that stopped before injection succeeded; the
// Result's FailedAt names the last state reached.
type State int

const (
	StateBuilding State = iota
	StateForged
	StateSigned
	StatePreapplied
	StateInjected
	StatePending
	StateConfirmed
	StateRefused
	StateTimedOut
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateForged:
		return "forged"
	case StateSigned:
		return "signed"
	case StatePreapplied:
		return "preapplied"
	case StateInjected:
		return "injected"
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateRefused:
		return "refused"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// ParseState accepts the names returned by State.String.
func ParseState(s string) (State, bool) {
	for st := StateBuilding; st <= StateFailed; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StateFailed, false
}

// Terminal reports whether no further transition can happen. TimedOut is
// not terminal: the operation may still be confirmed later.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRefused || s == StateFailed
}
