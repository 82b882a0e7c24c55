package portfolio

// State is the environment lifecycle.
type State int

const (
	AwaitingReset State = iota
	Ready
	Stepping
	Terminated
)

func (s State) String() string {
	switch s {
	case AwaitingReset:
		return "AWAITING_RESET"
	case Ready:
		return "READY"
	case Stepping:
		return "STEPPING"
	case Terminated:
		return "TERMINATED"
	}
	return "UNKNOWN"
}

func (s State) canStep() bool { return s == Ready || s == Stepping }
