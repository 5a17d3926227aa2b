package domain

// Kind tags a Node as a Suite or a Test.
type Kind string

const (
	KindSuite Kind = "suite"
	KindTest  Kind = "test"
)

// State is the execution state of a node.
// Tests move through Pending, Running, Passed and Failed.
// Suites move through Pending, Running, Errored and Completed.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StatePassed    State = "passed"
	StateFailed    State = "failed"
	StateErrored   State = "errored"
	StateCompleted State = "completed"
)

// IsTerminal reports whether the state is a finished outcome.
func (s State) IsTerminal() bool {
	switch s {
	case StatePassed, StateFailed, StateErrored, StateCompleted:
		return true
	default:
		return false
	}
}

// severity orders states for tie breaking: Failed beats Running beats Passed beats Pending.
func (s State) severity() int {
	switch s {
	case StateFailed, StateErrored:
		return 3
	case StateRunning:
		return 2
	case StatePassed, StateCompleted:
		return 1
	default:
		return 0
	}
}

// Worse returns whichever of a and b is the worse outcome.
func Worse(a, b State) State {
	if b.severity() > a.severity() {
		return b
	}
	return a
}
