package brain

import "time"

// State is a graded verdict. The lattice is ordered red > amber > green so
// merging verdicts is a pure worst-of reduction.
type State string

const (
	StateGreen State = "green"
	StateAmber State = "amber"
	StateRed   State = "red"
)

func (s State) rank() int {
	switch s {
	case StateRed:
		return 2
	case StateAmber:
		return 1
	default:
		return 0
	}
}

// Worse reports whether s is more severe than other.
func (s State) Worse(other State) bool { return s.rank() > other.rank() }

// Worst reduces any number of states to the most severe one. No states
// reduces to red: an empty verdict set must never read as permission.
func Worst(states ...State) State {
	if len(states) == 0 {
		return StateRed
	}
	worst := states[0]
	for _, s := range states[1:] {
		if s.Worse(worst) {
			worst = s
		}
	}
	return worst
}

// Output is one module's graded verdict plus its typed payload. State is
// always derived from the payload contents, never set independently.
type Output[T any] struct {
	State      State     `json:"state"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Payload    T         `json:"payload"`
	Timestamp  time.Time `json:"timestamp"`
}

func newOutput[T any](state State, confidence float64, reasoning string, payload T) Output[T] {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Output[T]{
		State:      state,
		Confidence: confidence,
		Reasoning:  reasoning,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}
