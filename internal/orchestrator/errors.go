// In file: internal/orchestrator/errors.go
package orchestrator

import (
	"errors"
	"fmt"
)

// ErrIterationLimit matches any *IterationLimitError via errors.Is.
var ErrIterationLimit = errors.New("iteration limit reached")

// ErrNoMessages is returned when a run is started with an empty history.
var ErrNoMessages = errors.New("conversation has no messages")

// IterationLimitError reports that the model was still requesting tools after
// the maximum number of dispatch rounds had run.
type IterationLimitError struct {
	Limit int
	// Pending is how many tool calls the final, undispatched reply asked for.
	Pending int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("%v: model still requested %d tool call(s) after %d rounds", ErrIterationLimit, e.Pending, e.Limit)
}

func (e *IterationLimitError) Is(target error) bool {
	return target == ErrIterationLimit
}
