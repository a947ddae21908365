package transcript

import (
	"errors"
	"fmt"
	"strings"
)

// ErrObserverFailed is matched by errors returned from an Observer.
var ErrObserverFailed = errors.New("fragment observer failed")

// Observer receives each non-empty fragment of a streamed reply, in order.
type Observer func(fragment string) error

// ObserverError wraps the error an Observer returned for a fragment.
type ObserverError struct {
	Fragment int // 1-based index among observed fragments
	Err      error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("%s at fragment %d: %v", ErrObserverFailed, e.Fragment, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}

func (e *ObserverError) Is(target error) bool {
	return target == ErrObserverFailed
}

// Accumulator assembles streamed fragments into the text of one reply.
type Accumulator struct {
	buf       strings.Builder
	observer  Observer
	fragments int
}

// NewAccumulator returns an empty accumulator. observer may be nil.
func NewAccumulator(observer Observer) *Accumulator {
	return &Accumulator{observer: observer}
}

// Accumulate appends a fragment to the buffer and hands it to the observer.
// Empty fragments are ignored. When the observer fails the fragment stays in
// the buffer and the failure is returned as an *ObserverError.
func (a *Accumulator) Accumulate(fragment string) error {
	if fragment == "" {
		return nil
	}
	a.buf.WriteString(fragment)
	a.fragments++
	if a.observer == nil {
		return nil
	}
	if err := a.observer(fragment); err != nil {
		return &ObserverError{Fragment: a.fragments, Err: err}
	}
	return nil
}

func (a *Accumulator) String() string {
	return a.buf.String()
}

// Fragments reports how many non-empty fragments were accumulated.
func (a *Accumulator) Fragments() int {
	return a.fragments
}
