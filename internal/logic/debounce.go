package logic

import "time"

// DebounceState is the per-button memory of the edge detector.
type DebounceState struct {
	// Last observed level (true = active).
	LastActive bool
	// Time of the last accepted transition. Zero means none yet.
	LastAccepted time.Time
}

// CheckEdge reports whether a press fired. It fires when the button is seen
// active, was inactive on the previous sample, and at least window has
// elapsed since the last accepted press. The returned state must be passed
// to the next call.
func CheckEdge(active bool, now time.Time, window time.Duration, prior DebounceState) (bool, DebounceState) {
	next := DebounceState{LastActive: active, LastAccepted: prior.LastAccepted}

	if !active || prior.LastActive {
		return false, next
	}
	if !prior.LastAccepted.IsZero() && now.Sub(prior.LastAccepted) < window {
		return false, next
	}

	next.LastAccepted = now
	return true, next
}

// Button is a debounced push button.
type Button struct {
	Window time.Duration
	state  DebounceState
}

// NewButton creates a button that accepts at most one press per window.
func NewButton(window time.Duration) *Button {
	return &Button{Window: window}
}

// Check samples the button and reports whether a press fired.
func (b *Button) Check(active bool, now time.Time) bool {
	fired, next := CheckEdge(active, now, b.Window, b.state)
	b.state = next
	return fired
}

// State returns the debounce memory.
func (b *Button) State() DebounceState {
	return b.state
}
