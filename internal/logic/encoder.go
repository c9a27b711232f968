package logic

import "time"

// Acceleration selects how the encoder turns rotation speed into step size.
type Acceleration string

const (
	// AccelBanded maps the interval since the previous accepted transition
	// onto a step of 1..5.
	AccelBanded Acceleration = "banded"
	// AccelPulseCount steps by 2 once two consecutive same-direction
	// transitions arrive within PulseWindow of each other, else by 1.
	// A direction reversal restarts the count.
	AccelPulseCount Acceleration = "pulse-count"
)

// DefaultEncoderQuiet is the minimum gap between accepted phase A changes.
const DefaultEncoderQuiet = 10 * time.Millisecond

// PulseWindow is the same-direction window used by AccelPulseCount.
const PulseWindow = 100 * time.Millisecond

// speedBand maps an upper interval bound to a step size.
type speedBand struct {
	below time.Duration
	step  int
}

// Checked in order; an interval at or above the last bound steps by 1.
var speedBands = []speedBand{
	{30 * time.Millisecond, 5},
	{50 * time.Millisecond, 4},
	{80 * time.Millisecond, 3},
	{120 * time.Millisecond, 2},
}

// EncoderConfig configures the speed encoder decoder.
type EncoderConfig struct {
	Acceleration Acceleration
	// Quiet is the minimum time between accepted phase A changes.
	Quiet time.Duration
	// Reverse flips the direction convention to match the wiring.
	// By default phase B differing from the new phase A level counts up.
	Reverse bool
}

// EncoderState is the transient quadrature memory.
type EncoderState struct {
	Seeded       bool
	LastA        bool
	LastAccepted time.Time
	Pulses       int
	LastDir      int
}

// Encoder decodes quadrature transitions into a clamped WPM value.
type Encoder struct {
	cfg      EncoderConfig
	state    EncoderState
	value    int
	reported int
}

// NewEncoder creates a decoder starting at initial (clamped).
func NewEncoder(cfg EncoderConfig, initial int) *Encoder {
	if cfg.Acceleration == "" {
		cfg.Acceleration = AccelBanded
	}
	if cfg.Quiet <= 0 {
		cfg.Quiet = DefaultEncoderQuiet
	}
	v := ClampWPM(initial)
	return &Encoder{cfg: cfg, value: v, reported: v}
}

// Update samples both phases. It returns the current value and whether it
// differs from the previously reported one.
func (e *Encoder) Update(a, b bool, now time.Time) (int, bool) {
	st := &e.state
	if !st.Seeded {
		st.Seeded = true
		st.LastA = a
		return e.value, false
	}

	prevA := st.LastA
	st.LastA = a

	if a == prevA {
		return e.value, false
	}
	// A change inside the quiet period is chatter and is dropped.
	if !st.LastAccepted.IsZero() && now.Sub(st.LastAccepted) < e.cfg.Quiet {
		return e.value, false
	}

	dir := -1
	if b != a {
		dir = 1
	}
	if e.cfg.Reverse {
		dir = -dir
	}

	step := e.step(dir, now)
	st.LastAccepted = now
	st.LastDir = dir

	e.value = ClampWPM(e.value + dir*step)
	if e.value == e.reported {
		return e.value, false
	}
	e.reported = e.value
	return e.value, true
}

func (e *Encoder) step(dir int, now time.Time) int {
	st := &e.state
	first := st.LastAccepted.IsZero()
	interval := now.Sub(st.LastAccepted)

	switch e.cfg.Acceleration {
	case AccelPulseCount:
		if first || dir != st.LastDir || interval > PulseWindow {
			st.Pulses = 1
		} else {
			st.Pulses++
		}
		if st.Pulses >= 2 {
			return 2
		}
		return 1
	default:
		if first {
			return 1
		}
		for _, band := range speedBands {
			if interval < band.below {
				return band.step
			}
		}
		return 1
	}
}

// Value returns the current clamped WPM.
func (e *Encoder) Value() int {
	return e.value
}

// State returns the raw quadrature memory.
func (e *Encoder) State() EncoderState {
	return e.state
}
