// Package logic contains the pure keyer core: button debouncing, the speed
// encoder, the operating-mode state machine and the element timing scheduler.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"strconv"
	"time"
)

// Speed limits in words per minute.
const (
	MinWPM     = 5
	MaxWPM     = 99
	DefaultWPM = 30
)

// DashUnits is the length of a dash in units.
const DashUnits = 3

// Mode is the operating mode of the keyer.
type Mode string

const (
	ModeStraight Mode = "STRAIGHT"
	ModePaddle   Mode = "PADDLE"
)

// Phase is the state of the element timing scheduler.
type Phase string

const (
	PhaseIdle     Phase = "IDLE"
	PhaseSounding Phase = "SOUNDING"
	PhasePausing  Phase = "PAUSING"
)

// ToneCommand is the side effect a single iteration asks of the tone output.
type ToneCommand int

const (
	ToneNone ToneCommand = iota
	ToneStart
	ToneStop
)

func (c ToneCommand) String() string {
	switch c {
	case ToneStart:
		return "START"
	case ToneStop:
		return "STOP"
	default:
		return "NONE"
	}
}

// Element is the kind of tone the scheduler started.
type Element string

const (
	ElementDot  Element = "DOT"
	ElementDash Element = "DASH"
	ElementKey  Element = "KEY" // straight key, operator-timed
)

// EventType identifies a keyer event.
type EventType string

const (
	EventModeChanged EventType = "MODE_CHANGED"
	EventWPMChanged  EventType = "WPM_CHANGED"
	EventWPMSaved    EventType = "WPM_SAVED"
	EventElement     EventType = "ELEMENT"
)

// Event is something the keyer did that the outside world may care about.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Mode      Mode
	WPM       int
	Element   Element // set for EventElement only
}

// Input is one sample of every monitored line.
// Dot, Dash, ModeButton and SaveButton are logical (true = pressed, already
// inverted from pull-up wiring). EncA and EncB are raw phase levels.
type Input struct {
	Time       time.Time
	Dot        bool
	Dash       bool
	ModeButton bool
	SaveButton bool
	EncA       bool
	EncB       bool
}

// Indicators are the levels of the two mode LEDs. Exactly one is lit.
type Indicators struct {
	Paddle   bool
	Straight bool
}

// Output is everything one iteration asks the collaborators to do.
type Output struct {
	Tone ToneCommand
	// Indicators is non-nil only when the LEDs must be redriven.
	Indicators *Indicators
	// Display is the text to render; empty means leave the display alone.
	Display string
	Events  []Event
}

// EventCounts tracks the number of each event since startup.
type EventCounts struct {
	Dots        int
	Dashes      int
	Keyings     int
	ModeChanges int
	Saves       int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}

// ClampWPM forces wpm into [MinWPM, MaxWPM].
func ClampWPM(wpm int) int {
	if wpm < MinWPM {
		return MinWPM
	}
	if wpm > MaxWPM {
		return MaxWPM
	}
	return wpm
}

// ValidWPM reports whether wpm is inside [MinWPM, MaxWPM].
func ValidWPM(wpm int) bool {
	return wpm >= MinWPM && wpm <= MaxWPM
}

// UnitDuration returns the dot length for wpm: 1200/wpm milliseconds using
// integer division. wpm is clamped first.
func UnitDuration(wpm int) time.Duration {
	return time.Duration(1200/ClampWPM(wpm)) * time.Millisecond
}

// FormatWPM is the display text for a speed setting.
func FormatWPM(wpm int) string {
	return strconv.Itoa(wpm)
}
