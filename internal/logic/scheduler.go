package logic

import "time"

// Keys are the key signals the scheduler consults. In Straight mode only Dot
// is read (the straight key shares the tip line with the dot lever).
type Keys struct {
	Dot  bool
	Dash bool
}

// Scheduler is the non-blocking element timing state machine.
//
// Idle -> Sounding when the governing key is pressed.
// Sounding -> Pausing once the element duration has elapsed (Paddle only).
// Pausing -> Idle once one unit of silence has elapsed.
// Any -> Idle the moment the governing key is released.
//
// A lever held past the end of its pause does not start another element
// unless auto-repeat is enabled; it has to be released first.
type Scheduler struct {
	autoRepeat bool

	phase    Phase
	since    time.Time
	duration time.Duration
	element  Element
	// latched is set once an element started for the current press.
	latched bool
}

// NewScheduler creates an idle scheduler.
func NewScheduler(autoRepeat bool) *Scheduler {
	return &Scheduler{autoRepeat: autoRepeat, phase: PhaseIdle}
}

// Step advances the state machine by one loop iteration. It returns the tone
// side effect and, when a tone started, the element it started.
func (s *Scheduler) Step(mode Mode, keys Keys, unit time.Duration, now time.Time) (ToneCommand, Element) {
	if mode == ModeStraight {
		return s.stepStraight(keys.Dot, unit, now)
	}
	return s.stepPaddle(keys, unit, now)
}

func (s *Scheduler) stepStraight(pressed bool, unit time.Duration, now time.Time) (ToneCommand, Element) {
	if !pressed {
		return s.release(), ""
	}
	if s.phase == PhaseSounding {
		return ToneNone, ""
	}
	s.begin(ElementKey, unit, now)
	return ToneStart, ElementKey
}

func (s *Scheduler) stepPaddle(keys Keys, unit time.Duration, now time.Time) (ToneCommand, Element) {
	if !keys.Dot && !keys.Dash {
		return s.release(), ""
	}

	switch s.phase {
	case PhaseIdle:
		if s.latched && !s.autoRepeat {
			return ToneNone, ""
		}
		if keys.Dash {
			s.begin(ElementDash, DashUnits*unit, now)
			return ToneStart, ElementDash
		}
		s.begin(ElementDot, unit, now)
		return ToneStart, ElementDot

	case PhaseSounding:
		if now.Sub(s.since) >= s.duration {
			s.phase = PhasePausing
			s.since = now
			return ToneStop, ""
		}

	case PhasePausing:
		if now.Sub(s.since) >= unit {
			s.phase = PhaseIdle
		}
	}
	return ToneNone, ""
}

func (s *Scheduler) begin(el Element, d time.Duration, now time.Time) {
	s.phase = PhaseSounding
	s.since = now
	s.duration = d
	s.element = el
	s.latched = true
}

// release drops to Idle, pre-empting any pending pause.
func (s *Scheduler) release() ToneCommand {
	was := s.phase
	s.phase = PhaseIdle
	s.latched = false
	if was == PhaseSounding {
		return ToneStop
	}
	return ToneNone
}

// Reset forces the scheduler to Idle and reports whether a tone was sounding.
// A key still held in keys stays latched, so it must be released and pressed
// again before it starts an element.
func (s *Scheduler) Reset(keys Keys) bool {
	sounding := s.phase == PhaseSounding
	s.phase = PhaseIdle
	s.latched = keys.Dot || keys.Dash
	return sounding
}

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase {
	return s.phase
}

// Duration returns the length chosen for the current element.
func (s *Scheduler) Duration() time.Duration {
	return s.duration
}

// Element returns the element most recently started.
func (s *Scheduler) Element() Element {
	return s.element
}
