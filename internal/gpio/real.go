//go:build linux

package gpio

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Index of each input line in the RealReader request.
const (
	lineDot = iota
	lineDash
	lineMode
	lineSave
	lineEncA
	lineEncB
	numInputs
)

// RealReader reads keyer inputs from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	vals  []int
}

// NewRealReader requests all six input lines in a single request so one
// Read samples them together.
func NewRealReader(pins Pins) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", pins.Chip, err)
	}

	offsets := make([]int, numInputs)
	offsets[lineDot] = pins.Dot
	offsets[lineDash] = pins.Dash
	offsets[lineMode] = pins.Mode
	offsets[lineSave] = pins.Save
	offsets[lineEncA] = pins.EncA
	offsets[lineEncB] = pins.EncB

	// Keys, buttons and the encoder common all switch to ground.
	lines, err := chip.RequestLines(offsets, gpiocdev.AsInput, gpiocdev.WithPullUp)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request input pins %v: %w", offsets, err)
	}

	return &RealReader{
		chip:  chip,
		lines: lines,
		vals:  make([]int, numInputs),
	}, nil
}

// Read samples every input line.
// Inverts keys and buttons: raw 0 (pulled low) = pressed.
func (r *RealReader) Read() (Sample, error) {
	if err := r.lines.Values(r.vals); err != nil {
		return Sample{}, fmt.Errorf("read input pins: %w", err)
	}

	return Sample{
		Dot:  r.vals[lineDot] == 0,
		Dash: r.vals[lineDash] == 0,
		Mode: r.vals[lineMode] == 0,
		Save: r.vals[lineSave] == 0,
		EncA: r.vals[lineEncA] == 1,
		EncB: r.vals[lineEncB] == 1,
	}, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input pins: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutputs drives the indicator LEDs and the buzzer.
//
// A positive tone frequency is generated as a square wave on the buzzer line
// by a background goroutine, so the control loop never waits on it. A
// frequency <= 0 drives the line high, for active buzzers that have their own
// oscillator.
type RealOutputs struct {
	chip     *gpiocdev.Chip
	paddle   *gpiocdev.Line
	straight *gpiocdev.Line
	buzzer   *gpiocdev.Line

	mu   sync.Mutex
	hz   int
	on   bool
	stop chan struct{}
	done chan struct{}
}

// NewRealOutputs requests the LED and buzzer lines as outputs, all low.
func NewRealOutputs(pins Pins) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(pins.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", pins.Chip, err)
	}

	o := &RealOutputs{chip: chip}
	if o.paddle, err = chip.RequestLine(pins.PaddleLED, gpiocdev.AsOutput(0)); err != nil {
		o.Close()
		return nil, fmt.Errorf("request paddle LED pin %d: %w", pins.PaddleLED, err)
	}
	if o.straight, err = chip.RequestLine(pins.StraightLED, gpiocdev.AsOutput(0)); err != nil {
		o.Close()
		return nil, fmt.Errorf("request straight LED pin %d: %w", pins.StraightLED, err)
	}
	if o.buzzer, err = chip.RequestLine(pins.Buzzer, gpiocdev.AsOutput(0)); err != nil {
		o.Close()
		return nil, fmt.Errorf("request buzzer pin %d: %w", pins.Buzzer, err)
	}

	return o, nil
}

// StartTone starts the side tone.
func (o *RealOutputs) StartTone(hz int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.on && o.hz == hz {
		return nil
	}
	o.silence()

	o.on = true
	o.hz = hz
	if hz <= 0 {
		if err := o.buzzer.SetValue(1); err != nil {
			return fmt.Errorf("set buzzer: %w", err)
		}
		return nil
	}

	o.stop = make(chan struct{})
	o.done = make(chan struct{})
	go squareWave(o.buzzer, time.Second/time.Duration(2*hz), o.stop, o.done)
	return nil
}

// StopTone silences the side tone.
func (o *RealOutputs) StopTone() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.on {
		return nil
	}
	return o.silence()
}

// silence stops any running wave and drives the buzzer low. Caller holds mu.
func (o *RealOutputs) silence() error {
	if o.stop != nil {
		close(o.stop)
		<-o.done
		o.stop = nil
		o.done = nil
	}
	o.on = false
	if o.buzzer == nil {
		return nil
	}
	if err := o.buzzer.SetValue(0); err != nil {
		return fmt.Errorf("clear buzzer: %w", err)
	}
	return nil
}

// squareWave toggles line every half period until stop is closed.
func squareWave(line *gpiocdev.Line, half time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(half)
	defer ticker.Stop()

	level := 0
	failed := false
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			level ^= 1
			if err := line.SetValue(level); err != nil && !failed {
				log.Printf("gpio: tone: set buzzer: %v", err)
				failed = true
			}
		}
	}
}

// SetIndicators drives the mode LEDs.
func (o *RealOutputs) SetIndicators(paddle, straight bool) error {
	if err := o.paddle.SetValue(boolToValue(paddle)); err != nil {
		return fmt.Errorf("set paddle LED: %w", err)
	}
	if err := o.straight.SetValue(boolToValue(straight)); err != nil {
		return fmt.Errorf("set straight LED: %w", err)
	}
	return nil
}

// Close silences the buzzer, turns off the LEDs and releases the lines.
func (o *RealOutputs) Close() error {
	var errs []error

	o.mu.Lock()
	if err := o.silence(); err != nil {
		errs = append(errs, err)
	}
	o.mu.Unlock()

	for _, l := range []*gpiocdev.Line{o.paddle, o.straight, o.buzzer} {
		if l == nil {
			continue
		}
		l.SetValue(0)
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", l.Offset(), err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func boolToValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
