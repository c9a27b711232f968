// Package gpio provides keyer line access with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"log"
	"time"
)

// Sample is one reading of every input line.
// Dot, Dash, Mode and Save are logical: the lines are pulled up and a
// pressed contact pulls them low, so raw 0 = true. EncA and EncB are the raw
// encoder phase levels.
type Sample struct {
	Dot  bool
	Dash bool
	Mode bool
	Save bool
	EncA bool
	EncB bool
}

// Reader reads keyer input lines.
type Reader interface {
	// Read samples all input lines. It must not block.
	Read() (Sample, error)

	// Close releases GPIO resources.
	Close() error
}

// Outputs drives the tone generator and the two mode indicators.
type Outputs interface {
	// StartTone starts the side tone at hz. Starting an already running
	// tone at the same frequency is a no-op.
	StartTone(hz int) error

	// StopTone silences the side tone. Stopping a silent output is a no-op.
	StopTone() error

	// SetIndicators drives the paddle and straight mode LEDs.
	SetIndicators(paddle, straight bool) error

	// Close silences everything and releases GPIO resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip           = "gpiochip0"
	DefaultPinDot         = 17 // dot lever / straight key (tip)
	DefaultPinDash        = 27 // dash lever (ring)
	DefaultPinMode        = 22
	DefaultPinSave        = 23
	DefaultPinEncA        = 5 // encoder CLK
	DefaultPinEncB        = 6 // encoder DT
	DefaultPinPaddleLED   = 24
	DefaultPinStraightLED = 25
	DefaultPinBuzzer      = 18
)

// Pins maps keyer functions to line offsets on one chip.
type Pins struct {
	Chip        string
	Dot         int
	Dash        int
	Mode        int
	Save        int
	EncA        int
	EncB        int
	PaddleLED   int
	StraightLED int
	Buzzer      int
}

// DefaultPins returns the stock wiring.
func DefaultPins() Pins {
	return Pins{
		Chip:        DefaultChip,
		Dot:         DefaultPinDot,
		Dash:        DefaultPinDash,
		Mode:        DefaultPinMode,
		Save:        DefaultPinSave,
		EncA:        DefaultPinEncA,
		EncB:        DefaultPinEncB,
		PaddleLED:   DefaultPinPaddleLED,
		StraightLED: DefaultPinStraightLED,
		Buzzer:      DefaultPinBuzzer,
	}
}

// BlinkFailure flashes both indicators together to show that bring-up
// failed. It blocks for cycles full periods and is only meant to run before
// the control loop starts.
func BlinkFailure(out Outputs, cycles int, period time.Duration, sleep func(time.Duration)) {
	half := period / 2
	logged := false
	set := func(on bool) {
		if err := out.SetIndicators(on, on); err != nil && !logged {
			log.Printf("gpio: failure blink: %v", err)
			logged = true
		}
	}
	for i := 0; i < cycles; i++ {
		set(true)
		sleep(half)
		set(false)
		sleep(half)
	}
}
