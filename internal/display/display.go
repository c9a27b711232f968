// Package display renders the keyer's short status text (the speed, or a
// transient notice) on some output surface.
package display

import (
	"fmt"
	"io"
	"log"
)

// Display shows one string, replacing whatever was shown before.
type Display interface {
	Render(text string) error
}

// Log writes each rendered text to a logger.
type Log struct {
	logger *log.Logger
}

// NewLog creates a Log display. A nil logger uses the standard logger.
func NewLog(logger *log.Logger) *Log {
	if logger == nil {
		logger = log.Default()
	}
	return &Log{logger: logger}
}

// Render logs text.
func (l *Log) Render(text string) error {
	l.logger.Printf("display: %s", text)
	return nil
}

// None discards everything.
type None struct{}

// Render does nothing.
func (None) Render(string) error { return nil }

// Fake records rendered text for test assertions.
type Fake struct {
	Renders []string
	// RenderError, if set, is returned by Render (nothing is recorded).
	RenderError error
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{}
}

// Render records text.
func (f *Fake) Render(text string) error {
	if f.RenderError != nil {
		return f.RenderError
	}
	f.Renders = append(f.Renders, text)
	return nil
}

// Last returns the most recent text, or "" if nothing was rendered.
func (f *Fake) Last() string {
	if len(f.Renders) == 0 {
		return ""
	}
	return f.Renders[len(f.Renders)-1]
}

// Kinds accepted by New.
const (
	KindLog      = "log"
	KindSerial   = "serial"
	KindTerminal = "terminal"
	KindNone     = "none"
)

// Options selects and configures a display.
type Options struct {
	Kind string
	// Port and Baud are used by KindSerial.
	Port string
	Baud int
	// Out is used by KindTerminal.
	Out io.Writer
}

// New builds the display named by opts.Kind. The returned closer releases
// any device and is never nil.
func New(opts Options) (Display, io.Closer, error) {
	switch opts.Kind {
	case KindLog, "":
		return NewLog(nil), nopCloser{}, nil
	case KindNone:
		return None{}, nopCloser{}, nil
	case KindTerminal:
		return NewTerminal(opts.Out), nopCloser{}, nil
	case KindSerial:
		s, err := OpenSerial(opts.Port, opts.Baud)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown display kind %q", opts.Kind)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
