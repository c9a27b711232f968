package display

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaud is the UART speed used when none is configured.
const DefaultBaud = 115200

// clearScreen is the form feed that serial text displays treat as
// "clear and home".
const clearScreen = "\x0c"

// Serial renders to a UART-attached text display or console.
type Serial struct {
	w    io.Writer
	port serial.Port
}

// OpenSerial opens portName at baud (DefaultBaud if <= 0).
func OpenSerial(portName string, baud int) (*Serial, error) {
	if portName == "" {
		return nil, fmt.Errorf("serial display: no port configured")
	}
	if baud <= 0 {
		baud = DefaultBaud
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial display %s: %w", portName, err)
	}
	return &Serial{w: port, port: port}, nil
}

// NewSerialWriter renders to w using the serial display protocol.
func NewSerialWriter(w io.Writer) *Serial {
	return &Serial{w: w}
}

// Render clears the display and writes text on one line.
func (s *Serial) Render(text string) error {
	if _, err := io.WriteString(s.w, clearScreen+text+"\r\n"); err != nil {
		return fmt.Errorf("write serial display: %w", err)
	}
	return nil
}

// Close closes the port, if one was opened.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}
