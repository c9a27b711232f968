package display

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

const (
	terminalWidth = 16
	// clear screen and home the cursor
	ansiClear = "\x1b[H\x1b[2J"
)

// Terminal draws the text large and centred in a box on a TTY, standing in
// for the front-panel display when running on a desk.
type Terminal struct {
	out   io.Writer
	style lipgloss.Style
}

// NewTerminal renders to out (stdout if nil).
func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	r := lipgloss.NewRenderer(out)
	style := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("10")).
		Bold(true).
		Padding(1, 2).
		Width(terminalWidth).
		Align(lipgloss.Center)
	return &Terminal{out: out, style: style}
}

// Render clears the terminal and draws text.
func (t *Terminal) Render(text string) error {
	if _, err := fmt.Fprintln(t.out, ansiClear+t.style.Render(text)); err != nil {
		return fmt.Errorf("write terminal display: %w", err)
	}
	return nil
}
