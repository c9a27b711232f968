// Package wpm persists the keyer speed in one byte of non-volatile memory.
package wpm

import (
	"errors"
	"fmt"

	"github.com/sweeney/cw-keyer/internal/logic"
	"github.com/sweeney/cw-keyer/internal/nvram"
)

// DefaultAddress is the nvram address holding the speed.
const DefaultAddress = 0

// ErrOutOfRange is returned for a speed outside [logic.MinWPM, logic.MaxWPM]
// where a valid one is required, and by Save for a value that does not fit
// the cell.
var ErrOutOfRange = errors.New("wpm out of range")

// Store loads and saves the speed setting. Saving is only done on an
// explicit user action; every write wears the medium.
type Store struct {
	cell nvram.Cell
	addr int
}

// NewStore creates a Store over cell at addr.
func NewStore(cell nvram.Cell, addr int) *Store {
	return &Store{cell: cell, addr: addr}
}

// Load returns the stored speed. ok is false when nothing valid is stored:
// the byte is erased, outside [logic.MinWPM, logic.MaxWPM], or unreadable.
func (s *Store) Load() (wpm int, ok bool) {
	b, err := s.cell.Read(s.addr)
	if err != nil {
		return 0, false
	}
	if !logic.ValidWPM(int(b)) {
		return 0, false
	}
	return int(b), true
}

// LoadOr returns the stored speed, or def when nothing valid is stored.
func (s *Store) LoadOr(def int) int {
	if w, ok := s.Load(); ok {
		return w
	}
	return def
}

// Save writes wpm as is; range checking happens on Load. There are no
// retries.
func (s *Store) Save(wpm int) error {
	if wpm < 0 || wpm > 0xFF {
		return fmt.Errorf("%w: %d does not fit in a byte", ErrOutOfRange, wpm)
	}
	if err := s.cell.Write(s.addr, byte(wpm)); err != nil {
		return fmt.Errorf("save wpm: %w", err)
	}
	return nil
}

// Validate returns ErrOutOfRange unless wpm is a usable speed.
func Validate(wpm int) error {
	if !logic.ValidWPM(wpm) {
		return fmt.Errorf("%w: %d (valid %d-%d)", ErrOutOfRange, wpm, logic.MinWPM, logic.MaxWPM)
	}
	return nil
}
