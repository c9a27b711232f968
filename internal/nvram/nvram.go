// Package nvram provides a small byte-addressed non-volatile memory, the way
// a microcontroller EEPROM is used: read or write one byte at an address.
package nvram

import (
	"errors"
	"fmt"
)

// Size is the number of addressable bytes.
const Size = 1024

// Erased is the value of a byte that has never been written.
const Erased byte = 0xFF

// ErrAddress is returned for an address outside [0, Size).
var ErrAddress = errors.New("nvram: address out of range")

// Cell reads and writes single bytes.
type Cell interface {
	Read(addr int) (byte, error)
	Write(addr int, b byte) error
}

func checkAddr(addr int) error {
	if addr < 0 || addr >= Size {
		return fmt.Errorf("%w: %d", ErrAddress, addr)
	}
	return nil
}

// FakeCell is an in-memory Cell for tests.
type FakeCell struct {
	Bytes map[int]byte
	// Writes counts successful writes, to check wear.
	Writes int
	// ReadError and WriteError, if set, are returned by Read and Write.
	ReadError  error
	WriteError error
}

// NewFakeCell creates an erased FakeCell.
func NewFakeCell() *FakeCell {
	return &FakeCell{Bytes: map[int]byte{}}
}

// Read returns the byte at addr, or Erased if it was never written.
func (f *FakeCell) Read(addr int) (byte, error) {
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if err := checkAddr(addr); err != nil {
		return 0, err
	}
	b, ok := f.Bytes[addr]
	if !ok {
		return Erased, nil
	}
	return b, nil
}

// Write stores b at addr.
func (f *FakeCell) Write(addr int, b byte) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	if err := checkAddr(addr); err != nil {
		return err
	}
	f.Bytes[addr] = b
	f.Writes++
	return nil
}
