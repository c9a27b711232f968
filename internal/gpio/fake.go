package gpio

import "errors"

// FakeReader is a test double that returns scripted GPIO values.
type FakeReader struct {
	// Samples contains scripted line readings.
	// Each call to Read() consumes the next sample.
	Samples []Sample

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (Sample, error) {
	if f.ReadError != nil {
		return Sample{}, f.ReadError
	}

	if len(f.Samples) == 0 {
		return Sample{}, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// ToneChange records one tone transition seen by FakeOutputs.
type ToneChange struct {
	On bool
	Hz int
}

// FakeOutputs records output commands for test assertions.
type FakeOutputs struct {
	// ToneOn is the current tone state.
	ToneOn bool
	// ToneHz is the frequency of the running tone.
	ToneHz int
	// ToneChanges lists every actual on/off transition.
	ToneChanges []ToneChange

	Paddle   bool
	Straight bool
	// IndicatorWrites counts SetIndicators calls.
	IndicatorWrites int

	// ToneError, if set, is returned by StartTone and StopTone.
	ToneError error
	// IndicatorError, if set, is returned by SetIndicators, which still
	// counts the write but leaves the LEDs unchanged.
	IndicatorError error

	Closed bool
}

// NewFakeOutputs creates a silent FakeOutputs with both LEDs off.
func NewFakeOutputs() *FakeOutputs {
	return &FakeOutputs{}
}

// StartTone records the tone starting.
func (f *FakeOutputs) StartTone(hz int) error {
	if f.ToneError != nil {
		return f.ToneError
	}
	if f.ToneOn && f.ToneHz == hz {
		return nil
	}
	f.ToneOn = true
	f.ToneHz = hz
	f.ToneChanges = append(f.ToneChanges, ToneChange{On: true, Hz: hz})
	return nil
}

// StopTone records the tone stopping.
func (f *FakeOutputs) StopTone() error {
	if f.ToneError != nil {
		return f.ToneError
	}
	if !f.ToneOn {
		return nil
	}
	f.ToneOn = false
	f.ToneHz = 0
	f.ToneChanges = append(f.ToneChanges, ToneChange{On: false})
	return nil
}

// SetIndicators records the LED levels.
func (f *FakeOutputs) SetIndicators(paddle, straight bool) error {
	if f.IndicatorError != nil {
		f.IndicatorWrites++
		return f.IndicatorError
	}
	f.Paddle = paddle
	f.Straight = straight
	f.IndicatorWrites++
	return nil
}

// Close silences the fake and marks it closed.
func (f *FakeOutputs) Close() error {
	f.ToneOn = false
	f.Paddle = false
	f.Straight = false
	f.Closed = true
	return nil
}
