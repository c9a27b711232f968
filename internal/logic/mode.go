package logic

// ModeMachine owns the operating mode. Only Toggle changes it.
type ModeMachine struct {
	mode Mode
}

// NewModeMachine starts in Straight mode.
func NewModeMachine() *ModeMachine {
	return &ModeMachine{mode: ModeStraight}
}

// Mode returns the current operating mode.
func (m *ModeMachine) Mode() Mode {
	return m.mode
}

// Toggle flips to the other mode and returns it.
func (m *ModeMachine) Toggle() Mode {
	if m.mode == ModePaddle {
		m.mode = ModeStraight
	} else {
		m.mode = ModePaddle
	}
	return m.mode
}

// Indicators returns the LED levels for the current mode.
func (m *ModeMachine) Indicators() Indicators {
	return Indicators{
		Paddle:   m.mode == ModePaddle,
		Straight: m.mode == ModeStraight,
	}
}
