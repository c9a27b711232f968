package logic

import "time"

// Default debounce windows and notice length.
const (
	DefaultModeDebounce = 190 * time.Millisecond
	DefaultSaveDebounce = 200 * time.Millisecond
	DefaultNotice       = time.Second
)

// NoticeSaved is shown after the speed has been saved.
const NoticeSaved = "Saved"

// Config configures a Keyer.
type Config struct {
	InitialWPM   int
	ModeDebounce time.Duration
	SaveDebounce time.Duration
	Encoder      EncoderConfig
	AutoRepeat   bool
	// Notice is how long transient messages stay on the display.
	// Zero disables them.
	Notice time.Duration
}

// DefaultConfig returns the stock keyer settings.
func DefaultConfig() Config {
	return Config{
		InitialWPM:   DefaultWPM,
		ModeDebounce: DefaultModeDebounce,
		SaveDebounce: DefaultSaveDebounce,
		Encoder:      EncoderConfig{Acceleration: AccelBanded, Quiet: DefaultEncoderQuiet},
		Notice:       DefaultNotice,
	}
}

// State is a point-in-time view of the keyer.
type State struct {
	Mode       Mode
	WPM        int
	Unit       time.Duration
	Phase      Phase
	Tone       bool
	Indicators Indicators
	Display    string
}

// Keyer runs every core component once per loop iteration.
type Keyer struct {
	cfg Config

	mode      *ModeMachine
	encoder   *Encoder
	scheduler *Scheduler
	modeBtn   *Button
	saveBtn   *Button

	tone        bool
	display     string
	noticeUntil time.Time

	startTime     time.Time
	lastHeartbeat time.Time
	counts        EventCounts
}

// NewKeyer creates a keyer in Straight mode at cfg.InitialWPM.
// The startTime is used for calculating uptime in heartbeat events.
func NewKeyer(cfg Config, startTime time.Time) *Keyer {
	return &Keyer{
		cfg:           cfg,
		mode:          NewModeMachine(),
		encoder:       NewEncoder(cfg.Encoder, cfg.InitialWPM),
		scheduler:     NewScheduler(cfg.AutoRepeat),
		modeBtn:       NewButton(cfg.ModeDebounce),
		saveBtn:       NewButton(cfg.SaveDebounce),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Boot returns the start-up output: the indicators for the initial mode, a
// silent tone output and the speed on the display.
func (k *Keyer) Boot() Output {
	ind := k.mode.Indicators()
	out := Output{Tone: ToneStop, Indicators: &ind}
	k.render(&out, FormatWPM(k.encoder.Value()))
	return out
}

// Process evaluates one loop iteration. It never blocks.
//
// Order: speed encoder, key path through the scheduler, mode button, save
// button, notice timeout. A mode change therefore silences the tone before
// the next iteration's key path runs under the new mode.
func (k *Keyer) Process(in Input) Output {
	var out Output
	now := in.Time

	wpm, changed := k.encoder.Update(in.EncA, in.EncB, now)
	if changed {
		k.noticeUntil = time.Time{}
		k.render(&out, FormatWPM(wpm))
		out.Events = append(out.Events, k.event(EventWPMChanged, now))
	}

	keys := Keys{Dot: in.Dot, Dash: in.Dash}
	cmd, el := k.scheduler.Step(k.mode.Mode(), keys, UnitDuration(wpm), now)
	k.applyTone(&out, cmd)
	if el != "" {
		k.countElement(el)
		ev := k.event(EventElement, now)
		ev.Element = el
		out.Events = append(out.Events, ev)
	}

	if k.modeBtn.Check(in.ModeButton, now) {
		k.mode.Toggle()
		k.scheduler.Reset(keys)
		k.applyTone(&out, ToneStop)
		ind := k.mode.Indicators()
		out.Indicators = &ind
		k.counts.ModeChanges++
		out.Events = append(out.Events, k.event(EventModeChanged, now))
	}

	if k.saveBtn.Check(in.SaveButton, now) {
		k.counts.Saves++
		out.Events = append(out.Events, k.event(EventWPMSaved, now))
		if k.cfg.Notice > 0 {
			k.noticeUntil = now.Add(k.cfg.Notice)
			k.render(&out, NoticeSaved)
		}
	}

	if !k.noticeUntil.IsZero() && !now.Before(k.noticeUntil) {
		k.noticeUntil = time.Time{}
		k.render(&out, FormatWPM(k.encoder.Value()))
	}

	return out
}

func (k *Keyer) applyTone(out *Output, cmd ToneCommand) {
	switch cmd {
	case ToneStart:
		k.tone = true
	case ToneStop:
		k.tone = false
	default:
		return
	}
	out.Tone = cmd
}

// render records text for the display unless it is already showing.
func (k *Keyer) render(out *Output, text string) {
	if text == k.display {
		return
	}
	k.display = text
	out.Display = text
}

func (k *Keyer) event(t EventType, now time.Time) Event {
	return Event{
		Timestamp: now,
		Type:      t,
		Mode:      k.mode.Mode(),
		WPM:       k.encoder.Value(),
	}
}

func (k *Keyer) countElement(el Element) {
	switch el {
	case ElementDot:
		k.counts.Dots++
	case ElementDash:
		k.counts.Dashes++
	case ElementKey:
		k.counts.Keyings++
	}
}

// CurrentState returns a snapshot of the keyer.
func (k *Keyer) CurrentState() State {
	wpm := k.encoder.Value()
	return State{
		Mode:       k.mode.Mode(),
		WPM:        wpm,
		Unit:       UnitDuration(wpm),
		Phase:      k.scheduler.Phase(),
		Tone:       k.tone,
		Indicators: k.mode.Indicators(),
		Display:    k.display,
	}
}

// EventCountsSnapshot returns the counters since startup.
func (k *Keyer) EventCountsSnapshot() EventCounts {
	return k.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (k *Keyer) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(k.lastHeartbeat) < interval {
		return nil
	}

	k.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(k.startTime),
		Counts:    k.counts,
	}
}
