package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/cw-keyer/internal/config"
	"github.com/sweeney/cw-keyer/internal/display"
	"github.com/sweeney/cw-keyer/internal/gpio"
	"github.com/sweeney/cw-keyer/internal/logic"
	"github.com/sweeney/cw-keyer/internal/wpm"
)

const (
	defaultToneHz    = 600
	defaultPoll      = time.Millisecond
	defaultHeartbeat = 15 * time.Minute
)

// settings is everything the daemon and its subcommands can be told, after
// built-in defaults, the config file and flags have been merged.
type settings struct {
	configPath string

	defaultWPM     int
	toneHz         int
	modeDebounce   time.Duration
	saveDebounce   time.Duration
	encoderQuiet   time.Duration
	acceleration   string
	reverseEncoder bool
	autoRepeat     bool
	notice         time.Duration
	poll           time.Duration

	pins gpio.Pins

	broker    string
	heartbeat time.Duration
	wsBroker  string

	httpAddr string

	storePath    string
	storeAddress int

	displayKind string
	displayPort string
	displayBaud int
}

func defaultSettings() settings {
	return settings{
		configPath:   config.DefaultConfigPath(),
		defaultWPM:   logic.DefaultWPM,
		toneHz:       defaultToneHz,
		modeDebounce: logic.DefaultModeDebounce,
		saveDebounce: logic.DefaultSaveDebounce,
		encoderQuiet: logic.DefaultEncoderQuiet,
		acceleration: string(logic.AccelBanded),
		notice:       logic.DefaultNotice,
		poll:         defaultPoll,
		pins:         gpio.DefaultPins(),
		heartbeat:    defaultHeartbeat,
		wsBroker:     "=broker",
		storePath:    config.DefaultStorePath(),
		storeAddress: wpm.DefaultAddress,
		displayKind:  display.KindLog,
		displayBaud:  display.DefaultBaud,
	}
}

// addSharedFlags registers the flags every subcommand understands: where
// the config file is, how the hardware is wired and where the speed is kept.
func addSharedFlags(cmd *cobra.Command, s *settings) {
	f := cmd.PersistentFlags()
	f.StringVar(&s.configPath, "config", s.configPath, "TOML config file")
	f.StringVar(&s.pins.Chip, "chip", s.pins.Chip, "GPIO chip")
	f.IntVar(&s.pins.Dot, "pin-dot", s.pins.Dot, "BCM line for the dot lever / straight key")
	f.IntVar(&s.pins.Dash, "pin-dash", s.pins.Dash, "BCM line for the dash lever")
	f.IntVar(&s.pins.Mode, "pin-mode", s.pins.Mode, "BCM line for the mode button")
	f.IntVar(&s.pins.Save, "pin-save", s.pins.Save, "BCM line for the save button")
	f.IntVar(&s.pins.EncA, "pin-enc-a", s.pins.EncA, "BCM line for encoder phase A")
	f.IntVar(&s.pins.EncB, "pin-enc-b", s.pins.EncB, "BCM line for encoder phase B")
	f.IntVar(&s.pins.PaddleLED, "pin-paddle-led", s.pins.PaddleLED, "BCM line for the paddle mode LED")
	f.IntVar(&s.pins.StraightLED, "pin-straight-led", s.pins.StraightLED, "BCM line for the straight mode LED")
	f.IntVar(&s.pins.Buzzer, "pin-buzzer", s.pins.Buzzer, "BCM line for the buzzer")
	f.StringVar(&s.storePath, "store", s.storePath, "non-volatile store database")
	f.IntVar(&s.storeAddress, "store-address", s.storeAddress, "cell address of the saved speed")
	f.IntVar(&s.defaultWPM, "wpm", s.defaultWPM, "speed used when none is stored (5-99)")
}

// addDaemonFlags registers the flags only the control loop uses.
func addDaemonFlags(cmd *cobra.Command, s *settings) {
	f := cmd.Flags()
	f.IntVar(&s.toneHz, "tone-hz", s.toneHz, "side tone pitch (0 drives an active buzzer steady)")
	f.DurationVar(&s.modeDebounce, "mode-debounce", s.modeDebounce, "mode button debounce window")
	f.DurationVar(&s.saveDebounce, "save-debounce", s.saveDebounce, "save button debounce window")
	f.DurationVar(&s.encoderQuiet, "encoder-quiet", s.encoderQuiet, "encoder transitions closer than this are dropped")
	f.StringVar(&s.acceleration, "acceleration", s.acceleration, `encoder acceleration: "banded" or "pulse-count"`)
	f.BoolVar(&s.reverseEncoder, "reverse-encoder", s.reverseEncoder, "swap the encoder direction")
	f.BoolVar(&s.autoRepeat, "auto-repeat", s.autoRepeat, "repeat elements while a paddle lever is held")
	f.DurationVar(&s.notice, "notice", s.notice, `how long "Saved" stays on the display (0 disables)`)
	f.DurationVar(&s.poll, "poll", s.poll, "GPIO polling interval")
	f.StringVar(&s.broker, "broker", s.broker, "MQTT broker address (empty disables MQTT)")
	f.DurationVar(&s.heartbeat, "heartbeat", s.heartbeat, "heartbeat interval (0 to disable)")
	f.StringVar(&s.wsBroker, "ws-broker", s.wsBroker, `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	f.StringVar(&s.httpAddr, "http", s.httpAddr, "HTTP status address, e.g. :8080 (empty disables)")
	f.StringVar(&s.displayKind, "display", s.displayKind, "display: log, serial, terminal or none")
	f.StringVar(&s.displayPort, "display-port", s.displayPort, "serial port for the serial display")
	f.IntVar(&s.displayBaud, "display-baud", s.displayBaud, "baud rate for the serial display")
}

// applyFile merges the config file into s. Flags set on the command line
// win over the file; the file wins over built-in defaults.
func applyFile(cmd *cobra.Command, s *settings, fc config.FileConfig) {
	k := fc.Keyer
	applyIntConfig(cmd, "wpm", &s.defaultWPM, k.DefaultWPM)
	applyIntConfig(cmd, "tone-hz", &s.toneHz, k.ToneHz)
	applyDurationConfig(cmd, "mode-debounce", &s.modeDebounce, k.ModeDebounce)
	applyDurationConfig(cmd, "save-debounce", &s.saveDebounce, k.SaveDebounce)
	applyDurationConfig(cmd, "encoder-quiet", &s.encoderQuiet, k.EncoderQuiet)
	applyStringConfig(cmd, "acceleration", &s.acceleration, k.Acceleration)
	applyBoolConfig(cmd, "reverse-encoder", &s.reverseEncoder, k.ReverseEncoder)
	applyBoolConfig(cmd, "auto-repeat", &s.autoRepeat, k.AutoRepeat)
	applyDurationConfig(cmd, "notice", &s.notice, k.Notice)

	p := fc.Pins
	applyStringConfig(cmd, "chip", &s.pins.Chip, p.Chip)
	applyIntConfig(cmd, "pin-dot", &s.pins.Dot, p.Dot)
	applyIntConfig(cmd, "pin-dash", &s.pins.Dash, p.Dash)
	applyIntConfig(cmd, "pin-mode", &s.pins.Mode, p.Mode)
	applyIntConfig(cmd, "pin-save", &s.pins.Save, p.Save)
	applyIntConfig(cmd, "pin-enc-a", &s.pins.EncA, p.EncA)
	applyIntConfig(cmd, "pin-enc-b", &s.pins.EncB, p.EncB)
	applyIntConfig(cmd, "pin-paddle-led", &s.pins.PaddleLED, p.PaddleLED)
	applyIntConfig(cmd, "pin-straight-led", &s.pins.StraightLED, p.StraightLED)
	applyIntConfig(cmd, "pin-buzzer", &s.pins.Buzzer, p.Buzzer)

	applyStringConfig(cmd, "broker", &s.broker, fc.MQTT.Broker)
	applyDurationConfig(cmd, "heartbeat", &s.heartbeat, fc.MQTT.Heartbeat)
	applyStringConfig(cmd, "http", &s.httpAddr, fc.HTTP.Addr)
	applyStringConfig(cmd, "store", &s.storePath, fc.Store.Path)
	applyIntConfig(cmd, "store-address", &s.storeAddress, fc.Store.Address)
	applyStringConfig(cmd, "display", &s.displayKind, fc.Display.Kind)
	applyStringConfig(cmd, "display-port", &s.displayPort, fc.Display.Port)
	applyIntConfig(cmd, "display-baud", &s.displayBaud, fc.Display.Baud)
}

// loadSettings reads the config file named by --config into s.
func loadSettings(cmd *cobra.Command, s *settings) error {
	fc, err := config.LoadConfig(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFile(cmd, s, fc)
	return nil
}

func validateSettings(s settings) error {
	if err := wpm.Validate(s.defaultWPM); err != nil {
		return fmt.Errorf("--wpm: %w", err)
	}
	switch logic.Acceleration(s.acceleration) {
	case logic.AccelBanded, logic.AccelPulseCount:
	default:
		return fmt.Errorf("--acceleration must be %q or %q", logic.AccelBanded, logic.AccelPulseCount)
	}
	if s.toneHz < 0 {
		return fmt.Errorf("--tone-hz must be >= 0")
	}
	if s.poll <= 0 {
		return fmt.Errorf("--poll must be > 0")
	}
	if s.modeDebounce < 0 || s.saveDebounce < 0 || s.encoderQuiet < 0 || s.notice < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// keyerConfig converts settings into the core's configuration.
func (s settings) keyerConfig(initialWPM int) logic.Config {
	return logic.Config{
		InitialWPM:   initialWPM,
		ModeDebounce: s.modeDebounce,
		SaveDebounce: s.saveDebounce,
		Encoder: logic.EncoderConfig{
			Acceleration: logic.Acceleration(s.acceleration),
			Quiet:        s.encoderQuiet,
			Reverse:      s.reverseEncoder,
		},
		AutoRepeat: s.autoRepeat,
		Notice:     s.notice,
	}
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}
