package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Every field is a
// pointer so an absent key leaves the built-in default or flag untouched.
type FileConfig struct {
	Keyer   KeyerConfig   `toml:"keyer"`
	Pins    PinsConfig    `toml:"pins"`
	MQTT    MQTTConfig    `toml:"mqtt"`
	HTTP    HTTPConfig    `toml:"http"`
	Store   StoreConfig   `toml:"store"`
	Display DisplayConfig `toml:"display"`
}

// KeyerConfig maps timing and behaviour settings.
type KeyerConfig struct {
	DefaultWPM     *int      `toml:"default_wpm"`
	ToneHz         *int      `toml:"tone_hz"`
	ModeDebounce   *Duration `toml:"mode_debounce"`
	SaveDebounce   *Duration `toml:"save_debounce"`
	EncoderQuiet   *Duration `toml:"encoder_quiet"`
	Acceleration   *string   `toml:"acceleration"`
	ReverseEncoder *bool     `toml:"reverse_encoder"`
	AutoRepeat     *bool     `toml:"auto_repeat"`
	Notice         *Duration `toml:"notice"`
}

// PinsConfig maps the GPIO chip and line offsets.
type PinsConfig struct {
	Chip        *string `toml:"chip"`
	Dot         *int    `toml:"dot"`
	Dash        *int    `toml:"dash"`
	Mode        *int    `toml:"mode"`
	Save        *int    `toml:"save"`
	EncA        *int    `toml:"enc_a"`
	EncB        *int    `toml:"enc_b"`
	PaddleLED   *int    `toml:"paddle_led"`
	StraightLED *int    `toml:"straight_led"`
	Buzzer      *int    `toml:"buzzer"`
}

// MQTTConfig maps broker settings.
type MQTTConfig struct {
	Broker    *string   `toml:"broker"`
	Heartbeat *Duration `toml:"heartbeat"`
}

// HTTPConfig maps the status server settings.
type HTTPConfig struct {
	Addr *string `toml:"addr"`
}

// StoreConfig maps the non-volatile store settings.
type StoreConfig struct {
	Path    *string `toml:"path"`
	Address *int    `toml:"address"`
}

// DisplayConfig maps the display settings.
type DisplayConfig struct {
	Kind *string `toml:"kind"`
	Port *string `toml:"port"`
	Baud *int    `toml:"baud"`
}

// Duration is a time.Duration written in TOML as a string such as "190ms".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// DefaultTemplate is the commented-out config written by `cw-keyer config`.
const DefaultTemplate = `# cw-keyer configuration
# Uncomment a value to enable it. CLI flags override config values.

[keyer]
# default_wpm = 30            # Speed used when nothing valid is stored (5-99)
# tone_hz = 600               # Sidetone pitch; 0 drives an active buzzer steady
# mode_debounce = "190ms"
# save_debounce = "200ms"
# encoder_quiet = "10ms"      # Encoder transitions closer than this are dropped
# acceleration = "banded"     # "banded" or "pulse-count"
# reverse_encoder = false
# auto_repeat = false         # Held paddle lever repeats elements
# notice = "1s"               # How long "Saved" stays on the display

[pins]
# chip = "gpiochip0"
# dot = 17
# dash = 27
# mode = 22
# save = 23
# enc_a = 5
# enc_b = 6
# paddle_led = 24
# straight_led = 25
# buzzer = 18

[mqtt]
# broker = "tcp://localhost:1883"
# heartbeat = "15m"           # 0 disables

[http]
# addr = ":8080"              # Unset or empty keeps the status server off

[store]
# path = "~/.local/share/cw-keyer/nvram.db"
# address = 0

[display]
# kind = "log"                # log, serial, terminal or none
# port = "/dev/ttyUSB0"
# baud = 115200
`
