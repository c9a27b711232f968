package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Keyer         KeyerJSON    `json:"keyer"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// KeyerJSON is the JSON representation of the keyer state.
type KeyerJSON struct {
	Mode       string         `json:"mode"`
	WPM        int            `json:"wpm"`
	UnitMs     int64          `json:"unit_ms"`
	Phase      string         `json:"phase"`
	Tone       bool           `json:"tone"`
	Display    string         `json:"display"`
	Indicators IndicatorsJSON `json:"indicators"`
}

// IndicatorsJSON reports the two mode LEDs.
type IndicatorsJSON struct {
	Paddle   bool `json:"paddle"`
	Straight bool `json:"straight"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Dots        int `json:"dots"`
	Dashes      int `json:"dashes"`
	Keyings     int `json:"keyings"`
	ModeChanges int `json:"mode_changes"`
	Saves       int `json:"saves"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs         int64  `json:"poll_ms"`
	ModeDebounceMs int64  `json:"mode_debounce_ms"`
	SaveDebounceMs int64  `json:"save_debounce_ms"`
	EncoderQuietMs int64  `json:"encoder_quiet_ms"`
	Acceleration   string `json:"acceleration"`
	AutoRepeat     bool   `json:"auto_repeat"`
	ToneHz         int    `json:"tone_hz"`
	HeartbeatMs    int64  `json:"heartbeat_ms"`
	Broker         string `json:"broker"`
	HTTPPort       string `json:"http_port"`
	WSBroker       string `json:"ws_broker,omitempty"`
	Display        string `json:"display"`
}

func orUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	k := snap.Keyer
	return StatusInner{
		Keyer: KeyerJSON{
			Mode:    orUnknown(string(k.Mode)),
			WPM:     k.WPM,
			UnitMs:  k.Unit.Milliseconds(),
			Phase:   orUnknown(string(k.Phase)),
			Tone:    k.Tone,
			Display: k.Display,
			Indicators: IndicatorsJSON{
				Paddle:   k.Indicators.Paddle,
				Straight: k.Indicators.Straight,
			},
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Dots:        snap.Counts.Dots,
			Dashes:      snap.Counts.Dashes,
			Keyings:     snap.Counts.Keyings,
			ModeChanges: snap.Counts.ModeChanges,
			Saves:       snap.Counts.Saves,
		},
		Config: ConfigJSON{
			PollMs:         snap.Config.PollMs,
			ModeDebounceMs: snap.Config.ModeDebounceMs,
			SaveDebounceMs: snap.Config.SaveDebounceMs,
			EncoderQuietMs: snap.Config.EncoderQuietMs,
			Acceleration:   snap.Config.Acceleration,
			AutoRepeat:     snap.Config.AutoRepeat,
			ToneHz:         snap.Config.ToneHz,
			HeartbeatMs:    snap.Config.HeartbeatMs,
			Broker:         snap.Config.Broker,
			HTTPPort:       snap.Config.HTTPPort,
			WSBroker:       snap.Config.WSBroker,
			Display:        snap.Config.Display,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
