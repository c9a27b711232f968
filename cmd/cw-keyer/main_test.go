package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/cw-keyer/internal/display"
	"github.com/sweeney/cw-keyer/internal/gpio"
	"github.com/sweeney/cw-keyer/internal/logic"
	"github.com/sweeney/cw-keyer/internal/mqtt"
	"github.com/sweeney/cw-keyer/internal/nvram"
	"github.com/sweeney/cw-keyer/internal/status"
	"github.com/sweeney/cw-keyer/internal/wpm"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfo(t *testing.T) {
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}

	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkWifiSSID, "Shack")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}
	if info.Status != "connected" || info.Type != "wifi" || info.SSID != "Shack" {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		ws, broker, want string
	}{
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"=broker", "", ""},
		{"off", "tcp://192.168.1.200:1883", ""},
		{"ws://other:8083", "tcp://192.168.1.200:1883", "ws://other:8083"},
	}
	for _, tt := range tests {
		if got := resolveWSBroker(tt.ws, tt.broker); got != tt.want {
			t.Errorf("resolveWSBroker(%q, %q): got %q, want %q", tt.ws, tt.broker, got, tt.want)
		}
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of sample.
func repeat(sample gpio.Sample, n int) []gpio.Sample {
	out := make([]gpio.Sample, n)
	for i := range out {
		out[i] = sample
	}
	return out
}

func concat(parts ...[]gpio.Sample) []gpio.Sample {
	var out []gpio.Sample
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// faultReader wraps a FakeReader and returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int // first call index that returns error (inclusive)
	faultEnd   int // last call index that returns error (exclusive)
}

func (r *faultReader) Read() (gpio.Sample, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return gpio.Sample{}, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

type harness struct {
	outputs *gpio.FakeOutputs
	display *display.Fake
	cell    *nvram.FakeCell
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
}

func newHarness() *harness {
	return &harness{
		outputs: gpio.NewFakeOutputs(),
		display: display.NewFake(),
		cell:    nvram.NewFakeCell(),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{}),
	}
}

func testLoopConfig() loopConfig {
	kc := logic.DefaultConfig()
	kc.Notice = 5 * time.Millisecond
	return loopConfig{keyer: kc, toneHz: 600}
}

// runRunLoop drives runLoop with one tick per sample and then the signal.
func runRunLoop(t *testing.T, h *harness, reader gpio.Reader, cfg loopConfig, clock func() time.Time, nTicks int, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	c := collaborators{
		reader:     reader,
		outputs:    h.outputs,
		display:    h.display,
		store:      wpm.NewStore(h.cell, wpm.DefaultAddress),
		publisher:  h.pub,
		mqttStatus: h.pub,
		tracker:    h.tracker,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(c, cfg, clock, tick, sig)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func msClock() func() time.Time {
	return fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)
}

func TestRunLoopBootAndShutdown(t *testing.T) {
	h := newHarness()
	samples := repeat(gpio.Sample{}, 4)

	err := runRunLoop(t, h, gpio.NewFakeReader(samples), testLoopConfig(), msClock(), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if got := h.display.Renders; len(got) != 1 || got[0] != "30" {
		t.Errorf("display renders: got %v, want [30]", got)
	}
	if !h.outputs.Straight || h.outputs.Paddle {
		t.Errorf("indicators: paddle=%v straight=%v, want straight only", h.outputs.Paddle, h.outputs.Straight)
	}
	if len(h.outputs.ToneChanges) != 0 {
		t.Errorf("expected silence, got %v", h.outputs.ToneChanges)
	}
	if len(h.pub.Events) != 0 {
		t.Errorf("expected no keyer events, got %d", len(h.pub.Events))
	}

	if len(h.pub.SystemEvents) != 2 {
		t.Fatalf("expected STARTUP and SHUTDOWN, got %d system events", len(h.pub.SystemEvents))
	}
	startup, shutdown := h.pub.SystemEvents[0], h.pub.SystemEvents[1]
	if startup.Event != "STARTUP" || !startup.Retained {
		t.Errorf("first system event: got %+v", startup)
	}
	if shutdown.Event != "SHUTDOWN" || shutdown.Reason != "SIGTERM" || !shutdown.Retained {
		t.Errorf("last system event: got %+v", shutdown)
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(startup.RawPayload, &parsed); err != nil {
		t.Fatalf("startup payload: %v", err)
	}
	if parsed.Status.Keyer.Mode != "STRAIGHT" || parsed.Status.Keyer.WPM != 30 {
		t.Errorf("startup payload keyer: got %+v", parsed.Status.Keyer)
	}
}

func TestRunLoopShutdownSignalNames(t *testing.T) {
	for _, tt := range []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	} {
		h := newHarness()
		runRunLoop(t, h, gpio.NewFakeReader(repeat(gpio.Sample{}, 1)), testLoopConfig(), msClock(), 1, tt.sig)

		last := h.pub.SystemEvents[len(h.pub.SystemEvents)-1]
		if last.Reason != tt.want {
			t.Errorf("%v: reason %q, want %q", tt.sig, last.Reason, tt.want)
		}
	}
}

func TestRunLoopStraightKey(t *testing.T) {
	h := newHarness()
	samples := concat(
		repeat(gpio.Sample{}, 2),
		repeat(gpio.Sample{Dot: true}, 3),
		repeat(gpio.Sample{}, 2),
	)

	err := runRunLoop(t, h, gpio.NewFakeReader(samples), testLoopConfig(), msClock(), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []gpio.ToneChange{{On: true, Hz: 600}, {On: false}}
	if len(h.outputs.ToneChanges) != len(want) {
		t.Fatalf("tone changes: got %v, want %v", h.outputs.ToneChanges, want)
	}
	for i := range want {
		if h.outputs.ToneChanges[i] != want[i] {
			t.Errorf("tone change %d: got %+v, want %+v", i, h.outputs.ToneChanges[i], want[i])
		}
	}

	// Elements only feed the counters.
	if len(h.pub.Events) != 0 {
		t.Errorf("expected no published events, got %v", h.pub.Events)
	}
	if got := h.tracker.Snapshot().Counts.Keyings; got != 1 {
		t.Errorf("keyings: got %d, want 1", got)
	}
}

func TestRunLoopModeToggle(t *testing.T) {
	h := newHarness()
	samples := concat(
		repeat(gpio.Sample{}, 2),
		repeat(gpio.Sample{Mode: true}, 3),
		repeat(gpio.Sample{}, 2),
	)

	err := runRunLoop(t, h, gpio.NewFakeReader(samples), testLoopConfig(), msClock(), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.pub.Events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(h.pub.Events))
	}
	ev := h.pub.Events[0]
	if ev.Type != logic.EventModeChanged || ev.Mode != logic.ModePaddle {
		t.Errorf("event: got %s/%s, want MODE_CHANGED/PADDLE", ev.Type, ev.Mode)
	}
	if !h.outputs.Paddle || h.outputs.Straight {
		t.Errorf("indicators: paddle=%v straight=%v, want paddle only", h.outputs.Paddle, h.outputs.Straight)
	}
	if got := h.tracker.Snapshot().Keyer.Mode; got != logic.ModePaddle {
		t.Errorf("tracker mode: got %s, want PADDLE", got)
	}
}

func TestRunLoopPaddleDash(t *testing.T) {
	h := newHarness()
	cfg := testLoopConfig()
	cfg.keyer.InitialWPM = 60 // 20ms unit, 60ms dash

	// Toggle into paddle mode, then hold the dash lever for 100ms.
	samples := concat(
		repeat(gpio.Sample{Mode: true}, 1),
		repeat(gpio.Sample{}, 2),
		repeat(gpio.Sample{Dash: true}, 100),
	)

	err := runRunLoop(t, h, gpio.NewFakeReader(samples), cfg, msClock(), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// One dash: held levers do not repeat.
	if len(h.outputs.ToneChanges) != 2 {
		t.Fatalf("tone changes: got %v, want one start and one stop", h.outputs.ToneChanges)
	}
	snap := h.tracker.Snapshot()
	if snap.Counts.Dashes != 1 || snap.Counts.Dots != 0 {
		t.Errorf("counts: got %+v", snap.Counts)
	}
}

func TestRunLoopSaveWritesStore(t *testing.T) {
	h := newHarness()
	samples := concat(
		repeat(gpio.Sample{}, 2),
		repeat(gpio.Sample{Save: true}, 2),
		repeat(gpio.Sample{}, 10),
	)

	err := runRunLoop(t, h, gpio.NewFakeReader(samples), testLoopConfig(), msClock(), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if got := h.cell.Bytes[wpm.DefaultAddress]; got != 30 {
		t.Errorf("stored byte: got %d, want 30", got)
	}
	if len(h.pub.Events) != 1 || h.pub.Events[0].Type != logic.EventWPMSaved {
		t.Fatalf("expected one WPM_SAVED event, got %v", h.pub.Events)
	}

	want := []string{"30", "Saved", "30"}
	if len(h.display.Renders) != len(want) {
		t.Fatalf("display renders: got %v, want %v", h.display.Renders, want)
	}
	for i := range want {
		if h.display.Renders[i] != want[i] {
			t.Errorf("render %d: got %q, want %q", i, h.display.Renders[i], want[i])
		}
	}
}

func TestRunLoopSaveErrorKeepsRunning(t *testing.T) {
	h := newHarness()
	h.cell.WriteError = errors.New("worn out")
	samples := concat(
		repeat(gpio.Sample{Save: true}, 1),
		repeat(gpio.Sample{}, 1),
		repeat(gpio.Sample{Mode: true}, 1),
	)

	err := runRunLoop(t, h, gpio.NewFakeReader(samples), testLoopConfig(), msClock(), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(h.pub.Events) != 2 {
		t.Errorf("expected WPM_SAVED then MODE_CHANGED, got %v", h.pub.Events)
	}
}

func TestRunLoopEncoderChangesSpeed(t *testing.T) {
	h := newHarness()
	samples := []gpio.Sample{
		{EncA: false, EncB: false}, // seeds the encoder
		{EncA: true, EncB: false},  // first step: +1
		{EncA: false, EncB: true},  // 50ms later: +3
	}
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 50*time.Millisecond)

	err := runRunLoop(t, h, gpio.NewFakeReader(samples), testLoopConfig(), clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(h.pub.Events) != 2 {
		t.Fatalf("expected 2 WPM_CHANGED events, got %v", h.pub.Events)
	}
	if h.pub.Events[0].WPM != 31 || h.pub.Events[1].WPM != 34 {
		t.Errorf("speeds: got %d, %d, want 31, 34", h.pub.Events[0].WPM, h.pub.Events[1].WPM)
	}
	if h.display.Last() != "34" {
		t.Errorf("display: got %q, want 34", h.display.Last())
	}
	// Changing speed does not save it.
	if h.cell.Writes != 0 {
		t.Errorf("expected no store writes, got %d", h.cell.Writes)
	}
}

func TestRunLoopGPIOReadError(t *testing.T) {
	// 2 valid reads then 2 faults. Loop should continue past errors
	// and still publish SHUTDOWN.
	inner := gpio.NewFakeReader(repeat(gpio.Sample{}, 2))
	reader := &faultReader{inner: inner, faultStart: 2, faultEnd: 4}
	h := newHarness()

	err := runRunLoop(t, h, reader, testLoopConfig(), msClock(), 4, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	last := h.pub.SystemEvents[len(h.pub.SystemEvents)-1]
	if last.Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN system event after GPIO errors, got %s", last.Event)
	}
}

func TestRunLoopCollaboratorErrors(t *testing.T) {
	h := newHarness()
	h.outputs.ToneError = errors.New("line busy")
	h.display.RenderError = errors.New("i2c nack")
	h.pub.PublishError = errors.New("broker down")
	samples := concat(
		repeat(gpio.Sample{Dot: true}, 2),
		repeat(gpio.Sample{Mode: true}, 1),
	)

	err := runRunLoop(t, h, gpio.NewFakeReader(samples), testLoopConfig(), msClock(), len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if got := h.tracker.Snapshot().Keyer.Mode; got != logic.ModePaddle {
		t.Errorf("loop should carry on after collaborator errors; mode %s", got)
	}
}

func TestRunLoopSilencesOnShutdown(t *testing.T) {
	h := newHarness()
	samples := repeat(gpio.Sample{Dot: true}, 3)

	runRunLoop(t, h, gpio.NewFakeReader(samples), testLoopConfig(), msClock(), len(samples), syscall.SIGINT)

	if h.outputs.ToneOn {
		t.Error("tone should be silenced on shutdown")
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := newHarness()
	cfg := testLoopConfig()
	cfg.heartbeat = 15 * time.Minute
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	// Ticks at +5m, +10m, +15m, +20m: one heartbeat at +15m.
	samples := repeat(gpio.Sample{}, 4)
	err := runRunLoop(t, h, gpio.NewFakeReader(samples), cfg, clock, len(samples), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats []mqtt.SystemEvent
	for _, se := range h.pub.SystemEvents {
		if se.Event == "HEARTBEAT" {
			heartbeats = append(heartbeats, se)
		}
	}
	if len(heartbeats) != 1 {
		t.Fatalf("expected 1 heartbeat, got %d", len(heartbeats))
	}
	if heartbeats[0].Retained {
		t.Error("heartbeat should not be retained")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(heartbeats[0].RawPayload, &parsed); err != nil {
		t.Fatalf("heartbeat payload: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("payload event: got %q", parsed.Status.Event)
	}
}

func TestRunLoopTracksMQTTConnection(t *testing.T) {
	h := newHarness()
	h.pub.Connected = true

	runRunLoop(t, h, gpio.NewFakeReader(repeat(gpio.Sample{}, 1)), testLoopConfig(), msClock(), 1, syscall.SIGTERM)

	if !h.tracker.Snapshot().MQTTConnected {
		t.Error("tracker should reflect the MQTT connection")
	}
}

// --- subcommand helpers ---

func TestFormatSample(t *testing.T) {
	got := formatSample(gpio.Sample{Dot: true, Save: true, EncB: true})
	want := "DOT: PRESSED, DASH: RELEASED, MODE: RELEASED, SAVE: PRESSED, ENC_A: LOW, ENC_B: HIGH"
	if got != want {
		t.Errorf("formatSample:\ngot:  %s\nwant: %s", got, want)
	}
}

func TestRunWPM(t *testing.T) {
	store := wpm.NewStore(nvram.NewFakeCell(), wpm.DefaultAddress)
	var out bytes.Buffer

	if err := runWPM(&out, store, nil, 30); err != nil {
		t.Fatalf("show unset: %v", err)
	}
	if out.String() != "unset (default 30)\n" {
		t.Errorf("unset output: got %q", out.String())
	}

	out.Reset()
	if err := runWPM(&out, store, []string{"22"}, 30); err != nil {
		t.Fatalf("save: %v", err)
	}
	if out.String() != "saved 22\n" {
		t.Errorf("save output: got %q", out.String())
	}

	out.Reset()
	runWPM(&out, store, nil, 30)
	if out.String() != "22\n" {
		t.Errorf("show output: got %q", out.String())
	}
}

func TestRunWPMRejects(t *testing.T) {
	store := wpm.NewStore(nvram.NewFakeCell(), wpm.DefaultAddress)

	for _, arg := range []string{"4", "100", "fast"} {
		if err := runWPM(&bytes.Buffer{}, store, []string{arg}, 30); err == nil {
			t.Errorf("runWPM(%q): expected error", arg)
		}
	}
	if err := runWPM(&bytes.Buffer{}, store, []string{"150"}, 30); !errors.Is(err, wpm.ErrOutOfRange) {
		t.Errorf("runWPM(150): got %v, want ErrOutOfRange", err)
	}
	if _, ok := store.Load(); ok {
		t.Error("rejected speeds must not be stored")
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cw-keyer", "config.toml")
	var out bytes.Buffer

	if err := writeDefaultConfig(&out, path); err != nil {
		t.Fatalf("writeDefaultConfig: %v", err)
	}
	if strings.TrimSpace(out.String()) != path {
		t.Errorf("printed path: got %q", out.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "[keyer]") {
		t.Error("expected template contents")
	}

	// An existing file is left alone.
	os.WriteFile(path, []byte("[keyer]\ndefault_wpm = 20\n"), 0o644)
	writeDefaultConfig(&bytes.Buffer{}, path)
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "default_wpm = 20") {
		t.Error("existing config was overwritten")
	}
}

func TestDefaultSettingsKeepNetworkOff(t *testing.T) {
	s := defaultSettings()
	if s.httpAddr != "" {
		t.Errorf("httpAddr: got %q, want empty", s.httpAddr)
	}
	if s.broker != "" {
		t.Errorf("broker: got %q, want empty", s.broker)
	}
}

func newSettingsCmd(t *testing.T, configBody string) (*cobra.Command, *settings) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	s := defaultSettings()
	s.configPath = path
	cmd := &cobra.Command{Use: "cw-keyer"}
	addSharedFlags(cmd, &s)
	addDaemonFlags(cmd, &s)
	return cmd, &s
}

func TestConfigFileEnablesHTTP(t *testing.T) {
	cmd, s := newSettingsCmd(t, "[http]\naddr = \":8080\"\n")
	if err := loadSettings(cmd, s); err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.httpAddr != ":8080" {
		t.Errorf("httpAddr: got %q, want %q", s.httpAddr, ":8080")
	}
}

func TestHTTPFlagOverridesConfigFile(t *testing.T) {
	cmd, s := newSettingsCmd(t, "[http]\naddr = \":8080\"\n")
	if err := cmd.Flags().Set("http", ""); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := loadSettings(cmd, s); err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.httpAddr != "" {
		t.Errorf("httpAddr: got %q, want empty", s.httpAddr)
	}
}
