// Command cw-keyer runs a Morse practice keyer: it reads a straight key or
// iambic paddle, a speed encoder and two buttons from GPIO, sounds the side
// tone, and reports its state over MQTT and HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/cw-keyer/internal/display"
	"github.com/sweeney/cw-keyer/internal/gpio"
	"github.com/sweeney/cw-keyer/internal/mqtt"
	"github.com/sweeney/cw-keyer/internal/nvram"
	"github.com/sweeney/cw-keyer/internal/status"
	"github.com/sweeney/cw-keyer/internal/web"
	"github.com/sweeney/cw-keyer/internal/wpm"
)

// Bring-up failure is shown on the mode LEDs before exiting.
const (
	failureBlinkCycles = 10
	failureBlinkPeriod = 500 * time.Millisecond
)

const mqttClientID = "cw-keyer"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	s := defaultSettings()

	rootCmd := &cobra.Command{
		Use:           "cw-keyer",
		Short:         "Morse practice keyer",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadSettings(cmd, &s); err != nil {
				return err
			}
			if err := validateSettings(s); err != nil {
				return err
			}
			return run(s)
		},
	}

	addSharedFlags(rootCmd, &s)
	addDaemonFlags(rootCmd, &s)

	rootCmd.AddCommand(newStateCmd(&s))
	rootCmd.AddCommand(newWPMCmd(&s))
	rootCmd.AddCommand(newConfigCmd(&s))

	return rootCmd
}

func run(s settings) error {
	outputs, err := gpio.NewRealOutputs(s.pins)
	if err != nil {
		return fmt.Errorf("init gpio outputs: %w", err)
	}
	defer outputs.Close()

	fail := func(err error) error {
		log.Printf("bring-up failed: %v", err)
		gpio.BlinkFailure(outputs, failureBlinkCycles, failureBlinkPeriod, time.Sleep)
		return err
	}

	reader, err := gpio.NewRealReader(s.pins)
	if err != nil {
		return fail(fmt.Errorf("init gpio inputs: %w", err))
	}
	defer reader.Close()

	cell, err := nvram.OpenSQLite(s.storePath)
	if err != nil {
		return fail(fmt.Errorf("open store: %w", err))
	}
	defer cell.Close()
	store := wpm.NewStore(cell, s.storeAddress)

	disp, dispCloser, err := display.New(display.Options{
		Kind: s.displayKind,
		Port: s.displayPort,
		Baud: s.displayBaud,
	})
	if err != nil {
		return fail(fmt.Errorf("init display: %w", err))
	}
	defer dispCloser.Close()

	var publisher mqtt.Publisher = mqtt.Nop{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.Nop{}
	if s.broker != "" {
		p, err := mqtt.NewRealPublisher(s.broker, mqttClientID)
		if err != nil {
			log.Printf("mqtt disabled: %v", err)
		} else {
			publisher, mqttStatus = p, p
		}
	}
	defer publisher.Close()

	initialWPM := store.LoadOr(s.defaultWPM)
	wsBroker := resolveWSBroker(s.wsBroker, s.broker)

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:         s.poll.Milliseconds(),
		ModeDebounceMs: s.modeDebounce.Milliseconds(),
		SaveDebounceMs: s.saveDebounce.Milliseconds(),
		EncoderQuietMs: s.encoderQuiet.Milliseconds(),
		Acceleration:   s.acceleration,
		AutoRepeat:     s.autoRepeat,
		ToneHz:         s.toneHz,
		HeartbeatMs:    s.heartbeat.Milliseconds(),
		Broker:         s.broker,
		HTTPPort:       s.httpAddr,
		WSBroker:       wsBroker,
		Display:        s.displayKind,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Start HTTP status server
	if s.httpAddr != "" {
		srv := web.New(s.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", s.httpAddr)
	}

	log.Printf("started: wpm=%d poll=%v tone=%dHz broker=%q heartbeat=%v display=%s",
		initialWPM, s.poll, s.toneHz, s.broker, s.heartbeat, s.displayKind)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	c := collaborators{
		reader:     reader,
		outputs:    outputs,
		display:    disp,
		store:      store,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
	}
	cfg := loopConfig{
		keyer:     s.keyerConfig(initialWPM),
		toneHz:    s.toneHz,
		heartbeat: s.heartbeat,
	}
	return runLoop(c, cfg, time.Now, ticker.C, sigCh)
}
