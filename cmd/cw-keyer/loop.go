package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/cw-keyer/internal/display"
	"github.com/sweeney/cw-keyer/internal/gpio"
	"github.com/sweeney/cw-keyer/internal/logic"
	"github.com/sweeney/cw-keyer/internal/mqtt"
	"github.com/sweeney/cw-keyer/internal/status"
	"github.com/sweeney/cw-keyer/internal/wpm"
)

// collaborators are the side-effecting surfaces the control loop drives.
// tracker and mqttStatus may be nil.
type collaborators struct {
	reader     gpio.Reader
	outputs    gpio.Outputs
	display    display.Display
	store      *wpm.Store
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
}

type loopConfig struct {
	keyer     logic.Config
	toneHz    int
	heartbeat time.Duration
}

func runLoop(c collaborators, cfg loopConfig, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	keyer := logic.NewKeyer(cfg.keyer, startTime)

	apply(c, cfg, keyer.Boot())
	updateTracker(c, keyer)
	publishStatus(c, startTime, "STARTUP", "", true)

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if err := c.outputs.StopTone(); err != nil {
				log.Printf("tone stop error: %v", err)
			}
			updateTracker(c, keyer)
			publishStatus(c, now(), "SHUTDOWN", signalName, true)
			return nil

		case <-tick:
			t := now()
			sample, err := c.reader.Read()
			if err != nil {
				log.Printf("gpio read error: %v", err)
				continue
			}

			out := keyer.Process(logic.Input{
				Time:       t,
				Dot:        sample.Dot,
				Dash:       sample.Dash,
				ModeButton: sample.Mode,
				SaveButton: sample.Save,
				EncA:       sample.EncA,
				EncB:       sample.EncB,
			})
			apply(c, cfg, out)

			for _, event := range out.Events {
				handleEvent(c, event)
			}

			if hbData := keyer.CheckHeartbeat(t, cfg.heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v dots=%d dashes=%d keyings=%d mode_changes=%d saves=%d",
					hbData.Uptime, hbData.Counts.Dots, hbData.Counts.Dashes, hbData.Counts.Keyings,
					hbData.Counts.ModeChanges, hbData.Counts.Saves)
				if c.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						c.tracker.SetNetwork(net)
					}
				}
				updateTracker(c, keyer)
				publishStatus(c, hbData.Timestamp, "HEARTBEAT", "", false)
			}

			// Update status tracker for HTTP consumers
			updateTracker(c, keyer)
		}
	}
}

// apply carries out one iteration's output. Collaborator failures are
// logged and never stop the loop.
func apply(c collaborators, cfg loopConfig, out logic.Output) {
	switch out.Tone {
	case logic.ToneStart:
		if err := c.outputs.StartTone(cfg.toneHz); err != nil {
			log.Printf("tone start error: %v", err)
		}
	case logic.ToneStop:
		if err := c.outputs.StopTone(); err != nil {
			log.Printf("tone stop error: %v", err)
		}
	}

	if out.Indicators != nil {
		if err := c.outputs.SetIndicators(out.Indicators.Paddle, out.Indicators.Straight); err != nil {
			log.Printf("indicator error: %v", err)
		}
	}

	if out.Display != "" {
		if err := c.display.Render(out.Display); err != nil {
			log.Printf("display error: %v", err)
		}
	}
}

func handleEvent(c collaborators, event logic.Event) {
	if event.Type == logic.EventWPMSaved {
		// The only blocking write in the loop. It runs once per save press,
		// like the firmware's EEPROM write.
		if err := c.store.Save(event.WPM); err != nil {
			log.Printf("wpm save error: %v", err)
		} else {
			log.Printf("saved speed: %d wpm", event.WPM)
		}
	}

	if !mqtt.Published(event.Type) {
		return
	}
	log.Printf("event: %s (mode=%s wpm=%d)", event.Type, event.Mode, event.WPM)
	if err := c.publisher.Publish(event); err != nil {
		log.Printf("publish error: %v", err)
	}
}

func updateTracker(c collaborators, keyer *logic.Keyer) {
	if c.tracker == nil {
		return
	}
	c.tracker.Update(keyer.CurrentState(), keyer.EventCountsSnapshot())
	if c.mqttStatus != nil {
		c.tracker.SetMQTTConnected(c.mqttStatus.IsConnected())
	}
}

// publishStatus sends a system event, carrying the full status snapshot when
// a tracker is available.
func publishStatus(c collaborators, ts time.Time, event, reason string, retained bool) {
	se := mqtt.SystemEvent{
		Timestamp: ts,
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if c.tracker != nil {
		se.RawPayload = status.FormatStatusEvent(c.tracker.Snapshot(), event, reason)
	}
	if err := c.publisher.PublishSystem(se); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	}
}
