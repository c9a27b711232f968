package mqtt

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/cw-keyer/internal/logic"
)

// connectWait bounds how long start-up waits for the first connection.
// After that the client keeps retrying in the background and messages are
// buffered until it succeeds.
const connectWait = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client  paho.Client
	topic   string
	out     *outbox
	everUp  atomic.Bool
	nowFunc func() time.Time
}

// NewRealPublisher creates a publisher for the given broker.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	p := &RealPublisher{topic: Topic, nowFunc: time.Now}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.out = newOutbox(p.send, p.client.IsConnectionOpen, defaultQueueSize, defaultBufferSize)
	p.out.start()

	token := p.client.Connect()
	if !token.WaitTimeout(connectWait) {
		log.Printf("mqtt: broker %s not reachable yet, buffering until connected", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		p.out.stop()
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(paho.Client) {
	if p.everUp.Swap(true) {
		log.Printf("mqtt: reconnected")
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.nowFunc(), Event: "RECONNECTED"})
		if err == nil {
			p.out.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1})
		}
	} else {
		log.Printf("mqtt: connected")
	}
	p.out.reconnected()
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish queues a keyer event. QoS 0 (at-most-once), not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	p.out.enqueue(bufferedMsg{topic: p.topic, payload: payload, class: eventClass(event.Type)})
	return nil
}

// PublishSystem queues a system lifecycle event at QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.out.enqueue(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained, class: systemClass(event.Event)})
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close flushes queued messages and disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.out.stop()
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
