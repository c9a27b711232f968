package mqtt

import (
	"log"
	"sync"
)

const (
	defaultQueueSize  = 64
	defaultBufferSize = 256
)

// outbox decouples publishing from the control loop. enqueue never blocks:
// a single sender goroutine delivers messages in order, and anything that
// cannot be delivered (disconnected, send failure, queue full) is held in a
// pending queue and replayed before the next delivery once connected.
type outbox struct {
	send      func(bufferedMsg) error
	connected func() bool

	queue  chan bufferedMsg
	replay chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.Mutex
	pending *pendingQueue
}

func newOutbox(send func(bufferedMsg) error, connected func() bool, queueSize, bufferSize int) *outbox {
	return &outbox{
		send:      send,
		connected: connected,
		queue:     make(chan bufferedMsg, queueSize),
		replay:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		pending:   newPendingQueue(bufferSize),
	}
}

func (o *outbox) start() {
	o.wg.Add(1)
	go o.run()
}

func (o *outbox) enqueue(msg bufferedMsg) {
	select {
	case o.queue <- msg:
	default:
		o.hold(msg)
	}
}

// reconnected asks the sender to replay held messages.
func (o *outbox) reconnected() {
	select {
	case o.replay <- struct{}{}:
	default:
	}
}

// stop delivers whatever is still queued, then stops the sender.
func (o *outbox) stop() {
	o.once.Do(func() { close(o.done) })
	o.wg.Wait()
	if n := o.buffered(); n > 0 {
		log.Printf("mqtt: dropping %d undelivered messages", n)
	}
}

func (o *outbox) buffered() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending.len()
}

func (o *outbox) run() {
	defer o.wg.Done()
	for {
		select {
		case msg := <-o.queue:
			o.deliver(msg)
		case <-o.replay:
			if o.connected() {
				o.replayPending()
			}
		case <-o.done:
			for {
				select {
				case msg := <-o.queue:
					o.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (o *outbox) deliver(msg bufferedMsg) {
	if !o.connected() {
		o.hold(msg)
		return
	}
	if !o.replayPending() {
		o.hold(msg)
		return
	}
	if err := o.send(msg); err != nil {
		log.Printf("mqtt: publish to %s failed, buffering: %v", msg.topic, err)
		o.hold(msg)
	}
}

// replayPending sends held messages oldest first. It reports false if a send
// failed; the failed message and everything after it stay held.
func (o *outbox) replayPending() bool {
	o.mu.Lock()
	msgs := o.pending.drainAll()
	o.mu.Unlock()
	if len(msgs) == 0 {
		return true
	}

	log.Printf("mqtt: replaying %d buffered messages", len(msgs))
	for i, msg := range msgs {
		if err := o.send(msg); err != nil {
			log.Printf("mqtt: replay failed: %v", err)
			o.mu.Lock()
			o.pending.restore(msgs[i:])
			o.mu.Unlock()
			return false
		}
	}
	return true
}

func (o *outbox) hold(msg bufferedMsg) {
	o.mu.Lock()
	o.pending.push(msg)
	o.mu.Unlock()
}
