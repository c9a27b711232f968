package mqtt

import (
	"log"

	"github.com/sweeney/cw-keyer/internal/logic"
)

// Supersede classes. Only the newest held message of a class is worth
// replaying: a burst of speed changes from one spin of the encoder ends at a
// single speed, and only the latest heartbeat describes the keyer now.
const (
	classSpeed     = "speed"
	classHeartbeat = "heartbeat"
)

// bufferedMsg is a serialized MQTT message held for later delivery.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	// class, when set, makes the message replace any held message of the
	// same class.
	class string
}

// eventClass returns the supersede class of a keyer event.
func eventClass(t logic.EventType) string {
	if t == logic.EventWPMChanged {
		return classSpeed
	}
	return ""
}

// systemClass returns the supersede class of a system event.
func systemClass(event string) string {
	if event == "HEARTBEAT" {
		return classHeartbeat
	}
	return ""
}

// pendingQueue holds messages while the broker is unreachable, oldest first.
// When full it evicts the oldest QoS 0 keyer event before touching any QoS 1
// lifecycle message. Not safe for concurrent use; the outbox holds its mutex
// around every call.
type pendingQueue struct {
	msgs     []bufferedMsg
	capacity int
	overflow bool // true if any message was dropped since last drain
}

func newPendingQueue(capacity int) *pendingQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &pendingQueue{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (q *pendingQueue) push(msg bufferedMsg) {
	if msg.class != "" {
		for i, m := range q.msgs {
			if m.class == msg.class {
				q.remove(i)
				break
			}
		}
	}
	if len(q.msgs) == q.capacity {
		q.evict()
	}
	q.msgs = append(q.msgs, msg)
}

// evict drops the oldest QoS 0 message, or the oldest message if every held
// message is QoS 1.
func (q *pendingQueue) evict() {
	victim := 0
	for i, m := range q.msgs {
		if m.qos == 0 {
			victim = i
			break
		}
	}
	if !q.overflow {
		log.Printf("mqtt: buffer full (%d messages), dropping %s message", q.capacity, q.msgs[victim].topic)
		q.overflow = true
	}
	q.remove(victim)
}

func (q *pendingQueue) remove(i int) {
	copy(q.msgs[i:], q.msgs[i+1:])
	q.msgs[len(q.msgs)-1] = bufferedMsg{}
	q.msgs = q.msgs[:len(q.msgs)-1]
}

// restore puts messages whose replay failed back in front of anything held
// since the drain. A restored message loses to a newer held one of its class.
func (q *pendingQueue) restore(msgs []bufferedMsg) {
	held := q.msgs
	q.msgs = make([]bufferedMsg, 0, q.capacity)
	for _, m := range msgs {
		if m.class != "" && holdsClass(held, m.class) {
			continue
		}
		q.push(m)
	}
	for _, m := range held {
		q.push(m)
	}
}

func holdsClass(msgs []bufferedMsg, class string) bool {
	for _, m := range msgs {
		if m.class == class {
			return true
		}
	}
	return false
}

func (q *pendingQueue) drainAll() []bufferedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	result := append([]bufferedMsg(nil), q.msgs...)
	q.msgs = q.msgs[:0]
	q.overflow = false
	return result
}

func (q *pendingQueue) len() int {
	return len(q.msgs)
}
