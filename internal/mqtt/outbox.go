package mqtt

import "github.com/rs/zerolog/log"

// msgClass ranks queued messages for eviction. Lower classes go first.
type msgClass int

const (
	classState     msgClass = iota // state transitions
	classHeartbeat                 // only the newest is ever queued
	classLifecycle                 // STARTUP, SHUTDOWN and other system events
)

func (c msgClass) String() string {
	switch c {
	case classState:
		return "state"
	case classHeartbeat:
		return "heartbeat"
	default:
		return "lifecycle"
	}
}

// systemClass returns the class of a system event.
func systemClass(event string) msgClass {
	if event == EventHeartbeat {
		return classHeartbeat
	}
	return classLifecycle
}

// outMsg is a serialized message waiting for the sender.
type outMsg struct {
	class    msgClass
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is the bounded FIFO that every state and system message passes
// through on its way to the broker. When full, the oldest state event is
// evicted first, then the queued heartbeat, then the oldest lifecycle event;
// a message never evicts one of a higher class and is dropped instead.
// Not safe for concurrent use; the publisher holds its lock.
type outbox struct {
	msgs     []outMsg
	capacity int
	dropped  int // since the outbox last ran empty
}

func newOutbox(capacity int) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	return &outbox{msgs: make([]outMsg, 0, capacity), capacity: capacity}
}

// push queues m and reports whether it was kept.
func (o *outbox) push(m outMsg) bool {
	if m.class == classHeartbeat {
		o.remove(classHeartbeat)
	}
	if len(o.msgs) >= o.capacity && !o.evict(m.class) {
		o.drop(m.class)
		return false
	}
	o.msgs = append(o.msgs, m)
	return true
}

// evict removes the oldest message of the lowest class not above limit.
func (o *outbox) evict(limit msgClass) bool {
	for c := classState; c <= limit; c++ {
		if o.remove(c) {
			o.drop(c)
			return true
		}
	}
	return false
}

func (o *outbox) remove(c msgClass) bool {
	for i := range o.msgs {
		if o.msgs[i].class == c {
			o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
			return true
		}
	}
	return false
}

func (o *outbox) drop(c msgClass) {
	if o.dropped == 0 {
		log.Warn().Int("capacity", o.capacity).Stringer("class", c).Msg("mqtt outbox full, dropping message")
	}
	o.dropped++
}

// shift removes and returns the oldest message.
func (o *outbox) shift() (outMsg, bool) {
	if len(o.msgs) == 0 {
		return outMsg{}, false
	}
	m := o.msgs[0]
	o.msgs = append(o.msgs[:0], o.msgs[1:]...)
	if len(o.msgs) == 0 && o.dropped > 0 {
		log.Warn().Int("dropped", o.dropped).Msg("mqtt outbox drained after overflow")
		o.dropped = 0
	}
	return m, true
}

func (o *outbox) len() int {
	return len(o.msgs)
}
