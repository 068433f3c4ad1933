package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sweeney/smart-box/internal/logic"
)

// BufferCapacity is the number of messages held while the broker is slow or
// unreachable.
const BufferCapacity = 256

const (
	publishTimeout = 5 * time.Second
	// closeTimeout bounds how long Close waits for the queue, SHUTDOWN
	// included, to reach the broker.
	closeTimeout = 2 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
// Publish and PublishSystem only queue the message. One sender goroutine
// delivers the queue in order while the connection is up, so a slow or
// unreachable broker never blocks the caller.
type RealPublisher struct {
	client paho.Client
	topics Topics

	mu     sync.Mutex
	outbox *outbox

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newRealPublisher(boxID string) *RealPublisher {
	return &RealPublisher{
		topics:  TopicsFor(boxID),
		outbox:  newOutbox(BufferCapacity),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// NewRealPublisher creates a publisher for the given broker and box.
// The connection is retried in the background until it succeeds.
func NewRealPublisher(broker, boxID string) (*RealPublisher, error) {
	p := newRealPublisher(boxID)

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventOffline,
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("smart-box-"+boxID+"-"+uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWriteTimeout(publishTimeout).
		SetBinaryWill(p.topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Str("broker", broker).Msg("mqtt connection lost")
		})

	p.client = paho.NewClient(opts)
	go p.run()
	// With connect retry enabled the token only completes once connected,
	// so it is not waited on.
	p.client.Connect()

	return p, nil
}

func (p *RealPublisher) onConnect(_ paho.Client) {
	p.mu.Lock()
	queued := p.outbox.len()
	p.mu.Unlock()

	log.Info().Int("queued", queued).Msg("mqtt connected")
	p.notify()
}

func (p *RealPublisher) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// run is the only goroutine that sends queued messages.
func (p *RealPublisher) run() {
	defer close(p.stopped)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.done:
			p.flush()
			return
		}
	}
}

// flush sends queued messages oldest first until the queue is empty or the
// connection drops. A message whose send fails is logged and not retried.
func (p *RealPublisher) flush() {
	for p.client.IsConnectionOpen() {
		p.mu.Lock()
		m, ok := p.outbox.shift()
		p.mu.Unlock()
		if !ok {
			return
		}
		if err := p.send(m); err != nil {
			log.Warn().Err(err).Stringer("class", m.class).Msg("mqtt publish failed")
		}
	}
}

func (p *RealPublisher) enqueue(m outMsg) {
	p.mu.Lock()
	p.outbox.push(m)
	p.mu.Unlock()
	p.notify()
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish queues a state transition for the broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	p.enqueue(outMsg{class: classState, topic: p.topics.State, payload: payload})
	return nil
}

// PublishSystem queues a system lifecycle event for the broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	p.enqueue(outMsg{
		class:    systemClass(event.Event),
		topic:    p.topics.System,
		payload:  payload,
		qos:      1,
		retained: event.Retained,
	})
	return nil
}

// PublishTelemetry sends a telemetry record directly. It is called from the
// uploader goroutine, and telemetry is not worth replaying so it is dropped
// while disconnected.
func (p *RealPublisher) PublishTelemetry(payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("publish telemetry: not connected")
	}
	return p.send(outMsg{topic: p.topics.Telemetry, payload: payload})
}

func (p *RealPublisher) send(m outMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// Close flushes the queue for at most closeTimeout and disconnects.
func (p *RealPublisher) Close() error {
	p.once.Do(func() {
		close(p.done)
		select {
		case <-p.stopped:
		case <-time.After(closeTimeout):
			log.Warn().Dur("timeout", closeTimeout).Msg("mqtt flush on close timed out")
		}
		p.client.Disconnect(250)
	})
	return nil
}
