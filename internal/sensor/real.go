//go:build linux

package sensor

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads sensors from actual hardware using the Linux GPIO character
// device and an IIO ADC channel.
type RealReader struct {
	chip      *gpiocdev.Chip
	door      *gpiocdev.Line
	button    *gpiocdev.Line
	trig      *gpiocdev.Line
	echo      *gpiocdev.Line
	edges     chan edge
	lightPath string
}

// NewRealReader creates a sensor reader for the smart box hardware.
func NewRealReader(p Pins) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(p.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealReader{
		chip:      chip,
		edges:     make(chan edge, 8),
		lightPath: p.LightPath,
	}

	// Door switch and button idle low; both read high when active.
	if r.door, err = chip.RequestLine(p.Door, gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		r.Close()
		return nil, fmt.Errorf("request door pin %d: %w", p.Door, err)
	}
	if r.button, err = chip.RequestLine(p.Button, gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		r.Close()
		return nil, fmt.Errorf("request button pin %d: %w", p.Button, err)
	}
	if r.trig, err = chip.RequestLine(p.Trig, gpiocdev.AsOutput(0)); err != nil {
		r.Close()
		return nil, fmt.Errorf("request trigger pin %d: %w", p.Trig, err)
	}
	r.echo, err = chip.RequestLine(p.Echo,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(r.onEcho))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", p.Echo, err)
	}

	return r, nil
}

// onEcho runs on the gpiocdev event goroutine. Edges are dropped rather than
// blocking it when nobody is measuring.
func (r *RealReader) onEcho(evt gpiocdev.LineEvent) {
	e := edge{rising: evt.Type == gpiocdev.LineEventRisingEdge, at: evt.Timestamp}
	select {
	case r.edges <- e:
	default:
	}
}

// Read samples every channel once.
func (r *RealReader) Read() (Reading, error) {
	var rd Reading

	door, err := r.door.Value()
	if err != nil {
		return rd, fmt.Errorf("read door pin: %w", err)
	}
	button, err := r.button.Value()
	if err != nil {
		return rd, fmt.Errorf("read button pin: %w", err)
	}
	light, err := readADC(r.lightPath)
	if err != nil {
		return rd, fmt.Errorf("read light sensor: %w", err)
	}

	rd.DoorClosed = door == 1
	rd.ButtonPressed = button == 1
	rd.Light = light
	rd.DistanceCM, rd.DistanceOK = r.measure()
	return rd, nil
}

// measure fires one ultrasonic ping. Any failure is reported as no reading.
func (r *RealReader) measure() (float64, bool) {
	drainEdges(r.edges)

	if err := r.trig.SetValue(1); err != nil {
		return 0, false
	}
	time.Sleep(10 * time.Microsecond)
	if err := r.trig.SetValue(0); err != nil {
		return 0, false
	}

	width, ok := waitEcho(r.edges, EchoTimeout)
	if !ok || width <= 0 {
		return 0, false
	}
	return pulseToCM(width), true
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{
		{"door", r.door},
		{"button", r.button},
		{"trigger", r.trig},
		{"echo", r.echo},
	} {
		if l.line == nil {
			continue
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s pin: %w", l.name, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", l.name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
