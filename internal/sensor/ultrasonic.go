package sensor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EchoTimeout bounds one ultrasonic measurement (~5m round trip).
const EchoTimeout = 30 * time.Millisecond

// speed of sound in cm per microsecond
const soundCMPerMicro = 0.0343

// edge is an echo-line transition with its kernel timestamp.
type edge struct {
	rising bool
	at     time.Duration
}

// pulseToCM converts an echo pulse width into a one-way distance.
func pulseToCM(width time.Duration) float64 {
	us := float64(width.Nanoseconds()) / 1000
	return us * soundCMPerMicro / 2
}

// waitEcho waits for a rising edge followed by a falling edge and returns the
// pulse width. Returns false if no complete pulse arrives within timeout.
func waitEcho(edges <-chan edge, timeout time.Duration) (time.Duration, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var rise time.Duration
	seen := false
	for {
		select {
		case e := <-edges:
			if e.rising {
				rise = e.at
				seen = true
				continue
			}
			if seen {
				return e.at - rise, true
			}
		case <-timer.C:
			return 0, false
		}
	}
}

// drainEdges discards stale edges left over from a previous measurement.
func drainEdges(edges chan edge) {
	for {
		select {
		case <-edges:
		default:
			return
		}
	}
}

// readADC reads a raw IIO ADC value from sysfs.
func readADC(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse adc value %q: %w", strings.TrimSpace(string(data)), err)
	}
	return v, nil
}
