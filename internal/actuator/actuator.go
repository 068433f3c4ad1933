// Package actuator drives the status LED and buzzer from the box state.
package actuator

import "github.com/sweeney/smart-box/internal/logic"

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

var (
	ColorRed    = Color{R: 255}
	ColorGreen  = Color{G: 255}
	ColorBlue   = Color{B: 255}
	ColorOrange = Color{R: 255, G: 120}
)

// Output is what the box shows for a state.
type Output struct {
	Color  Color
	Buzzer bool
}

// For maps a state to its LED colour and buzzer. Only Abnormal sounds the buzzer.
func For(s logic.SystemState) Output {
	switch s {
	case logic.StateAbnormal:
		return Output{Color: ColorRed, Buzzer: true}
	case logic.StateProcessing:
		return Output{Color: ColorBlue}
	case logic.StateWaiting:
		return Output{Color: ColorOrange}
	default:
		return Output{Color: ColorGreen}
	}
}

// Driver applies outputs to hardware.
type Driver interface {
	// Apply shows the output for the given state.
	Apply(s logic.SystemState) error

	// Close switches everything off and releases resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinRed    = 12
	DefaultPinGreen  = 13
	DefaultPinBlue   = 14
	DefaultPinBuzzer = 19
)

// Pins selects the output lines.
type Pins struct {
	Chip   string
	Red    int
	Green  int
	Blue   int
	Buzzer int
}

// DefaultPins returns the wiring of the reference box.
func DefaultPins() Pins {
	return Pins{
		Chip:   "gpiochip0",
		Red:    DefaultPinRed,
		Green:  DefaultPinGreen,
		Blue:   DefaultPinBlue,
		Buzzer: DefaultPinBuzzer,
	}
}

// levels converts an output into line values for R, G, B and buzzer.
// The LED is driven on/off, so any non-zero channel is lit.
func levels(o Output) [4]int {
	var v [4]int
	for i, c := range []uint8{o.Color.R, o.Color.G, o.Color.B} {
		if c > 0 {
			v[i] = 1
		}
	}
	if o.Buzzer {
		v[3] = 1
	}
	return v
}
