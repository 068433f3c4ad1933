// Package sensor provides sensor reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device for the door
// switch, button and ultrasonic ranger, and an IIO ADC channel for the light
// sensor. The fake implementation allows testing without hardware.
package sensor

// Reading is one raw sample of every sensing channel.
type Reading struct {
	DoorClosed    bool // magnetic switch reads closed
	ButtonPressed bool
	Light         int     // raw ADC value; higher = brighter = counter empty
	DistanceCM    float64 // only meaningful when DistanceOK
	DistanceOK    bool    // false when the ultrasonic echo timed out
}

// Reader reads all sensor channels.
type Reader interface {
	// Read returns one sample. A distance timeout is not an error; it is
	// reported as DistanceOK=false.
	Read() (Reading, error)

	// Close releases hardware resources.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultPinDoor   = 18
	DefaultPinButton = 25
	DefaultPinTrig   = 22
	DefaultPinEcho   = 23
)

// Pins selects the GPIO lines and ADC channel used by the real reader.
type Pins struct {
	Chip   string
	Door   int
	Button int
	Trig   int
	Echo   int
	// LightPath is the sysfs file of the IIO ADC channel,
	// e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
	LightPath string
}

// DefaultPins returns the wiring of the reference box.
func DefaultPins() Pins {
	return Pins{
		Chip:      "gpiochip0",
		Door:      DefaultPinDoor,
		Button:    DefaultPinButton,
		Trig:      DefaultPinTrig,
		Echo:      DefaultPinEcho,
		LightPath: "/sys/bus/iio/devices/iio:device0/in_voltage0_raw",
	}
}
