//go:build linux

package actuator

import (
	"fmt"

	"github.com/sweeney/smart-box/internal/logic"
	"github.com/warthog618/go-gpiocdev"
)

// RealDriver drives the LED and buzzer through the GPIO character device.
type RealDriver struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	last  logic.SystemState
}

// NewRealDriver requests the output lines, all initially low.
func NewRealDriver(p Pins) (*RealDriver, error) {
	chip, err := gpiocdev.NewChip(p.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	lines, err := chip.RequestLines([]int{p.Red, p.Green, p.Blue, p.Buzzer}, gpiocdev.AsOutput(0, 0, 0, 0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request output pins: %w", err)
	}

	return &RealDriver{chip: chip, lines: lines}, nil
}

// Apply sets the LED and buzzer for the state. Repeated states are skipped.
func (d *RealDriver) Apply(s logic.SystemState) error {
	if s == d.last {
		return nil
	}
	v := levels(For(s))
	if err := d.lines.SetValues(v[:]); err != nil {
		return fmt.Errorf("set outputs for %s: %w", s, err)
	}
	d.last = s
	return nil
}

// Close turns everything off and releases the lines.
func (d *RealDriver) Close() error {
	var errs []error
	if d.lines != nil {
		if err := d.lines.SetValues([]int{0, 0, 0, 0}); err != nil {
			errs = append(errs, fmt.Errorf("clear outputs: %w", err))
		}
		if err := d.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lines: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
