//go:build !linux

package actuator

import (
	"errors"

	"github.com/sweeney/smart-box/internal/logic"
)

// RealDriver is not available on non-Linux platforms.
type RealDriver struct{}

// NewRealDriver returns an error on non-Linux platforms.
func NewRealDriver(p Pins) (*RealDriver, error) {
	return nil, errors.New("actuator: not supported on this platform (requires Linux)")
}

// Apply is not implemented on non-Linux platforms.
func (d *RealDriver) Apply(s logic.SystemState) error {
	return errors.New("actuator: not supported")
}

// Close is not implemented on non-Linux platforms.
func (d *RealDriver) Close() error {
	return nil
}
