package actuator

import "github.com/sweeney/smart-box/internal/logic"

// FakeDriver records applied states for test assertions.
type FakeDriver struct {
	// States contains every state passed to Apply, in order.
	States []logic.SystemState

	// Outputs contains the resolved output for each applied state.
	Outputs []Output

	// ApplyError, if set, will be returned by Apply.
	ApplyError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeDriver creates a FakeDriver.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{}
}

// Apply records the state.
func (f *FakeDriver) Apply(s logic.SystemState) error {
	if f.ApplyError != nil {
		return f.ApplyError
	}
	f.States = append(f.States, s)
	f.Outputs = append(f.Outputs, For(s))
	return nil
}

// Last returns the most recently applied output.
func (f *FakeDriver) Last() (Output, bool) {
	if len(f.Outputs) == 0 {
		return Output{}, false
	}
	return f.Outputs[len(f.Outputs)-1], true
}

// Close marks the driver as closed.
func (f *FakeDriver) Close() error {
	f.Closed = true
	return nil
}
