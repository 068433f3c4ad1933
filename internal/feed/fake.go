package feed

import (
	"context"
	"errors"
)

// FakeSource returns scripted responses, one per call. After the script is
// exhausted the last response repeats.
type FakeSource struct {
	Responses []FakeResponse
	Calls     int
}

// FakeResponse is one scripted Latest result.
type FakeResponse struct {
	Record Record
	Empty  bool
	Err    error
}

// Latest returns the next scripted response.
func (f *FakeSource) Latest(ctx context.Context) (Record, bool, error) {
	if len(f.Responses) == 0 {
		return Record{}, false, errors.New("no responses configured")
	}
	i := f.Calls
	if i >= len(f.Responses) {
		i = len(f.Responses) - 1
	}
	f.Calls++
	r := f.Responses[i]
	if r.Err != nil {
		return Record{}, false, r.Err
	}
	if r.Empty {
		return Record{}, false, nil
	}
	return r.Record, true, nil
}
