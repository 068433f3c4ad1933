package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweeney/smart-box/internal/logic"
)

func sample(in logic.Input) logic.Sample {
	return logic.DefaultThresholds().Sample(in)
}

func TestLatch(t *testing.T) {
	var l Latch
	assert.False(t, l.Take())

	l.Set()
	l.Set()
	assert.True(t, l.Peek())
	assert.True(t, l.Take())
	assert.False(t, l.Take(), "latch is cleared by Take")
	assert.False(t, l.Peek())
}

func TestNewRecord(t *testing.T) {
	r := NewRecord(sample(logic.Input{
		DoorClosed:    true,
		ButtonPressed: true,
		LightValue:    2500,
		Distance:      logic.DistanceCM(42.5),
	}), true)

	assert.Equal(t, Record{
		Magnetic:     1,
		Button:       1,
		Light:        2500,
		LightState:   1,
		DistanceCM:   42.5,
		HandDetected: 1,
	}, r)
	assert.Equal(t, []string{"1", "1", "2500", "1", "42.50", "1"}, r.Fields())
}

func TestNewRecordInvalidDistance(t *testing.T) {
	r := NewRecord(sample(logic.Input{LightValue: 100, Distance: logic.InvalidDistance}), false)
	assert.Equal(t, 0, r.Magnetic)
	assert.Equal(t, 0, r.LightState)
	assert.Equal(t, InvalidDistanceCM, r.DistanceCM)
	assert.Equal(t, "9999.00", r.Fields()[4])
}

func TestThingSpeakURL(t *testing.T) {
	s := NewThingSpeakSink("https://api.thingspeak.com/update", "KEY123", time.Second)
	raw, err := s.URL(Record{Magnetic: 0, Button: 1, Light: 1800, LightState: 0, DistanceCM: 20, HandDetected: 1})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "api.thingspeak.com", u.Host)
	assert.Equal(t, "/update", u.Path)

	q := u.Query()
	assert.Equal(t, "KEY123", q.Get("api_key"))
	assert.Equal(t, "0", q.Get("field1"))
	assert.Equal(t, "1", q.Get("field2"))
	assert.Equal(t, "1800", q.Get("field3"))
	assert.Equal(t, "0", q.Get("field4"))
	assert.Equal(t, "20.00", q.Get("field5"))
	assert.Equal(t, "1", q.Get("field6"))
}

func TestThingSpeakSend(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte("42"))
	}))
	defer srv.Close()

	s := NewThingSpeakSink(srv.URL+"/update", "KEY", time.Second)
	require.NoError(t, s.Send(context.Background(), Record{Light: 700, DistanceCM: InvalidDistanceCM}))
	assert.Equal(t, "700", got.Get("field3"))
	assert.Equal(t, "9999.00", got.Get("field5"))
}

func TestThingSpeakSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewThingSpeakSink(srv.URL, "KEY", time.Second)
	assert.Error(t, s.Send(context.Background(), Record{}))
}

type fakeTelemetryPublisher struct {
	payloads [][]byte
	err      error
}

func (f *fakeTelemetryPublisher) PublishTelemetry(payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func TestMQTTSink(t *testing.T) {
	pub := &fakeTelemetryPublisher{}
	s := NewMQTTSink(pub)
	require.NoError(t, s.Send(context.Background(), Record{Magnetic: 1, Light: 3100, LightState: 1, DistanceCM: 12.5, HandDetected: 1}))
	require.Len(t, pub.payloads, 1)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(pub.payloads[0], &parsed))
	assert.Equal(t, 1.0, parsed["magnetic"])
	assert.Equal(t, 3100.0, parsed["light"])
	assert.Equal(t, 12.5, parsed["distance_cm"])
	assert.Equal(t, 1.0, parsed["hand_detected"])

	pub.err = errors.New("not connected")
	assert.Error(t, s.Send(context.Background(), Record{}))
}

type recordingSink struct {
	mu      sync.Mutex
	name    string
	records []Record
	err     error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type recordingObserver struct {
	outcomes map[string][]error
}

func (o *recordingObserver) TelemetrySent(sink string, err error) {
	if o.outcomes == nil {
		o.outcomes = map[string][]error{}
	}
	o.outcomes[sink] = append(o.outcomes[sink], err)
}

func TestUploaderNoSampleYet(t *testing.T) {
	sink := &recordingSink{name: "a"}
	var latch Latch
	latch.Set()
	u := NewUploader(func() (logic.Sample, bool) { return logic.Sample{}, false }, &latch, time.Second, time.Second, sink)

	assert.False(t, u.Upload(context.Background()))
	assert.Equal(t, 0, sink.count())
	assert.True(t, latch.Peek(), "latch survives until a real upload")
}

func TestUploaderClearsLatchEvenOnFailure(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	bad := &recordingSink{name: "bad", err: errors.New("offline")}
	obs := &recordingObserver{}

	var latch Latch
	s := sample(logic.Input{LightValue: 3000, Distance: logic.DistanceCM(20)})
	u := NewUploader(func() (logic.Sample, bool) { return s, true }, &latch, time.Second, time.Second, bad, ok)
	u.SetObserver(obs)

	latch.Set()
	require.True(t, u.Upload(context.Background()))
	assert.False(t, latch.Peek())
	require.Len(t, ok.records, 1)
	assert.Equal(t, 1, ok.records[0].HandDetected)
	assert.Equal(t, 1, bad.records[0].HandDetected, "every sink sees the same record")

	u.Upload(context.Background())
	assert.Equal(t, 0, ok.records[1].HandDetected, "latch reset after the previous upload")

	assert.Len(t, obs.outcomes["ok"], 2)
	assert.NoError(t, obs.outcomes["ok"][0])
	assert.Error(t, obs.outcomes["bad"][0])
}

func TestUploaderRun(t *testing.T) {
	sink := &recordingSink{name: "a"}
	var latch Latch
	s := sample(logic.Input{DoorClosed: true, LightValue: 3000})
	u := NewUploader(func() (logic.Sample, bool) { return s, true }, &latch, 10*time.Millisecond, time.Second, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		u.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
