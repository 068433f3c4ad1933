package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sweeney/smart-box/internal/logic"
)

// SampleSource returns the latest sample. ok is false before the first tick.
type SampleSource func() (s logic.Sample, ok bool)

// Observer is notified of every sink outcome.
type Observer interface {
	TelemetrySent(sink string, err error)
}

// Uploader sends one record to every sink per interval.
type Uploader struct {
	sinks    []Sink
	latch    *Latch
	latest   SampleSource
	interval time.Duration
	timeout  time.Duration
	observer Observer
}

// NewUploader creates an uploader. timeout bounds each sink call.
func NewUploader(latest SampleSource, latch *Latch, interval, timeout time.Duration, sinks ...Sink) *Uploader {
	return &Uploader{
		sinks:    sinks,
		latch:    latch,
		latest:   latest,
		interval: interval,
		timeout:  timeout,
	}
}

// SetObserver registers an observer. Must be called before Run.
func (u *Uploader) SetObserver(o Observer) {
	u.observer = o
}

// Upload sends the current sample. The latch is cleared by every upload
// attempt, whether or not the sinks succeed. Returns false when no sample is
// available yet.
func (u *Uploader) Upload(ctx context.Context) bool {
	s, ok := u.latest()
	if !ok {
		return false
	}
	rec := NewRecord(s, u.latch.Take())

	for _, sink := range u.sinks {
		sctx, cancel := context.WithTimeout(ctx, u.timeout)
		err := sink.Send(sctx, rec)
		cancel()

		if err != nil {
			log.Warn().Err(err).Str("sink", sink.Name()).Msg("telemetry upload failed")
		} else {
			log.Debug().Str("sink", sink.Name()).Strs("fields", rec.Fields()).Msg("telemetry uploaded")
		}
		if u.observer != nil {
			u.observer.TelemetrySent(sink.Name(), err)
		}
	}
	return true
}

// Run uploads every interval until ctx is cancelled.
func (u *Uploader) Run(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.Upload(ctx)
		}
	}
}
