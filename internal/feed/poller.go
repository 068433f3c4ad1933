package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Poll outcomes reported to the Observer.
const (
	ResultBaseline  = "baseline"
	ResultNew       = "new"
	ResultUnchanged = "unchanged"
	ResultEmpty     = "empty"
	ResultError     = "error"
)

// Observer is notified of every poll outcome.
type Observer interface {
	FeedPolled(result string)
}

// Status is a point-in-time view of the poller.
type Status struct {
	Baselined bool
	LastID    string
	LastLabel string
	LastPoll  time.Time
	LastError string
	Events    int
}

// Poller polls a Source on its own goroutine and latches new results until
// the control loop takes them.
type Poller struct {
	src      Source
	interval time.Duration
	timeout  time.Duration
	observer Observer
	now      func() time.Time

	pending atomic.Bool

	mu       sync.Mutex
	baseline Baseline
	status   Status
}

// NewPoller creates a poller. timeout bounds each poll in addition to any
// timeout of the source itself.
func NewPoller(src Source, interval, timeout time.Duration) *Poller {
	return &Poller{
		src:      src,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// SetObserver registers an observer. Must be called before Run.
func (p *Poller) SetObserver(o Observer) {
	p.observer = o
}

// Poll performs one fetch and reports whether a new result was detected.
// Failures are logged and count as no new result.
func (p *Poller) Poll(ctx context.Context) bool {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	rec, ok, err := p.src.Latest(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastPoll = p.now()

	if err != nil {
		p.status.LastError = err.Error()
		log.Warn().Err(err).Msg("classification poll failed")
		p.observe(ResultError)
		return false
	}
	p.status.LastError = ""

	if !ok {
		log.Debug().Msg("classification feed is empty")
		p.observe(ResultEmpty)
		return false
	}

	wasBaselined := p.baseline.Established()
	isNew := p.baseline.Observe(rec.ID)
	p.status.Baselined = true
	p.status.LastID = rec.ID
	p.status.LastLabel = rec.Label

	switch {
	case !wasBaselined:
		log.Info().Str("id", rec.ID).Msg("classification feed baseline established")
		p.observe(ResultBaseline)
	case isNew:
		p.status.Events++
		p.pending.Store(true)
		log.Info().Str("id", rec.ID).Str("label", rec.Label).Msg("new classification detected")
		p.observe(ResultNew)
	default:
		p.observe(ResultUnchanged)
	}
	return isNew
}

func (p *Poller) observe(result string) {
	if p.observer != nil {
		p.observer.FeedPolled(result)
	}
}

// Run polls immediately and then every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Take returns true at most once per detected result. Several results
// arriving between two calls collapse into one.
func (p *Poller) Take() bool {
	return p.pending.Swap(false)
}

// Status returns a copy of the poller status.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
