// Package correlator pairs captured call start events with their completion
// signals and emits enriched records.
package correlator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prasenjit/firescope/internal/decoder"
	"github.com/prasenjit/firescope/internal/filter"
	"github.com/prasenjit/firescope/internal/models"
)

// Defaults
const (
	DefaultMaxAge        = 5 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

// Sink receives finalized records. Implementations must not block for long;
// Complete calls every sink synchronously.
type Sink interface {
	Publish(rec *models.Record)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(rec *models.Record)

// Publish calls f(rec)
func (f SinkFunc) Publish(rec *models.Record) { f(rec) }

// Options configures a Correlator
type Options struct {
	// APIHost is the database API host accepted by the noise filter
	APIHost string
	// MaxAge is how long a call may wait for its completion signal
	MaxAge time.Duration
	// SweepInterval is the period of the sweep started by Run
	SweepInterval time.Duration
	// Now returns the current time
	Now    func() time.Time
	Logger *slog.Logger
}

type pendingCall struct {
	startedAt time.Time
	tab       string
	method    string
	descs     []models.QueryDescription
}

// Correlator owns the pending-call buffer
type Correlator struct {
	opts Options

	mu      sync.Mutex
	pending map[string]*pendingCall

	sinksMu sync.RWMutex
	sinks   []Sink
}

// New creates a correlator forwarding records to sinks
func New(opts Options, sinks ...Sink) *Correlator {
	if opts.APIHost == "" {
		opts.APIHost = filter.DefaultAPIHost
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Correlator{
		opts:    opts,
		pending: make(map[string]*pendingCall),
		sinks:   sinks,
	}
}

// AddSink registers an additional sink
func (c *Correlator) AddSink(s Sink) {
	c.sinksMu.Lock()
	defer c.sinksMu.Unlock()
	c.sinks = append(c.sinks, s)
}

// Observe filters and decodes a call and buffers its meaningful
// descriptions under the call's request id. It returns the number of
// buffered descriptions; 0 means the call was dropped.
func (c *Correlator) Observe(call *models.CapturedCall) int {
	if !filter.AcceptCall(call, c.opts.APIHost) {
		return 0
	}

	descs := filter.Meaningful(decoder.Decode(call))
	if len(descs) == 0 {
		c.opts.Logger.Debug("call has no meaningful query", "requestId", call.RequestID, "url", call.URL)
		return 0
	}

	// A redirect reuses the request id; the call keeps its first start time
	c.mu.Lock()
	startedAt := c.opts.Now()
	prev, replaced := c.pending[call.RequestID]
	if replaced {
		startedAt = prev.startedAt
	}
	c.pending[call.RequestID] = &pendingCall{
		startedAt: startedAt,
		tab:       call.TabContext,
		method:    call.Method,
		descs:     descs,
	}
	c.mu.Unlock()

	if replaced {
		c.opts.Logger.Debug("replaced pending call", "requestId", call.RequestID)
	}

	c.opts.Logger.Debug("buffered call", "requestId", call.RequestID, "descriptions", len(descs))
	return len(descs)
}

// Complete finalizes the buffered call matching the signal's request id and
// forwards one record per description to every sink, in decode order.
// A signal with no buffered call is ignored and returns nil.
func (c *Correlator) Complete(sig models.CompletionSignal) []models.Record {
	c.mu.Lock()
	p, ok := c.pending[sig.RequestID]
	if ok {
		delete(c.pending, sig.RequestID)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}

	endedAt := sig.EndedAt
	if endedAt.IsZero() {
		endedAt = c.opts.Now()
	}
	method := sig.Method
	if method == "" {
		method = p.method
	}
	duration := endedAt.Sub(p.startedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	records := make([]models.Record, len(p.descs))
	for i, desc := range p.descs {
		records[i] = models.Record{
			QueryDescription: desc,
			ID:               uuid.New().String(),
			GroupID:          sig.RequestID,
			GroupTotal:       len(p.descs),
			Method:           method,
			Status:           sig.StatusCode,
			DurationMs:       duration,
			StartedAt:        p.startedAt,
			EndedAt:          endedAt,
			TabContext:       p.tab,
		}
	}

	c.sinksMu.RLock()
	sinks := make([]Sink, len(c.sinks))
	copy(sinks, c.sinks)
	c.sinksMu.RUnlock()

	for i := range records {
		for _, s := range sinks {
			s.Publish(&records[i])
		}
	}
	return records
}

// Sweep evicts buffered calls older than MaxAge at now and returns how
// many were evicted
func (c *Correlator) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, p := range c.pending {
		if now.Sub(p.startedAt) > c.opts.MaxAge {
			delete(c.pending, id)
			evicted++
		}
	}
	if evicted > 0 {
		c.opts.Logger.Info("evicted stale calls", "count", evicted, "maxAge", c.opts.MaxAge)
	}
	return evicted
}

// Run sweeps the buffer every SweepInterval until ctx is cancelled
func (c *Correlator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(c.opts.Now())
		}
	}
}

// Pending returns the number of buffered calls
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
