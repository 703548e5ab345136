// Package multiplex implements the QueryMultiplexer (C3): concurrent
// per-source fan-out with per-source timeouts and cooperative cancellation.
package multiplex

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/runger/suggestengine/internal/engine"
	applog "github.com/runger/suggestengine/internal/obslog"
)

// SourceTimeout is the default per-source deadline. A source that exceeds
// it is treated as failed: the multiplexer reports an empty error response
// on its behalf so the backer can progress without it.
const SourceTimeout = 10 * time.Second

// Receiver is notified as the fan-out progresses.
type Receiver interface {
	// OnSourceQueryStart is called at most once per source per fan-out,
	// strictly before any OnSourceResult call for that source.
	OnSourceQueryStart(componentID string)
	OnSourceResult(response engine.SourceResponse)
}

// Multiplexer fans a single query out to N sources concurrently.
type Multiplexer struct {
	query               string
	sources             []engine.Source
	maxResultsPerSource int
	queryLimit          int
	receiver            Receiver
	sourceTimeout       time.Duration
	logger              *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// SetLogger installs a logger used to report per-source timeouts. Optional;
// timeouts are silent if unset.
func (m *Multiplexer) SetLogger(logger *slog.Logger) {
	m.logger = logger
}

// New builds a Multiplexer. sourceTimeout defaults to SourceTimeout when zero.
func New(query string, sources []engine.Source, maxResultsPerSource, queryLimit int, receiver Receiver, sourceTimeout time.Duration) *Multiplexer {
	if sourceTimeout <= 0 {
		sourceTimeout = SourceTimeout
	}
	return &Multiplexer{
		query:               query,
		sources:             sources,
		maxResultsPerSource: maxResultsPerSource,
		queryLimit:          queryLimit,
		receiver:            receiver,
		sourceTimeout:       sourceTimeout,
		cancels:             make(map[string]context.CancelFunc, len(sources)),
	}
}

// SendQuery schedules one task per source on its own goroutine. ctx governs
// the whole fan-out: cancelling it silently drops every in-flight source
// task without reporting a result for them.
func (m *Multiplexer) SendQuery(ctx context.Context) {
	m.wg.Add(len(m.sources))
	for _, src := range m.sources {
		go m.runSource(ctx, src)
	}
}

// Cancel requests cancellation of every scheduled task. Already-running
// tasks are interrupted; their completions are discarded. Idempotent.
func (m *Multiplexer) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cancel := range m.cancels {
		cancel()
	}
}

// Wait blocks until every source task has finished (completed, timed out,
// or been cancelled). Used by callers that need to know the fan-out has
// fully quiesced, e.g. before releasing session resources.
func (m *Multiplexer) Wait() {
	m.wg.Wait()
}

func (m *Multiplexer) runSource(parent context.Context, src engine.Source) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(parent, m.sourceTimeout)
	m.mu.Lock()
	m.cancels[src.ComponentID()] = cancel
	m.mu.Unlock()
	defer cancel()

	m.receiver.OnSourceQueryStart(src.ComponentID())

	type result struct {
		resp engine.SourceResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := src.Suggest(m.query, m.maxResultsPerSource, m.queryLimit)
		done <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		if parent.Err() != nil {
			// The whole fan-out was cancelled; drop silently.
			return
		}
		if ctx.Err() == context.DeadlineExceeded {
			if m.logger != nil {
				applog.LogSourceTimeout(m.logger, src.ComponentID(), m.sourceTimeout.Milliseconds())
			}
			m.receiver.OnSourceResult(engine.EmptyErrorResponse(src.ComponentID()))
		}
		// Otherwise this source's own cancel fired explicitly; drop silently.
	case r := <-done:
		if r.err != nil {
			m.receiver.OnSourceResult(engine.EmptyErrorResponse(src.ComponentID()))
			return
		}
		r.resp.Source = src.ComponentID()
		m.receiver.OnSourceResult(r.resp)
	}
}
