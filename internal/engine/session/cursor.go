package session

import (
	"context"
	"sync"
	"time"

	"github.com/runger/suggestengine/internal/engine"
	"github.com/runger/suggestengine/internal/engine/backer"
	"github.com/runger/suggestengine/internal/engine/multiplex"
	"github.com/runger/suggestengine/internal/engine/refresh"
)

// PostRefreshResult is returned by Cursor.PostRefresh: whether more data is
// still expected, and the index from which the UI should re-pull rows.
type PostRefreshResult struct {
	IsPending          bool
	DisplayNotifyIndex int
}

// ClickResult is returned by Cursor.Click.
type ClickResult struct {
	// ToggledMore is true when the click landed on the "more" row: the
	// cursor flipped into its expanded view and the same position should
	// be re-selected, not treated as a suggestion click.
	ToggledMore bool
	Suggestion  *engine.Suggestion
}

// Cursor is the per-query read model and control surface a UI drives: it
// owns the backer snapshot for one query, the additional (non-promoted)
// fan-out triggered by scrolling the "more" row into view, and the click
// and close bookkeeping that eventually produces a SessionStats.
type Cursor struct {
	mu sync.Mutex

	eng   *Engine
	ctx   context.Context
	query string

	b                 *backer.Backer
	additionalSources []engine.Source
	expandMore        bool

	prefill       []engine.Suggestion
	prefillActive bool

	promotedMux *multiplex.Multiplexer
	moreMux     *multiplex.Multiplexer
	refresher   *refresh.Refresher
	moreFired   bool

	clicked *engine.Suggestion
	closed  bool

	onChange     func()
	notifyWindow time.Duration
	lastNotify   time.Time
}

func newCursor(eng *Engine, ctx context.Context, query string, b *backer.Backer, additional []engine.Source) *Cursor {
	return &Cursor{
		eng:               eng,
		ctx:               ctx,
		query:             query,
		b:                 b,
		additionalSources: additional,
		notifyWindow:      eng.cfg.CursorNotifyWindowMs,
	}
}

// SetOnChange installs the push-notification hook a UI layer polls on.
// Calls are throttled to at most one per notifyWindow.
func (c *Cursor) SetOnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Snapshot returns the current mixed view, honoring any active prefill.
func (c *Cursor) Snapshot() engine.SnapshotFrame {
	c.mu.Lock()
	prefillActive := c.prefillActive
	prefill := c.prefill
	expandMore := c.expandMore
	c.mu.Unlock()

	if prefillActive {
		return engine.SnapshotFrame{Suggestions: prefill, IsPending: true}
	}
	return c.b.Snapshot(expandMore)
}

// PostRefresh re-derives the snapshot and reports whether the caller should
// re-pull it later.
func (c *Cursor) PostRefresh() PostRefreshResult {
	snap := c.Snapshot()
	return PostRefreshResult{IsPending: snap.IsPending, DisplayNotifyIndex: snap.MoreIndex}
}

// Click reports a click at a display position. A click on the "more" row
// expands it in place instead of producing a Suggestion.
func (c *Cursor) Click(position int) ClickResult {
	snap := c.Snapshot()
	if position < 0 || position >= len(snap.Suggestions) {
		return ClickResult{}
	}

	c.mu.Lock()
	if snap.IsShowingMore && position == snap.MoreIndex && !c.expandMore {
		c.expandMore = true
		c.mu.Unlock()
		return ClickResult{ToggledMore: true}
	}
	s := snap.Suggestions[position]
	c.clicked = &s
	c.mu.Unlock()

	return ClickResult{Suggestion: &s}
}

// ThreshHit signals that the "more" row has scrolled into view; it fans
// the remaining (non-promoted, not-yet-queried) sources out exactly once.
func (c *Cursor) ThreshHit() {
	c.mu.Lock()
	if c.moreFired || len(c.additionalSources) == 0 {
		c.mu.Unlock()
		return
	}
	c.moreFired = true
	sources := c.additionalSources
	c.mu.Unlock()

	c.eng.fireAdditional(c.ctx, c, sources)
}

// PreClose reports the highest display position the UI ever rendered and
// finalizes the session: it computes SessionStats from the clicked
// suggestion (if any) and every source visible at or above that position,
// then hands the stats to the engine for persistence.
func (c *Cursor) PreClose(maxDisplayPos int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	clicked := c.clicked
	promotedMux := c.promotedMux
	moreMux := c.moreMux
	refresher := c.refresher
	c.mu.Unlock()

	if promotedMux != nil {
		promotedMux.Cancel()
	}
	if moreMux != nil {
		moreMux.Cancel()
	}
	if refresher != nil {
		refresher.Cancel()
	}

	snap := c.Snapshot()
	upper := maxDisplayPos
	if upper >= len(snap.Suggestions) {
		upper = len(snap.Suggestions) - 1
	}

	stats := engine.NewSessionStats(c.query)
	stats.Clicked = clicked
	for i := 0; i <= upper; i++ {
		s := snap.Suggestions[i]
		if s.IntentAction == engine.ActionChangeSource {
			if componentID := s.IntentData; componentID != "" && c.b.HasStarted(componentID) {
				stats.SourceImpressions[componentID] = struct{}{}
			}
			continue
		}
		if _, known := c.eng.lookupSource(s.Source); known {
			stats.SourceImpressions[s.Source] = struct{}{}
		}
	}

	c.eng.onCursorClose(stats)
}

func (c *Cursor) setPromotedMux(m *multiplex.Multiplexer) {
	c.mu.Lock()
	c.promotedMux = m
	c.mu.Unlock()
}

func (c *Cursor) setMoreMux(m *multiplex.Multiplexer) {
	c.mu.Lock()
	c.moreMux = m
	c.mu.Unlock()
}

func (c *Cursor) setRefresher(r *refresh.Refresher) {
	c.mu.Lock()
	c.refresher = r
	c.mu.Unlock()
}

func (c *Cursor) setPrefill(suggestions []engine.Suggestion) {
	c.mu.Lock()
	c.prefill = suggestions
	c.prefillActive = true
	c.mu.Unlock()
}

func (c *Cursor) clearPrefill() {
	c.mu.Lock()
	c.prefillActive = false
	c.mu.Unlock()
}

func (c *Cursor) notifyChange() {
	c.mu.Lock()
	now := time.Now()
	if !c.lastNotify.IsZero() && now.Sub(c.lastNotify) < c.notifyWindow {
		c.mu.Unlock()
		return
	}
	c.lastNotify = now
	cb := c.onChange
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}
