// Package session implements the SessionEngine (C6): the per-session query
// protocol that debounces keystrokes, seeds a Backer from shortcuts and the
// session cache, fires the promoted fan-out, and produces Cursors that
// drive a UI and eventually report SessionStats back to the repository.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/runger/suggestengine/internal/engine"
	"github.com/runger/suggestengine/internal/engine/backer"
	"github.com/runger/suggestengine/internal/engine/multiplex"
	"github.com/runger/suggestengine/internal/engine/refresh"
	"github.com/runger/suggestengine/internal/engine/sessioncache"
	"github.com/runger/suggestengine/internal/engine/shortcut"
)

// Default tunables, per the component budget: 4 promoted sources, at most 7
// results asked of each source fanned out from the "more" row, at most 58
// results pulled from any one promoted source, and a 3.5s soft deadline after
// which the "more" section shows even if promoted sources are still pending.
const (
	NumPromoted         = 4
	MaxResultsToDisplay = 7
	MaxResultsPerSource = 58
	PromotedDeadlineMs  int64 = 3500
)

const (
	defaultPrefillMs          = 400 * time.Millisecond
	defaultCursorNotifyWindow = 100 * time.Millisecond
)

// Config configures an Engine for the lifetime of one daemon session.
type Config struct {
	Sources             []engine.Source
	WebSource           string
	QueryLimit          int
	MaxPromoted         int
	MaxResultsPerSource int
	PromotedDeadlineMs  int64
	SourceTimeout       time.Duration

	// PrefillMs is how long a stale previous-query snapshot is shown while
	// the new query's sources are still in flight.
	PrefillMs time.Duration
	// CursorNotifyWindowMs throttles push-style change notifications.
	CursorNotifyWindowMs time.Duration

	// Logger receives per-source timeout warnings from each fan-out.
	// Optional; timeouts are silent if nil.
	Logger *slog.Logger

	GoToWebsiteFactory  func(query string) *engine.Suggestion
	SearchTheWebFactory func(query string) *engine.Suggestion
	MoreExpanderFactory func(moreIndex int) engine.Suggestion
	CorpusEntryFactory  func(stat backer.SourceStat) engine.Suggestion
}

func (cfg *Config) applyDefaults() {
	if cfg.MaxPromoted <= 0 {
		cfg.MaxPromoted = NumPromoted
	}
	if cfg.MaxResultsPerSource <= 0 {
		cfg.MaxResultsPerSource = MaxResultsPerSource
	}
	if cfg.PromotedDeadlineMs <= 0 {
		cfg.PromotedDeadlineMs = PromotedDeadlineMs
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = multiplex.SourceTimeout
	}
	if cfg.PrefillMs <= 0 {
		cfg.PrefillMs = defaultPrefillMs
	}
	if cfg.CursorNotifyWindowMs <= 0 {
		cfg.CursorNotifyWindowMs = defaultCursorNotifyWindow
	}
}

// Engine is the SessionEngine (C6). One Engine serves one session: it is
// not safe to share across sessions, since it debounces a single keystroke
// stream and remembers exactly one "previous cursor" for prefill.
type Engine struct {
	cfg Config

	repo  *shortcut.Repository
	cache *sessioncache.Cache
	seq   *Sequencer

	sourceByID map[string]engine.Source
	now        func() int64

	mu              sync.Mutex
	typing          typingHeuristic
	outstanding     int
	pendingFire     *DelayedTask
	pendingDeadline *DelayedTask
	pendingPrefill  *DelayedTask
	lastCursor      *Cursor

	onSessionClose func(engine.SessionStats)
}

// New builds an Engine. onSessionClose is invoked once per Cursor.PreClose,
// after ReportStats has been scheduled against the repository.
func New(cfg Config, repo *shortcut.Repository, cache *sessioncache.Cache, seq *Sequencer, onSessionClose func(engine.SessionStats)) *Engine {
	cfg.applyDefaults()

	byID := make(map[string]engine.Source, len(cfg.Sources))
	for _, s := range cfg.Sources {
		byID[s.ComponentID()] = s
	}

	return &Engine{
		cfg:            cfg,
		repo:           repo,
		cache:          cache,
		seq:            seq,
		sourceByID:     byID,
		now:            func() int64 { return time.Now().UnixMilli() },
		onSessionClose: onSessionClose,
	}
}

// Outstanding reports the number of keystrokes whose debounce has not yet
// fired. A session is idle for shutdown purposes once this reaches zero and
// every cursor it produced has been closed.
func (e *Engine) Outstanding() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.outstanding
}

// Query runs one step of the query(q) protocol: it cancels any pending
// debounced fan-out from the previous keystroke, computes this keystroke's
// typing delay, seeds a Cursor from shortcuts and cached results, and
// schedules (or immediately fires) the promoted fan-out.
func (e *Engine) Query(ctx context.Context, q string, nowMs int64) *Cursor {
	e.mu.Lock()

	e.outstanding++
	if e.pendingFire != nil {
		if e.pendingFire.Cancel() {
			e.outstanding--
		}
		e.pendingFire = nil
	}
	if e.pendingDeadline != nil {
		e.pendingDeadline.Cancel()
		e.pendingDeadline = nil
	}
	if e.pendingPrefill != nil {
		e.pendingPrefill.Cancel()
		e.pendingPrefill = nil
	}

	delay := e.typing.onKeystroke(nowMs)

	shortcuts, err := e.repo.GetShortcutsForQuery(ctx, q, nowMs)
	if err != nil {
		shortcuts = nil
	}
	shortcuts = e.filterEnabledShortcuts(shortcuts)

	cached := e.cache.GetSourceResults(q)

	var sourcesToQuery []engine.Source
	threshold := len([]rune(q))
	if threshold < 1 {
		threshold = 1
	}
	for _, src := range e.cfg.Sources {
		if src.QueryThreshold() > threshold {
			continue
		}
		if e.cache.HasReportedZeroResultsForPrefix(q, src.ComponentID()) && !src.QueryAfterZeroResults() {
			continue
		}
		if cached.Has(src.ComponentID()) {
			continue
		}
		sourcesToQuery = append(sourcesToQuery, src)
	}

	numPromoted := e.cfg.MaxPromoted
	if numPromoted > len(sourcesToQuery) {
		numPromoted = len(sourcesToQuery)
	}
	promoted := sourcesToQuery[:numPromoted]
	additional := append([]engine.Source(nil), sourcesToQuery[numPromoted:]...)

	b := backer.New(e.buildBackerConfig(q, shortcuts, promoted), nowMs)
	for _, resp := range cached.Responses() {
		b.AddSourceResult(resp)
	}

	cur := newCursor(e, ctx, q, b, additional)

	prev := e.lastCursor
	e.lastCursor = cur

	if delay > 0 {
		e.pendingFire = e.seq.PostDelayed(func() {
			e.fire(ctx, cur, q, promoted, shortcuts)
		}, time.Duration(delay)*time.Millisecond)
	}

	if len(shortcuts) == 0 && len(cached.Responses()) == 0 && prev != nil {
		if snap := prev.Snapshot(); len(snap.Suggestions) > 0 {
			cur.setPrefill(snap.Suggestions)
			e.pendingPrefill = e.seq.PostDelayed(func() {
				cur.clearPrefill()
				cur.notifyChange()
			}, e.cfg.PrefillMs)
		}
	}
	e.mu.Unlock()

	// fire takes e.mu itself, so an immediate fan-out runs after unlocking.
	if delay <= 0 {
		e.fire(ctx, cur, q, promoted, shortcuts)
	}
	return cur
}

func (e *Engine) buildBackerConfig(q string, shortcuts []engine.Suggestion, promoted []engine.Source) backer.Config {
	promotedIDs := make([]string, len(promoted))
	for i, s := range promoted {
		promotedIDs[i] = s.ComponentID()
	}

	sourceInfos := make([]backer.SourceInfo, len(e.cfg.Sources))
	for i, s := range e.cfg.Sources {
		sourceInfos[i] = backer.SourceInfo{ComponentID: s.ComponentID(), Label: s.Label(), Icon: s.Icon()}
	}

	var goToWebsite, searchTheWeb *engine.Suggestion
	if e.cfg.GoToWebsiteFactory != nil {
		goToWebsite = e.cfg.GoToWebsiteFactory(q)
	}
	if e.cfg.SearchTheWebFactory != nil {
		searchTheWeb = e.cfg.SearchTheWebFactory(q)
	}

	return backer.Config{
		Query:               q,
		Shortcuts:           shortcuts,
		Sources:             sourceInfos,
		PromotedSources:     promotedIDs,
		WebSource:           e.cfg.WebSource,
		GoToWebsite:         goToWebsite,
		SearchTheWeb:        searchTheWeb,
		MaxPromoted:         e.cfg.MaxPromoted,
		PromotedDeadlineMs:  e.cfg.PromotedDeadlineMs,
		MoreExpanderFactory: e.cfg.MoreExpanderFactory,
		CorpusEntryFactory:  e.cfg.CorpusEntryFactory,
	}
}

// fire dispatches the promoted fan-out and the shortcut refresh pass, and
// schedules the deadline wake-up that lets the "more" section show even if
// a promoted source never responds.
func (e *Engine) fire(ctx context.Context, cur *Cursor, q string, promoted []engine.Source, shortcuts []engine.Suggestion) {
	now := e.now()
	cur.b.SetPromotedQueryStart(now)

	queryAfterZero := make(map[string]bool, len(promoted))
	for _, s := range promoted {
		queryAfterZero[s.ComponentID()] = s.QueryAfterZeroResults()
	}

	recv := &fanoutReceiver{eng: e, cur: cur, query: q, queryAfterZeroResults: queryAfterZero}
	mux := multiplex.New(q, promoted, e.cfg.MaxResultsPerSource, e.cfg.QueryLimit, recv, e.cfg.SourceTimeout)
	mux.SetLogger(e.cfg.Logger)
	cur.setPromotedMux(mux)
	mux.SendQuery(ctx)

	toRefresh := e.unrefreshedShortcuts(shortcuts)
	if len(toRefresh) > 0 {
		rrecv := &refreshReceiver{eng: e, cur: cur}
		refresher := refresh.New(e.repo, e.lookupSource, rrecv)
		cur.setRefresher(refresher)
		refresher.Refresh(ctx, toRefresh, len(toRefresh))
	}

	e.mu.Lock()
	e.pendingDeadline = e.seq.PostDelayed(func() {
		cur.notifyChange()
	}, time.Duration(e.cfg.PromotedDeadlineMs)*time.Millisecond)
	e.outstanding--
	e.mu.Unlock()
}

// fireAdditional dispatches the non-promoted sources once the "more" row
// has scrolled into view.
func (e *Engine) fireAdditional(ctx context.Context, cur *Cursor, sources []engine.Source) {
	queryAfterZero := make(map[string]bool, len(sources))
	for _, s := range sources {
		queryAfterZero[s.ComponentID()] = s.QueryAfterZeroResults()
	}

	recv := &fanoutReceiver{eng: e, cur: cur, query: cur.query, queryAfterZeroResults: queryAfterZero}
	mux := multiplex.New(cur.query, sources, MaxResultsToDisplay, e.cfg.QueryLimit, recv, e.cfg.SourceTimeout)
	mux.SetLogger(e.cfg.Logger)
	cur.setMoreMux(mux)
	mux.SendQuery(ctx)
}

func (e *Engine) onCursorClose(stats engine.SessionStats) {
	now := e.now()
	go func() {
		_ = e.repo.ReportStats(context.Background(), stats, now)
	}()
	if e.onSessionClose != nil {
		e.onSessionClose(stats)
	}
}

func (e *Engine) lookupSource(componentID string) (engine.Source, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sourceByID[componentID]
	return s, ok
}

func (e *Engine) filterEnabledShortcuts(shortcuts []engine.Suggestion) []engine.Suggestion {
	out := make([]engine.Suggestion, 0, len(shortcuts))
	for _, s := range shortcuts {
		if _, ok := e.sourceByID[s.Source]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) unrefreshedShortcuts(shortcuts []engine.Suggestion) []engine.Suggestion {
	out := make([]engine.Suggestion, 0, len(shortcuts))
	for _, s := range shortcuts {
		if !e.cache.HasShortcutBeenRefreshed(s.Source, s.ShortcutID) {
			out = append(out, s)
		}
	}
	return out
}

// fanoutReceiver bridges a Multiplexer's callbacks into the session cache
// and this cursor's backer, then throttles a change notification.
type fanoutReceiver struct {
	eng                   *Engine
	cur                   *Cursor
	query                 string
	queryAfterZeroResults map[string]bool
}

func (f *fanoutReceiver) OnSourceQueryStart(componentID string) {
	f.cur.b.MarkStarted(componentID)
}

func (f *fanoutReceiver) OnSourceResult(response engine.SourceResponse) {
	f.eng.cache.ReportSourceResult(f.query, response, f.queryAfterZeroResults[response.Source])
	if len(response.Suggestions) > 0 {
		f.cur.clearPrefill()
	}
	if f.cur.b.AddSourceResult(response) {
		f.cur.notifyChange()
	}
}

// refreshReceiver bridges a Refresher's callbacks into the session cache
// and this cursor's backer.
type refreshReceiver struct {
	eng *Engine
	cur *Cursor
}

func (r *refreshReceiver) OnShortcutRefreshed(componentID, shortcutID string, refreshed *engine.Suggestion) {
	r.eng.cache.ReportRefreshedShortcut(componentID, shortcutID)
	if r.cur.b.RefreshShortcut(componentID, shortcutID, refreshed) {
		r.cur.notifyChange()
	}
}
