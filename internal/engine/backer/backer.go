// Package backer implements the AggregationBacker (C2): the ordering and
// mixing state machine that produces a stable snapshot from partial,
// out-of-order source responses under a soft "promoted" deadline.
package backer

import (
	"sync"
	"time"

	"github.com/runger/suggestengine/internal/engine"
)

// SourceInfo describes one source the backer knows about, for SourceStat
// rendering in the "more" section.
type SourceInfo struct {
	ComponentID string
	Label       string
	Icon        string
}

// Config seeds a Backer for one query.
type Config struct {
	Query               string
	Shortcuts           []engine.Suggestion
	Sources             []SourceInfo
	PromotedSources     []string // subset of Sources' component ids, ordered; len <= MaxPromoted
	WebSource           string   // component id of the web source, "" if none configured
	GoToWebsite         *engine.Suggestion
	SearchTheWeb        *engine.Suggestion
	MaxPromoted         int
	PromotedDeadlineMs  int64
	MoreExpanderFactory func(moreIndex int) engine.Suggestion
	CorpusEntryFactory  func(stat SourceStat) engine.Suggestion
}

// Backer holds the current mixed view of an in-flight query. All mutating
// operations and Snapshot serialize on a single internal lock, per the
// component's concurrency contract.
type Backer struct {
	cfg Config

	mu                     sync.Mutex
	reportedResults        map[string]engine.SourceResponse
	order                  []string
	reportedBeforeDeadline map[string]struct{}
	started                map[string]struct{}
	pinToBottom            *engine.Suggestion
	promotedQueryStart     int64
	displayedCount         map[string]int
	pos                    map[string]int
	isShowingMore          bool
	moreIndex              int

	now func() int64
}

// New creates a Backer seeded with cfg. promotedQueryStart is the wall
// clock (Unix ms) at which the promoted fan-out began; AddSourceResult
// compares against it to decide whether a result beat the deadline.
func New(cfg Config, promotedQueryStart int64) *Backer {
	return &Backer{
		cfg:                    cfg,
		reportedResults:        make(map[string]engine.SourceResponse),
		reportedBeforeDeadline: make(map[string]struct{}),
		started:                make(map[string]struct{}),
		displayedCount:         make(map[string]int),
		pos:                    make(map[string]int),
		promotedQueryStart:     promotedQueryStart,
		now:                    func() int64 { return time.Now().UnixMilli() },
	}
}

// SetPromotedQueryStart marks the wall clock at which the promoted fan-out
// actually began firing, used by callers that seed a Backer before the
// typing-delay debounce has elapsed and only dispatch the fan-out later.
func (b *Backer) SetPromotedQueryStart(now int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promotedQueryStart = now
}

// AddSourceResult folds a source's response into the backer's state. It
// returns true when the caller should re-snapshot: a deadline has already
// passed, or the response carries results worth displaying.
func (b *Backer) AddSourceResult(response engine.SourceResponse) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	if response.Source == b.cfg.WebSource && len(response.Suggestions) > 0 {
		last := response.Suggestions[len(response.Suggestions)-1]
		if last.PinToBottom {
			b.pinToBottom = &last
			response.Suggestions = response.Suggestions[:len(response.Suggestions)-1]
			response.Count--
		}
	}

	if _, seen := b.reportedResults[response.Source]; !seen {
		b.order = append(b.order, response.Source)
	}
	b.reportedResults[response.Source] = response

	pastDeadline := now-b.promotedQueryStart >= b.cfg.PromotedDeadlineMs
	if !pastDeadline {
		b.reportedBeforeDeadline[response.Source] = struct{}{}
	}

	return pastDeadline || len(response.Suggestions) > 0
}

// MarkStarted records that a source's query has been dispatched, whether or
// not it has responded yet. Sources reported as "started" but never shown in
// the mixed region still accrue impressions via their corpus entry.
func (b *Backer) MarkStarted(componentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started[componentID] = struct{}{}
}

// HasStarted reports whether componentID's query has been dispatched this
// fan-out (promoted or additional), independent of whether it has reported.
func (b *Backer) HasStarted(componentID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.started[componentID]
	return ok
}

// RefreshShortcut replaces a shortcut already seeded into this backer in
// place, keyed by shortcutID. It returns false (a no-op) when refreshed is
// nil, matching the repository's delete-on-nil semantics at the backer
// layer: the backer only ever shows shortcuts it was constructed with.
func (b *Backer) RefreshShortcut(source, shortcutID string, refreshed *engine.Suggestion) bool {
	if refreshed == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.cfg.Shortcuts {
		if b.cfg.Shortcuts[i].Source == source && b.cfg.Shortcuts[i].ShortcutID == shortcutID {
			b.cfg.Shortcuts[i] = *refreshed
			return true
		}
	}
	return false
}

// IsResultsPending reports whether fewer promoted sources have reported
// than are configured as promoted.
func (b *Backer) IsResultsPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reportedResults) < len(b.cfg.PromotedSources)
}

// IsShowingMore and MoreResultPosition reflect the most recent Snapshot call.
func (b *Backer) IsShowingMore() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isShowingMore
}

func (b *Backer) MoreResultPosition() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moreIndex
}

// Snapshot materializes the current deterministic mix: shortcuts, then
// round-robined promoted results, then (once the promoted deadline has
// passed or every promoted source has reported) the "more" section.
func (b *Backer) Snapshot(expandMore bool) engine.SnapshotFrame {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	// Every snapshot is recomputed from the reported results, so read
	// positions and per-source display counts start over each call.
	b.pos = make(map[string]int)
	b.displayedCount = make(map[string]int)
	var dest []engine.Suggestion
	dedup := make(map[string]struct{}, len(b.cfg.Shortcuts))

	if b.cfg.GoToWebsite != nil {
		dest = append(dest, *b.cfg.GoToWebsite)
	}

	for _, s := range b.cfg.Shortcuts {
		dest = append(dest, s)
		dedup[s.DedupKey()] = struct{}{}
	}

	reportedBeforePromoted := intersectInOrder(b.cfg.PromotedSources, b.reportedBeforeDeadline)

	promotedSlotsAvailable := b.cfg.MaxPromoted - len(b.cfg.Shortcuts)
	if promotedSlotsAvailable < 0 {
		promotedSlotsAvailable = 0
	}
	chunk := 0
	if len(b.cfg.PromotedSources) > 0 {
		chunk = promotedSlotsAvailable / len(b.cfg.PromotedSources)
		if chunk < 1 {
			chunk = 1
		}
	}

	displayed := 0
	if chunk > 0 {
		displayed = roundRobinPass(reportedBeforePromoted, chunk, promotedSlotsAvailable,
			b.reportedResults, b.pos, dedup, b.displayedCount, &dest)
	}

	pastDeadline := now-b.promotedQueryStart >= b.cfg.PromotedDeadlineMs
	allPromotedReported := allReported(b.cfg.PromotedSources, b.reportedResults)
	showMore := (pastDeadline || allPromotedReported) && len(b.cfg.Sources) > 0

	if showMore {
		residual := promotedSlotsAvailable - displayed
		if residual > 0 && len(reportedBeforePromoted) > 0 {
			chunk2 := residual / len(reportedBeforePromoted)
			if chunk2 < 1 {
				chunk2 = 1
			}
			roundRobinPass(reportedBeforePromoted, chunk2, residual,
				b.reportedResults, b.pos, dedup, b.displayedCount, &dest)
		}
	}

	moreIndex := len(dest)
	if showMore {
		if b.cfg.SearchTheWeb != nil {
			dest = append(dest, *b.cfg.SearchTheWeb)
		}
		moreIndex = len(dest)
		if b.cfg.MoreExpanderFactory != nil {
			dest = append(dest, b.cfg.MoreExpanderFactory(moreIndex))
		}
		if expandMore && b.cfg.CorpusEntryFactory != nil {
			for _, stat := range b.computeSourceStats() {
				if stat.NumUndisplayedResults > 0 || !stat.Responded {
					dest = append(dest, b.cfg.CorpusEntryFactory(stat))
				}
			}
		}
		if b.pinToBottom != nil {
			dest = append(dest, *b.pinToBottom)
		}
	}

	b.isShowingMore = showMore
	b.moreIndex = moreIndex

	return engine.SnapshotFrame{
		Suggestions:   dest,
		IsPending:     len(b.reportedResults) < len(b.cfg.PromotedSources),
		IsShowingMore: showMore,
		MoreIndex:     moreIndex,
	}
}

// roundRobinPass takes up to chunk suggestions from each source in turn,
// skipping suggestions whose dedup key is already taken (without counting
// them against chunk), until either every source's chunk is exhausted or
// slotBudget suggestions have been appended overall.
func roundRobinPass(
	sources []string,
	chunk, slotBudget int,
	responses map[string]engine.SourceResponse,
	pos map[string]int,
	dedup map[string]struct{},
	displayedCount map[string]int,
	dest *[]engine.Suggestion,
) int {
	added := 0
	for _, src := range sources {
		if added >= slotBudget {
			break
		}
		resp, ok := responses[src]
		if !ok {
			continue
		}
		taken := 0
		for taken < chunk && pos[src] < len(resp.Suggestions) && added < slotBudget {
			item := resp.Suggestions[pos[src]]
			pos[src]++
			if _, dup := dedup[item.DedupKey()]; dup {
				continue
			}
			*dest = append(*dest, item)
			dedup[item.DedupKey()] = struct{}{}
			displayedCount[src]++
			taken++
			added++
		}
	}
	return added
}

func intersectInOrder(ordered []string, set map[string]struct{}) []string {
	out := make([]string, 0, len(ordered))
	for _, id := range ordered {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func allReported(ids []string, reported map[string]engine.SourceResponse) bool {
	for _, id := range ids {
		if _, ok := reported[id]; !ok {
			return false
		}
	}
	return true
}
