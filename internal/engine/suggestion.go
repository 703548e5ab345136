// Package engine contains the data model shared by every CORE component of
// the suggestion engine: the shortcut repository, the aggregation backer,
// the query multiplexer, the shortcut refresher, the session cache, and the
// session engine itself.
package engine

import "fmt"

// ResultCode reports whether a source answered a query successfully.
type ResultCode int

const (
	// ResultOK means the source returned (possibly zero) suggestions.
	ResultOK ResultCode = iota
	// ResultError means the source failed, timed out, or panicked; the
	// response is treated as empty and is never cached.
	ResultError
)

// NeverMakeShortcut is the sentinel ShortcutID a Suggestion carries when it
// must never be persisted as a shortcut, regardless of being clicked.
const NeverMakeShortcut = "\x00never-make-shortcut\x00"

// BuiltinSource is the component id attached to suggestions the engine
// manufactures itself (go-to-website, search-the-web, the more-results row,
// and corpus entries) rather than any configured Source.
const BuiltinSource = "engine.builtin"

// ActionChangeSource is the IntentAction a corpus entry carries: one row per
// source in the expanded "more" section. IntentData holds the target
// source's component id; clicking it switches the active search source
// instead of launching an intent.
const ActionChangeSource = "change_source"

// SpinnerIcon is the Icon2 marker substituted for a suggestion's real icon
// while SpinnerWhileRefresh is set, both in a live corpus entry and in a
// shortcut persisted with that flag: the UI renders a spinner in place of
// the (possibly stale) icon until the refresh completes.
const SpinnerIcon = "\x00spinner\x00"

// Suggestion is an immutable presentation record produced by a source or
// reconstituted from a shortcut row.
type Suggestion struct {
	Source               string
	Format               string
	Title                string
	Description          string
	Icon1                string
	Icon2                string
	IntentAction         string
	IntentData           string
	IntentDataID         string
	IntentExtraData      string
	IntentComponentName  string
	Query                string
	ActionMsgCall        string
	ShortcutID           string
	PinToBottom          bool
	SpinnerWhileRefresh  bool
	BackgroundColor      string
}

// DedupKey is the key used to suppress duplicate suggestions in the mixed
// region: two suggestions with the same (intentAction, intentData) are the
// same logical result.
func (s Suggestion) DedupKey() string {
	return s.IntentAction + "\x00" + s.IntentData
}

// IntentKey is the durable shortcut identity: source#intentData#intentAction#intentQuery,
// with each field substituted by an empty string when absent.
func (s Suggestion) IntentKey() string {
	return IntentKey(s.Source, s.IntentData, s.IntentAction, s.Query)
}

// IntentKey builds the canonical shortcut identity from its four components.
func IntentKey(source, intentData, intentAction, intentQuery string) string {
	return fmt.Sprintf("%s#%s#%s#%s", source, intentData, intentAction, intentQuery)
}

// IsShortcuttable reports whether this suggestion is eligible to be
// persisted as a shortcut when clicked.
func (s Suggestion) IsShortcuttable() bool {
	return s.ShortcutID != NeverMakeShortcut
}

// SourceResponse is what a SuggestionSource returns for one query.
//
// Invariant: len(Suggestions) <= Count <= QueryLimit.
type SourceResponse struct {
	Source      string
	Suggestions []Suggestion
	Count       int
	QueryLimit  int
	ResultCode  ResultCode
}

// EmptyErrorResponse builds the canned response used when a source panics,
// errors, or times out: zero suggestions, ResultError, so the backer can
// still progress and the "more" section can report "responded, 0 extra".
func EmptyErrorResponse(source string) SourceResponse {
	return SourceResponse{Source: source, ResultCode: ResultError}
}

// Shortcut is a Suggestion persisted in the repository together with the
// query under which it was clicked and the time of the click that earned
// it durable storage.
type Shortcut struct {
	Suggestion
	IntentQuery string
	HitTime     int64
}

// ClickEvent is an append-only record of a shortcut click.
type ClickEvent struct {
	IntentKey string
	Query     string
	HitTime   int64
}

// SourceEvent is one row per source per closed session: how many times it
// was shown (impressions) and how many times its result was clicked.
type SourceEvent struct {
	ComponentID string
	Time        int64
	Clicks      int
	Impressions int
}

// SourceTotals is the aggregate derived from SourceEvent, used for
// click-through-rate source ranking.
type SourceTotals struct {
	ComponentID      string
	TotalClicks      int64
	TotalImpressions int64
}

// SessionStats is produced once per session, at cursor close, and reported
// to the ShortcutRepository.
type SessionStats struct {
	Query              string
	Clicked            *Suggestion
	SourceImpressions  map[string]struct{}
}

// NewSessionStats returns an empty SessionStats for the given query.
func NewSessionStats(query string) SessionStats {
	return SessionStats{Query: query, SourceImpressions: make(map[string]struct{})}
}

// SnapshotFrame is the ordered list of suggestions handed to the UI at a
// given moment, plus the state needed to render the "more" affordance.
type SnapshotFrame struct {
	Suggestions  []Suggestion
	IsPending    bool
	IsShowingMore bool
	MoreIndex    int
}

// Source is the opaque polymorphic capability every suggestion provider
// implements. The engine never interprets the suggestions it returns; it
// only mixes, de-dupes, and orders them.
type Source interface {
	ComponentID() string
	Label() string
	Icon() string
	QueryThreshold() int
	QueryAfterZeroResults() bool
	Suggest(query string, maxResults, queryLimit int) (SourceResponse, error)
	ValidateShortcut(shortcutID string) (*Suggestion, error)
}
