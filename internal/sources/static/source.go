// Package static provides an in-memory engine.Source implementation: a
// fixed corpus of entries matched by title/query prefix. It exists as a
// reference source for tests and the CLI demo, standing in for concrete
// SuggestionSource implementations like the original's GenieSuggestionSource
// and MusicSuggestionSource (a thin wrapper around one external provider,
// with its own query threshold and shortcut validation).
package static

import (
	"fmt"
	"strings"
	"sync"

	"github.com/runger/suggestengine/internal/engine"
)

// Entry is one static corpus row.
type Entry struct {
	Title           string
	Description     string
	Icon            string
	IntentAction    string
	IntentData      string
	IntentDataID    string
	IntentExtraData string
}

// Source is a Source backed by a fixed, in-memory entry list. Queries are
// matched by case-insensitive prefix against Title.
type Source struct {
	componentID           string
	label                 string
	icon                  string
	queryThreshold        int
	queryAfterZeroResults bool

	mu      sync.RWMutex
	entries []Entry
}

// New builds a Source with the given identity and corpus. queryThreshold
// mirrors MusicSuggestionSource.getQueryThreshold: the minimum query length
// this source is worth asking.
func New(componentID, label, icon string, queryThreshold int, queryAfterZeroResults bool, entries []Entry) *Source {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Source{
		componentID:           componentID,
		label:                 label,
		icon:                  icon,
		queryThreshold:        queryThreshold,
		queryAfterZeroResults: queryAfterZeroResults,
		entries:               cp,
	}
}

func (s *Source) ComponentID() string         { return s.componentID }
func (s *Source) Label() string               { return s.label }
func (s *Source) Icon() string                { return s.icon }
func (s *Source) QueryThreshold() int         { return s.queryThreshold }
func (s *Source) QueryAfterZeroResults() bool { return s.queryAfterZeroResults }

// Suggest returns up to maxResults entries whose title has query as a
// case-insensitive prefix. Count is the number of matches found, not the
// number returned; matching stops once queryLimit matches are found.
func (s *Source) Suggest(query string, maxResults, queryLimit int) (engine.SourceResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	var matches []Entry
	for _, e := range s.entries {
		if strings.HasPrefix(strings.ToLower(e.Title), q) {
			matches = append(matches, e)
			if len(matches) >= queryLimit {
				break
			}
		}
	}

	limit := maxResults
	if limit > len(matches) {
		limit = len(matches)
	}

	suggestions := make([]engine.Suggestion, 0, limit)
	for _, e := range matches[:limit] {
		suggestions = append(suggestions, s.toSuggestion(query, e))
	}

	return engine.SourceResponse{
		Source:      s.componentID,
		Suggestions: suggestions,
		Count:       len(matches),
		QueryLimit:  queryLimit,
		ResultCode:  engine.ResultOK,
	}, nil
}

// ValidateShortcut re-resolves a previously persisted shortcut by its
// intent data id, confirming the entry still exists in the corpus.
func (s *Source) ValidateShortcut(shortcutID string) (*engine.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.IntentDataID == shortcutID {
			sug := s.toSuggestion("", e)
			return &sug, nil
		}
	}
	return nil, fmt.Errorf("static source %s: shortcut %q not found", s.componentID, shortcutID)
}

func (s *Source) toSuggestion(query string, e Entry) engine.Suggestion {
	return engine.Suggestion{
		Source:          s.componentID,
		Format:          "static",
		Title:           e.Title,
		Description:     e.Description,
		Icon1:           s.icon,
		Icon2:           e.Icon,
		IntentAction:    e.IntentAction,
		IntentData:      e.IntentData,
		IntentDataID:    e.IntentDataID,
		IntentExtraData: e.IntentExtraData,
		Query:           query,
		ShortcutID:      e.IntentDataID,
	}
}
