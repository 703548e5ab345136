package sessionmanager

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/runger/suggestengine/internal/engine"
	"github.com/runger/suggestengine/internal/engine/backer"
)

// webURLPattern matches a query that looks like a website address, with or
// without a scheme, mirroring SuggestionFactory.createGoToWebsiteSuggestion's
// WEB_URL_PATTERN check.
var webURLPattern = regexp.MustCompile(`^(?:https?://)?[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}(?:[/:?#]\S*)?$`)

// goToWebsiteFactory builds the "go to website" built-in: a one-off
// suggestion offering to navigate directly to a query that looks like a url.
// Returns nil when the query doesn't look like one, matching
// SuggestionFactory.createGoToWebsiteSuggestion.
func goToWebsiteFactory(query string) *engine.Suggestion {
	q := strings.TrimSpace(query)
	if q == "" || !webURLPattern.MatchString(q) {
		return nil
	}
	url := q
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	return &engine.Suggestion{
		Source:       engine.BuiltinSource,
		Format:       "html",
		Title:        "Go to website",
		Description:  url,
		IntentAction: "view",
		IntentData:   url,
		ShortcutID:   engine.NeverMakeShortcut,
	}
}

// searchTheWebFactory builds the "search the web" built-in: a one-off
// suggestion offering to run the current query as a web search. Returns nil
// for an empty query, matching SuggestionFactory.createSearchTheWebSuggestion.
func searchTheWebFactory(query string) *engine.Suggestion {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	return &engine.Suggestion{
		Source:       engine.BuiltinSource,
		Title:        "Search the web",
		Description:  fmt.Sprintf("Search the web for %s", q),
		IntentAction: "web_search",
		Query:        q,
		ShortcutID:   engine.NeverMakeShortcut,
	}
}

// moreExpanderFactory builds the row shown at moreIndex once the "more"
// section is ready to display, matching getMoreEntry's always-present,
// never-shortcuttable expander row.
func moreExpanderFactory(moreIndex int) engine.Suggestion {
	return engine.Suggestion{
		Source:       engine.BuiltinSource,
		Format:       "html",
		Title:        "More results",
		IntentAction: "none",
		ShortcutID:   engine.NeverMakeShortcut,
	}
}

// corpusEntryFactory builds one "more" section row per source, matching
// getCorpusEntry: its IntentAction is CHANGE_SOURCE with the source's
// component id packed into IntentData, so Cursor.PreClose can credit that
// source with an impression rather than crediting the row's own
// engine.BuiltinSource.
func corpusEntryFactory(stat backer.SourceStat) engine.Suggestion {
	s := engine.Suggestion{
		Source:       engine.BuiltinSource,
		Title:        stat.Label,
		Icon1:        stat.Icon,
		IntentAction: engine.ActionChangeSource,
		IntentData:   stat.Component,
		ShortcutID:   engine.NeverMakeShortcut,
	}
	if !stat.Responded {
		s.Icon2 = engine.SpinnerIcon
		return s
	}
	if stat.NumUndisplayedResults > 0 {
		s.Description = fmt.Sprintf("%d more", stat.NumUndisplayedResults)
	}
	return s
}
