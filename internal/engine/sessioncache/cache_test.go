package sessioncache

import (
	"testing"

	"github.com/runger/suggestengine/internal/engine"
)

func TestCache_ReportAndGetSourceResults(t *testing.T) {
	c := New()

	resp := engine.SourceResponse{Source: "apps", ResultCode: engine.ResultOK, Suggestions: []engine.Suggestion{{Title: "Calendar"}}, Count: 1}
	c.ReportSourceResult("cal", resp, false)

	cached := c.GetSourceResults("cal")
	if !cached.Has("apps") {
		t.Fatal("expected the reported source to be cached")
	}
	got := cached.Responses()
	if len(got) != 1 || got[0].Source != "apps" {
		t.Errorf("expected one cached response for apps, got %+v", got)
	}
}

func TestCache_GetSourceResultsMissIsEmpty(t *testing.T) {
	c := New()
	cached := c.GetSourceResults("nope")
	if cached.Has("apps") || len(cached.Responses()) != 0 {
		t.Error("expected an empty QueryResults for an unseen query")
	}
}

func TestCache_ErrorResponsesAreNotCached(t *testing.T) {
	c := New()
	c.ReportSourceResult("q", engine.SourceResponse{Source: "apps", ResultCode: engine.ResultError}, false)

	cached := c.GetSourceResults("q")
	if cached.Has("apps") {
		t.Error("expected an error response not to be cached")
	}
}

func TestCache_ZeroResultSourceIsSkippedForLongerPrefixes(t *testing.T) {
	c := New()
	c.ReportSourceResult("do", engine.SourceResponse{Source: "apps", ResultCode: engine.ResultOK}, false)

	if !c.HasReportedZeroResultsForPrefix("doc", "apps") {
		t.Error("expected a zero-result prefix to cover its extensions")
	}
	if c.HasReportedZeroResultsForPrefix("do", "apps") {
		t.Error("zero-result marker should only apply to strict prefixes, not the query itself")
	}
}

func TestCache_QueryAfterZeroResultsOptOut(t *testing.T) {
	c := New()
	c.ReportSourceResult("do", engine.SourceResponse{Source: "web", ResultCode: engine.ResultOK}, true)

	if c.HasReportedZeroResultsForPrefix("doc", "web") {
		t.Error("a source opted into querying after zero results should never be marked as a zero-result prefix")
	}
}

func TestCache_RefreshedShortcutBookkeeping(t *testing.T) {
	c := New()
	if c.HasShortcutBeenRefreshed("apps", "sc-1") {
		t.Error("expected no shortcut to be marked refreshed initially")
	}
	c.ReportRefreshedShortcut("apps", "sc-1")
	if !c.HasShortcutBeenRefreshed("apps", "sc-1") {
		t.Error("expected the shortcut to be marked refreshed")
	}
	if c.HasShortcutBeenRefreshed("contacts", "sc-1") {
		t.Error("refresh bookkeeping should be scoped per source")
	}
}
