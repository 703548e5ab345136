package backer

import (
	"testing"

	"github.com/runger/suggestengine/internal/engine"
)

func basicConfig() Config {
	return Config{
		Query: "doc",
		Sources: []SourceInfo{
			{ComponentID: "apps", Label: "Applications"},
			{ComponentID: "contacts", Label: "Contacts"},
		},
		PromotedSources:    []string{"apps", "contacts"},
		MaxPromoted:        6,
		PromotedDeadlineMs: 1000,
	}
}

func TestBacker_SnapshotPendingUntilAllPromotedReport(t *testing.T) {
	b := New(basicConfig(), 0)
	// Pin the clock at the fan-out start so every result beats the deadline.
	b.now = func() int64 { return 0 }

	frame := b.Snapshot(false)
	if !frame.IsPending {
		t.Error("expected pending snapshot with no sources reported yet")
	}

	b.AddSourceResult(engine.SourceResponse{
		Source:      "apps",
		Suggestions: []engine.Suggestion{{Source: "apps", IntentAction: "view", IntentData: "1"}},
		Count:       1,
	})
	frame = b.Snapshot(false)
	if !frame.IsPending {
		t.Error("expected still pending with one of two promoted sources reported")
	}

	b.AddSourceResult(engine.SourceResponse{
		Source:      "contacts",
		Suggestions: []engine.Suggestion{{Source: "contacts", IntentAction: "view", IntentData: "2"}},
		Count:       1,
	})
	frame = b.Snapshot(false)
	if frame.IsPending {
		t.Error("expected not pending once all promoted sources reported")
	}
	if len(frame.Suggestions) != 2 {
		t.Errorf("expected 2 mixed suggestions, got %d", len(frame.Suggestions))
	}
}

func TestBacker_DedupesAcrossSources(t *testing.T) {
	b := New(basicConfig(), 0)
	// Pin the clock at the fan-out start so every result beats the deadline.
	b.now = func() int64 { return 0 }

	dup := engine.Suggestion{Source: "apps", IntentAction: "view", IntentData: "1"}
	b.AddSourceResult(engine.SourceResponse{Source: "apps", Suggestions: []engine.Suggestion{dup}, Count: 1})
	b.AddSourceResult(engine.SourceResponse{Source: "contacts", Suggestions: []engine.Suggestion{dup}, Count: 1})

	frame := b.Snapshot(false)
	seen := 0
	for _, s := range frame.Suggestions {
		if s.DedupKey() == dup.DedupKey() {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("expected the duplicate suggestion to appear once, got %d", seen)
	}
}

func TestBacker_ShortcutsAlwaysLead(t *testing.T) {
	cfg := basicConfig()
	cfg.Shortcuts = []engine.Suggestion{{Source: "apps", IntentAction: "view", IntentData: "shortcut", ShortcutID: "sc-1"}}
	b := New(cfg, 0)

	frame := b.Snapshot(false)
	if len(frame.Suggestions) == 0 || frame.Suggestions[0].ShortcutID != "sc-1" {
		t.Error("expected the shortcut to lead the snapshot")
	}
}

func TestBacker_PastDeadlineShowsMore(t *testing.T) {
	cfg := basicConfig()
	cfg.PromotedDeadlineMs = 0
	cfg.SearchTheWeb = &engine.Suggestion{Title: "Search the web"}
	b := New(cfg, 0)

	frame := b.Snapshot(false)
	if !frame.IsShowingMore {
		t.Error("expected the more section once the deadline has already elapsed")
	}
}

func TestBacker_PinToBottomFromWebSource(t *testing.T) {
	cfg := basicConfig()
	cfg.WebSource = "apps"
	cfg.PromotedDeadlineMs = 0
	b := New(cfg, 0)

	pinned := engine.Suggestion{Source: "apps", IntentAction: "go", IntentData: "website", PinToBottom: true}
	b.AddSourceResult(engine.SourceResponse{
		Source:      "apps",
		Suggestions: []engine.Suggestion{{Source: "apps", IntentAction: "view", IntentData: "1"}, pinned},
		Count:       2,
	})
	b.AddSourceResult(engine.SourceResponse{Source: "contacts"})

	frame := b.Snapshot(false)
	if len(frame.Suggestions) == 0 {
		t.Fatal("expected a non-empty snapshot")
	}
	last := frame.Suggestions[len(frame.Suggestions)-1]
	if last.IntentData != "website" {
		t.Errorf("expected the pinned suggestion last, got %+v", last)
	}
}

func TestBacker_RefreshShortcut(t *testing.T) {
	cfg := basicConfig()
	cfg.Shortcuts = []engine.Suggestion{{Source: "apps", ShortcutID: "sc-1", Title: "stale"}}
	b := New(cfg, 0)

	ok := b.RefreshShortcut("apps", "sc-1", &engine.Suggestion{Source: "apps", ShortcutID: "sc-1", Title: "fresh"})
	if !ok {
		t.Fatal("expected refresh to find the matching shortcut")
	}

	frame := b.Snapshot(false)
	if frame.Suggestions[0].Title != "fresh" {
		t.Errorf("expected refreshed title, got %q", frame.Suggestions[0].Title)
	}
}

func TestBacker_RefreshShortcutNilIsNoOp(t *testing.T) {
	b := New(basicConfig(), 0)
	if b.RefreshShortcut("apps", "sc-1", nil) {
		t.Error("expected RefreshShortcut(nil) to be a no-op")
	}
}

func TestBacker_HasStartedTracksDispatchIndependentOfResponse(t *testing.T) {
	b := New(basicConfig(), 0)

	if b.HasStarted("apps") {
		t.Error("expected apps to not have started before any dispatch")
	}

	b.MarkStarted("apps")
	if !b.HasStarted("apps") {
		t.Error("expected apps to have started after MarkStarted")
	}
	if b.HasStarted("contacts") {
		t.Error("expected contacts to remain unstarted")
	}
}
