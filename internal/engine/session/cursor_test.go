package session

import (
	"context"
	"testing"
	"time"

	"github.com/runger/suggestengine/internal/engine"
	"github.com/runger/suggestengine/internal/engine/backer"
	"github.com/runger/suggestengine/internal/engine/sessioncache"
)

func TestCursor_ClickOutOfRangeIsNoOp(t *testing.T) {
	sources := []engine.Source{
		&fakeSource{id: "apps", resp: engine.SourceResponse{Suggestions: []engine.Suggestion{{Title: "Calendar"}}, Count: 1}},
	}
	eng := newTestEngine(t, sources, nil)
	cur := eng.Query(context.Background(), "cal", time.Now().UnixMilli())
	eventually(t, time.Second, func() bool { return !cur.Snapshot().IsPending })

	result := cur.Click(99)
	if result.Suggestion != nil || result.ToggledMore {
		t.Errorf("expected an out-of-range click to be a no-op, got %+v", result)
	}
}

func TestCursor_PreCloseIsIdempotent(t *testing.T) {
	var closes int
	sources := []engine.Source{
		&fakeSource{id: "apps", resp: engine.SourceResponse{Suggestions: []engine.Suggestion{{Title: "Calendar"}}, Count: 1}},
	}
	eng := newTestEngine(t, sources, func(engine.SessionStats) { closes++ })
	cur := eng.Query(context.Background(), "cal", time.Now().UnixMilli())
	eventually(t, time.Second, func() bool { return !cur.Snapshot().IsPending })

	cur.PreClose(0)
	cur.PreClose(0)

	if closes != 1 {
		t.Errorf("expected exactly one onSessionClose call across repeated PreClose calls, got %d", closes)
	}
}

func TestCursor_NotifyChangeIsThrottled(t *testing.T) {
	sources := []engine.Source{
		&fakeSource{id: "apps", resp: engine.SourceResponse{Suggestions: []engine.Suggestion{{Title: "Calendar"}}, Count: 1}},
	}
	eng := newTestEngine(t, sources, nil)
	cur := eng.Query(context.Background(), "cal", time.Now().UnixMilli())
	eventually(t, time.Second, func() bool { return !cur.Snapshot().IsPending })

	var calls int
	cur.SetOnChange(func() { calls++ })

	cur.notifyChange()
	cur.notifyChange()
	if calls != 1 {
		t.Errorf("expected the second immediate notifyChange to be throttled, got %d calls", calls)
	}

	time.Sleep(cur.notifyWindow + 10*time.Millisecond)
	cur.notifyChange()
	if calls != 2 {
		t.Errorf("expected a notifyChange past the window to go through, got %d calls", calls)
	}
}

func TestCursor_PostRefreshReflectsPendingState(t *testing.T) {
	sources := []engine.Source{
		&fakeSource{id: "apps", resp: engine.SourceResponse{Suggestions: []engine.Suggestion{{Title: "Calendar"}}, Count: 1}},
	}
	eng := newTestEngine(t, sources, nil)
	cur := eng.Query(context.Background(), "cal", time.Now().UnixMilli())
	eventually(t, time.Second, func() bool { return !cur.PostRefresh().IsPending })

	res := cur.PostRefresh()
	if res.IsPending {
		t.Error("expected PostRefresh to report non-pending once the source has reported")
	}
}

func TestCursor_PreCloseCountsChangeSourceImpressionOnceStarted(t *testing.T) {
	sources := []engine.Source{
		&fakeSource{id: "apps", resp: engine.SourceResponse{Suggestions: []engine.Suggestion{{Title: "Calendar"}}, Count: 1}},
		&fakeSource{id: "docs", resp: engine.SourceResponse{Suggestions: []engine.Suggestion{{Title: "Report"}}, Count: 1}},
	}
	repo := openTestRepo(t)
	cache := sessioncache.New()
	seq := NewSequencer()
	t.Cleanup(seq.Stop)

	var gotStats engine.SessionStats
	gotCh := make(chan struct{})

	cfg := Config{
		Sources:            sources,
		MaxPromoted:        1, // only "apps" is promoted; "docs" becomes additional
		PromotedDeadlineMs: 0, // 0 falls back to the 3.5s default; "more" shows once "apps" reports
		SourceTimeout:      time.Second,
		MoreExpanderFactory: func(moreIndex int) engine.Suggestion {
			return engine.Suggestion{Source: engine.BuiltinSource, Title: "more"}
		},
		CorpusEntryFactory: func(stat backer.SourceStat) engine.Suggestion {
			return engine.Suggestion{
				Source:       engine.BuiltinSource,
				Title:        "corpus:" + stat.Component,
				IntentAction: engine.ActionChangeSource,
				IntentData:   stat.Component,
			}
		},
	}
	eng := New(cfg, repo, cache, seq, func(stats engine.SessionStats) {
		gotStats = stats
		close(gotCh)
	})

	cur := eng.Query(context.Background(), "doc", time.Now().UnixMilli())
	eventually(t, time.Second, func() bool { return !cur.Snapshot().IsPending })

	snap := cur.Snapshot()
	if !snap.IsShowingMore {
		t.Fatal("expected the more section to show once every promoted source has reported")
	}
	if res := cur.Click(snap.MoreIndex); !res.ToggledMore {
		t.Fatal("expected clicking the more row to expand it")
	}

	cur.ThreshHit()
	eventually(t, time.Second, func() bool { return cur.b.HasStarted("docs") })

	snap = cur.Snapshot()
	corpusPos := -1
	for i, s := range snap.Suggestions {
		if s.IntentAction == engine.ActionChangeSource && s.IntentData == "docs" {
			corpusPos = i
		}
	}
	if corpusPos < 0 {
		t.Fatalf("expected a docs corpus entry in the snapshot, got %+v", snap.Suggestions)
	}

	cur.PreClose(corpusPos)

	select {
	case <-gotCh:
	case <-time.After(time.Second):
		t.Fatal("onSessionClose was never invoked")
	}

	if _, ok := gotStats.SourceImpressions["docs"]; !ok {
		t.Errorf("expected docs to be credited an impression via its corpus entry, got %+v", gotStats.SourceImpressions)
	}
}
