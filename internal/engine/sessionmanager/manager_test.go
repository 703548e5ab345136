package sessionmanager

import (
	"context"
	"testing"

	"github.com/runger/suggestengine/internal/engine"
	"github.com/runger/suggestengine/internal/engine/session"
	"github.com/runger/suggestengine/internal/engine/shortcut"
	"github.com/runger/suggestengine/internal/sources/static"
)

type fakeRegistry struct {
	sources []engine.Source
	web     string
}

func (r *fakeRegistry) EnabledSources() []engine.Source { return r.sources }
func (r *fakeRegistry) WebSource() string               { return r.web }

func openTestRepo(t *testing.T) *shortcut.Repository {
	t.Helper()
	db, err := shortcut.Open(context.Background(), shortcut.Options{Path: ":memory:", SkipLock: true})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return shortcut.NewRepository(db)
}

func TestManager_StartSessionThenSession(t *testing.T) {
	repo := openTestRepo(t)
	registry := &fakeRegistry{sources: []engine.Source{static.New("apps", "Applications", "", 0, false, nil)}}
	m := New(repo, registry, session.Config{})

	eng, err := m.StartSession(context.Background(), "sess-1", nil)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if eng == nil {
		t.Fatal("expected a non-nil engine")
	}

	got, ok := m.Session("sess-1")
	if !ok || got != eng {
		t.Error("expected Session to return the same engine that was started")
	}
	if m.ActiveSessionCount() != 1 {
		t.Errorf("expected 1 active session, got %d", m.ActiveSessionCount())
	}
}

func TestManager_StartSessionDuplicateIDErrors(t *testing.T) {
	repo := openTestRepo(t)
	registry := &fakeRegistry{}
	m := New(repo, registry, session.Config{})

	if _, err := m.StartSession(context.Background(), "sess-1", nil); err != nil {
		t.Fatalf("first StartSession: %v", err)
	}
	if _, err := m.StartSession(context.Background(), "sess-1", nil); err == nil {
		t.Error("expected starting an already-running session id to error")
	}
}

func TestManager_CloseSessionRemovesIt(t *testing.T) {
	repo := openTestRepo(t)
	registry := &fakeRegistry{}
	m := New(repo, registry, session.Config{})

	m.StartSession(context.Background(), "sess-1", nil)
	m.CloseSession("sess-1")

	if _, ok := m.Session("sess-1"); ok {
		t.Error("expected the session to be gone after CloseSession")
	}
	if m.ActiveSessionCount() != 0 {
		t.Errorf("expected 0 active sessions after close, got %d", m.ActiveSessionCount())
	}

	// Closing an unknown session id is a harmless no-op.
	m.CloseSession("never-started")
}
