package sessionmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/runger/suggestengine/internal/engine"
	"github.com/runger/suggestengine/internal/engine/session"
	"github.com/runger/suggestengine/internal/engine/sessioncache"
	"github.com/runger/suggestengine/internal/engine/shortcut"
)

// SourceRegistry resolves the set of sources a session may query. Wired to
// the configured suggestion sources at daemon startup.
type SourceRegistry interface {
	EnabledSources() []engine.Source
	WebSource() string
}

// Ranking priors, mirroring the repository's CTR-ranking cushion.
const (
	DefaultPriorClicks      = shortcut.DefaultPriorClicks
	DefaultPriorImpressions = shortcut.DefaultPriorImpressions
)

// managedSession bundles a running Engine with the per-session resources
// only the manager needs to know about.
type managedSession struct {
	engine *session.Engine
	cache  *sessioncache.Cache
	seq    *Sequencer
}

// Sequencer is re-exported so callers don't need to import the session
// package just to build a Manager.
type Sequencer = session.Sequencer

// Manager is the SessionManager (C7): one Manager per daemon process,
// fanning out to one Engine per connected client session.
type Manager struct {
	repo     *shortcut.Repository
	registry SourceRegistry
	engCfg   session.Config

	mu       sync.Mutex
	sessions map[string]*managedSession
}

// New builds a Manager. engCfg supplies the tunables every session's Engine
// is constructed with; its Sources and WebSource fields are overwritten per
// session from the registry and the current ranking.
func New(repo *shortcut.Repository, registry SourceRegistry, engCfg session.Config) *Manager {
	return &Manager{
		repo:     repo,
		registry: registry,
		engCfg:   engCfg,
		sessions: make(map[string]*managedSession),
	}
}

// StartSession creates a new Engine for sessionID, ordering sources by the
// repository's current click-through-rate ranking. It is an error to start
// a session id that is already running.
func (m *Manager) StartSession(ctx context.Context, sessionID string, onClose func(engine.SessionStats)) (*session.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return nil, fmt.Errorf("session %q already started", sessionID)
	}

	ranking, err := m.repo.GetSourceRanking(ctx, DefaultPriorClicks, DefaultPriorImpressions)
	if err != nil {
		ranking = nil
	}

	cfg := m.engCfg
	cfg.WebSource = m.registry.WebSource()
	maxPromoted := cfg.MaxPromoted
	if maxPromoted <= 0 {
		maxPromoted = session.NumPromoted
	}
	cfg.Sources = OrderSources(m.registry.EnabledSources(), cfg.WebSource, ranking, maxPromoted)

	// Wire the built-in fallbacks and "more" section rows, the way
	// SuggestionSession seeds its SuggestionFactory into the backer for
	// every query: these produce "go to website", "search the web", the
	// more-results expander, and per-source corpus entries.
	if cfg.GoToWebsiteFactory == nil {
		cfg.GoToWebsiteFactory = goToWebsiteFactory
	}
	if cfg.SearchTheWebFactory == nil {
		cfg.SearchTheWebFactory = searchTheWebFactory
	}
	if cfg.MoreExpanderFactory == nil {
		cfg.MoreExpanderFactory = moreExpanderFactory
	}
	if cfg.CorpusEntryFactory == nil {
		cfg.CorpusEntryFactory = corpusEntryFactory
	}

	seq := session.NewSequencer()
	cache := sessioncache.New()
	eng := session.New(cfg, m.repo, cache, seq, onClose)

	m.sessions[sessionID] = &managedSession{engine: eng, cache: cache, seq: seq}
	return eng, nil
}

// Session returns the running Engine for sessionID, if any.
func (m *Manager) Session(sessionID string) (*session.Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return ms.engine, true
}

// CloseSession tears down a session's sequencer and forgets it. Any Cursor
// it already handed out keeps working; it simply stops accepting new
// queries once the sequencer stops draining delayed fan-outs.
func (m *Manager) CloseSession(sessionID string) {
	m.mu.Lock()
	ms, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if ok {
		ms.seq.Stop()
	}
}

// ActiveSessionCount reports how many sessions are currently running, for
// the daemon's debug/health surface.
func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
