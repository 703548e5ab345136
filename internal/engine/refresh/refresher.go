// Package refresh implements the ShortcutRefresher (C4): re-validating
// displayed shortcuts against their originating source and evicting stale
// ones from the repository.
package refresh

import (
	"context"
	"sync"

	"github.com/runger/suggestengine/internal/engine"
)

// Repository is the subset of the shortcut repository the refresher needs.
type Repository interface {
	RefreshShortcut(ctx context.Context, source, shortcutID string, refreshed *engine.Suggestion) error
}

// SourceLookup resolves a component id to a live Source capable of
// validating one of its shortcuts. ok is false when the source is no
// longer installed/reachable, in which case the shortcut is dropped.
type SourceLookup func(componentID string) (src engine.Source, ok bool)

// Receiver is notified as each shortcut finishes refreshing.
type Receiver interface {
	OnShortcutRefreshed(componentID, shortcutID string, refreshed *engine.Suggestion)
}

// Refresher schedules one validation task per shortcut.
type Refresher struct {
	repo     Repository
	lookup   SourceLookup
	receiver Receiver

	mu      sync.Mutex
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Refresher.
func New(repo Repository, lookup SourceLookup, receiver Receiver) *Refresher {
	return &Refresher{repo: repo, lookup: lookup, receiver: receiver}
}

// Refresh schedules up to maxToRefresh shortcuts for validation.
func (r *Refresher) Refresh(ctx context.Context, shortcuts []engine.Suggestion, maxToRefresh int) {
	if len(shortcuts) > maxToRefresh {
		shortcuts = shortcuts[:maxToRefresh]
	}

	r.wg.Add(len(shortcuts))
	for _, s := range shortcuts {
		taskCtx, cancel := context.WithCancel(ctx)
		r.mu.Lock()
		r.cancels = append(r.cancels, cancel)
		r.mu.Unlock()
		go r.refreshOne(taskCtx, cancel, s)
	}
}

// Cancel cancels every scheduled refresh task.
func (r *Refresher) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.cancels {
		cancel()
	}
}

// Wait blocks until every scheduled refresh has finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

func (r *Refresher) refreshOne(ctx context.Context, cancel context.CancelFunc, s engine.Suggestion) {
	defer r.wg.Done()
	defer cancel()

	src, ok := r.lookup(s.Source)
	if !ok {
		r.apply(ctx, s.Source, s.ShortcutID, nil)
		return
	}

	refreshed, err := src.ValidateShortcut(s.ShortcutID)
	if err != nil {
		refreshed = nil
	}
	r.apply(ctx, s.Source, s.ShortcutID, refreshed)
}

func (r *Refresher) apply(ctx context.Context, source, shortcutID string, refreshed *engine.Suggestion) {
	if ctx.Err() != nil {
		return
	}
	_ = r.repo.RefreshShortcut(ctx, source, shortcutID, refreshed)
	if ctx.Err() != nil {
		return
	}
	r.receiver.OnShortcutRefreshed(source, shortcutID, refreshed)
}
