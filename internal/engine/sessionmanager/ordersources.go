// Package sessionmanager implements the SessionManager (C7): it owns the
// shortcut repository and source registry for the daemon's lifetime and
// spins up one SessionEngine per connected client session.
package sessionmanager

import "github.com/runger/suggestengine/internal/engine"

// OrderSources produces the fixed ordering a SessionEngine queries sources
// in. The first entries become "promoted" (eligible for the above-the-fold
// mix); the rest are queried only once the "more" row scrolls into view.
//
// Order: the web source first (if enabled), then sources present in the
// click-through-rate ranking in rank order until numPromoted slots are
// filled, then every enabled source the ranking has no opinion about (in
// registry order), then whatever ranked sources didn't make the cut above.
//
// This resolves the ranking/promotion ambiguity deliberately: a variant
// that walks the ranking first and only backfills unranked sources once
// the ranked list is exhausted double-counts ranked sources that already
// filled a promoted slot as also eligible for the unranked backfill pass.
// Here, every source is placed exactly once.
func OrderSources(enabled []engine.Source, webSourceID string, ranking []string, numPromoted int) []engine.Source {
	byID := make(map[string]engine.Source, len(enabled))
	for _, s := range enabled {
		byID[s.ComponentID()] = s
	}

	rankedSet := make(map[string]struct{}, len(ranking))
	for _, id := range ranking {
		rankedSet[id] = struct{}{}
	}

	used := make(map[string]struct{}, len(enabled))
	result := make([]engine.Source, 0, len(enabled))

	if web, ok := byID[webSourceID]; ok {
		result = append(result, web)
		used[webSourceID] = struct{}{}
	}

	var rankedEnabled []engine.Source
	for _, id := range ranking {
		if _, alreadyUsed := used[id]; alreadyUsed {
			continue
		}
		if s, ok := byID[id]; ok {
			rankedEnabled = append(rankedEnabled, s)
		}
	}

	idx := 0
	for idx < len(rankedEnabled) && len(result) < numPromoted {
		s := rankedEnabled[idx]
		result = append(result, s)
		used[s.ComponentID()] = struct{}{}
		idx++
	}

	for _, s := range enabled {
		id := s.ComponentID()
		if _, ok := used[id]; ok {
			continue
		}
		if _, ranked := rankedSet[id]; ranked {
			continue
		}
		result = append(result, s)
		used[id] = struct{}{}
	}

	for ; idx < len(rankedEnabled); idx++ {
		s := rankedEnabled[idx]
		if _, ok := used[s.ComponentID()]; ok {
			continue
		}
		result = append(result, s)
		used[s.ComponentID()] = struct{}{}
	}

	return result
}
