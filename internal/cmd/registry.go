package cmd

import (
	"github.com/runger/suggestengine/internal/engine"
	"github.com/runger/suggestengine/internal/enginecfg"
	"github.com/runger/suggestengine/internal/sources/static"
)

// configRegistry is the SearchSettings-equivalent wiring: it resolves the
// component ids an EnabledSources document names to concrete engine.Source
// instances. The only concrete Source this repo ships is the in-memory
// static.Source reference implementation, so every configured entry becomes
// one, seeded with an empty corpus; a real deployment would register
// process- or network-backed sources here instead.
type configRegistry struct {
	sources []engine.Source
	web     string
}

// buildRegistry wires an enginecfg.EnabledSources document into a
// sessionmanager.SourceRegistry.
func buildRegistry(cfg enginecfg.EnabledSources) *configRegistry {
	sources := make([]engine.Source, 0, len(cfg.Sources))
	for _, def := range cfg.Sources {
		sources = append(sources, static.New(def.ComponentID, def.Label, def.Icon, 0, false, nil))
	}
	return &configRegistry{sources: sources, web: cfg.WebSource}
}

func (r *configRegistry) EnabledSources() []engine.Source { return r.sources }
func (r *configRegistry) WebSource() string               { return r.web }
