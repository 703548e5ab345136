package backer

// SourceStat summarizes one source for the "more" section's corpus entries:
// its label/icon for display and how many of its results are not shown in
// the mixed region above the fold.
type SourceStat struct {
	Component             string
	Promoted              bool
	Label                 string
	Icon                  string
	Responded             bool
	NumUndisplayedResults int
	QueryLimit            int
}

// computeSourceStats builds one SourceStat per configured source. Must be
// called with b.mu held.
func (b *Backer) computeSourceStats() []SourceStat {
	promoted := make(map[string]struct{}, len(b.cfg.PromotedSources))
	for _, id := range b.cfg.PromotedSources {
		promoted[id] = struct{}{}
	}

	stats := make([]SourceStat, 0, len(b.cfg.Sources))
	for _, src := range b.cfg.Sources {
		_, isPromoted := promoted[src.ComponentID]
		resp, responded := b.reportedResults[src.ComponentID]
		if !responded {
			stats = append(stats, SourceStat{
				Component: src.ComponentID,
				Promoted:  isPromoted,
				Label:     src.Label,
				Icon:      src.Icon,
				Responded: false,
			})
			continue
		}

		_, beforeDeadline := b.reportedBeforeDeadline[src.ComponentID]
		displayed := b.displayedCount[src.ComponentID]

		if isPromoted && beforeDeadline {
			if displayed >= len(resp.Suggestions) {
				// Every result this source returned is already shown above
				// the fold; it contributes nothing to the "more" section.
				continue
			}
			undisplayed := resp.Count - displayed
			stats = append(stats, SourceStat{
				Component:             src.ComponentID,
				Promoted:              true,
				Label:                 src.Label,
				Icon:                  src.Icon,
				Responded:             true,
				NumUndisplayedResults: undisplayed,
				QueryLimit:            resp.QueryLimit,
			})
			continue
		}

		stats = append(stats, SourceStat{
			Component:             src.ComponentID,
			Promoted:              isPromoted,
			Label:                 src.Label,
			Icon:                  src.Icon,
			Responded:             true,
			NumUndisplayedResults: resp.Count,
			QueryLimit:            resp.QueryLimit,
		})
	}
	return stats
}
