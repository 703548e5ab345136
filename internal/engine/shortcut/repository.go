package shortcut

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/runger/suggestengine/internal/engine"
)

// MaxStatAgeMs is how long a clicklog row is retained before it stops
// contributing to shortcut ranking. Any clicklog insert purges rows older
// than this, relative to the new row's hit time.
const MaxStatAgeMs int64 = 7 * 24 * 3600 * 1000

// MaxSourceEventAgeMs is how long a sourcelog row is retained before
// reportStats purges it.
const MaxSourceEventAgeMs int64 = 30 * 24 * 3600 * 1000

// Default CTR priors, cushioning source-ranking scores for sources with few
// impressions so one lucky early click doesn't dominate the ranking.
const (
	DefaultPriorClicks      = 3
	DefaultPriorImpressions = 30
)

// Repository is the ShortcutRepository (C1): it persists clicks and answers
// prefix-matched shortcut lookups and CTR-based source ranking.
type Repository struct {
	store *DB
}

// NewRepository wraps an opened DB as a Repository.
func NewRepository(store *DB) *Repository {
	return &Repository{store: store}
}

// nextString returns the least string y such that s is not a prefix of y,
// by incrementing s's last Unicode code point. Go strings already decode to
// code points via []rune, so no BMP/supplementary-plane distinction is
// needed the way UTF-16 requires it.
func nextString(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return s
	}
	last := runes[len(runes)-1]
	return string(runes[:len(runes)-1]) + string(last+1)
}

// HasHistory reports whether any shortcut has ever been recorded.
func (r *Repository) HasHistory(ctx context.Context) (bool, error) {
	var exists int
	err := r.store.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM shortcuts LIMIT 1)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check history: %w", err)
	}
	return exists == 1, nil
}

// ClearHistory empties all four tables.
func (r *Repository) ClearHistory(ctx context.Context) error {
	tx, err := r.store.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"clicklog", "shortcuts", "sourcelog", "sourcetotals"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// ReportStats records the outcome of a closed session: an optional click
// (upserted as a shortcut plus a clicklog row) and one sourcelog row per
// source the session impressed.
func (r *Repository) ReportStats(ctx context.Context, stats engine.SessionStats, now int64) error {
	tx, err := r.store.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if stats.Clicked != nil && stats.Clicked.IsShortcuttable() {
		if err := upsertShortcut(ctx, tx, *stats.Clicked); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO clicklog (intent_key, query, hit_time) VALUES (?, ?, ?)`,
			stats.Clicked.IntentKey(), stats.Query, now,
		); err != nil {
			return fmt.Errorf("insert clicklog row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM clicklog WHERE hit_time < ?`, now-MaxStatAgeMs); err != nil {
			return fmt.Errorf("purge aged clicklog rows: %w", err)
		}
	}

	for source := range stats.SourceImpressions {
		clicks := 0
		if stats.Clicked != nil && stats.Clicked.Source == source {
			clicks = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sourcelog (component, time, clicks, impressions) VALUES (?, ?, ?, 1)`,
			source, now, clicks,
		); err != nil {
			return fmt.Errorf("insert sourcelog row: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sourcelog WHERE time < ?`, now-MaxSourceEventAgeMs); err != nil {
		return fmt.Errorf("purge aged sourcelog rows: %w", err)
	}

	if err := recomputeSourceTotals(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

func upsertShortcut(ctx context.Context, tx *sql.Tx, s engine.Suggestion) error {
	icon2 := s.Icon2
	if s.SpinnerWhileRefresh {
		icon2 = engine.SpinnerIcon
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO shortcuts (
			intent_key, source, format, title, description, icon1, icon2,
			intent_action, intent_data, intent_query, intent_extra_data,
			intent_component_name, shortcut_id, spinner_while_refreshing
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(intent_key) DO UPDATE SET
			format = excluded.format,
			title = excluded.title,
			description = excluded.description,
			icon1 = excluded.icon1,
			icon2 = excluded.icon2,
			intent_query = excluded.intent_query,
			shortcut_id = excluded.shortcut_id,
			spinner_while_refreshing = excluded.spinner_while_refreshing
	`,
		s.IntentKey(), s.Source, s.Format, s.Title, s.Description, s.Icon1, icon2,
		s.IntentAction, s.IntentData, s.Query, s.IntentExtraData,
		s.IntentComponentName, s.ShortcutID, boolToInt(s.SpinnerWhileRefresh),
	)
	if err != nil {
		return fmt.Errorf("upsert shortcut: %w", err)
	}
	return nil
}

func recomputeSourceTotals(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sourcetotals`); err != nil {
		return fmt.Errorf("clear sourcetotals: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sourcetotals (component, total_clicks, total_impressions)
		SELECT component, SUM(clicks), SUM(impressions) FROM sourcelog GROUP BY component
	`)
	if err != nil {
		return fmt.Errorf("recompute sourcetotals: %w", err)
	}
	return nil
}

type clickAgg struct {
	intentKey string
	hits      int64
	lastHit   int64
}

// GetShortcutsForQuery returns shortcuts clicked under a query with the given
// prefix, ordered by recency-weighted frequency. An empty query matches
// every non-expired shortcut.
func (r *Repository) GetShortcutsForQuery(ctx context.Context, query string, now int64) ([]engine.Suggestion, error) {
	cutoff := now - MaxStatAgeMs

	var rows *sql.Rows
	var err error
	if query == "" {
		rows, err = r.store.QueryContext(ctx,
			`SELECT intent_key, hit_time FROM clicklog WHERE hit_time >= ?`, cutoff)
	} else {
		rows, err = r.store.QueryContext(ctx,
			`SELECT intent_key, hit_time FROM clicklog WHERE hit_time >= ? AND query >= ? AND query < ?`,
			cutoff, query, nextString(query))
	}
	if err != nil {
		return nil, fmt.Errorf("query clicklog: %w", err)
	}
	defer rows.Close()

	aggByKey := make(map[string]*clickAgg)
	var order []string
	for rows.Next() {
		var intentKey string
		var hitTime int64
		if err := rows.Scan(&intentKey, &hitTime); err != nil {
			return nil, fmt.Errorf("scan clicklog row: %w", err)
		}
		agg, ok := aggByKey[intentKey]
		if !ok {
			agg = &clickAgg{intentKey: intentKey}
			aggByKey[intentKey] = agg
			order = append(order, intentKey)
		}
		agg.hits++
		if hitTime > agg.lastHit {
			agg.lastHit = hitTime
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clicklog rows: %w", err)
	}
	if len(order) == 0 {
		return nil, nil
	}

	scored := make([]clickAgg, 0, len(order))
	for _, key := range order {
		scored = append(scored, *aggByKey[key])
	}
	ratioDenominator := float64(MaxStatAgeMs) / 1000
	sort.SliceStable(scored, func(i, j int) bool {
		return score(scored[i], cutoff, ratioDenominator) > score(scored[j], cutoff, ratioDenominator)
	})

	suggestions := make([]engine.Suggestion, 0, len(scored))
	for _, agg := range scored {
		s, err := loadShortcutByIntentKey(ctx, r.store, agg.intentKey)
		if err != nil {
			return nil, err
		}
		if s != nil {
			suggestions = append(suggestions, *s)
		}
	}
	return suggestions, nil
}

func score(agg clickAgg, cutoff int64, ratioDenominator float64) float64 {
	return float64(agg.hits) * (float64(agg.lastHit-cutoff) / ratioDenominator)
}

func loadShortcutByIntentKey(ctx context.Context, store *DB, intentKey string) (*engine.Suggestion, error) {
	row := store.QueryRowContext(ctx, `
		SELECT source, format, title, description, icon1, icon2, intent_action,
		       intent_data, intent_query, intent_extra_data, intent_component_name,
		       shortcut_id, spinner_while_refreshing
		FROM shortcuts WHERE intent_key = ?
	`, intentKey)

	var s engine.Suggestion
	var spinner int
	err := row.Scan(&s.Source, &s.Format, &s.Title, &s.Description, &s.Icon1, &s.Icon2,
		&s.IntentAction, &s.IntentData, &s.Query, &s.IntentExtraData, &s.IntentComponentName,
		&s.ShortcutID, &spinner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load shortcut %q: %w", intentKey, err)
	}
	s.SpinnerWhileRefresh = spinner != 0
	return &s, nil
}

// GetSourceRanking orders sources by click-through rate, cushioned by
// priorClicks/priorImpressions so sources with few impressions aren't
// over- or under-ranked by noise.
func (r *Repository) GetSourceRanking(ctx context.Context, priorClicks, priorImpressions int64) ([]string, error) {
	rows, err := r.store.QueryContext(ctx, `SELECT component, total_clicks, total_impressions FROM sourcetotals`)
	if err != nil {
		return nil, fmt.Errorf("query sourcetotals: %w", err)
	}
	defer rows.Close()

	type ranked struct {
		component string
		score     float64
	}
	var all []ranked
	for rows.Next() {
		var component string
		var clicks, impressions int64
		if err := rows.Scan(&component, &clicks, &impressions); err != nil {
			return nil, fmt.Errorf("scan sourcetotals row: %w", err)
		}
		s := 1000 * float64(clicks+priorClicks) / float64(impressions+priorImpressions)
		all = append(all, ranked{component: component, score: s})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sourcetotals rows: %w", err)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	out := make([]string, len(all))
	for i, r := range all {
		out[i] = r.component
	}
	return out, nil
}

// RefreshShortcut updates a shortcut's mutable display fields in place
// (keeping its intent key stable), or deletes it when refreshed is nil.
func (r *Repository) RefreshShortcut(ctx context.Context, source, shortcutID string, refreshed *engine.Suggestion) error {
	if refreshed == nil {
		_, err := r.store.ExecContext(ctx,
			`DELETE FROM shortcuts WHERE shortcut_id = ? AND source = ?`, shortcutID, source)
		if err != nil {
			return fmt.Errorf("delete stale shortcut: %w", err)
		}
		return nil
	}

	icon2 := refreshed.Icon2
	if refreshed.SpinnerWhileRefresh {
		icon2 = engine.SpinnerIcon
	}

	_, err := r.store.ExecContext(ctx, `
		UPDATE shortcuts SET format = ?, title = ?, description = ?, icon1 = ?, icon2 = ?
		WHERE shortcut_id = ? AND source = ?
	`, refreshed.Format, refreshed.Title, refreshed.Description, refreshed.Icon1, icon2, shortcutID, source)
	if err != nil {
		return fmt.Errorf("update refreshed shortcut: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
