// Package shortcut persists clicked suggestions and per-source click
// statistics, and answers prefix-matched shortcut and source-ranking
// queries for the session engine.
package shortcut

// SchemaVersion is the schema version this code understands. Older stores
// are migrated forward; when Open runs with EnableRecovery, a store recorded
// at a newer version triggers destructive recovery: history is advisory,
// not authoritative, so a drop-and-recreate is an acceptable response to
// corruption or an unrecognized version.
const SchemaVersion = 1

// schemaV1 creates the four durable tables described by the repository
// contract: shortcuts, clicklog, sourcelog and sourcetotals.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS shortcuts (
  intent_key              TEXT PRIMARY KEY,
  source                  TEXT NOT NULL,
  format                  TEXT,
  title                   TEXT NOT NULL,
  description              TEXT,
  icon1                    TEXT,
  icon2                    TEXT,
  intent_action            TEXT,
  intent_data              TEXT,
  intent_query             TEXT NOT NULL,
  intent_extra_data        TEXT,
  intent_component_name    TEXT,
  shortcut_id              TEXT,
  spinner_while_refreshing INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS clicklog (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  intent_key  TEXT NOT NULL REFERENCES shortcuts(intent_key) ON DELETE CASCADE,
  query       TEXT NOT NULL,
  hit_time    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_clicklog_query ON clicklog(query);
CREATE INDEX IF NOT EXISTS idx_clicklog_hit_time ON clicklog(hit_time);
CREATE INDEX IF NOT EXISTS idx_clicklog_intent_key ON clicklog(intent_key);

CREATE TABLE IF NOT EXISTS sourcelog (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  component   TEXT NOT NULL,
  time        INTEGER NOT NULL,
  clicks      INTEGER NOT NULL,
  impressions INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sourcelog_time ON sourcelog(time);
CREATE INDEX IF NOT EXISTS idx_sourcelog_component ON sourcelog(component);

CREATE TABLE IF NOT EXISTS sourcetotals (
  component         TEXT PRIMARY KEY,
  total_clicks      INTEGER NOT NULL,
  total_impressions INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_migrations (
  version    INTEGER PRIMARY KEY,
  applied_ms INTEGER NOT NULL
);
`

// AllTables lists every table the schema must contain, used by ValidateSchema.
var AllTables = []string{
	"shortcuts",
	"clicklog",
	"sourcelog",
	"sourcetotals",
	"schema_migrations",
}

// AllIndexes lists every index the schema must contain, used by ValidateSchema.
var AllIndexes = []string{
	"idx_clicklog_query",
	"idx_clicklog_hit_time",
	"idx_clicklog_intent_key",
	"idx_sourcelog_time",
	"idx_sourcelog_component",
}
