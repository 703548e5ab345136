package shortcut

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetSchemaVersion_UnmigratedIsZero(t *testing.T) {
	db := openRawDB(t)
	version, err := GetSchemaVersion(context.Background(), db)
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 before any migration, got %d", version)
	}
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("first RunMigrations: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("second RunMigrations should be a no-op, got %v", err)
	}

	version, err := GetSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("GetSchemaVersion: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("expected version %d, got %d", SchemaVersion, version)
	}
}

func TestRunMigrations_RefusesNewerSchema(t *testing.T) {
	ctx := context.Background()
	db := openRawDB(t)

	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_ms) VALUES (?, ?)`, SchemaVersion+1, 0); err != nil {
		t.Fatalf("seed a future version row: %v", err)
	}

	err := RunMigrations(ctx, db)
	if !errors.Is(err, ErrSchemaVersionTooNew) {
		t.Errorf("expected ErrSchemaVersionTooNew, got %v", err)
	}
}

func TestValidateSchema_MissingTableErrors(t *testing.T) {
	db := openRawDB(t)
	if err := ValidateSchema(context.Background(), db); err == nil {
		t.Error("expected ValidateSchema to fail against an unmigrated database")
	}
}
