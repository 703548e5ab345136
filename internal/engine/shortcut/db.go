package shortcut

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	applog "github.com/runger/suggestengine/internal/obslog"
)

// ErrDatabaseClosed is returned when an operation is attempted on a closed store.
var ErrDatabaseClosed = errors.New("shortcut store is closed")

// walCheckpointInterval is how often the WAL file is checkpointed to
// prevent unbounded growth during a long-running daemon session.
const walCheckpointInterval = 5 * time.Minute

// DB wraps the SQLite connection backing the ShortcutRepository: lifecycle,
// migrations, advisory single-instance locking, and periodic WAL checkpointing.
type DB struct {
	db        *sql.DB
	lock      *LockFile
	logger    *slog.Logger
	stopCh    chan struct{}
	stoppedCh chan struct{}
	stmts     map[string]*sql.Stmt
	dbPath    string
	stmtMu    sync.RWMutex
	closeOnce sync.Once
	closeErr  error
}

// Options configures Open.
type Options struct {
	Logger            *slog.Logger
	Path              string
	LockTimeout       time.Duration
	SkipLock          bool
	ReadOnly          bool
	EnableRecovery    bool
	RunIntegrityCheck bool
}

// DefaultDBPath returns the default shortcut store path (~/.suggestengine/shortcuts.db).
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".suggestengine", "shortcuts.db"), nil
}

// Open opens the store, acquires the daemon lock (unless SkipLock or
// ReadOnly), runs migrations, and starts the WAL checkpoint loop. The
// caller must call Close when done.
//
// When EnableRecovery is true, corruption detected during open or the
// integrity check, or a stored schema version newer than SchemaVersion,
// triggers automatic recovery: corrupt files are rotated
// to .corrupt.<timestamp> and a fresh store is initialized.
func Open(ctx context.Context, opts Options) (*DB, error) {
	dbPath, err := resolveDBPath(opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	lock, err := acquireOpenLock(filepath.Dir(dbPath), opts)
	if err != nil {
		return nil, err
	}
	sqlDB, err := openDatabaseWithRecovery(ctx, dbPath, opts, lock)
	if err != nil {
		return nil, err
	}
	sqlDB, err = runIntegrityRecoveryIfNeeded(ctx, dbPath, sqlDB, opts, lock)
	if err != nil {
		return nil, err
	}
	return buildDB(sqlDB, lock, dbPath, opts), nil
}

func resolveDBPath(opts Options) (string, error) {
	if opts.Path != "" {
		return opts.Path, nil
	}
	return DefaultDBPath()
}

func acquireOpenLock(dbDir string, opts Options) (*LockFile, error) {
	if opts.SkipLock || opts.ReadOnly {
		return nil, nil
	}
	lockOpts := DefaultLockOptions()
	if opts.LockTimeout > 0 {
		lockOpts.Timeout = opts.LockTimeout
	}
	lock, err := AcquireLock(dbDir, lockOpts)
	if err != nil {
		return nil, fmt.Errorf("acquire daemon lock: %w", err)
	}
	return lock, nil
}

func openDatabaseWithRecovery(ctx context.Context, dbPath string, opts Options, lock *LockFile) (*sql.DB, error) {
	sqlDB, err := openAndInit(ctx, dbPath, opts)
	if err == nil {
		return sqlDB, nil
	}
	if !canRecoverFromOpenError(opts, err) {
		releaseLock(lock)
		return nil, err
	}
	recovered, recErr := recoverAndReopen(ctx, dbPath, sqlDB, err.Error(), resolveRecoveryLogger(opts.Logger))
	if recErr != nil {
		releaseLock(lock)
		return nil, fmt.Errorf("recovery failed: %w", recErr)
	}
	return recovered, nil
}

func canRecoverFromOpenError(opts Options, err error) bool {
	return opts.EnableRecovery && !opts.ReadOnly &&
		(isCorruptionError(err) || errors.Is(err, ErrSchemaVersionTooNew)) &&
		!isPermissionError(err) && !isDiskFullError(err)
}

func runIntegrityRecoveryIfNeeded(ctx context.Context, dbPath string, sqlDB *sql.DB, opts Options, lock *LockFile) (*sql.DB, error) {
	if !opts.EnableRecovery || !opts.RunIntegrityCheck || opts.ReadOnly {
		return sqlDB, nil
	}
	logger := resolveRecoveryLogger(opts.Logger)
	if intErr := RunIntegrityCheck(ctx, sqlDB); intErr == nil {
		applog.LogIntegrityCheckPassed(logger, dbPath)
		return sqlDB, nil
	} else {
		applog.LogIntegrityCheckFailed(logger, dbPath, intErr)
		recovered, err := recoverAndReopen(ctx, dbPath, sqlDB, intErr.Error(), logger)
		if err != nil {
			releaseLock(lock)
			return nil, fmt.Errorf("integrity check recovery failed: %w", err)
		}
		return recovered, nil
	}
}

func resolveRecoveryLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func releaseLock(lock *LockFile) {
	if lock != nil {
		lock.Release()
	}
}

func buildDB(sqlDB *sql.DB, lock *LockFile, dbPath string, opts Options) *DB {
	d := &DB{
		db:        sqlDB,
		lock:      lock,
		logger:    resolveRecoveryLogger(opts.Logger),
		dbPath:    dbPath,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		stmts:     make(map[string]*sql.Stmt),
	}
	if !opts.ReadOnly {
		go d.walCheckpointLoop()
	} else {
		close(d.stoppedCh)
	}
	return d
}

func openAndInit(ctx context.Context, dbPath string, opts Options) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	if opts.ReadOnly {
		dsn += "&mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles concurrency better with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if !opts.ReadOnly {
		if err := RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return db, nil
}

// Close closes the store and releases the daemon lock. Safe to call more than once.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		if d.stopCh != nil {
			close(d.stopCh)
			<-d.stoppedCh
		}

		d.stmtMu.Lock()
		for _, stmt := range d.stmts {
			stmt.Close()
		}
		d.stmts = nil
		d.stmtMu.Unlock()

		if d.db != nil {
			_, _ = d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			d.closeErr = d.db.Close()
		}

		if d.lock != nil {
			if err := d.lock.Release(); err != nil && d.closeErr == nil {
				d.closeErr = err
			}
		}
	})
	return d.closeErr
}

// DB returns the underlying sql.DB for callers that need raw access.
func (d *DB) DB() *sql.DB { return d.db }

// Path returns the path to the database file.
func (d *DB) Path() string { return d.dbPath }

func (d *DB) walCheckpointLoop() {
	defer close(d.stoppedCh)

	ticker := time.NewTicker(walCheckpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			if _, err := d.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				applog.LogSQLiteError(d.logger, "wal_checkpoint", err)
			}
		}
	}
}

// PrepareStatement returns a prepared statement, caching it by name for reuse.
func (d *DB) PrepareStatement(ctx context.Context, name, query string) (*sql.Stmt, error) {
	d.stmtMu.RLock()
	if d.stmts == nil {
		d.stmtMu.RUnlock()
		return nil, ErrDatabaseClosed
	}
	if stmt, ok := d.stmts[name]; ok {
		d.stmtMu.RUnlock()
		return stmt, nil
	}
	d.stmtMu.RUnlock()

	d.stmtMu.Lock()
	defer d.stmtMu.Unlock()

	if d.stmts == nil {
		return nil, ErrDatabaseClosed
	}
	if stmt, ok := d.stmts[name]; ok {
		return stmt, nil
	}

	stmt, err := d.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement %q: %w", name, err)
	}
	d.stmts[name] = stmt
	return stmt, nil
}

// ExecContext executes a query that doesn't return rows.
func (d *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (d *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query that returns at most one row.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return d.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return d.db.BeginTx(ctx, opts)
}

// Validate checks that the schema is correctly initialized.
func (d *DB) Validate(ctx context.Context) error {
	return ValidateSchema(ctx, d.db)
}

// Version returns the current schema version.
func (d *DB) Version(ctx context.Context) (int, error) {
	return GetSchemaVersion(ctx, d.db)
}
