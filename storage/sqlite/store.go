// Package sqlite provides a SQLite implementation of the opqueue
// OperationStore. Both operation pools are persisted in a single transaction
// so a crash can never leave an operation duplicated across pools on reload.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	stdSync "sync"
	"time"

	opqueue "github.com/inventakit/go-opqueue"
	syncErrors "github.com/inventakit/go-opqueue/errors"
	"github.com/inventakit/go-opqueue/logging"

	// Go SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// Operation constants for consistent error reporting
const (
	opSave syncErrors.Operation = "sqlite.Save"
	opLoad syncErrors.Operation = "sqlite.Load"
)

const (
	poolPending = "pending"
	poolFailed  = "failed"
)

// ErrStoreClosed is returned by all methods after Close.
var ErrStoreClosed = errors.New("store is closed")

// Config holds configuration options for the Store.
//
// Production-ready defaults are applied by DefaultConfig() including WAL mode
// and a tuned connection pool.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	// Example: "file:opqueue.db?_journal_mode=WAL"
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// When true, automatically appends "?_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// TableName is the name of the table holding the operation pools.
	// Defaults to "operations" if empty.
	TableName string

	// Connection pool settings.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func (c *Config) setDefaults() {
	if c.TableName == "" {
		c.TableName = "operations"
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "?_journal_mode=") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// NewWithDataSource is a convenience constructor using DefaultConfig.
func NewWithDataSource(dataSourceName string) (*Store, error) {
	return New(DefaultConfig(dataSourceName))
}

// Store implements the opqueue.OperationStore interface for SQLite.
type Store struct {
	db        *sql.DB
	mu        stdSync.RWMutex
	closed    bool
	tableName string
}

// Compile-time check that Store satisfies the OperationStore interface
var _ opqueue.OperationStore = (*Store)(nil)

// New creates a new Store from a Config.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	config.setDefaults()

	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}

	logger := logging.WithComponent(logging.Component("sqlite-store"))
	logger.Info("opening SQLite database",
		slog.String("data_source", config.DataSourceName),
		slog.Bool("wal_enabled", config.EnableWAL),
	)

	db, err := sql.Open("sqlite3", config.DataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	store := &Store{
		db:        db,
		tableName: config.TableName,
	}

	if err := store.setupSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to setup database schema: %w", err)
	}

	return store, nil
}

func (s *Store) setupSchema() error {
	query := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %[1]s (
        pool            TEXT NOT NULL CHECK (pool IN ('pending', 'failed')),
        position        INTEGER NOT NULL,
        id              TEXT NOT NULL,
        kind            TEXT NOT NULL,
        entity_type     TEXT NOT NULL,
        entity_id       TEXT NOT NULL,
        payload         TEXT,
        created_at      TIMESTAMP NOT NULL,
        retry_count     INTEGER NOT NULL DEFAULT 0,
        last_retry_at   TIMESTAMP,
        last_error      TEXT,
        priority        INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY (pool, position)
    );
    CREATE INDEX IF NOT EXISTS idx_%[1]s_entity ON %[1]s (entity_type, entity_id);
    `, s.tableName)
	_, err := s.db.Exec(query)
	return err
}

// Save persists both pools in one transaction, replacing the previous
// snapshot entirely. Pool order is retained through the position column.
func (s *Store) Save(ctx context.Context, pending, failed []opqueue.Operation) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.tableName)); err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (pool, position, id, kind, entity_type, entity_id, payload, created_at, retry_count, last_retry_at, last_error, priority)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.tableName))
	if err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}
	defer stmt.Close()

	if err = insertPool(ctx, stmt, poolPending, pending); err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}
	if err = insertPool(ctx, stmt, poolFailed, failed); err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}

	if err = tx.Commit(); err != nil {
		return syncErrors.WrapOpComponent(err, opSave, "storage/sqlite")
	}
	return nil
}

func insertPool(ctx context.Context, stmt *sql.Stmt, pool string, ops []opqueue.Operation) error {
	for i, op := range ops {
		var payload interface{}
		if op.Payload != nil {
			payload = string(op.Payload)
		}

		var lastRetryAt interface{}
		if op.LastRetryAt != nil {
			lastRetryAt = *op.LastRetryAt
		}

		var lastError interface{}
		if op.LastError != "" {
			lastError = op.LastError
		}

		if _, err := stmt.ExecContext(ctx, pool, i,
			op.ID, string(op.Kind), string(op.EntityType), op.EntityID,
			payload, op.CreatedAt, op.RetryCount, lastRetryAt, lastError,
			op.Priority,
		); err != nil {
			return fmt.Errorf("failed to insert %s operation %s: %w", pool, op.ID, err)
		}
	}
	return nil
}

// Load retrieves both pools as they were last saved.
func (s *Store) Load(ctx context.Context) (pending, failed []opqueue.Operation, err error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, nil, ErrStoreClosed
	}
	s.mu.RUnlock()

	pending, err = s.loadPool(ctx, poolPending)
	if err != nil {
		return nil, nil, err
	}

	failed, err = s.loadPool(ctx, poolFailed)
	if err != nil {
		return nil, nil, err
	}

	return pending, failed, nil
}

func (s *Store) loadPool(ctx context.Context, pool string) ([]opqueue.Operation, error) {
	query := fmt.Sprintf(
		`SELECT id, kind, entity_type, entity_id, payload, created_at, retry_count, last_retry_at, last_error, priority
		 FROM %s WHERE pool = ? ORDER BY position ASC`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, pool)
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opLoad, "storage/sqlite")
	}
	defer rows.Close()

	var ops []opqueue.Operation
	for rows.Next() {
		var (
			op          opqueue.Operation
			kind        string
			entityType  string
			payload     sql.NullString
			lastRetryAt sql.NullTime
			lastError   sql.NullString
		)

		if err := rows.Scan(&op.ID, &kind, &entityType, &op.EntityID,
			&payload, &op.CreatedAt, &op.RetryCount, &lastRetryAt,
			&lastError, &op.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}

		op.Kind = opqueue.Kind(kind)
		op.EntityType = opqueue.EntityType(entityType)
		if payload.Valid {
			op.Payload = json.RawMessage(payload.String)
		}
		if lastRetryAt.Valid {
			t := lastRetryAt.Time
			op.LastRetryAt = &t
		}
		if lastError.Valid {
			op.LastError = lastError.String
		}

		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return ops, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// Stats returns database statistics for monitoring.
func (s *Store) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sql.DBStats{}
	}

	return s.db.Stats()
}
