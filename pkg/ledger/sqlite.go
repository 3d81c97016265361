package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/ledger.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStorage implements Storage on SQLite. Each entry is stored as a
// JSON payload next to the indexed columns used for filtering.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database and creates the schema.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "ledger.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	// A single writer keeps Seq assignment and the hash chain consistent.
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite ledger storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Append inserts an entry.
func (s *SQLiteStorage) Append(ctx context.Context, entry *Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return NewStorageError("sqlite", "marshal", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (
			seq, id, kind, timestamp, customer_id, decision_id, payload, prev_hash, hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Seq, entry.ID, string(entry.Kind), entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.CustomerID, entry.DecisionID, string(payload), entry.PrevHash, entry.Hash,
	)
	if err != nil {
		return NewStorageError("sqlite", "append", err)
	}
	return nil
}

// Last returns the entry with the highest Seq.
func (s *SQLiteStorage) Last(ctx context.Context) (*Entry, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM ledger_entries ORDER BY seq DESC LIMIT 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "last", err)
	}
	return decodeEntry(payload)
}

// Query returns matching entries.
func (s *SQLiteStorage) Query(ctx context.Context, q *Query) ([]*Entry, error) {
	if q == nil {
		q = &Query{}
	}

	var (
		where []string
		args  []any
	)
	if q.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, q.CustomerID)
	}
	if q.DecisionID != "" {
		where = append(where, "decision_id = ?")
		args = append(args, q.DecisionID)
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(q.Kind))
	}

	sqlQuery := "SELECT payload FROM ledger_entries"
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	if q.Ascending {
		sqlQuery += " ORDER BY seq ASC"
	} else {
		sqlQuery += " ORDER BY seq DESC"
	}
	if q.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	results := make([]*Entry, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		e, err := decodeEntry(payload)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "query", err)
	}
	return results, nil
}

// Count returns the number of stored entries.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ledger_entries").Scan(&n); err != nil {
		return 0, NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}

func decodeEntry(payload string) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return nil, NewStorageError("sqlite", "unmarshal", err)
	}
	return &e, nil
}
