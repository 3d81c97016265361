package experiment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const experimentSchema = `
CREATE TABLE IF NOT EXISTS experiments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	confidence_level REAL NOT NULL,
	winner_id TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS experiment_variants (
	experiment_id TEXT NOT NULL REFERENCES experiments(id),
	position INTEGER NOT NULL,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	traffic_share REAL NOT NULL,
	impressions INTEGER NOT NULL,
	conversions INTEGER NOT NULL,
	revenue REAL NOT NULL,
	creative TEXT,
	PRIMARY KEY (experiment_id, id)
);

CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status);
`

// SQLiteStore persists experiments in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string, busyTimeout time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if busyTimeout == 0 {
		busyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(experimentSchema); err != nil {
		db.Close()
		return nil, newStorageError("sqlite", "init_schema", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store. The experiment row and all variant rows are
// written in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, exp *Experiment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return newStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO experiments (id, name, status, confidence_level, winner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			confidence_level = excluded.confidence_level,
			winner_id = excluded.winner_id,
			updated_at = excluded.updated_at`,
		exp.ID, exp.Name, string(exp.Status), exp.ConfidenceLevel, nullString(exp.WinnerID),
		exp.CreatedAt.UnixNano(), exp.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return newStorageError("sqlite", "save_experiment", err)
	}

	for i, v := range exp.Variants {
		var creative sql.NullString
		if v.Creative != nil {
			data, err := json.Marshal(v.Creative)
			if err != nil {
				return newStorageError("sqlite", "marshal_creative", err)
			}
			creative = sql.NullString{String: string(data), Valid: true}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO experiment_variants
				(experiment_id, position, id, name, traffic_share, impressions, conversions, revenue, creative)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (experiment_id, id) DO UPDATE SET
				position = excluded.position,
				name = excluded.name,
				traffic_share = excluded.traffic_share,
				impressions = excluded.impressions,
				conversions = excluded.conversions,
				revenue = excluded.revenue,
				creative = excluded.creative`,
			exp.ID, i, v.ID, v.Name, v.TrafficShare, v.Impressions, v.Conversions, v.Revenue, creative,
		)
		if err != nil {
			return newStorageError("sqlite", "save_variant", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return newStorageError("sqlite", "commit", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*Experiment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, confidence_level, winner_id, created_at, updated_at
		FROM experiments WHERE id = ?`, id)

	exp, err := scanExperiment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, newStorageError("sqlite", "load", err)
	}

	if err := s.loadVariants(ctx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context) ([]*Experiment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, confidence_level, winner_id, created_at, updated_at
		FROM experiments ORDER BY created_at, id`)
	if err != nil {
		return nil, newStorageError("sqlite", "list", err)
	}

	var out []*Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			rows.Close()
			return nil, newStorageError("sqlite", "scan", err)
		}
		out = append(out, exp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "list", err)
	}

	for _, exp := range out {
		if err := s.loadVariants(ctx, exp); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStore) loadVariants(ctx context.Context, exp *Experiment) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, traffic_share, impressions, conversions, revenue, creative
		FROM experiment_variants WHERE experiment_id = ? ORDER BY position`, exp.ID)
	if err != nil {
		return newStorageError("sqlite", "load_variants", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v Variant
		var creative sql.NullString
		if err := rows.Scan(&v.ID, &v.Name, &v.TrafficShare, &v.Impressions, &v.Conversions, &v.Revenue, &creative); err != nil {
			return newStorageError("sqlite", "scan_variant", err)
		}
		if creative.Valid {
			v.Creative = &Creative{}
			if err := json.Unmarshal([]byte(creative.String), v.Creative); err != nil {
				return newStorageError("sqlite", "unmarshal_creative", err)
			}
		}
		exp.Variants = append(exp.Variants, v)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*Experiment, error) {
	var exp Experiment
	var status string
	var winner sql.NullString
	var created, updated int64

	if err := row.Scan(&exp.ID, &exp.Name, &status, &exp.ConfidenceLevel, &winner, &created, &updated); err != nil {
		return nil, err
	}
	exp.Status = Status(status)
	exp.WinnerID = winner.String
	exp.CreatedAt = time.Unix(0, created).UTC()
	exp.UpdatedAt = time.Unix(0, updated).UTC()
	return &exp, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
