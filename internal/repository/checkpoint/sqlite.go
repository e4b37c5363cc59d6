package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
	"github.com/kailas-cloud/bureaucratese/internal/domain/batch"
)

//go:embed schema.sql
var schema string

// SQLiteStore keeps the checkpoint in two tables, replaced inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the checkpoint database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode=WAL&_pragma=synchronous=NORMAL&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	// single writer
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping checkpoint db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply checkpoint schema: %w", err)
	}

	return &SQLiteStore{db: sqlDB}, nil
}

// Load reads the checkpoint header and its scores ordered by record index.
func (s *SQLiteStore) Load(ctx context.Context) (batch.Checkpoint, error) {
	var (
		cp        batch.Checkpoint
		updatedAt string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT version, run_id, fingerprint, processed_count, updated_at FROM checkpoint WHERE id = 1`)
	if err := row.Scan(&cp.Version, &cp.RunID, &cp.Fingerprint, &cp.ProcessedCount, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return batch.Checkpoint{}, domain.ErrNotFound
		}
		return batch.Checkpoint{}, fmt.Errorf("load checkpoint header: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return batch.Checkpoint{}, fmt.Errorf("parse checkpoint timestamp: %w", err)
	}
	cp.UpdatedAt = ts

	rows, err := s.db.QueryContext(ctx, `SELECT basic_density, weighted_density, semantic_density,
		official_words, status FROM checkpoint_scores ORDER BY idx`)
	if err != nil {
		return batch.Checkpoint{}, fmt.Errorf("load checkpoint scores: %w", err)
	}
	defer rows.Close()

	cp.Scores = make([]batch.Scores, 0, cp.ProcessedCount)
	for rows.Next() {
		var (
			sc     batch.Scores
			words  string
			status string
		)
		if err := rows.Scan(&sc.Basic, &sc.Weighted, &sc.Semantic, &words, &status); err != nil {
			return batch.Checkpoint{}, fmt.Errorf("scan checkpoint score: %w", err)
		}
		if err := json.Unmarshal([]byte(words), &sc.OfficialWords); err != nil {
			return batch.Checkpoint{}, fmt.Errorf("decode official words: %w", err)
		}
		sc.Status = batch.RecordStatus(status)
		cp.Scores = append(cp.Scores, sc)
	}
	if err := rows.Err(); err != nil {
		return batch.Checkpoint{}, fmt.Errorf("iterate checkpoint scores: %w", err)
	}
	return cp, nil
}

// Save replaces header and scores in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, cp batch.Checkpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_scores`); err != nil {
		return fmt.Errorf("clear checkpoint scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO checkpoint
		(id, version, run_id, fingerprint, processed_count, updated_at) VALUES (1, ?, ?, ?, ?, ?)`,
		cp.Version, cp.RunID, cp.Fingerprint, cp.ProcessedCount, cp.UpdatedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("write checkpoint header: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO checkpoint_scores
		(idx, basic_density, weighted_density, semantic_density, official_words, status) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare checkpoint scores: %w", err)
	}
	defer stmt.Close()

	for i, sc := range cp.Scores {
		words := sc.OfficialWords
		if words == nil {
			words = []string{}
		}
		encoded, err := json.Marshal(words)
		if err != nil {
			return fmt.Errorf("encode official words: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, i, sc.Basic, sc.Weighted, sc.Semantic, string(encoded), string(sc.Status)); err != nil {
			return fmt.Errorf("write checkpoint score %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint.
func (s *SQLiteStore) Delete(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_scores`); err != nil {
		return fmt.Errorf("clear checkpoint scores: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint`); err != nil {
		return fmt.Errorf("clear checkpoint header: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint delete: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
