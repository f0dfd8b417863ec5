// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	log "github.com/sirupsen/logrus"
)

// Store is an optional durable archive of feedback records backed by
// SQLite. The in-memory tracker is authoritative for adjustment math;
// the store exists for retention and offline analysis.
type Store struct {
	db            *sql.DB
	dbPath        string
	retentionDays int
	enabled       bool
	mu            sync.RWMutex
}

// NewStore creates a store for the given database path. Initialize must
// be called before use.
func NewStore(dbPath string, retentionDays int) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("feedback: database path cannot be empty")
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &Store{
		dbPath:        dbPath,
		retentionDays: retentionDays,
	}, nil
}

// Initialize opens the database and creates the schema.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		model_id TEXT NOT NULL,
		factor TEXT NOT NULL,
		predicted REAL NOT NULL,
		actual REAL NOT NULL,
		variance REAL NOT NULL,
		accuracy REAL NOT NULL,
		timestamp DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_decision ON feedback(decision_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_candidate ON feedback(provider, model_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_factor ON feedback(factor);
	CREATE INDEX IF NOT EXISTS idx_feedback_timestamp ON feedback(timestamp);
	`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.db = db
	s.enabled = true
	log.Infof("Feedback archive initialized (db: %s, retention: %d days)", s.dbPath, s.retentionDays)

	go s.cleanupOldRecords(context.Background())
	return nil
}

// IsEnabled reports whether the store is ready for writes.
func (s *Store) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Record archives a single feedback record.
func (s *Store) Record(ctx context.Context, record *Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled {
		return ErrStoreDisabled
	}
	if record == nil {
		return fmt.Errorf("feedback: record cannot be nil")
	}

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
	INSERT INTO feedback (decision_id, provider, model_id, factor, predicted, actual, variance, accuracy, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		record.DecisionID,
		record.Provider,
		record.ModelID,
		string(record.Factor),
		record.Predicted,
		record.Actual,
		record.Variance,
		record.Accuracy,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback record: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// GetRecent retrieves the most recent archived records.
func (s *Store) GetRecent(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled {
		return nil, ErrStoreDisabled
	}
	if limit <= 0 {
		limit = 100
	}

	query := `
	SELECT id, decision_id, provider, model_id, factor, predicted, actual, variance, accuracy, timestamp
	FROM feedback
	ORDER BY timestamp DESC
	LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var r Record
		var factor string
		if err := rows.Scan(&r.ID, &r.DecisionID, &r.Provider, &r.ModelID, &factor,
			&r.Predicted, &r.Actual, &r.Variance, &r.Accuracy, &r.Timestamp); err != nil {
			log.Warnf("Failed to scan feedback record: %v", err)
			continue
		}
		r.Factor = OutcomeFactor(factor)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback records: %w", err)
	}
	return records, nil
}

// GetStats returns aggregate counters from the archive.
func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled {
		return nil, ErrStoreDisabled
	}

	stats := make(map[string]interface{})

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}
	stats["total_records"] = total

	var avgAccuracy sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, "SELECT AVG(accuracy) FROM feedback").Scan(&avgAccuracy); err != nil {
		return nil, fmt.Errorf("failed to get average accuracy: %w", err)
	}
	stats["avg_accuracy"] = avgAccuracy.Float64

	factorQuery := `SELECT factor, COUNT(*) FROM feedback GROUP BY factor`
	rows, err := s.db.QueryContext(ctx, factorQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to get factor distribution: %w", err)
	}
	defer rows.Close()

	dist := make(map[string]int64)
	for rows.Next() {
		var factor string
		var count int64
		if err := rows.Scan(&factor, &count); err != nil {
			continue
		}
		dist[factor] = count
	}
	stats["factor_distribution"] = dist

	return stats, nil
}

// cleanupOldRecords removes records past the retention period.
// Must be called without holding the store lock.
func (s *Store) cleanupOldRecords(ctx context.Context) {
	if !s.IsEnabled() {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE created_at < ?", cutoff)
	if err != nil {
		log.Warnf("Failed to clean up old feedback records: %v", err)
		return
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		log.Infof("Cleaned up %d feedback records older than %d days", n, s.retentionDays)
	}
}

// Shutdown runs a final cleanup and closes the database.
func (s *Store) Shutdown(ctx context.Context) error {
	if s.IsEnabled() {
		s.cleanupOldRecords(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled {
		return nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	s.enabled = false
	log.Info("Feedback archive shut down")
	return nil
}

// openWithDB is a test hook that wires an externally constructed
// database handle (e.g. sqlmock) into the store.
func (s *Store) openWithDB(db *sql.DB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db = db
	s.enabled = true
}
