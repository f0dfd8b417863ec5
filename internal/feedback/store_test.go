// Copyright 2026 The cortex Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := &Store{}
	s.openWithDB(db)
	return s, mock
}

func TestStoreRecordInserts(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO feedback").
		WithArgs("d1", "ollama", "llama3", "cost", 0.01, 0.012, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(7, 1))

	r := newRecord("d1", "ollama", "llama3", OutcomeCost, 0.01, 0.012, time.Now())
	require.NoError(t, s.Record(context.Background(), r))
	assert.Equal(t, int64(7), r.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreRecordDisabled(t *testing.T) {
	s := &Store{}
	err := s.Record(context.Background(), &Record{})
	assert.ErrorIs(t, err, ErrStoreDisabled)

	_, err = s.GetRecent(context.Background(), 10)
	assert.ErrorIs(t, err, ErrStoreDisabled)
}

func TestStoreGetRecent(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "decision_id", "provider", "model_id", "factor",
		"predicted", "actual", "variance", "accuracy", "timestamp",
	}).
		AddRow(2, "d2", "openai", "gpt-4", "latency", 1000.0, 1200.0, 200.0, 0.8, now).
		AddRow(1, "d1", "ollama", "llama3", "cost", 0.01, 0.012, 0.002, 0.8, now.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, decision_id").
		WithArgs(50).
		WillReturnRows(rows)

	records, err := s.GetRecent(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, OutcomeLatency, records[0].Factor)
	assert.Equal(t, "ollama", records[1].Provider)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetStats(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM feedback`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))
	mock.ExpectQuery(`SELECT AVG\(accuracy\) FROM feedback`).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(0.85))
	mock.ExpectQuery("SELECT factor, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"factor", "count"}).
			AddRow("cost", 10).AddRow("latency", 10).AddRow("quality", 10).AddRow("success", 10))

	stats, err := s.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(40), stats["total_records"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
