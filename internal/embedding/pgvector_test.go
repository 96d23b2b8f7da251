// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package embedding_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/smartrank/internal/embedding"
)

// pgxArgs accepts []string arguments unchanged, as pgx's stdlib driver does.
type pgxArgs struct{}

func (pgxArgs) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockIndex(t *testing.T) (*embedding.PgvectorIndex, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(pgxArgs{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := embedding.DefaultConfig()
	cfg.Dimension = 3
	idx, err := embedding.NewPgvectorIndex(db, cfg)
	require.NoError(t, err)
	return idx, mock
}

/* ─────────────────────────── Nearest ─────────────────────────── */

func TestPgvectorIndex_Nearest_WithFilters(t *testing.T) {
	idx, mock := newMockIndex(t)

	mock.ExpectQuery(regexp.QuoteMeta("AND platform = $2 AND content_type = $3 AND topics && $4::text[]")).
		WithArgs(sqlmock.AnyArg(), "web", "article", []string{"ai"}, 5).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "similarity"}).
			AddRow("a", 0.93).
			AddRow("b", 0.41))

	got, err := idx.Nearest(context.Background(), []float32{1, 0, 0}, 5, embedding.Filter{
		Platform:    "web",
		ContentType: "article",
		Topics:      []string{"ai"},
	})

	require.NoError(t, err)
	assert.Equal(t, []embedding.Neighbor{
		{ItemID: "a", Similarity: 0.93},
		{ItemID: "b", Similarity: 0.41},
	}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorIndex_Nearest_DefaultLimitNoFilters(t *testing.T) {
	idx, mock := newMockIndex(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE TRUE\nORDER BY embedding <=> $1, item_id\nLIMIT $2")).
		WithArgs(sqlmock.AnyArg(), 10).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "similarity"}))

	got, err := idx.Nearest(context.Background(), []float32{1, 0, 0}, 0, embedding.Filter{})

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorIndex_Nearest_QueryError(t *testing.T) {
	idx, mock := newMockIndex(t)
	dbErr := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT item_id, 1 - (embedding <=> $1) AS similarity")).
		WillReturnError(dbErr)

	_, err := idx.Nearest(context.Background(), []float32{1, 0, 0}, 3, embedding.Filter{})

	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

/* ─────────────────────────── Similar ─────────────────────────── */

func TestPgvectorIndex_Similar(t *testing.T) {
	idx, mock := newMockIndex(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT embedding FROM item_embeddings WHERE item_id = $1")).
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}).AddRow("[1,0,0]"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE item_id <> $2 AND 1 - (embedding <=> $1) >= $3 AND platform = $4")).
		WithArgs(sqlmock.AnyArg(), "a", 0.5, "web", 3).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "similarity"}).AddRow("c", 0.8))

	got, err := idx.Similar(context.Background(), "a", 3, 0.5, embedding.Filter{Platform: "web"})

	require.NoError(t, err)
	assert.Equal(t, []embedding.Neighbor{{ItemID: "c", Similarity: 0.8}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorIndex_Similar_UnknownItem(t *testing.T) {
	idx, mock := newMockIndex(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT embedding FROM item_embeddings")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"embedding"}))

	_, err := idx.Similar(context.Background(), "ghost", 3, 0, embedding.Filter{})

	assert.ErrorIs(t, err, embedding.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

/* ─────────────────────────── Upsert ─────────────────────────── */

func TestPgvectorIndex_Upsert(t *testing.T) {
	idx, mock := newMockIndex(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO item_embeddings")).
		WithArgs("a", sqlmock.AnyArg(), "web", "article", []string{"ai", `say "hi"`}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := idx.Upsert(context.Background(), embedding.Entry{
		ItemID:      "a",
		Embedding:   []float32{1, 0, 0},
		Platform:    "web",
		ContentType: "article",
		Topics:      []string{"ai", `say "hi"`},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorIndex_Upsert_NilTopicsSendsEmptyArray(t *testing.T) {
	idx, mock := newMockIndex(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO item_embeddings")).
		WithArgs("b", sqlmock.AnyArg(), "", "", []string{}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := idx.Upsert(context.Background(), embedding.Entry{ItemID: "b", Embedding: []float32{0, 1, 0}})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgvectorIndex_Upsert_ValidationError(t *testing.T) {
	idx, mock := newMockIndex(t)

	tests := []struct {
		name  string
		entry embedding.Entry
	}{
		{name: "empty id", entry: embedding.Entry{Embedding: []float32{1, 0, 0}}},
		{name: "dimension mismatch", entry: embedding.Entry{ItemID: "a", Embedding: []float32{1, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, idx.Upsert(context.Background(), tt.entry))
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPgvectorIndex_RejectsBadTable(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	cfg := embedding.DefaultConfig()
	cfg.Table = "items; DROP TABLE users"
	_, err = embedding.NewPgvectorIndex(db, cfg)
	assert.Error(t, err)
}
