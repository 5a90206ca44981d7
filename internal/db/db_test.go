package db

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := New(t.TempDir(), log.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func testCaption(id, file, caption string, tags []string) types.StoredCaption {
	return types.StoredCaption{
		ID:        id,
		File:      file,
		Caption:   caption,
		Tags:      tags,
		Model:     "random-512",
		TopK:      3,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestStoreAndGet(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	c := testCaption("abc123", "clips/rain.wav", "rain, wind, ambient", []string{"rain", "wind", "ambient"})
	require.NoError(t, d.Store(ctx, c))

	got, err := d.Get(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.File, got.File)
	assert.Equal(t, c.Caption, got.Caption)
	assert.Equal(t, c.Tags, got.Tags)
	assert.Equal(t, c.Model, got.Model)
	assert.Equal(t, c.TopK, got.TopK)
}

func TestGetMissing(t *testing.T) {
	d := setupTestDB(t)

	got, err := d.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStoreReplacesExisting(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	first := testCaption("abc", "a.wav", "rain, wind", []string{"rain", "wind"})
	require.NoError(t, d.Store(ctx, first))

	second := testCaption("abc", "a.wav", "piano, jazz", []string{"piano", "jazz"})
	require.NoError(t, d.Store(ctx, second))

	got, err := d.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "piano, jazz", got.Caption)

	count, err := d.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// FTS mirror must follow the replacement
	results, _, err := d.SearchCaptionsByText(ctx, "rain", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, _, err = d.SearchCaptionsByText(ctx, "piano", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestHas(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	ok, err := d.Has(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Store(ctx, testCaption("abc", "a.wav", "noise", []string{"noise"})))

	ok, err = d.Has(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestList(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	older := testCaption("one", "one.wav", "rain", []string{"rain"})
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testCaption("two", "two.wav", "wind", []string{"wind"})

	require.NoError(t, d.Store(ctx, older))
	require.NoError(t, d.Store(ctx, newer))

	captions, err := d.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, captions, 2)
	assert.Equal(t, "two", captions[0].ID)
	assert.Equal(t, "one", captions[1].ID)

	limited, err := d.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "two", limited[0].ID)
}

func TestSearchCaptionsByText(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Store(ctx, testCaption("one", "one.wav", "rain, thunder, wind", []string{"rain", "thunder", "wind"})))
	require.NoError(t, d.Store(ctx, testCaption("two", "two.wav", "piano, jazz", []string{"piano", "jazz"})))
	require.NoError(t, d.Store(ctx, testCaption("three", "three.wav", "rain, ambient", []string{"rain", "ambient"})))

	results, totalCount, err := d.SearchCaptionsByText(ctx, "rain", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, totalCount)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Contains(t, r.Caption, "rain")
		assert.Greater(t, r.Scores.TextScore, 0.0)
	}

	// Limit applies to results but not to the total count
	limited, totalCount, err := d.SearchCaptionsByText(ctx, "rain", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
	assert.Equal(t, 2, totalCount)
}

func TestSearchCaptionsByTextNoMatches(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Store(ctx, testCaption("one", "one.wav", "rain", []string{"rain"})))

	results, totalCount, err := d.SearchCaptionsByText(ctx, "spaceship", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, totalCount)
}

func TestRemove(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.Store(ctx, testCaption("one", "one.wav", "rain", []string{"rain"})))
	require.NoError(t, d.Remove(ctx, "one"))

	ok, err := d.Has(ctx, "one")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting must also clear the FTS mirror
	results, _, err := d.SearchCaptionsByText(ctx, "rain", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestApplyMigrations(t *testing.T) {
	d := setupTestDB(t)
	logger := log.New(io.Discard)

	err := ApplyMigrations(context.Background(), d.DB(), func(msg string, args ...interface{}) {
		logger.Info(msg, args...)
	})
	require.NoError(t, err)

	// Idempotent
	err = ApplyMigrations(context.Background(), d.DB(), func(msg string, args ...interface{}) {
		logger.Info(msg, args...)
	})
	require.NoError(t, err)
}
