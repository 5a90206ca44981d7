package captioner

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/db"
	"github.com/clapety/clapety/internal/embeddings"
	"github.com/clapety/clapety/internal/ranking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeClip(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func newTestCaptioner(t *testing.T, withStorage bool) (*Captioner, *db.DB, embeddings.VectorStorage) {
	t.Helper()
	logger := log.New(io.Discard)

	provider, err := embeddings.NewRandomProvider(
		embeddings.NewRandomConfig().WithDimensions(32).WithLogger(logger))
	require.NoError(t, err)

	var vectors embeddings.VectorStorage
	var database *db.DB
	if withStorage {
		vectors, err = embeddings.NewChromemStorage(t.TempDir(), provider, logger)
		require.NoError(t, err)
		t.Cleanup(func() { vectors.Close() })

		database, err = db.New(t.TempDir(), logger)
		require.NoError(t, err)
		t.Cleanup(func() { database.Close() })
	}

	return NewCaptioner(logger, provider, vectors, database), database, vectors
}

func TestSupportedFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"clip.wav", true},
		{"clip.WAV", true},
		{"clip.mp3", true},
		{"clip.flac", true},
		{"clip.ogg", true},
		{"clip.m4a", true},
		{"clip.webm", true},
		{"clip.txt", false},
		{"clip", false},
		{"clip.wav.bak", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SupportedFile(tt.path), tt.path)
	}
}

func TestCheckPaths(t *testing.T) {
	dir := t.TempDir()
	clip := writeClip(t, dir, "clip.wav", []byte("audio"))

	assert.NoError(t, CheckPaths([]string{clip}))
	assert.Error(t, CheckPaths(nil), "no files")
	assert.Error(t, CheckPaths([]string{dir}), "directory")
	assert.Error(t, CheckPaths([]string{filepath.Join(dir, "missing.wav")}))

	text := writeClip(t, dir, "notes.txt", []byte("text"))
	assert.Error(t, CheckPaths([]string{text}), "unsupported extension")
}

func TestCaptionFiles(t *testing.T) {
	c, _, _ := newTestCaptioner(t, false)
	dir := t.TempDir()
	clipA := writeClip(t, dir, "a.wav", []byte("audio bytes a"))
	clipB := writeClip(t, dir, "b.flac", []byte("audio bytes b"))

	vocab := []string{"rain", "wind", "piano", "noise"}
	results, err := c.CaptionFiles(context.Background(), []string{clipA, clipB}, vocab, Config{
		TopK:        2,
		Concurrency: 2,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Results come back in input order
	assert.Equal(t, clipA, results[0].File)
	assert.Equal(t, clipB, results[1].File)

	for _, r := range results {
		assert.Len(t, r.Tags, 2)
		assert.Equal(t, ranking.Caption(r.Tags), r.Caption)
		assert.Equal(t, "random-32", r.Model)
		assert.Equal(t, 2, r.TopK)
		assert.NotEmpty(t, r.ID)
		for _, st := range r.Tags {
			assert.Contains(t, vocab, st.Tag)
		}
	}
}

func TestCaptionFilesDeterministic(t *testing.T) {
	c, _, _ := newTestCaptioner(t, false)
	dir := t.TempDir()
	clip := writeClip(t, dir, "a.wav", []byte("same audio"))

	vocab := []string{"rain", "wind", "piano"}
	first, err := c.CaptionFiles(context.Background(), []string{clip}, vocab, Config{TopK: 3})
	require.NoError(t, err)
	second, err := c.CaptionFiles(context.Background(), []string{clip}, vocab, Config{TopK: 3})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCaptionFilesTopKClamped(t *testing.T) {
	c, _, _ := newTestCaptioner(t, false)
	dir := t.TempDir()
	clip := writeClip(t, dir, "a.wav", []byte("audio"))

	results, err := c.CaptionFiles(context.Background(), []string{clip}, []string{"rain", "wind"}, Config{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Tags, 2)
}

func TestCaptionFilesNegativeTopK(t *testing.T) {
	c, _, _ := newTestCaptioner(t, false)
	dir := t.TempDir()
	clip := writeClip(t, dir, "a.wav", []byte("audio"))

	_, err := c.CaptionFiles(context.Background(), []string{clip}, []string{"rain"}, Config{TopK: -1})
	assert.ErrorIs(t, err, ranking.ErrInvalidArgument)
}

func TestCaptionFilesInvalidVocabulary(t *testing.T) {
	c, _, _ := newTestCaptioner(t, false)
	dir := t.TempDir()
	clip := writeClip(t, dir, "a.wav", []byte("audio"))
	ctx := context.Background()

	_, err := c.CaptionFiles(ctx, []string{clip}, nil, Config{TopK: 3})
	assert.Error(t, err, "empty vocabulary")

	_, err = c.CaptionFiles(ctx, []string{clip}, []string{"rain", "rain"}, Config{TopK: 1})
	assert.Error(t, err, "duplicate tags")
}

func TestCaptionFilesEmptyClip(t *testing.T) {
	c, _, _ := newTestCaptioner(t, false)
	dir := t.TempDir()
	clip := writeClip(t, dir, "a.wav", nil)

	_, err := c.CaptionFiles(context.Background(), []string{clip}, []string{"rain"}, Config{TopK: 1})
	assert.Error(t, err)
}

func TestCaptionFilesStoresResults(t *testing.T) {
	c, database, vectors := newTestCaptioner(t, true)
	dir := t.TempDir()
	clip := writeClip(t, dir, "a.wav", []byte("stored audio"))
	ctx := context.Background()

	results, err := c.CaptionFiles(ctx, []string{clip}, []string{"rain", "wind"}, Config{
		TopK:  2,
		Store: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Caption row persisted
	stored, err := database.Get(ctx, results[0].ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, results[0].Caption, stored.Caption)
	assert.Equal(t, results[0].TagNames(), stored.Tags)

	// Clip embedding cached
	_, meta, found, err := vectors.GetEmbedding(ctx, results[0].ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, clip, meta.File)
	assert.Equal(t, "random-32", meta.ModelName)
}

func TestCaptionFilesReusesCachedEmbedding(t *testing.T) {
	logger := log.New(io.Discard)
	provider, err := embeddings.NewRandomProvider(
		embeddings.NewRandomConfig().WithDimensions(32).WithLogger(logger))
	require.NoError(t, err)

	vectors, err := embeddings.NewChromemStorage(t.TempDir(), provider, logger)
	require.NoError(t, err)
	defer vectors.Close()

	counting := &countingProvider{Provider: provider}
	c := NewCaptioner(logger, counting, vectors, nil)

	dir := t.TempDir()
	clip := writeClip(t, dir, "a.wav", []byte("cache me"))
	vocab := []string{"rain"}
	ctx := context.Background()

	_, err = c.CaptionFiles(ctx, []string{clip}, vocab, Config{TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, counting.audioCalls)

	// Second run hits the cache; no new audio embedding is computed
	_, err = c.CaptionFiles(ctx, []string{clip}, vocab, Config{TopK: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, counting.audioCalls)
}

// countingProvider wraps a Provider and counts audio embedding calls
type countingProvider struct {
	embeddings.Provider
	audioCalls int
}

func (p *countingProvider) EmbedAudio(ctx context.Context, data []byte) ([]float32, error) {
	p.audioCalls++
	return p.Provider.EmbedAudio(ctx, data)
}
