// Package captioner runs the captioning pipeline: embed the vocabulary
// and each audio clip, score every (clip, tag) pair by cosine
// similarity, rank the top-K tags, and format the pseudo-caption.
package captioner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/db"
	"github.com/clapety/clapety/internal/embeddings"
	"github.com/clapety/clapety/internal/ranking"
	"github.com/clapety/clapety/internal/scoring"
	"github.com/clapety/clapety/internal/tags"
	"github.com/clapety/clapety/internal/types"
	"golang.org/x/sync/errgroup"
)

// supportedExts are the audio file extensions accepted for captioning.
var supportedExts = map[string]struct{}{
	".wav":  {},
	".mp3":  {},
	".flac": {},
	".ogg":  {},
	".m4a":  {},
	".webm": {},
}

// SupportedFile reports whether the path has a supported audio extension.
func SupportedFile(path string) bool {
	_, ok := supportedExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Config controls a captioning run.
type Config struct {
	// TopK is the ranking depth for each clip
	TopK int
	// Concurrency is the number of clips processed in parallel
	Concurrency int
	// Progress enables the progress bar
	Progress bool
	// Store persists finished captions to the caption database
	Store bool
}

// Captioner orchestrates the pipeline with explicit dependencies. The
// vector storage caches clip embeddings between runs; db persists the
// finished captions. Either may be nil to disable that behavior.
type Captioner struct {
	logger   *log.Logger
	provider embeddings.Provider
	vectors  embeddings.VectorStorage
	db       *db.DB
}

// NewCaptioner creates a new captioner with explicit dependencies
func NewCaptioner(
	logger *log.Logger,
	provider embeddings.Provider,
	vectorStorage embeddings.VectorStorage,
	database *db.DB,
) *Captioner {
	return &Captioner{
		logger:   logger,
		provider: provider,
		vectors:  vectorStorage,
		db:       database,
	}
}

// CheckPaths validates that every path is a supported, regular audio
// file. Directories are rejected: inputs are explicit files only.
func CheckPaths(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("no audio files given")
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory; pass audio files explicitly", path)
		}
		if !SupportedFile(path) {
			return fmt.Errorf("unsupported file type: %s", path)
		}
	}
	return nil
}

// CaptionFiles captions each file against the vocabulary and returns the
// results in input order.
func (c *Captioner) CaptionFiles(ctx context.Context, paths []string, vocabulary []string, config Config) ([]types.FileCaption, error) {
	startTime := time.Now()

	if err := CheckPaths(paths); err != nil {
		return nil, err
	}
	if len(vocabulary) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	if err := tags.Validate(vocabulary); err != nil {
		return nil, fmt.Errorf("invalid vocabulary: %w", err)
	}
	if config.TopK < 0 {
		return nil, fmt.Errorf("%w: top-k must be non-negative, got %d", ranking.ErrInvalidArgument, config.TopK)
	}

	c.logger.Info("Starting captioning run",
		"files", len(paths),
		"vocabulary_size", len(vocabulary),
		"top_k", config.TopK,
		"model", c.provider.ModelName())

	// Embed the vocabulary once per run
	embedStart := time.Now()
	tagVectors, err := embeddings.EmbedTexts(ctx, c.provider, vocabulary)
	if err != nil {
		return nil, fmt.Errorf("failed to embed vocabulary: %w", err)
	}
	c.logger.Debug("Embedded vocabulary",
		"tags", len(vocabulary),
		"duration", time.Since(embedStart))

	var progress Progress
	if !config.Progress {
		progress = NewNoopProgress()
	} else {
		progress = NewBarProgress(len(paths))
	}
	defer progress.Close()

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	// Each file's result is written to its own slot, preserving input order
	results := make([]types.FileCaption, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			captionStart := time.Now()
			result, err := c.captionFile(gCtx, path, vocabulary, tagVectors, config)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				c.logger.Error("Failed to caption file",
					"error", err,
					"file", path,
					"duration", time.Since(captionStart))
				return fmt.Errorf("error captioning %s: %w", path, err)
			}
			c.logger.Debug("Captioned file",
				"file", path,
				"caption", result.Caption,
				"duration", time.Since(captionStart))

			results[i] = *result

			if err := progress.Add(1); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				return fmt.Errorf("error updating progress: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Info("Captioning run interrupted by user")
			return nil, err
		}
		return nil, err
	}

	c.logger.Info("Captioning run completed",
		"files", len(paths),
		"total_duration", time.Since(startTime))

	return results, nil
}

// captionFile runs the pipeline for a single audio file
func (c *Captioner) captionFile(ctx context.Context, path string, vocabulary []string, tagVectors [][]float32, config Config) (*types.FileCaption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio file")
	}

	id := embeddings.Hash(data)

	audioVector, cached, err := c.audioEmbedding(ctx, id, data)
	if err != nil {
		return nil, err
	}

	// Score every tag against the clip
	scores := make([]float32, len(tagVectors))
	for i, tagVector := range tagVectors {
		score, err := scoring.Cosine(audioVector, tagVector)
		if err != nil {
			return nil, fmt.Errorf("failed to score tag %q: %w", vocabulary[i], err)
		}
		scores[i] = score
	}

	ranked, err := ranking.RankTags(vocabulary, scores, config.TopK)
	if err != nil {
		return nil, err
	}
	caption := ranking.Caption(ranked)

	result := &types.FileCaption{
		File:    path,
		ID:      id,
		Caption: caption,
		Tags:    ranked,
		Model:   c.provider.ModelName(),
		TopK:    config.TopK,
	}

	if c.vectors != nil && !cached {
		meta := embeddings.EmbeddingMetadata{
			File:        path,
			ModelName:   c.provider.ModelName(),
			Length:      len(audioVector),
			LastUpdated: time.Now().UTC(),
		}
		if err := c.vectors.StoreEmbedding(ctx, id, caption, audioVector, meta); err != nil {
			// Cache misses are recoverable; the caption itself is not at risk
			c.logger.Warn("Failed to cache clip embedding", "id", id, "error", err)
		}
	}

	if config.Store && c.db != nil {
		stored := types.StoredCaption{
			ID:        id,
			File:      path,
			Caption:   caption,
			Tags:      result.TagNames(),
			Model:     c.provider.ModelName(),
			TopK:      config.TopK,
			CreatedAt: time.Now().UTC(),
		}
		if err := c.db.Store(ctx, stored); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to store caption: %w", err)
		}
	}

	return result, nil
}

// audioEmbedding returns the clip embedding, reusing a cached vector
// when one exists for the same content hash and model.
func (c *Captioner) audioEmbedding(ctx context.Context, id string, data []byte) ([]float32, bool, error) {
	if c.vectors != nil {
		vec, meta, found, err := c.vectors.GetEmbedding(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("failed to check embedding cache: %w", err)
		}
		if found && meta.MatchModel(c.provider.ModelName()) {
			c.logger.Debug("Reusing cached clip embedding", "id", id, "model", meta.ModelName)
			return vec, true, nil
		}
	}

	vec, err := c.provider.EmbedAudio(ctx, data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to embed audio: %w", err)
	}
	return vec, false, nil
}
