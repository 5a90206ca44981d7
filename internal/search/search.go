// Package search finds stored captions by caption text, by CLAP-style
// text-to-audio vector similarity, or by a hybrid of the two.
package search

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/db"
	"github.com/clapety/clapety/internal/embeddings"
	"github.com/clapety/clapety/internal/types"
)

const defaultVectorThreshold = 0.2

type searchOptions struct {
	limit           int
	vectorThreshold float32
}

// SearchOption is a function that modifies searchOptions
type SearchOption func(*searchOptions)

// WithLimit sets the maximum number of results
func WithLimit(limit int) SearchOption {
	return func(opts *searchOptions) {
		opts.limit = limit
	}
}

// WithVectorThreshold sets the minimum similarity for vector results
func WithVectorThreshold(threshold float32) SearchOption {
	return func(opts *searchOptions) {
		opts.vectorThreshold = threshold
	}
}

// TextSearch performs a full-text search on stored caption text
func TextSearch(ctx context.Context, dbConn *db.DB, query string, opts ...SearchOption) ([]types.CaptionSearchResult, int, error) {
	var options searchOptions
	for _, opt := range opts {
		opt(&options)
	}
	return dbConn.SearchCaptionsByText(ctx, query, options.limit)
}

// VectorSearch embeds the text query with the provider and finds clips
// whose audio embeddings are nearest to it. This is the contrastive
// text-to-audio retrieval direction: query text and clip audio live in
// the same embedding space.
func VectorSearch(
	ctx context.Context,
	logger *log.Logger,
	dbConn *db.DB,
	provider embeddings.Provider,
	vectors embeddings.VectorStorage,
	query string,
	opts ...SearchOption,
) (types.SearchResults, error) {
	options := searchOptions{
		vectorThreshold: defaultVectorThreshold,
	}
	for _, opt := range opts {
		opt(&options)
	}

	logger.Info("Performing vector search", "query", query, "threshold", options.vectorThreshold, "limit", options.limit)
	startTime := time.Now()

	// Generate embedding for the query text
	embedding, err := provider.EmbedText(ctx, query)
	if err != nil {
		return types.SearchResults{}, fmt.Errorf("failed to generate embedding for query: %w", err)
	}

	// Query similar clip IDs from vector storage with threshold applied
	vectorResults, err := vectors.Query(ctx, embedding, options.vectorThreshold)
	if err != nil {
		return types.SearchResults{}, fmt.Errorf("failed to query similar clips: %w", err)
	}

	logger.Debug("Vector search raw results",
		"query", query,
		"raw_results", len(vectorResults),
		"threshold", options.vectorThreshold)

	if len(vectorResults) == 0 {
		logger.Info("No similar clips found", "duration", time.Since(startTime))
		return types.SearchResults{
			Results:    []types.CaptionSearchResult{},
			TotalCount: 0,
			Limit:      options.limit,
		}, nil
	}

	totalVectorResults := len(vectorResults)

	// Fetch each caption by clip ID and build the result set. Clips can
	// be embedded without a stored caption (--no-store runs), so a
	// missing row is skipped rather than treated as staleness.
	var results []types.CaptionSearchResult
	var missingCaptions int

	for _, result := range vectorResults {
		caption, err := dbConn.Get(ctx, result.ID)
		if err != nil {
			return types.SearchResults{}, fmt.Errorf("failed to fetch caption %s: %w", result.ID, err)
		}
		if caption == nil {
			logger.Debug("Clip embedding has no stored caption", "id", result.ID)
			missingCaptions++
			continue
		}

		results = append(results, types.CaptionSearchResult{
			StoredCaption: *caption,
			Scores: types.SearchScore{
				VectorScore: result.Similarity,
			},
		})

		if options.limit > 0 && len(results) >= options.limit {
			break
		}
	}

	// Vector results arrive sorted by similarity already; keep that order
	totalCount := len(results)
	if (options.limit > 0 && len(results) >= options.limit) || missingCaptions > 0 {
		totalCount = totalVectorResults - missingCaptions
	}

	logger.Info("Vector search completed",
		"query", query,
		"results", len(results),
		"total_count", totalCount,
		"missing_captions", missingCaptions,
		"threshold", options.vectorThreshold,
		"duration", time.Since(startTime))

	return types.SearchResults{
		Results:    results,
		TotalCount: totalCount,
		Limit:      options.limit,
	}, nil
}

// HybridSearch performs both text and vector searches and combines
// results using Reciprocal Rank Fusion (RRF)
func HybridSearch(
	ctx context.Context,
	logger *log.Logger,
	dbConn *db.DB,
	provider embeddings.Provider,
	vectors embeddings.VectorStorage,
	query string,
	opts ...SearchOption,
) (types.SearchResults, error) {
	options := searchOptions{
		vectorThreshold: defaultVectorThreshold,
	}
	for _, opt := range opts {
		opt(&options)
	}

	logger.Info("Performing hybrid search with Reciprocal Rank Fusion", "query", query, "limit", options.limit)
	startTime := time.Now()

	// Perform text search with extra headroom so fusion has candidates
	textResults, textTotalCount, err := dbConn.SearchCaptionsByText(ctx, query, options.limit*2)
	if err != nil {
		return types.SearchResults{}, fmt.Errorf("text search failed: %w", err)
	}

	// Perform vector search
	vectorResults, err := VectorSearch(ctx, logger, dbConn, provider, vectors, query, opts...)
	if err != nil {
		return types.SearchResults{}, fmt.Errorf("vector search failed: %w", err)
	}

	logger.Debug("Hybrid search raw results",
		"text_results", len(textResults),
		"vector_results", len(vectorResults.Results),
		"text_total_count", textTotalCount)

	if len(textResults) == 0 && len(vectorResults.Results) == 0 {
		logger.Info("No results found in hybrid search", "duration", time.Since(startTime))
		return types.SearchResults{
			Results:    []types.CaptionSearchResult{},
			TotalCount: 0,
			Limit:      options.limit,
		}, nil
	}

	// Map of clip IDs to their search results and rankings
	type resultInfo struct {
		result     types.CaptionSearchResult
		textRank   int // 1-based position in text results (0 if not found)
		vectorRank int // 1-based position in vector results (0 if not found)
	}

	// Constant k for the RRF formula
	const k = 60 // Standard value often used in RRF

	combinedResults := make(map[string]resultInfo)

	// Process text search results
	for i, result := range textResults {
		if info, exists := combinedResults[result.ID]; exists {
			info.textRank = i + 1 // 1-based ranking
			info.result.Scores.TextScore = result.Scores.TextScore
			combinedResults[result.ID] = info
		} else {
			combinedResults[result.ID] = resultInfo{
				result:   result,
				textRank: i + 1,
			}
		}
	}

	// Process vector search results
	for i, result := range vectorResults.Results {
		if info, exists := combinedResults[result.ID]; exists {
			info.vectorRank = i + 1
			info.result.Scores.VectorScore = result.Scores.VectorScore
			combinedResults[result.ID] = info
		} else {
			combinedResults[result.ID] = resultInfo{
				result:     result,
				vectorRank: i + 1,
			}
		}
	}

	// Calculate RRF scores: 1/(k + r) summed over the lists where the
	// clip appears
	var finalResults []types.CaptionSearchResult
	for _, info := range combinedResults {
		var rrfScore float64
		if info.textRank > 0 {
			rrfScore += 1.0 / float64(k+info.textRank)
		}
		if info.vectorRank > 0 {
			rrfScore += 1.0 / float64(k+info.vectorRank)
		}

		result := info.result
		result.Scores.RRFScore = rrfScore
		finalResults = append(finalResults, result)
	}

	sortSearchResultsByRRFScore(finalResults)

	allResultsCount := len(finalResults)

	if options.limit > 0 && len(finalResults) > options.limit {
		finalResults = finalResults[:options.limit]
	}

	logger.Info("Hybrid search completed",
		"query", query,
		"results", len(finalResults),
		"total_count", allResultsCount,
		"duration", time.Since(startTime))

	return types.SearchResults{
		Results:    finalResults,
		TotalCount: allResultsCount,
		Limit:      options.limit,
	}, nil
}

// sortSearchResultsByRRFScore sorts search results by their RRF score
// (highest first), ties broken by clip ID for deterministic output
func sortSearchResultsByRRFScore(results []types.CaptionSearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Scores.RRFScore != results[j].Scores.RRFScore {
			return results[i].Scores.RRFScore > results[j].Scores.RRFScore
		}
		return results[i].ID < results[j].ID
	})
}
