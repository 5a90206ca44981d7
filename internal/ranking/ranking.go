// Package ranking selects the top-K highest-scoring tags from a scored
// vocabulary. Ordering is deterministic: scores descend, and equal scores
// keep their original vocabulary position, so the caption text downstream
// is a pure function of the inputs.
package ranking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidArgument is returned for a negative top-K or a tag/score
// length mismatch.
var ErrInvalidArgument = errors.New("invalid argument")

// ScoredTag pairs a vocabulary tag with its similarity score.
type ScoredTag struct {
	Tag   string  `json:"tag"`
	Score float32 `json:"score"`
}

// Rank returns the topK highest-scoring entries of scores, ordered by
// score descending with ties broken by original position. topK greater
// than len(scores) is clamped; topK of zero (or an empty input) yields
// an empty, non-nil result.
func Rank(scores []ScoredTag, topK int) ([]ScoredTag, error) {
	if topK < 0 {
		return nil, fmt.Errorf("%w: top-k must be non-negative, got %d", ErrInvalidArgument, topK)
	}
	if topK > len(scores) {
		topK = len(scores)
	}

	ranked := make([]ScoredTag, len(scores))
	copy(ranked, scores)

	// Stable sort keyed solely on score so equal scores retain
	// vocabulary order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked[:topK], nil
}

// RankTags pairs a vocabulary with its per-tag scores and ranks them.
// The two slices must be the same length.
func RankTags(tags []string, scores []float32, topK int) ([]ScoredTag, error) {
	if len(tags) != len(scores) {
		return nil, fmt.Errorf("%w: %d tags but %d scores", ErrInvalidArgument, len(tags), len(scores))
	}
	scored := make([]ScoredTag, len(tags))
	for i, tag := range tags {
		scored[i] = ScoredTag{Tag: tag, Score: scores[i]}
	}
	return Rank(scored, topK)
}

// Caption joins the ranked tag texts with ", " in result order.
func Caption(result []ScoredTag) string {
	var b strings.Builder
	for i, st := range result {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(st.Tag)
	}
	return b.String()
}

// Tags returns just the tag texts of a ranking result, in order.
func Tags(result []ScoredTag) []string {
	tags := make([]string, len(result))
	for i, st := range result {
		tags[i] = st.Tag
	}
	return tags
}
