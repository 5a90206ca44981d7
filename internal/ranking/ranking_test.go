package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(tags []string, scores []float32) []ScoredTag {
	out := make([]ScoredTag, len(tags))
	for i := range tags {
		out[i] = ScoredTag{Tag: tags[i], Score: scores[i]}
	}
	return out
}

func TestRankTieBrokenByVocabularyOrder(t *testing.T) {
	input := scored(
		[]string{"jazz", "rock", "ambient", "noise"},
		[]float32{0.2, 0.9, 0.9, 0.1},
	)

	result, err := Rank(input, 2)
	require.NoError(t, err)
	require.Len(t, result, 2)

	// rock and ambient tie at 0.9; rock precedes ambient in the vocabulary
	assert.Equal(t, ScoredTag{Tag: "rock", Score: 0.9}, result[0])
	assert.Equal(t, ScoredTag{Tag: "ambient", Score: 0.9}, result[1])
}

func TestRankClampsTopKToVocabularySize(t *testing.T) {
	input := scored([]string{"a", "b"}, []float32{0.5, 0.5})

	result, err := Rank(input, 5)
	require.NoError(t, err)

	assert.Equal(t, []ScoredTag{{Tag: "a", Score: 0.5}, {Tag: "b", Score: 0.5}}, result)
}

func TestRankNegativeTopK(t *testing.T) {
	input := scored([]string{"a"}, []float32{0.5})

	result, err := Rank(input, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, result)
}

func TestRankZeroTopK(t *testing.T) {
	input := scored([]string{"a", "b"}, []float32{0.5, 0.9})

	result, err := Rank(input, 0)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

func TestRankEmptyScores(t *testing.T) {
	// Empty input with a positive top-k yields an empty result, not an error.
	result, err := Rank(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestRankResultLength(t *testing.T) {
	tags := []string{"a", "b", "c", "d", "e"}
	values := []float32{0.1, 0.5, 0.3, 0.9, 0.2}

	for k := 0; k <= 8; k++ {
		result, err := Rank(scored(tags, values), k)
		require.NoError(t, err)
		want := k
		if want > len(tags) {
			want = len(tags)
		}
		assert.Len(t, result, want, "top_k=%d", k)
	}
}

func TestRankScoresNonIncreasing(t *testing.T) {
	input := scored(
		[]string{"a", "b", "c", "d", "e", "f"},
		[]float32{0.3, -0.1, 0.9, 0.3, 1.0, 0.0},
	)

	result, err := Rank(input, len(input))
	require.NoError(t, err)
	for i := 1; i < len(result); i++ {
		assert.GreaterOrEqual(t, result[i-1].Score, result[i].Score)
	}
}

func TestRankIdempotent(t *testing.T) {
	input := scored(
		[]string{"a", "b", "c", "d"},
		[]float32{0.4, 0.4, 0.8, 0.4},
	)

	first, err := Rank(input, 3)
	require.NoError(t, err)
	second, err := Rank(input, 3)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	input := scored([]string{"a", "b"}, []float32{0.1, 0.9})
	original := scored([]string{"a", "b"}, []float32{0.1, 0.9})

	_, err := Rank(input, 2)
	require.NoError(t, err)
	assert.Equal(t, original, input)
}

func TestRankTags(t *testing.T) {
	result, err := RankTags(
		[]string{"jazz", "rock", "ambient", "noise"},
		[]float32{0.2, 0.9, 0.9, 0.1},
		2,
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"rock", "ambient"}, Tags(result))
}

func TestRankTagsLengthMismatch(t *testing.T) {
	_, err := RankTags([]string{"a", "b"}, []float32{0.5}, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCaption(t *testing.T) {
	tests := []struct {
		name   string
		result []ScoredTag
		want   string
	}{
		{
			name:   "two_tags",
			result: []ScoredTag{{Tag: "jazz", Score: 0.9}, {Tag: "ambient", Score: 0.5}},
			want:   "jazz, ambient",
		},
		{
			name:   "single_tag",
			result: []ScoredTag{{Tag: "rain", Score: 0.7}},
			want:   "rain",
		},
		{
			name:   "empty",
			result: nil,
			want:   "",
		},
		{
			name: "multi_word_tags",
			result: []ScoredTag{
				{Tag: "male voice", Score: 0.8},
				{Tag: "speech", Score: 0.6},
				{Tag: "crowd", Score: 0.2},
			},
			want: "male voice, speech, crowd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Caption(tt.result))
		})
	}
}
