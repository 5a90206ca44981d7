package types

import "time"

// StoredCaption is a caption row persisted in the caption database.
type StoredCaption struct {
	ID        string    `json:"id"`
	File      string    `json:"file"`
	Caption   string    `json:"caption"`
	Tags      []string  `json:"tags"`
	Model     string    `json:"model"`
	TopK      int       `json:"top_k"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchScore represents the relevance scores from different search methods
type SearchScore struct {
	TextScore   float64 `json:"text_score,omitempty"`   // BM25 score from full-text search
	VectorScore float32 `json:"vector_score,omitempty"` // Cosine similarity from vector search
	RRFScore    float64 `json:"rrf_score,omitempty"`    // Reciprocal Rank Fusion score for hybrid search
}

// CaptionSearchResult represents a stored caption with its search relevance score
type CaptionSearchResult struct {
	StoredCaption
	Scores SearchScore `json:"scores"`
}

// SearchResults wraps a result page with its total count and the limit
// that was applied to it
type SearchResults struct {
	Results    []CaptionSearchResult `json:"results"`
	TotalCount int                   `json:"total_count"`
	Limit      int                   `json:"limit"`
}
