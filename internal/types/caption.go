package types

import "github.com/clapety/clapety/internal/ranking"

// FileCaption is the captioning result for a single audio file.
type FileCaption struct {
	// File is the path as given on the command line
	File string `json:"file"`
	// ID is the SHA-256 hash of the file contents
	ID string `json:"id"`
	// Caption is the comma-joined top-K tag text
	Caption string `json:"caption"`
	// Tags are the ranked tags with their similarity scores
	Tags []ranking.ScoredTag `json:"tags"`
	// Model is the embedding model that produced the scores
	Model string `json:"model"`
	// TopK is the requested ranking depth
	TopK int `json:"top_k"`
}

// TagNames returns the caption's tag texts in rank order.
func (c FileCaption) TagNames() []string {
	return ranking.Tags(c.Tags)
}
