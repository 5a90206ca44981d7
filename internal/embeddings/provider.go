// Package embeddings defines the audio/text embedding capability and its
// backends. Audio clips and tag texts must land in one joint embedding
// space or the cosine scores downstream are meaningless, so a single
// Provider covers both sides.
package embeddings

import "context"

// Provider generates embeddings for audio clips and tag texts in a
// shared space.
type Provider interface {
	// EmbedAudio embeds raw audio file bytes
	EmbedAudio(ctx context.Context, data []byte) ([]float32, error)
	// EmbedText embeds a tag or query text
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// ModelName identifies the model behind the embeddings
	ModelName() string
}

// EmbedTexts embeds a slice of texts sequentially with the given provider.
func EmbedTexts(ctx context.Context, provider Provider, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := provider.EmbedText(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
