package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/scoring"
)

const defaultRandomDimensions = 512

// RandomConfig holds configuration for the placeholder random provider
type RandomConfig struct {
	Dimensions int
	Logger     *log.Logger
}

func NewRandomConfig() RandomConfig {
	return RandomConfig{
		Dimensions: defaultRandomDimensions,
	}
}

func (c RandomConfig) WithDimensions(dims int) RandomConfig {
	c.Dimensions = dims
	return c
}
func (c RandomConfig) WithLogger(logger *log.Logger) RandomConfig {
	c.Logger = logger
	return c
}

func (c RandomConfig) Validate() error {
	if c.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// RandomProvider is the placeholder backend: unit vectors drawn from a
// PCG stream seeded by the SHA-256 of the input, so identical inputs
// always embed identically. Useful for tests and offline runs; the
// scores it produces carry no semantic meaning.
type RandomProvider struct {
	config RandomConfig
	logger *log.Logger
}

func NewRandomProvider(config RandomConfig) (*RandomProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &RandomProvider{config: config, logger: config.Logger}, nil
}

func (p *RandomProvider) EmbedAudio(ctx context.Context, data []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}
	vec := p.deterministicVector(data)
	p.logger.Debug("Generated random audio embedding", "bytes", len(data), "dimensions", len(vec))
	return vec, nil
}

func (p *RandomProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	vec := p.deterministicVector([]byte(text))
	p.logger.Debug("Generated random text embedding", "text", text, "dimensions", len(vec))
	return vec, nil
}

func (p *RandomProvider) ModelName() string {
	return fmt.Sprintf("random-%d", p.config.Dimensions)
}

func (p *RandomProvider) deterministicVector(data []byte) []float32 {
	sum := sha256.Sum256(data)
	seed1 := binary.LittleEndian.Uint64(sum[0:8])
	seed2 := binary.LittleEndian.Uint64(sum[8:16])
	rng := rand.New(rand.NewPCG(seed1, seed2))

	vec := make([]float32, p.config.Dimensions)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	return scoring.Normalize(vec)
}
