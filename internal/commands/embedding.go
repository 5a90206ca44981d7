package commands

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/embeddings"
)

// SetupEmbeddingProvider initializes and returns an embedding provider based on the config
func SetupEmbeddingProvider(config EmbeddingConfig, logger *log.Logger) (embeddings.Provider, error) {
	switch config.Provider {
	case "random":
		provider, err := embeddings.NewRandomProvider(embeddings.NewRandomConfig().
			WithDimensions(config.RandomDimensions).
			WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create random embedding provider: %w", err)
		}
		logger.Info("Using placeholder random embeddings; scores carry no semantic meaning",
			"dimensions", config.RandomDimensions)
		return provider, nil

	case "clap-server":
		clapConfig := embeddings.NewClapServerConfig().
			WithModelName(config.ClapServerModel).
			WithLogger(logger)
		if config.ClapServerURL != "" {
			clapConfig = clapConfig.WithURL(config.ClapServerURL)
		}

		provider, err := embeddings.NewClapServerProvider(clapConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create CLAP server embedding provider: %w", err)
		}
		logger.Info("Using CLAP server for embeddings", "model", clapConfig.ModelName, "url", clapConfig.URL)
		return provider, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.Provider)
	}
}

// CloseEmbeddingProvider attempts to close the embedding provider if it implements Close
func CloseEmbeddingProvider(provider embeddings.Provider, logger *log.Logger) {
	if closer, ok := provider.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close embedding provider", "error", err)
		}
	}
}
