package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
)

// ClapServerConfig holds configuration for a clap.cpp-style embedding
// server that exposes audio and text embedding endpoints over HTTP.
type ClapServerConfig struct {
	URL           string
	Timeout       time.Duration
	RetryAttempts uint
	ModelName     string
	Logger        *log.Logger
}

func NewClapServerConfig() ClapServerConfig {
	return ClapServerConfig{
		URL:           "http://localhost:8080",
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
	}
}

func (c ClapServerConfig) WithURL(url string) ClapServerConfig {
	c.URL = url
	return c
}
func (c ClapServerConfig) WithTimeout(timeout time.Duration) ClapServerConfig {
	c.Timeout = timeout
	return c
}
func (c ClapServerConfig) WithRetryAttempts(attempts uint) ClapServerConfig {
	c.RetryAttempts = attempts
	return c
}
func (c ClapServerConfig) WithModelName(modelName string) ClapServerConfig {
	c.ModelName = modelName
	return c
}
func (c ClapServerConfig) WithLogger(logger *log.Logger) ClapServerConfig {
	c.Logger = logger
	return c
}

func (c ClapServerConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("embedding server URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// ClapServerProvider implements Provider against a remote CLAP inference
// server. The model runs remotely; this side only ships bytes and reads
// vectors back.
type ClapServerProvider struct {
	config     ClapServerConfig
	httpClient *http.Client
	logger     *log.Logger
}

type clapTextRequest struct {
	Content string `json:"content"`
}

type clapEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

func NewClapServerProvider(config ClapServerConfig) (*ClapServerProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &ClapServerProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: config.Logger,
	}, nil
}

func (p *ClapServerProvider) EmbedAudio(ctx context.Context, data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}
	start := time.Now()
	embedding, err := p.post(ctx, "embed/audio", "application/octet-stream", data)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio embedding: %w", err)
	}
	p.logger.Debug("Generated audio embedding",
		"bytes", len(data),
		"embedding_length", len(embedding),
		"duration", time.Since(start))
	return embedding, nil
}

func (p *ClapServerProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}
	body, err := json.Marshal(clapTextRequest{Content: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	start := time.Now()
	embedding, err := p.post(ctx, "embed/text", "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("failed to get text embedding: %w", err)
	}
	p.logger.Debug("Generated text embedding",
		"text_length", len(text),
		"embedding_length", len(embedding),
		"duration", time.Since(start))
	return embedding, nil
}

func (p *ClapServerProvider) ModelName() string {
	return p.config.ModelName
}

func (p *ClapServerProvider) post(ctx context.Context, path, contentType string, body []byte) ([]float32, error) {
	baseURL, err := url.Parse(p.config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	endpoint := baseURL.JoinPath(path)

	var parsed clapEmbeddingResponse
	err = retry.Do(
		func() error {
			// Rebuild the request each attempt so the body is readable again
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", contentType)

			resp, err := p.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to make request: %w", err)
			}
			defer resp.Body.Close()
			respBody, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("embedding server returned status %d: %s", resp.StatusCode, respBody)
			}
			if err := json.Unmarshal(respBody, &parsed); err != nil {
				p.logger.Debug("Failed to unmarshal embedding response", "body", string(respBody), "error", err)
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
			if len(parsed.Embedding) == 0 {
				return fmt.Errorf("empty embedding returned from server")
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn("Retrying embedding request",
				"endpoint", endpoint.String(),
				"attempt", n+1,
				"max_attempts", p.config.RetryAttempts,
				"error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return parsed.Embedding, nil
}
