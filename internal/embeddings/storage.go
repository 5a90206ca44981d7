package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/philippgille/chromem-go"
)

// VectorResult represents a single result from a vector search
type VectorResult struct {
	// ID is the clip ID (SHA-256 of the audio bytes)
	ID string
	// Similarity is the cosine similarity score (0.0-1.0)
	Similarity float32
	// Content is the document content, the clip's caption or file name
	Content string
}

// EmbeddingMetadata describes a stored clip embedding. ModelName guards
// against reusing vectors produced by a different model.
type EmbeddingMetadata struct {
	File        string    `json:"file"`
	ModelName   string    `json:"model_name"`
	Length      int       `json:"length"`
	LastUpdated time.Time `json:"last_updated"`
}

func (m *EmbeddingMetadata) ToMap() map[string]string {
	return map[string]string{
		"file":         m.File,
		"model_name":   m.ModelName,
		"length":       strconv.Itoa(m.Length),
		"last_updated": m.LastUpdated.Format(time.RFC3339),
	}
}

func EmbeddingFromMap(metadata map[string]string) (EmbeddingMetadata, error) {
	length, err := strconv.Atoi(metadata["length"])
	if err != nil {
		return EmbeddingMetadata{}, fmt.Errorf("failed to parse length: %w", err)
	}
	lastUpdated, err := time.Parse(time.RFC3339, metadata["last_updated"])
	if err != nil {
		return EmbeddingMetadata{}, fmt.Errorf("failed to parse last updated: %w", err)
	}
	return EmbeddingMetadata{
		File:        metadata["file"],
		ModelName:   metadata["model_name"],
		Length:      length,
		LastUpdated: lastUpdated,
	}, nil
}

// MatchModel reports whether the stored embedding came from the given model.
func (m *EmbeddingMetadata) MatchModel(modelName string) bool {
	return m.ModelName == modelName
}

// VectorStorage is an interface for storing and retrieving clip embeddings
type VectorStorage interface {
	// StoreEmbedding stores an embedding with the given clip ID
	StoreEmbedding(ctx context.Context, id string, content string, embedding []float32, metadata EmbeddingMetadata) error

	// GetEmbedding returns the stored embedding and metadata for the
	// given clip ID, if present
	GetEmbedding(ctx context.Context, id string) ([]float32, EmbeddingMetadata, bool, error)

	// Query finds clip IDs similar to the given embedding.
	// threshold sets the minimum similarity score (0.0-1.0) for results;
	// if threshold <= 0, no threshold is applied
	Query(ctx context.Context, embedding []float32, threshold float32) ([]VectorResult, error)

	// RemoveEmbedding removes an embedding/document by ID from the collection
	RemoveEmbedding(ctx context.Context, id string) error

	// Close closes the storage
	Close() error
}

// ChromemStorage implements VectorStorage using the chromem-go vector database
type ChromemStorage struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *log.Logger
	modelName  string
}

// Hash creates a SHA-256 hash of the content, used as the clip ID.
func Hash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// NewChromemStorage creates a new ChromemStorage persisted under dataDir
func NewChromemStorage(dataDir string, provider Provider, logger *log.Logger) (*ChromemStorage, error) {
	dbPath := filepath.Join(dataDir, "chromem-go")

	// Queries arrive as text; route them through the provider's text side
	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return provider.EmbedText(ctx, text)
	}

	db, err := chromem.NewPersistentDB(dbPath, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create chromem database: %w", err)
	}

	collection, err := db.GetOrCreateCollection("clips", nil, embeddingFunc)
	if err != nil {
		db.Reset() // Clean up
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	storage := &ChromemStorage{
		db:         db,
		collection: collection,
		logger:     logger,
		modelName:  provider.ModelName(),
	}

	logger.Info("Opened chromem vector database",
		"path", dbPath,
		"document_count", collection.Count(),
		"model_name", storage.modelName)

	return storage, nil
}

// StoreEmbedding stores an embedding with the given clip ID
func (s *ChromemStorage) StoreEmbedding(
	ctx context.Context,
	id string,
	content string,
	embedding []float32,
	metadata EmbeddingMetadata,
) error {
	doc, err := chromem.NewDocument(ctx, id, metadata.ToMap(), embedding, content, nil)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add document to collection: %w", err)
	}

	s.logger.Debug("Stored clip embedding",
		"id", id,
		"metadata", metadata)

	return nil
}

// GetEmbedding returns the stored embedding and metadata for the given clip ID
func (s *ChromemStorage) GetEmbedding(ctx context.Context, id string) ([]float32, EmbeddingMetadata, bool, error) {
	doc, err := s.collection.GetByID(ctx, id)
	if err != nil {
		return nil, EmbeddingMetadata{}, false, nil
	}

	metadata, err := EmbeddingFromMap(doc.Metadata)
	if err != nil {
		return nil, EmbeddingMetadata{}, false, fmt.Errorf("failed to parse metadata for id %s: %w", id, err)
	}

	return doc.Embedding, metadata, true, nil
}

// Query finds clip IDs similar to the given embedding
func (s *ChromemStorage) Query(ctx context.Context, embedding []float32, threshold float32) ([]VectorResult, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}

	var vectorResults []VectorResult
	for _, result := range results {
		if result.Similarity < threshold {
			continue
		}
		vectorResults = append(vectorResults, VectorResult{
			ID:         result.ID,
			Similarity: result.Similarity,
			Content:    result.Content,
		})
	}

	// Sort results by similarity (highest first)
	sort.Slice(vectorResults, func(i, j int) bool {
		return vectorResults[i].Similarity > vectorResults[j].Similarity
	})

	return vectorResults, nil
}

// RemoveEmbedding removes an embedding/document by ID from the collection
func (s *ChromemStorage) RemoveEmbedding(ctx context.Context, id string) error {
	return s.collection.Delete(ctx, nil, nil, id)
}

// Close closes the database
func (s *ChromemStorage) Close() error {
	// Nothing to do as chromem doesn't have an explicit close method;
	// the database is persisted on write operations
	return nil
}
