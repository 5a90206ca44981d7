package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/commands"
	"github.com/clapety/clapety/internal/db"
	"github.com/clapety/clapety/internal/search"
	"github.com/clapety/clapety/internal/types"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig

	Query               string  `arg:"" help:"Search query - what the audio should sound like"`
	Limit               int     `help:"Maximum number of results to return" default:"10"`
	Vector              bool    `help:"Use vector search instead of full-text search" default:"false"`
	Hybrid              bool    `help:"Combine text and vector search with reciprocal rank fusion" default:"false"`
	SimilarityThreshold float32 `help:"Minimum similarity score for vector search results (0.0-1.0)" default:"0.2"`
}

func (c *CLI) Run() error {
	ctx := context.Background()
	logger, database, err := c.setupCommonComponents()
	if err != nil {
		return err
	}
	defer database.Close()

	// For text search only
	if !c.Vector && !c.Hybrid {
		return c.performTextSearch(ctx, database)
	}

	// Initialize embedding provider and vector storage
	provider, err := commands.SetupEmbeddingProvider(c.EmbeddingConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedding provider", "error", err)
	}
	defer commands.CloseEmbeddingProvider(provider, logger)

	vectorStorage, err := commands.SetupVectorStorage(c.DataDir, provider, logger)
	if err != nil {
		logger.Fatal("Failed to initialize vector storage", "error", err)
	}
	defer vectorStorage.Close()

	opts := []search.SearchOption{
		search.WithLimit(c.Limit),
		search.WithVectorThreshold(c.SimilarityThreshold),
	}

	var page types.SearchResults
	if c.Hybrid {
		page, err = search.HybridSearch(ctx, logger, database, provider, vectorStorage, c.Query, opts...)
	} else {
		page, err = search.VectorSearch(ctx, logger, database, provider, vectorStorage, c.Query, opts...)
	}
	if err != nil {
		logger.Fatal("Failed to search captions", "error", err)
	}

	printSearchResults(page, c.Hybrid)
	return nil
}

// setupCommonComponents initializes the logger and caption database
func (c *CLI) setupCommonComponents() (*log.Logger, *db.DB, error) {
	logger := log.New(os.Stderr)

	// Set log level
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(level)

	database, err := db.New(c.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}

	return logger, database, nil
}

func (c *CLI) performTextSearch(ctx context.Context, database *db.DB) error {
	results, total, err := search.TextSearch(ctx, database, c.Query, search.WithLimit(c.Limit))
	if err != nil {
		return fmt.Errorf("failed to search captions: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No captions found")
		return nil
	}

	fmt.Printf("Found %d captions using text search:\n\n", total)
	for _, result := range results {
		fmt.Printf("%s: %s\n", result.File, result.Caption)
		printCaptionDetails(result)
	}

	return nil
}

func printSearchResults(page types.SearchResults, hybrid bool) {
	if len(page.Results) == 0 {
		fmt.Println("No captions found")
		return
	}

	if hybrid {
		fmt.Printf("Found %d captions using hybrid search\n\n", page.TotalCount)
	} else {
		fmt.Printf("Found %d captions using vector search\n\n", page.TotalCount)
	}

	for _, result := range page.Results {
		if hybrid {
			fmt.Printf("%s: %s (rrf: %.4f)\n", result.File, result.Caption, result.Scores.RRFScore)
		} else {
			fmt.Printf("%s: %s (similarity: %.2f)\n", result.File, result.Caption, result.Scores.VectorScore)
		}
		printCaptionDetails(result)
	}
}

// printCaptionDetails prints the details of a stored caption
func printCaptionDetails(result types.CaptionSearchResult) {
	if len(result.Tags) > 0 {
		fmt.Printf("  Tags: %v\n", result.Tags)
	}
	fmt.Printf("  Model: %s\n", result.Model)
	fmt.Printf("  Captioned: %s\n", result.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Println()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("clapety-search"),
		kong.Description("Search captioned audio clips by description"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
