package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/captioner"
	"github.com/clapety/clapety/internal/commands"
	"github.com/clapety/clapety/internal/db"
	"github.com/clapety/clapety/internal/embeddings"
	"github.com/clapety/clapety/internal/tags"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig

	Paths       []string `arg:"" help:"Audio files to caption" type:"existingfile"`
	TopK        int      `help:"Top-K tags to include in each caption" default:"3"`
	TagsFile    string   `help:"Newline-separated tag list replacing the default vocabulary" type:"existingfile"`
	Concurrency int      `help:"Number of files to caption concurrently" default:"4"`
	NoProgress  bool     `help:"Disable progress bar" default:"false"`
	Output      string   `help:"JSONL file (.jsonl/.ndjson) or directory for per-file .txt captions"`
	Overwrite   bool     `help:"Overwrite existing per-file caption outputs" default:"false"`
	Table       bool     `help:"Display results as a table" default:"false"`
	NoStore     bool     `help:"Skip storing captions in the caption database" default:"false"`
	NoCache     bool     `help:"Skip the clip embedding cache" default:"false"`
}

func (c *CLI) Run() error {
	logger := log.New(os.Stderr)

	// Set log level
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(level)

	// Resolve the vocabulary
	vocabulary := tags.Default()
	if c.TagsFile != "" {
		vocabulary, err = tags.Load(c.TagsFile)
		if err != nil {
			logger.Fatal("Failed to load tags file", "error", err)
		}
		logger.Info("Loaded tag vocabulary", "file", c.TagsFile, "tags", len(vocabulary))
	}

	// Initialize embedding provider
	provider, err := commands.SetupEmbeddingProvider(c.EmbeddingConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize embedding provider", "error", err)
	}
	defer commands.CloseEmbeddingProvider(provider, logger)

	// Initialize vector storage unless caching is disabled
	var vectorStorage embeddings.VectorStorage
	if !c.NoCache {
		vectorStorage, err = commands.SetupVectorStorage(c.DataDir, provider, logger)
		if err != nil {
			logger.Fatal("Failed to create vector storage", "error", err)
		}
		defer vectorStorage.Close()
	}

	// Initialize caption database unless storing is disabled
	var database *db.DB
	if !c.NoStore {
		database, err = db.New(c.DataDir, logger)
		if err != nil {
			logger.Fatal("Failed to initialize database", "error", err)
		}
		defer database.Close()
	}

	// Create context with timeout for the run
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	capt := captioner.NewCaptioner(logger, provider, vectorStorage, database)
	results, err := capt.CaptionFiles(ctx, c.Paths, vocabulary, captioner.Config{
		TopK:        c.TopK,
		Concurrency: c.Concurrency,
		Progress:    !c.NoProgress,
		Store:       !c.NoStore,
	})
	if err != nil {
		logger.Fatal("Failed to caption files", "error", err)
	}

	logger.Info("Files captioned successfully", "count", len(results))

	if c.Output != "" {
		if err := writeOutput(c.Output, results, c.Overwrite, logger); err != nil {
			logger.Fatal("Failed to write output", "error", err)
		}
	}

	if c.Table {
		fmt.Println(renderCaptionTable(results))
	}

	// Default to JSON on stdout when no file output was requested
	if c.Output == "" && !c.Table {
		if err := printJSON(os.Stdout, results); err != nil {
			logger.Fatal("Failed to print results", "error", err)
		}
	}

	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("clapety-caption"),
		kong.Description("Generate pseudo-captions (top-K tags) for audio files"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
