package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/commands"
	"github.com/clapety/clapety/internal/db"
	"github.com/clapety/clapety/internal/mcp"
)

type CLI struct {
	commands.CommonConfig
	commands.EmbeddingConfig
}

func (c *CLI) Run() error {
	// Logs must go to stderr, stdout carries the MCP protocol
	logger := log.New(os.Stderr)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Fatal("Invalid log level", "error", err)
	}
	logger.SetLevel(level)

	database, err := db.New(c.DataDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()

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

	s := mcp.New(database, provider, vectorStorage, logger)
	return s.Run()
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("clapety-mcp-server"),
		kong.Description("MCP server exposing audio caption search over stdio"),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
