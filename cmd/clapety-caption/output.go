package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/clapety/clapety/internal/types"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// writeOutput routes results to a JSONL file or a directory of per-file
// .txt captions, depending on the destination's extension.
func writeOutput(dest string, results []types.FileCaption, overwrite bool, logger *log.Logger) error {
	ext := strings.ToLower(filepath.Ext(dest))
	if ext == ".jsonl" || ext == ".ndjson" {
		return writeJSONL(dest, results, logger)
	}
	return writeCaptionDir(dest, results, overwrite, logger)
}

func writeJSONL(path string, results []types.FileCaption, logger *log.Logger) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create JSONL file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	for _, result := range results {
		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result for %s: %w", result.File, err)
		}
	}

	logger.Info("Wrote JSONL output", "path", path, "count", len(results))
	return nil
}

// writeCaptionDir writes one <stem>.txt per clip containing just the
// caption line. Existing files are skipped unless overwrite is set.
func writeCaptionDir(dir string, results []types.FileCaption, overwrite bool, logger *log.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	written := 0
	for _, result := range results {
		base := filepath.Base(result.File)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		path := filepath.Join(dir, stem+".txt")

		if !overwrite {
			if _, err := os.Stat(path); err == nil {
				logger.Debug("Skipping existing caption", "path", path)
				continue
			}
		}

		if err := os.WriteFile(path, []byte(result.Caption+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write caption for %s: %w", result.File, err)
		}
		written++
	}

	logger.Info("Wrote caption files", "dir", dir, "written", written, "skipped", len(results)-written)
	return nil
}

func printJSON(w io.Writer, results []types.FileCaption) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func renderCaptionTable(results []types.FileCaption) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"File", "Caption", "Top Score", "Model"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Top Score", Align: text.AlignRight},
	})

	for _, result := range results {
		topScore := ""
		if len(result.Tags) > 0 {
			topScore = fmt.Sprintf("%.4f", result.Tags[0].Score)
		}
		t.AppendRow(table.Row{
			filepath.Base(result.File),
			result.Caption,
			topScore,
			result.Model,
		})
	}

	return t.Render()
}
