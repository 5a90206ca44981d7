// Package tags provides the candidate tag vocabularies ranked against
// audio clips. The default list is returned as a fresh copy so callers
// with different vocabularies never share state.
package tags

import (
	"fmt"
	"os"
	"strings"
)

// defaultTags is the stock vocabulary used when no tag file is supplied.
var defaultTags = []string{
	"speech",
	"male voice",
	"female voice",
	"music",
	"instrumental",
	"drums",
	"guitar",
	"piano",
	"bass",
	"synth",
	"loop",
	"ambient",
	"crowd",
	"applause",
	"footsteps",
	"rain",
	"wind",
	"birdsong",
	"engine",
	"noise",
}

// Default returns a copy of the built-in vocabulary.
func Default() []string {
	out := make([]string, len(defaultTags))
	copy(out, defaultTags)
	return out
}

// Load reads a newline-separated tag file. Blank lines and surrounding
// whitespace are dropped. An empty result is an error rather than a
// silent fallback to the defaults.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags file: %w", err)
	}

	var tags []string
	for _, line := range strings.Split(string(data), "\n") {
		tag := strings.TrimSpace(line)
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("no tags found in %s", path)
	}
	if err := Validate(tags); err != nil {
		return nil, fmt.Errorf("invalid tags file %s: %w", path, err)
	}
	return tags, nil
}

// Validate rejects empty and duplicate entries. Vocabulary order is the
// ranking tie-break order, so duplicates would make results ambiguous.
func Validate(tags []string) error {
	seen := make(map[string]struct{}, len(tags))
	for i, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("empty tag at position %d", i)
		}
		if _, ok := seen[tag]; ok {
			return fmt.Errorf("duplicate tag %q", tag)
		}
		seen[tag] = struct{}{}
	}
	return nil
}
