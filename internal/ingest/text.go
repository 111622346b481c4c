package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextLoader reads a plain text or markdown brief.
type TextLoader struct{}

func (t *TextLoader) Load(_ context.Context, source string) (*Brief, error) {
	if err := validateFile(source); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("read brief %s: %w", source, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("brief %s is empty", source)
	}

	return newBrief(string(data), "", filepath.Base(source)), nil
}
