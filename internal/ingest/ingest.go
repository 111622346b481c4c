// Package ingest loads reference material (a product brief) that call
// participants are told they have seen.
package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
)

type SourceType string

const (
	SourceURL  SourceType = "url"
	SourcePDF  SourceType = "pdf"
	SourceText SourceType = "text"

	// maxBriefSize is the largest brief accepted from any source (5 MB).
	maxBriefSize = 5 * 1024 * 1024
)

func (s SourceType) String() string {
	return string(s)
}

// Brief is extracted reference text.
type Brief struct {
	Text      string
	Title     string
	Source    string
	WordCount int
}

// Loader extracts a brief from a source location.
type Loader interface {
	Load(ctx context.Context, source string) (*Brief, error)
}

func DetectSource(input string) SourceType {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return SourceURL
	}
	if strings.HasSuffix(strings.ToLower(input), ".pdf") {
		return SourcePDF
	}
	return SourceText
}

func NewLoader(input string) Loader {
	switch DetectSource(input) {
	case SourceURL:
		return &URLLoader{}
	case SourcePDF:
		return &PDFLoader{}
	default:
		return &TextLoader{}
	}
}

// Load picks a loader for source and runs it. An empty source yields a nil
// brief and no error.
func Load(ctx context.Context, source string) (*Brief, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	return NewLoader(source).Load(ctx, source)
}

func newBrief(text, title, source string) *Brief {
	text = strings.TrimSpace(text)
	if title == "" {
		title = titleFromText(text, 80)
	}
	return &Brief{
		Text:      text,
		Title:     title,
		Source:    source,
		WordCount: len(strings.Fields(text)),
	}
}

func titleFromText(text string, maxLen int) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx > 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > maxLen {
		line = line[:maxLen] + "..."
	}
	if line == "" {
		return "Untitled"
	}
	return line
}

func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access brief %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("brief %s is a directory, not a file", path)
	}
	if info.Size() > maxBriefSize {
		return fmt.Errorf("brief %s is too large (%d KB, max %d KB)", path, info.Size()/1024, maxBriefSize/1024)
	}
	return nil
}
