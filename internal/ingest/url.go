package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// URLLoader fetches a web page and keeps its readable article text.
type URLLoader struct {
	// Client defaults to a 30s-timeout client.
	Client *http.Client
}

func (u *URLLoader) Load(ctx context.Context, source string) (*Brief, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid brief URL %s: %w", source, err)
	}

	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", source, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch brief %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch brief %s: HTTP %d", source, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBriefSize), parsed)
	if err != nil {
		return nil, fmt.Errorf("extract article from %s: %w", source, err)
	}
	if article.TextContent == "" {
		return nil, fmt.Errorf("no readable content in %s", source)
	}

	return newBrief(article.TextContent, article.Title, source), nil
}
