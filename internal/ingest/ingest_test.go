package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectSource(t *testing.T) {
	assert.Equal(t, SourceURL, DetectSource("https://example.com/brief"))
	assert.Equal(t, SourcePDF, DetectSource("deck.PDF"))
	assert.Equal(t, SourceText, DetectSource("notes.md"))
}

func TestLoadEmptySource(t *testing.T) {
	b, err := Load(context.Background(), "  ")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestTextLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brief.md")
	require.NoError(t, os.WriteFile(path, []byte("UPI Autopay\n\nSet up recurring payments in two taps.\n"), 0o644))

	b, err := Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "UPI Autopay", b.Title)
	assert.Equal(t, "brief.md", b.Source)
	assert.Equal(t, 9, b.WordCount)
}

func TestTextLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(context.Background(), dir)
	assert.ErrorContains(t, err, "is a directory")

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n  \n"), 0o644))
	_, err = Load(context.Background(), empty)
	assert.ErrorContains(t, err, "is empty")

	_, err = Load(context.Background(), filepath.Join(dir, "missing.pdf"))
	assert.ErrorContains(t, err, "cannot access")
}

func TestURLLoader(t *testing.T) {
	para := strings.Repeat("The new checkout flow lets shoppers pay with UPI, cards or cash on delivery without leaving the cart page. ", 6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `<html><head><title>Checkout Brief</title></head><body><article><h1>Checkout Brief</h1><p>%s</p><p>%s</p><p>%s</p></article></body></html>`, para, para, para)
	}))
	defer srv.Close()

	l := &URLLoader{Client: srv.Client()}
	b, err := l.Load(context.Background(), srv.URL+"/brief")
	require.NoError(t, err)
	assert.Contains(t, b.Text, "cash on delivery")
	assert.Equal(t, srv.URL+"/brief", b.Source)
	assert.Positive(t, b.WordCount)

	_, err = l.Load(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "HTTP 404")
}
