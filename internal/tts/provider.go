package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apresai/personacall/internal/region"
)

// AudioFormat represents the audio encoding returned by a provider.
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
)

// Voice holds a provider-specific voice identifier and tuning.
type Voice struct {
	ID       string // Provider-specific voice identifier
	Name     string // Human-readable label
	Settings region.VoiceSettings
}

// AudioResult is the output of a synthesis call.
type AudioResult struct {
	Data   []byte
	Format AudioFormat
}

// Provider synthesizes speech for one response.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error)
	DefaultVoice() Voice
	Close() error
}

// Names lists the supported providers.
var Names = []string{"elevenlabs", "polly", "google"}

// Retry constants shared by all providers.
const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 1 * time.Second
	defaultBackoffMulti   = 2
	defaultMaxBackoff     = 10 * time.Second
)

// RetryableError signals that the operation can be retried.
type RetryableError struct {
	StatusCode int
	Body       string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// WithRetry executes fn with exponential backoff on RetryableError.
func WithRetry(ctx context.Context, fn func() error) error {
	return withRetry(ctx, defaultInitialBackoff, fn)
}

func withRetry(ctx context.Context, initial time.Duration, fn func() error) error {
	var lastErr error
	backoff := initial

	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return err
		}
		lastErr = err

		if attempt < defaultMaxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= time.Duration(defaultBackoffMulti)
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}

	return lastErr
}

// NewProvider creates a TTS provider by name.
func NewProvider(ctx context.Context, name string) (Provider, error) {
	switch name {
	case "elevenlabs":
		return NewElevenLabsProvider(), nil
	case "polly":
		return NewPollyProvider(ctx)
	case "google":
		return NewGoogleProvider(ctx)
	default:
		return nil, fmt.Errorf("unknown TTS provider %q: choose elevenlabs, polly, or google", name)
	}
}
