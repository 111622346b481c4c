package completion

import (
	"context"
	"fmt"
	"sort"
)

// Request is one text-completion call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	// Repetition control. Providers without support ignore these.
	FrequencyPenalty float64
	PresencePenalty  float64
}

// Client issues a single completion request. Implementations make exactly one
// attempt per call.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Models maps a short model name to the provider that serves it.
var Models = map[string]string{
	"haiku":        "anthropic",
	"sonnet":       "anthropic",
	"nova-lite":    "bedrock",
	"gemini-flash": "gemini",
	"gemini-pro":   "gemini",
}

// ModelNames returns the supported model names sorted.
func ModelNames() []string {
	names := make([]string, 0, len(Models))
	for name := range Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewClient creates the client for a short model name.
func NewClient(ctx context.Context, model string) (Client, error) {
	switch Models[model] {
	case "anthropic":
		return NewClaude(model), nil
	case "bedrock":
		return NewNova(ctx, model)
	case "gemini":
		return NewGemini(model), nil
	default:
		return nil, fmt.Errorf("unknown model %q (valid: %v)", model, ModelNames())
	}
}
