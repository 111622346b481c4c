package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var claudeModels = map[string]string{
	"haiku":  "claude-haiku-4-5-20251001",
	"sonnet": "claude-sonnet-4-5-20250929",
}

// Claude calls the Anthropic Messages API.
type Claude struct {
	model  string
	client anthropic.Client
}

// NewClaude creates a Claude client. The API key is read from
// ANTHROPIC_API_KEY unless overridden by opts.
func NewClaude(model string, opts ...option.RequestOption) *Claude {
	// The SDK retries by default; callers expect a single attempt.
	opts = append([]option.RequestOption{option.WithMaxRetries(0)}, opts...)
	return &Claude{model: model, client: anthropic.NewClient(opts...)}
}

func (c *Claude) Name() string { return "anthropic" }

func (c *Claude) Complete(ctx context.Context, req Request) (string, error) {
	modelID := claudeModels[c.model]
	if modelID == "" {
		modelID = claudeModels["haiku"]
	}

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelID),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}
	return extractText(message), nil
}

func extractText(msg *anthropic.Message) string {
	var parts []string
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "")
}
