package call

import (
	"context"
	"errors"
	"time"

	"github.com/apresai/personacall/internal/completion"
	"github.com/apresai/personacall/internal/observability"
	"github.com/apresai/personacall/internal/prompt"
)

// Sampling defaults favour natural variation over determinism and keep
// replies to a few spoken sentences.
const (
	DefaultTemperature      = 0.8
	DefaultMaxTokens        = 150
	DefaultPresencePenalty  = 0.6
	DefaultFrequencyPenalty = 0.5
)

// GeneratorConfig holds sampling parameters. Unset values take the
// defaults; a penalty set to 0 turns that penalty off.
type GeneratorConfig struct {
	Temperature      float64
	MaxTokens        int
	PresencePenalty  *float64
	FrequencyPenalty *float64
}

type sampling struct {
	temperature      float64
	maxTokens        int
	presencePenalty  float64
	frequencyPenalty float64
}

func (c GeneratorConfig) resolve() sampling {
	s := sampling{
		temperature:      c.Temperature,
		maxTokens:        c.MaxTokens,
		presencePenalty:  DefaultPresencePenalty,
		frequencyPenalty: DefaultFrequencyPenalty,
	}
	if s.temperature <= 0 {
		s.temperature = DefaultTemperature
	}
	if s.maxTokens <= 0 {
		s.maxTokens = DefaultMaxTokens
	}
	if c.PresencePenalty != nil {
		s.presencePenalty = *c.PresencePenalty
	}
	if c.FrequencyPenalty != nil {
		s.frequencyPenalty = *c.FrequencyPenalty
	}
	return s
}

// Generator turns a persona prompt and an utterance into one reply.
type Generator struct {
	client completion.Client
	cfg    sampling
}

// NewGenerator wraps an injected completion client.
func NewGenerator(client completion.Client, cfg GeneratorConfig) *Generator {
	return &Generator{client: client, cfg: cfg.resolve()}
}

// Generate makes one completion attempt and returns cleaned text, or a
// *GenerationError.
func (g *Generator) Generate(ctx context.Context, promptText, utterance string) (string, error) {
	return g.generate(ctx, "", promptText, utterance)
}

func (g *Generator) generate(ctx context.Context, name, promptText, utterance string) (string, error) {
	provider := g.client.Name()
	fail := func(reason string, err error) (string, error) {
		observability.GenerationsTotal.WithLabelValues(provider, reason).Inc()
		return "", &GenerationError{Persona: name, Provider: provider, Reason: reason, Err: err}
	}

	start := time.Now()
	raw, err := g.client.Complete(ctx, completion.Request{
		System:           promptText,
		User:             prompt.UserMessage(utterance),
		Temperature:      g.cfg.temperature,
		MaxTokens:        g.cfg.maxTokens,
		PresencePenalty:  g.cfg.presencePenalty,
		FrequencyPenalty: g.cfg.frequencyPenalty,
	})
	observability.GenerationLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fail("timeout", err)
	case errors.Is(err, completion.ErrCircuitOpen):
		return fail("circuit_open", err)
	case err != nil:
		return fail("error", err)
	}

	text := cleanResponse(raw, name)
	if text == "" {
		return fail("empty", nil)
	}
	if phrase, ok := assistantSpeak(text); ok {
		return fail("assistant_phrasing", errors.New("contains "+phrase))
	}

	observability.GenerationsTotal.WithLabelValues(provider, "ok").Inc()
	return text, nil
}
