package call

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/apresai/personacall/internal/persona"
	"github.com/apresai/personacall/internal/prompt"
	"github.com/apresai/personacall/internal/region"
)

var tracer = otel.Tracer("github.com/apresai/personacall/internal/call")

// DefaultTimeout bounds each completion call.
const DefaultTimeout = 8 * time.Second

// Mode decides how many participants answer an utterance.
type Mode string

const (
	Group    Mode = "group"
	OneOnOne Mode = "one_on_one"
)

// ParseMode maps a session type to a Mode. Anything other than a group
// session is one-on-one.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(Group)) {
		return Group
	}
	return OneOnOne
}

// Response is one participant's reply to an utterance.
type Response struct {
	ResponseText string      `json:"response_text"`
	AgentName    string      `json:"agent_name"`
	Region       region.Code `json:"region"`
	DelayMS      int         `json:"delay_ms"`
	PersonaID    string      `json:"persona_id,omitempty"`
}

// Turn is one utterance to answer.
type Turn struct {
	SessionID    string
	Utterance    string
	Mode         Mode
	Participants []persona.Persona
	Topic        string
	// Brief is optional reference material shown to every participant.
	Brief string
}

// Engine selects responders for an utterance and generates their replies
// concurrently. It holds no per-call state.
type Engine struct {
	gen     *Generator
	table   *region.Table
	rng     Source
	timing  Timing
	timeout time.Duration
	log     *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSource injects the random source used for responder selection.
func WithSource(s Source) EngineOption { return func(e *Engine) { e.rng = s } }

// WithTiming sets the delay policy. The default is Simultaneous.
func WithTiming(t Timing) EngineOption { return func(e *Engine) { e.timing = t } }

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) EngineOption { return func(e *Engine) { e.timeout = d } }

func WithLogger(l *slog.Logger) EngineOption { return func(e *Engine) { e.log = l } }

// NewEngine creates an Engine.
func NewEngine(gen *Generator, table *region.Table, opts ...EngineOption) *Engine {
	e := &Engine{
		gen:     gen,
		table:   table,
		rng:     NewTimeSource(),
		timing:  Simultaneous{},
		timeout: DefaultTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Select picks the responders for one utterance. One-on-one takes the first
// participant; group takes 2 or 3 distinct participants at random, or all
// of them when fewer are available.
func (e *Engine) Select(mode Mode, participants []persona.Persona) []persona.Persona {
	if len(participants) == 0 {
		return nil
	}
	if mode != Group {
		return participants[:1]
	}

	k := 2 + e.rng.Intn(2)
	picked := sample(e.rng, len(participants), k)
	out := make([]persona.Persona, len(picked))
	for i, idx := range picked {
		out[i] = participants[idx]
	}
	return out
}

// SelectAndRespond answers utterance with the selected participants.
// Failed responders are left out; if all fail the result is empty.
func (e *Engine) SelectAndRespond(ctx context.Context, utterance string, mode Mode, participants []persona.Persona, topic string) []Response {
	return e.Respond(ctx, Turn{Utterance: utterance, Mode: mode, Participants: participants, Topic: topic})
}

// Respond is SelectAndRespond for a full Turn.
func (e *Engine) Respond(ctx context.Context, t Turn) []Response {
	responders := e.Select(t.Mode, t.Participants)
	if len(responders) == 0 {
		return []Response{}
	}

	builder := prompt.Builder{Brief: t.Brief}

	var (
		mu      sync.Mutex
		arrived = make([]Response, 0, len(responders))
		g       errgroup.Group
	)
	for _, p := range responders {
		g.Go(func() error {
			resp, err := e.respondOne(ctx, builder, p, t)
			if err != nil {
				e.log.WarnContext(ctx, "Dropping responder",
					"session_id", t.SessionID, "persona", p.Name, "error", err)
				return nil
			}
			mu.Lock()
			arrived = append(arrived, resp)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i := range arrived {
		arrived[i].DelayMS = e.timing.Delay(i, e.rng)
	}
	return arrived
}

func (e *Engine) respondOne(ctx context.Context, builder prompt.Builder, p persona.Persona, t Turn) (resp Response, err error) {
	code := region.Classify(p.Location)

	ctx, span := tracer.Start(ctx, "call.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("persona.name", p.Name),
		attribute.String("persona.region", string(code)),
	)

	defer func() {
		if r := recover(); r != nil {
			err = &GenerationError{Persona: p.Name, Provider: e.gen.client.Name(), Reason: "panic", Err: fmt.Errorf("%v", r)}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	promptText := builder.Build(p, e.table.Lookup(code), t.Topic)
	text, err := e.gen.generate(ctx, p.Name, promptText, t.Utterance)
	if err != nil {
		return Response{}, err
	}

	return Response{
		ResponseText: text,
		AgentName:    p.Name,
		Region:       code,
		PersonaID:    p.ID,
	}, nil
}
