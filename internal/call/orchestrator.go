package call

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/apresai/personacall/internal/observability"
	"github.com/apresai/personacall/internal/persona"
	"github.com/apresai/personacall/internal/region"
)

// Orchestrator is the entry point for live-call turns. Every method always
// returns a result; failures become silent turns.
type Orchestrator struct {
	engine *Engine
	log    *slog.Logger
}

// NewOrchestrator creates an Orchestrator around engine.
func NewOrchestrator(engine *Engine, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{engine: engine, log: logger}
}

// HandleUtterance answers one utterance. An empty utterance or participant
// list yields an empty result.
func (o *Orchestrator) HandleUtterance(ctx context.Context, sessionID, utterance string, mode Mode, participants []persona.Persona, topic string) []Response {
	return o.Handle(ctx, Turn{
		SessionID:    sessionID,
		Utterance:    utterance,
		Mode:         mode,
		Participants: participants,
		Topic:        topic,
	})
}

// Handle is HandleUtterance for a full Turn.
func (o *Orchestrator) Handle(ctx context.Context, t Turn) []Response {
	ctx, span := tracer.Start(ctx, "call.turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("call.id", t.SessionID),
		attribute.String("call.mode", string(t.Mode)),
		attribute.Int("call.participants", len(t.Participants)),
	)

	if err := validate(t); err != nil {
		o.log.WarnContext(ctx, "Skipping turn", "session_id", t.SessionID, "error", err)
		observability.TurnsTotal.WithLabelValues(string(t.Mode), "invalid").Inc()
		return []Response{}
	}

	responses := o.engine.Respond(ctx, t)

	outcome := "answered"
	if len(responses) == 0 {
		outcome = "silent"
	}
	observability.TurnsTotal.WithLabelValues(string(t.Mode), outcome).Inc()
	observability.RespondersPerTurn.Observe(float64(len(responses)))
	span.SetAttributes(attribute.Int("call.responses", len(responses)))

	o.log.InfoContext(ctx, "Turn handled",
		"session_id", t.SessionID,
		"mode", t.Mode,
		"responses", len(responses),
	)
	return responses
}

func validate(t Turn) error {
	if strings.TrimSpace(t.Utterance) == "" {
		return &InputError{SessionID: t.SessionID, Reason: "empty utterance"}
	}
	if len(t.Participants) == 0 {
		return &InputError{SessionID: t.SessionID, Reason: "no participants"}
	}
	return nil
}

// Reply is the result of ProcessUtterance. A one-on-one reply encodes as a
// single response object, a group reply as an array.
type Reply struct {
	Mode      Mode
	Responses []Response
}

// ProcessUtterance answers t and wraps the result for the caller's mode.
func (o *Orchestrator) ProcessUtterance(ctx context.Context, t Turn) Reply {
	return Reply{Mode: t.Mode, Responses: o.Handle(ctx, t)}
}

// Primary returns the first response, or a silent north response when the
// turn produced nothing.
func (r Reply) Primary() Response {
	if len(r.Responses) > 0 {
		return r.Responses[0]
	}
	return Response{Region: region.Fallback}
}

func (r Reply) MarshalJSON() ([]byte, error) {
	if r.Mode != Group {
		return json.Marshal(r.Primary())
	}
	if r.Responses == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Responses)
}
