package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/personacall/internal/call"
	"github.com/apresai/personacall/internal/observability"
	"github.com/apresai/personacall/internal/persona"
	"github.com/apresai/personacall/internal/region"
	"github.com/apresai/personacall/internal/tts"
)

var tracer = otel.Tracer("personacall-mcp")

// persistTimeout bounds turn persistence after the reply is ready.
const persistTimeout = 5 * time.Second

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	callID := map[string]any{
		"type":        "string",
		"description": "The call ID returned from create_call",
	}
	return []mcp.Tool{
		{
			Name:        "create_call",
			Description: "Start a simulated user research call with one or more personas. Returns a call ID for process_utterance.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"persona_ids": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Persona IDs in join order. The first persona answers in one_on_one mode.",
					},
					"mode": map[string]any{
						"type":        "string",
						"description": "group (2-3 participants answer each utterance) or one_on_one",
						"default":     "one_on_one",
					},
					"topic": map[string]any{
						"type":        "string",
						"description": "What the call is about",
						"default":     "product feedback",
					},
					"brief": map[string]any{
						"type":        "string",
						"description": "Reference material the participants have seen",
					},
				},
				Required: []string{"persona_ids"},
			},
		},
		{
			Name:        "process_utterance",
			Description: "Send what the interviewer said and get the participants' replies. one_on_one returns a single response object, group returns an array.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"call_id": callID,
					"utterance": map[string]any{
						"type":        "string",
						"description": "The interviewer's utterance",
					},
					"speak": map[string]any{
						"type":        "boolean",
						"description": "Also synthesize each reply in the participant's regional voice",
						"default":     false,
					},
				},
				Required: []string{"call_id", "utterance"},
			},
		},
		{
			Name:        "get_call",
			Description: "Get a call's status, participants and every turn so far.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"call_id": callID},
				Required:   []string{"call_id"},
			},
		},
		{
			Name:        "end_call",
			Description: "Close a call. Closed calls accept no more utterances.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{"call_id": callID},
				Required:   []string{"call_id"},
			},
		},
		{
			Name:        "classify_location",
			Description: "Show which Indian English region a free-text location maps to and its speech profile.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"location": map[string]any{
						"type":        "string",
						"description": "Free-text location, e.g. \"Chennai, Tamil Nadu\"",
					},
				},
				Required: []string{"location"},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	calls        CallStore
	personas     persona.Store
	orchestrator *call.Orchestrator
	table        *region.Table
	speaker      tts.Provider // nil disables speak
	storage      *Storage     // nil disables speak
	log          *slog.Logger
}

// NewHandlers creates tool handlers. speaker and storage may be nil.
func NewHandlers(calls CallStore, personas persona.Store, orchestrator *call.Orchestrator, table *region.Table, speaker tts.Provider, storage *Storage, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		calls:        calls,
		personas:     personas,
		orchestrator: orchestrator,
		table:        table,
		speaker:      speaker,
		storage:      storage,
		log:          logger,
	}
}

// HandleCreateCall validates the participants and opens a call.
func (h *Handlers) HandleCreateCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.create_call")
	defer span.End()

	ids := parseStringList(req, "persona_ids")
	mode := call.ParseMode(mcp.ParseString(req, "mode", string(call.OneOnOne)))
	topic := mcp.ParseString(req, "topic", "")
	brief := mcp.ParseString(req, "brief", "")

	span.SetAttributes(
		attribute.String("call.mode", string(mode)),
		attribute.Int("call.participants", len(ids)),
	)

	if len(ids) == 0 {
		span.SetStatus(codes.Error, "missing persona_ids")
		return mcp.NewToolResultError("persona_ids is required"), nil
	}

	participants, err := persona.GetMany(ctx, h.personas, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persona lookup failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to load personas: %v", err)), nil
	}

	id, err := NewID()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := h.calls.CreateCall(ctx, NewCallItem(id, string(mode), topic, brief, ids)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create call failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to create call: %v", err)), nil
	}

	span.SetAttributes(attribute.String("call.id", id))
	h.log.InfoContext(ctx, "Call created", "call_id", id, "mode", mode, "participants", len(ids))

	people := make([]map[string]any, 0, len(participants))
	for _, p := range participants {
		people = append(people, map[string]any{
			"persona_id": p.ID,
			"name":       p.Name,
			"region":     region.Classify(p.Location),
		})
	}
	return jsonResult(map[string]any{
		"call_id":      id,
		"status":       CallStatusOpen,
		"mode":         mode,
		"participants": people,
	})
}

// HandleProcessUtterance answers one utterance on an open call and records
// the turn. The first content block is the reply itself; audio URLs follow
// in a second block when speak is set. Failed speech never costs the reply.
func (h *Handlers) HandleProcessUtterance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.process_utterance")
	defer span.End()

	id := mcp.ParseString(req, "call_id", "")
	utterance := mcp.ParseString(req, "utterance", "")
	speak := req.GetBool("speak", false)

	span.SetAttributes(attribute.String("call.id", id), attribute.Bool("speak", speak))

	if id == "" {
		span.SetStatus(codes.Error, "missing call_id")
		return mcp.NewToolResultError("call_id is required"), nil
	}

	session, errResult := h.openSession(ctx, id)
	if errResult != nil {
		span.SetStatus(codes.Error, "call unavailable")
		return errResult, nil
	}

	reply := h.orchestrator.ProcessUtterance(ctx, session.Turn(utterance))
	replyJSON, err := json.Marshal(reply)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal reply: %v", err)), nil
	}

	turnID, err := NewID()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var audioURLs []string
	if speak && len(reply.Responses) > 0 {
		audioURLs, err = h.speak(ctx, id, turnID, reply.Responses)
		if err != nil {
			span.RecordError(err)
			h.log.WarnContext(ctx, "Replying without audio", "call_id", id, "turn_id", turnID, "error", err)
		}
	}

	// The caller already has its reply; record the turn even if it hangs up.
	pctx, cancel := context.WithTimeout(observability.DetachTraceContext(ctx), persistTimeout)
	defer cancel()
	if err := h.calls.AppendTurn(pctx, id, NewTurnItem(id, turnID, utterance, string(replyJSON), audioURLs)); err != nil {
		span.RecordError(err)
		h.log.WarnContext(ctx, "Failed to record turn", "call_id", id, "turn_id", turnID, "error", err)
	}

	span.SetAttributes(attribute.Int("call.responses", len(reply.Responses)))

	result := mcp.NewToolResultText(string(replyJSON))
	if len(audioURLs) > 0 {
		audioJSON, _ := json.Marshal(map[string]any{"turn_id": turnID, "audio_urls": audioURLs})
		result.Content = append(result.Content, mcp.NewTextContent(string(audioJSON)))
	}
	return result, nil
}

// openSession loads an open call and its participants. On failure it
// returns the tool error to send back.
func (h *Handlers) openSession(ctx context.Context, id string) (call.Session, *mcp.CallToolResult) {
	item, err := h.calls.GetCall(ctx, id)
	if err != nil {
		return call.Session{}, mcp.NewToolResultError(fmt.Sprintf("failed to get call: %v", err))
	}
	if item == nil {
		return call.Session{}, mcp.NewToolResultError(fmt.Sprintf("call %s not found", id))
	}
	if item.Status != string(CallStatusOpen) {
		return call.Session{}, mcp.NewToolResultError(fmt.Sprintf("call %s is %s", id, item.Status))
	}

	participants, err := persona.GetMany(ctx, h.personas, item.PersonaIDs)
	if err != nil {
		return call.Session{}, mcp.NewToolResultError(fmt.Sprintf("failed to load personas: %v", err))
	}
	return call.Session{
		ID:           item.CallID,
		Topic:        item.Topic,
		Mode:         call.ParseMode(item.Mode),
		Participants: participants,
		Brief:        item.Brief,
	}, nil
}

func (h *Handlers) speak(ctx context.Context, callID, turnID string, responses []call.Response) ([]string, error) {
	if h.speaker == nil || h.storage == nil {
		return nil, errors.New("speech is not configured on this server")
	}
	clips := tts.SpeakAll(ctx, h.speaker, h.table, responses, h.log)

	var urls []string
	for i, c := range clips {
		if c.Err != nil || len(c.Audio.Data) == 0 {
			continue
		}
		_, url, err := h.storage.UploadClip(ctx, callID, turnID, i+1, c.Audio)
		if err != nil {
			h.log.WarnContext(ctx, "Failed to upload clip", "call_id", callID, "agent", c.Response.AgentName, "error", err)
			continue
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// HandleGetCall returns call metadata and its turns.
func (h *Handlers) HandleGetCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.get_call")
	defer span.End()

	id := mcp.ParseString(req, "call_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing call_id")
		return mcp.NewToolResultError("call_id is required"), nil
	}
	span.SetAttributes(attribute.String("call.id", id))

	item, err := h.calls.GetCall(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get call failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to get call: %v", err)), nil
	}
	if item == nil {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("call %s not found", id)), nil
	}

	turns, err := h.calls.ListTurns(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list turns failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to list turns: %v", err)), nil
	}

	turnList := make([]map[string]any, 0, len(turns))
	for _, t := range turns {
		turn := map[string]any{
			"turn_id":    t.TurnID,
			"utterance":  t.Utterance,
			"responses":  json.RawMessage(t.ResponsesJSON),
			"created_at": t.CreatedAt,
		}
		if len(t.AudioURLs) > 0 {
			turn["audio_urls"] = t.AudioURLs
		}
		turnList = append(turnList, turn)
	}

	result := map[string]any{
		"call_id":     item.CallID,
		"status":      item.Status,
		"mode":        item.Mode,
		"persona_ids": item.PersonaIDs,
		"turn_count":  item.TurnCount,
		"created_at":  item.CreatedAt,
		"turns":       turnList,
	}
	if item.Topic != "" {
		result["topic"] = item.Topic
	}
	if item.ClosedAt != "" {
		result["closed_at"] = item.ClosedAt
	}
	return jsonResult(result)
}

// HandleEndCall closes a call.
func (h *Handlers) HandleEndCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.end_call")
	defer span.End()

	id := mcp.ParseString(req, "call_id", "")
	if id == "" {
		span.SetStatus(codes.Error, "missing call_id")
		return mcp.NewToolResultError("call_id is required"), nil
	}
	span.SetAttributes(attribute.String("call.id", id))

	item, err := h.calls.GetCall(ctx, id)
	if err != nil {
		span.RecordError(err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to get call: %v", err)), nil
	}
	if item == nil {
		span.SetStatus(codes.Error, "not found")
		return mcp.NewToolResultError(fmt.Sprintf("call %s not found", id)), nil
	}

	if err := h.calls.CloseCall(ctx, id); err != nil {
		if errors.Is(err, ErrCallClosed) {
			return mcp.NewToolResultError(fmt.Sprintf("call %s is already closed", id)), nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "close call failed")
		return mcp.NewToolResultError(fmt.Sprintf("failed to close call: %v", err)), nil
	}

	h.log.InfoContext(ctx, "Call ended", "call_id", id, "turns", item.TurnCount)
	return jsonResult(map[string]any{
		"call_id":    id,
		"status":     CallStatusClosed,
		"turn_count": item.TurnCount,
	})
}

// HandleClassifyLocation maps a location to its region profile.
func (h *Handlers) HandleClassifyLocation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.classify_location")
	defer span.End()

	location := mcp.ParseString(req, "location", "")
	code := region.Classify(location)
	prof := h.table.Lookup(code)
	span.SetAttributes(attribute.String("persona.region", string(code)))

	return jsonResult(map[string]any{
		"location":        location,
		"region":          code,
		"accent":          prof.Accent,
		"native_language": prof.NativeLanguage,
		"filler_words":    prof.FillerWords,
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// parseStringList accepts a JSON array of strings or a comma-separated string.
func parseStringList(req mcp.CallToolRequest, key string) []string {
	args := req.GetArguments()
	if args == nil {
		return nil
	}
	var out []string
	switch v := args[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}
