// Package pipeline runs one interviewer utterance end to end for the CLI:
// resolve participants, load the brief, generate replies, and optionally
// speak them.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apresai/personacall/internal/call"
	"github.com/apresai/personacall/internal/ingest"
	"github.com/apresai/personacall/internal/persona"
	"github.com/apresai/personacall/internal/render"
	"github.com/apresai/personacall/internal/tts"
)

type Options struct {
	SessionID string
	Utterance string
	Mode      call.Mode
	// PersonaIDs selects participants; empty means every stored persona.
	PersonaIDs []string
	Topic      string
	// Brief is a text file, PDF or URL shown to participants.
	Brief string
	// LoadedBrief is a brief already read by an earlier Run; when set, Brief
	// is not read again.
	LoadedBrief *ingest.Brief
	// SpeakDir receives one audio file per response when set.
	SpeakDir string
}

// Result is the outcome of Run.
type Result struct {
	Reply call.Reply
	Brief *ingest.Brief
	Clips []tts.Clip
	Files []string
}

// StageError reports which step of Run failed.
type StageError struct {
	Stage   render.Stage
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func Run(ctx context.Context, rt *Runtime, opts Options, cb render.Callback) (*Result, error) {
	if cb == nil {
		cb = render.NopCallback
	}
	start := time.Now()
	res := &Result{}

	// Stage 1: participants
	cb(render.NewEvent(render.StagePersonas, "Loading participants...", start))
	participants, err := resolveParticipants(ctx, rt.Personas, opts.PersonaIDs)
	if err != nil {
		return nil, &StageError{Stage: render.StagePersonas, Message: "failed to load participants", Err: err}
	}

	// Stage 2: brief
	if opts.LoadedBrief != nil {
		res.Brief = opts.LoadedBrief
	} else if opts.Brief != "" {
		cb(render.NewEvent(render.StageBrief, "Reading brief...", start))
		brief, err := ingest.Load(ctx, opts.Brief)
		if err != nil {
			return nil, &StageError{Stage: render.StageBrief, Message: "failed to load brief", Err: err}
		}
		res.Brief = brief
		cb(render.NewEvent(render.StageBrief, fmt.Sprintf("Brief: %s (%d words)", brief.Title, brief.WordCount), start))
	}

	// Stage 3: generate
	cb(render.NewEvent(render.StageGenerate, fmt.Sprintf("Asking %d participant(s)...", len(participants)), start))
	turn := call.Turn{
		SessionID:    opts.SessionID,
		Utterance:    opts.Utterance,
		Mode:         opts.Mode,
		Participants: participants,
		Topic:        opts.Topic,
	}
	if res.Brief != nil {
		turn.Brief = res.Brief.Text
	}
	res.Reply = rt.Orchestrator.ProcessUtterance(ctx, turn)

	// Stage 4: speak
	if opts.SpeakDir != "" && len(res.Reply.Responses) > 0 {
		if rt.Speaker == nil {
			return res, &StageError{Stage: render.StageSpeak, Message: "no TTS provider configured (set tts.provider)"}
		}
		cb(render.NewEvent(render.StageSpeak, fmt.Sprintf("Speaking with %s...", rt.Speaker.Name()), start))
		res.Clips = tts.SpeakAll(ctx, rt.Speaker, rt.Table, res.Reply.Responses, rt.Logger)
		files, err := writeClips(opts.SpeakDir, res.Clips)
		res.Files = files
		if err != nil {
			return res, &StageError{Stage: render.StageSpeak, Message: "failed to write audio", Err: err}
		}
	}

	cb(render.NewEvent(render.StageComplete, fmt.Sprintf("%d response(s)", len(res.Reply.Responses)), start))
	return res, nil
}

func resolveParticipants(ctx context.Context, store persona.Store, ids []string) ([]persona.Persona, error) {
	if len(ids) == 0 {
		all, err := store.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(all) == 0 {
			return nil, fmt.Errorf("persona store is empty")
		}
		return all, nil
	}
	return persona.GetMany(ctx, store, ids)
}

// writeClips saves each successful clip as NN-name.ext and returns the paths.
func writeClips(dir string, clips []tts.Clip) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var files []string
	for i, c := range clips {
		if c.Err != nil || len(c.Audio.Data) == 0 {
			continue
		}
		name := fmt.Sprintf("%02d-%s.%s", i+1, slug(c.Response.AgentName), c.Audio.Format)
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, c.Audio.Data, 0o644); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteRune('-')
		}
	}
	if sb.Len() == 0 {
		return "participant"
	}
	return sb.String()
}
