package tts

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/apresai/personacall/internal/call"
	"github.com/apresai/personacall/internal/observability"
	"github.com/apresai/personacall/internal/region"
)

// maxConcurrentSynthesis bounds parallel TTS requests for one turn.
const maxConcurrentSynthesis = 3

// VoiceFor picks the voice for a region. The profile's voice for the
// provider wins; otherwise the provider default is used with the profile's
// settings.
func VoiceFor(p Provider, prof region.Profile) Voice {
	v := p.DefaultVoice()
	if id := prof.Voices[p.Name()]; id != "" {
		v.ID = id
		v.Name = string(prof.Code) + " voice"
	}
	if prof.VoiceSettings != (region.VoiceSettings{}) {
		v.Settings = prof.VoiceSettings
	}
	return v
}

// Clip is the synthesized audio for one response. Err is set when synthesis
// failed; the response text is still usable.
type Clip struct {
	Response call.Response
	Voice    Voice
	Audio    AudioResult
	Err      error
}

// SpeakAll synthesizes every response of a turn concurrently, preserving the
// order of responses. Failures are reported per clip.
func SpeakAll(ctx context.Context, p Provider, table *region.Table, responses []call.Response, logger *slog.Logger) []Clip {
	if logger == nil {
		logger = slog.Default()
	}
	clips := make([]Clip, len(responses))

	var g errgroup.Group
	g.SetLimit(maxConcurrentSynthesis)
	for i, r := range responses {
		clips[i] = Clip{Response: r, Voice: VoiceFor(p, table.Lookup(r.Region))}
		if r.ResponseText == "" {
			continue
		}
		g.Go(func() error {
			var audio AudioResult
			err := WithRetry(ctx, func() error {
				var err error
				audio, err = p.Synthesize(ctx, r.ResponseText, clips[i].Voice)
				return err
			})
			if err != nil {
				observability.SynthesisTotal.WithLabelValues(p.Name(), "error").Inc()
				logger.WarnContext(ctx, "Synthesis failed", "agent", r.AgentName, "provider", p.Name(), "error", err)
				clips[i].Err = err
				return nil
			}
			observability.SynthesisTotal.WithLabelValues(p.Name(), "ok").Inc()
			clips[i].Audio = audio
			return nil
		})
	}
	_ = g.Wait()
	return clips
}
