package tts

import (
	"context"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

const googleDefaultVoice = "en-IN-Neural2-B"

// GoogleProvider implements Provider using Google Cloud TTS Indian English voices.
type GoogleProvider struct {
	client *texttospeech.Client
}

func NewGoogleProvider(ctx context.Context) (*GoogleProvider, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create Google TTS client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) DefaultVoice() Voice {
	return Voice{ID: googleDefaultVoice, Name: googleDefaultVoice}
}

func (p *GoogleProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	resp, err := p.client.SynthesizeSpeech(ctx, googleRequest(text, voice))
	if err != nil {
		return AudioResult{}, fmt.Errorf("Google TTS synthesize: %w", err)
	}
	return AudioResult{Data: resp.AudioContent, Format: FormatMP3}, nil
}

func googleRequest(text string, voice Voice) *texttospeechpb.SynthesizeSpeechRequest {
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: googleLanguage(voice.ID),
			Name:         voice.ID,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}
}

// googleLanguage derives the BCP-47 code from a voice name like en-IN-Neural2-B.
func googleLanguage(voiceID string) string {
	parts := strings.SplitN(voiceID, "-", 3)
	if len(parts) < 3 {
		return "en-IN"
	}
	return parts[0] + "-" + parts[1]
}

func (p *GoogleProvider) Close() error { return p.client.Close() }
