package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

const pollyDefaultVoice = "Kajal"

// pollyVoiceLang maps voice IDs to their language codes.
var pollyVoiceLang = map[string]types.LanguageCode{
	"Kajal":   types.LanguageCodeEnIn,
	"Aditi":   types.LanguageCodeEnIn,
	"Raveena": types.LanguageCodeEnIn,
}

// PollyAPI is the part of the Polly client the provider uses.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, in *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyProvider implements Provider using AWS Polly neural voices.
type PollyProvider struct {
	client PollyAPI
}

func NewPollyProvider(ctx context.Context) (*PollyProvider, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for Polly: %w", err)
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions)
	return &PollyProvider{client: polly.NewFromConfig(awsCfg)}, nil
}

func (p *PollyProvider) Name() string { return "polly" }

func (p *PollyProvider) DefaultVoice() Voice {
	return Voice{ID: pollyDefaultVoice, Name: pollyDefaultVoice}
}

func (p *PollyProvider) Synthesize(ctx context.Context, text string, voice Voice) (AudioResult, error) {
	lang, ok := pollyVoiceLang[voice.ID]
	if !ok {
		lang = types.LanguageCodeEnIn
	}

	resp, err := p.client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       types.EngineNeural,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   aws.String("24000"),
		Text:         &text,
		TextType:     types.TextTypeText,
		VoiceId:      types.VoiceId(voice.ID),
		LanguageCode: lang,
	})
	if err != nil {
		return AudioResult{}, fmt.Errorf("Polly synthesize: %w", err)
	}
	defer resp.AudioStream.Close()

	data, err := io.ReadAll(resp.AudioStream)
	if err != nil {
		return AudioResult{}, fmt.Errorf("Polly read audio: %w", err)
	}

	return AudioResult{Data: data, Format: FormatMP3}, nil
}

func (p *PollyProvider) Close() error { return nil }
