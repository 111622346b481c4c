package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/personacall/internal/call"
	"github.com/apresai/personacall/internal/region"
)

func TestElevenLabsSynthesize(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotBody elevenLabsRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte("ID3audio"))
	}))
	defer srv.Close()

	p := &ElevenLabsProvider{apiKey: "secret", baseURL: srv.URL, httpClient: srv.Client()}
	voice := Voice{ID: "rgltZvTfiMmgWweZhh7n", Settings: region.VoiceSettings{Stability: 0.65, SimilarityBoost: 0.85, Style: 0.6, SpeakerBoost: true}}

	res, err := p.Synthesize(context.Background(), "Seri, romba nalla.", voice)
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3audio"), res.Data)
	assert.Equal(t, FormatMP3, res.Format)
	assert.Equal(t, "/rgltZvTfiMmgWweZhh7n", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "Seri, romba nalla.", gotBody.Text)
	assert.InDelta(t, 0.65, gotBody.VoiceSettings.Stability, 1e-9)
	assert.True(t, gotBody.VoiceSettings.UseSpeakerBoost)
}

func TestElevenLabsErrors(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		io.WriteString(w, "nope")
	}))
	defer srv.Close()

	p := &ElevenLabsProvider{baseURL: srv.URL, httpClient: srv.Client()}

	_, err := p.Synthesize(context.Background(), "hi", p.DefaultVoice())
	var retryable *RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.Equal(t, 429, retryable.StatusCode)

	status = http.StatusUnauthorized
	_, err = p.Synthesize(context.Background(), "hi", p.DefaultVoice())
	require.Error(t, err)
	assert.False(t, errors.As(err, &retryable))
}

type fakePolly struct {
	in *polly.SynthesizeSpeechInput
}

func (f *fakePolly) SynthesizeSpeech(_ context.Context, in *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.in = in
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(strings.NewReader("mp3"))}, nil
}

func TestPollySynthesize(t *testing.T) {
	fake := &fakePolly{}
	p := &PollyProvider{client: fake}

	res, err := p.Synthesize(context.Background(), "Achha, theek hai.", p.DefaultVoice())
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), res.Data)
	assert.Equal(t, types.VoiceId("Kajal"), fake.in.VoiceId)
	assert.Equal(t, types.LanguageCodeEnIn, fake.in.LanguageCode)
	assert.Equal(t, types.EngineNeural, fake.in.Engine)
}

func TestGoogleRequest(t *testing.T) {
	req := googleRequest("hello", Voice{ID: "en-IN-Neural2-C"})
	assert.Equal(t, "en-IN", req.Voice.LanguageCode)
	assert.Equal(t, "en-IN-Neural2-C", req.Voice.Name)

	assert.Equal(t, "en-IN", googleLanguage("custom"))
}

func TestWithRetry(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return &RetryableError{StatusCode: 503}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	attempts = 0
	err = withRetry(context.Background(), time.Millisecond, func() error {
		attempts++
		return errors.New("bad request")
	})
	assert.EqualError(t, err, "bad request")
	assert.Equal(t, 1, attempts)
}

// recordingProvider records voices and fails for text containing "fail".
type recordingProvider struct {
	mu     sync.Mutex
	voices map[string]Voice
}

func (p *recordingProvider) Name() string        { return "elevenlabs" }
func (p *recordingProvider) DefaultVoice() Voice { return Voice{ID: "default-voice"} }
func (p *recordingProvider) Close() error        { return nil }

func (p *recordingProvider) Synthesize(_ context.Context, text string, voice Voice) (AudioResult, error) {
	if strings.Contains(text, "fail") {
		return AudioResult{}, errors.New("synthesis rejected")
	}
	p.mu.Lock()
	p.voices[text] = voice
	p.mu.Unlock()
	return AudioResult{Data: []byte(text), Format: FormatMP3}, nil
}

func TestVoiceFor(t *testing.T) {
	table, err := region.DefaultTable()
	require.NoError(t, err)
	p := &recordingProvider{}

	tamil := VoiceFor(p, table.Lookup(region.Tamil))
	assert.Equal(t, "rgltZvTfiMmgWweZhh7n", tamil.ID)
	assert.InDelta(t, 0.85, tamil.Settings.SimilarityBoost, 1e-9)

	bare := VoiceFor(p, region.Profile{Code: "x"})
	assert.Equal(t, "default-voice", bare.ID)
}

func TestSpeakAll(t *testing.T) {
	table, err := region.DefaultTable()
	require.NoError(t, err)
	p := &recordingProvider{voices: map[string]Voice{}}

	responses := []call.Response{
		{ResponseText: "Seri, okay.", AgentName: "Priya", Region: region.Tamil},
		{ResponseText: "please fail", AgentName: "Rohit", Region: region.North},
		{ResponseText: "", AgentName: "Silent", Region: region.West},
	}
	clips := SpeakAll(context.Background(), p, table, responses, nil)
	require.Len(t, clips, 3)

	assert.Equal(t, []byte("Seri, okay."), clips[0].Audio.Data)
	assert.Equal(t, "rgltZvTfiMmgWweZhh7n", p.voices["Seri, okay."].ID)
	assert.NoError(t, clips[0].Err)

	assert.Error(t, clips[1].Err)
	assert.Equal(t, "Rohit", clips[1].Response.AgentName)

	assert.Nil(t, clips[2].Audio.Data)
	assert.NoError(t, clips[2].Err)
}
