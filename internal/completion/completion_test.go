package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientUnknownModel(t *testing.T) {
	_, err := NewClient(context.Background(), "gpt-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "haiku")
}

func TestNewClientProviders(t *testing.T) {
	c, err := NewClient(context.Background(), "sonnet")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", c.Name())

	c, err = NewClient(context.Background(), "gemini-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini", c.Name())
}

func TestClaudeComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_01", "type": "message", "role": "assistant",
			"model": "claude-haiku-4-5-20251001",
			"content": [{"type": "text", "text": "Arre yaar, "}, {"type": "text", "text": "looks nice."}],
			"stop_reason": "end_turn", "stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	defer srv.Close()

	c := NewClaude("haiku", option.WithBaseURL(srv.URL), option.WithAPIKey("test"))
	text, err := c.Complete(context.Background(), Request{System: "sys", User: "hi", Temperature: 0.8, MaxTokens: 150})
	require.NoError(t, err)

	assert.Equal(t, "Arre yaar, looks nice.", text)
	assert.Equal(t, "claude-haiku-4-5-20251001", got["model"])
	assert.EqualValues(t, 150, got["max_tokens"])
	assert.InDelta(t, 0.8, got["temperature"], 1e-9)
}

func TestClaudeSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"boom"}}`)
	}))
	defer srv.Close()

	c := NewClaude("haiku", option.WithBaseURL(srv.URL), option.WithAPIKey("test"))
	_, err := c.Complete(context.Background(), Request{User: "hi", MaxTokens: 10})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestGeminiComplete(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent"))
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"Seri, seems okay."}]}}]}`)
	}))
	defer srv.Close()

	g := &Gemini{model: "gemini-flash", apiKey: "k", baseURL: srv.URL, httpClient: srv.Client()}
	text, err := g.Complete(context.Background(), Request{System: "sys", User: "u", Temperature: 0.8, MaxTokens: 150, PresencePenalty: 0.6})
	require.NoError(t, err)

	assert.Equal(t, "Seri, seems okay.", text)
	assert.Equal(t, "sys", got.SystemInstruction.Parts[0].Text)
	assert.Equal(t, 150, got.GenerationConfig.MaxOutputTokens)
	assert.InDelta(t, 0.6, got.GenerationConfig.PresencePenalty, 1e-9)
}

func TestGeminiErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	g := &Gemini{model: "gemini-pro", baseURL: srv.URL, httpClient: srv.Client()}
	_, err := g.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestGeminiTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	g := &Gemini{model: "gemini-flash", apiKey: "SECRET-KEY-123", baseURL: baseURL, httpClient: &http.Client{Timeout: time.Second}}
	_, err := g.Complete(context.Background(), Request{System: "sys", User: "u"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}

type fakeConverse struct {
	in  *bedrockruntime.ConverseInput
	out *bedrockruntime.ConverseOutput
	err error
}

func (f *fakeConverse) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.in = in
	return f.out, f.err
}

func TestNovaComplete(t *testing.T) {
	fake := &fakeConverse{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "Ho na, it works."}},
		}},
	}}
	n := NewNovaWithClient("nova-lite", fake)

	text, err := n.Complete(context.Background(), Request{System: "s", User: "u", Temperature: 0.8, MaxTokens: 150})
	require.NoError(t, err)
	assert.Equal(t, "Ho na, it works.", text)
	assert.Equal(t, "us.amazon.nova-2-lite-v1:0", *fake.in.ModelId)
	assert.EqualValues(t, 150, *fake.in.InferenceConfig.MaxTokens)

	fake.err = errors.New("throttled")
	_, err = n.Complete(context.Background(), Request{})
	assert.ErrorContains(t, err, "throttled")
}

type flakyClient struct {
	calls int
	err   error
}

func (f *flakyClient) Name() string { return "flaky" }

func (f *flakyClient) Complete(context.Context, Request) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "ok", nil
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := &flakyClient{err: errors.New("down")}
	b := WithBreaker(inner, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Hour}, nil)

	for i := 0; i < 2; i++ {
		_, err := b.Complete(context.Background(), Request{})
		assert.EqualError(t, err, "down")
	}
	_, err := b.Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "open", b.State())
	assert.Equal(t, "flaky", b.Name())
}

func TestBreakerPassesThrough(t *testing.T) {
	b := WithBreaker(&flakyClient{}, BreakerSettings{}, nil)
	text, err := b.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}
