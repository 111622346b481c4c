package call

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apresai/personacall/internal/completion"
	"github.com/apresai/personacall/internal/persona"
	"github.com/apresai/personacall/internal/region"
)

// scriptedClient answers as whichever persona the system prompt names.
type scriptedClient struct {
	mu       sync.Mutex
	requests []completion.Request
	fail     map[string]bool
	slow     map[string]bool
	panics   map[string]bool
	delay    time.Duration
	reply    func(name string) string
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Complete(ctx context.Context, req completion.Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	name := speakerFromPrompt(req.System)
	if c.panics[name] {
		panic("provider exploded")
	}
	if c.slow[name] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.fail[name] {
		return "", errors.New("upstream 500")
	}
	if c.reply != nil {
		return c.reply(name), nil
	}
	return "Achha, " + name + " thinks it looks fine.", nil
}

func speakerFromPrompt(system string) string {
	rest := strings.TrimPrefix(system, "You are ")
	name, _, _ := strings.Cut(rest, ",")
	return name
}

// fixedSource always returns v modulo n.
type fixedSource struct{ v int }

func (s fixedSource) Intn(n int) int { return s.v % n }

func testTable(t *testing.T) *region.Table {
	t.Helper()
	table, err := region.DefaultTable()
	require.NoError(t, err)
	return table
}

func participants(names ...string) []persona.Persona {
	locations := []string{"Chennai", "Delhi", "Mumbai", "Kolkata", "Hyderabad"}
	out := make([]persona.Persona, len(names))
	for i, n := range names {
		out[i] = persona.Persona{ID: "id-" + n, Name: n, Location: locations[i%len(locations)]}
	}
	return out
}

func newTestEngine(t *testing.T, client completion.Client, opts ...EngineOption) *Engine {
	t.Helper()
	return NewEngine(NewGenerator(client, GeneratorConfig{}), testTable(t), opts...)
}

func TestSelectOneOnOne(t *testing.T) {
	e := newTestEngine(t, &scriptedClient{}, WithSource(NewSource(1)))
	got := e.Select(OneOnOne, participants("Asha", "Ravi", "Meena"))
	require.Len(t, got, 1)
	assert.Equal(t, "Asha", got[0].Name)

	assert.Empty(t, e.Select(Group, nil))
}

func TestSelectGroupBounds(t *testing.T) {
	one := participants("Solo")
	ten := participants("a", "b", "c", "d", "e", "f", "g", "h", "i", "j")

	for seed := int64(0); seed < 200; seed++ {
		e := newTestEngine(t, &scriptedClient{}, WithSource(NewSource(seed)))

		got := e.Select(Group, one)
		require.Len(t, got, 1)

		got = e.Select(Group, ten)
		require.GreaterOrEqual(t, len(got), 2)
		require.LessOrEqual(t, len(got), 3)

		seen := map[string]bool{}
		for _, p := range got {
			require.False(t, seen[p.Name], "duplicate responder %s", p.Name)
			seen[p.Name] = true
		}
	}
}

func TestSelectGroupTwoParticipants(t *testing.T) {
	e := newTestEngine(t, &scriptedClient{}, WithSource(fixedSource{v: 1}))
	got := e.Select(Group, participants("a", "b"))
	assert.Len(t, got, 2)
}

func TestSelectIsReproducibleWithSeed(t *testing.T) {
	list := participants("a", "b", "c", "d", "e", "f")
	e1 := newTestEngine(t, &scriptedClient{}, WithSource(NewSource(42)))
	e2 := newTestEngine(t, &scriptedClient{}, WithSource(NewSource(42)))

	for i := 0; i < 20; i++ {
		assert.Equal(t, e1.Select(Group, list), e2.Select(Group, list))
	}
}

func TestSelectCoversEveryParticipant(t *testing.T) {
	list := participants("a", "b", "c", "d", "e")
	e := newTestEngine(t, &scriptedClient{}, WithSource(NewSource(3)))

	counts := map[string]int{}
	for i := 0; i < 500; i++ {
		for _, p := range e.Select(Group, list) {
			counts[p.Name]++
		}
	}
	assert.Len(t, counts, 5)
	for name, n := range counts {
		assert.Greater(t, n, 150, name)
	}
}

func TestPartialFailureKeepsSurvivors(t *testing.T) {
	client := &scriptedClient{fail: map[string]bool{"Asha": true, "Ravi": true}}
	e := newTestEngine(t, client, WithSource(fixedSource{v: 1}))

	got := e.SelectAndRespond(context.Background(), "Thoughts?", Group, participants("Asha", "Ravi", "Meena"), "upi")
	require.Len(t, got, 1)
	assert.Equal(t, "Meena", got[0].AgentName)
	assert.Len(t, client.requests, 3)
}

func TestAllFailuresReturnEmptyList(t *testing.T) {
	client := &scriptedClient{fail: map[string]bool{"Asha": true, "Ravi": true}}
	e := newTestEngine(t, client, WithSource(fixedSource{v: 0}))

	got := e.SelectAndRespond(context.Background(), "Thoughts?", Group, participants("Asha", "Ravi"), "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGroupScenario(t *testing.T) {
	client := &scriptedClient{}
	e := newTestEngine(t, client, WithSource(NewSource(7)))
	people := []persona.Persona{
		{Name: "Priya", Location: "Chennai"},
		{Name: "Rohit", Location: "Delhi"},
		{Name: "Sneha", Location: "Mumbai"},
	}
	want := map[string]region.Code{"Priya": region.Tamil, "Rohit": region.North, "Sneha": region.West}

	got := e.SelectAndRespond(context.Background(), "What do you think about this new UI?", Group, people, "banking app feedback")

	require.GreaterOrEqual(t, len(got), 2)
	require.LessOrEqual(t, len(got), 3)
	for _, r := range got {
		assert.NotEmpty(t, r.ResponseText)
		assert.Equal(t, want[r.AgentName], r.Region, r.AgentName)
		assert.Zero(t, r.DelayMS)
	}
	for _, req := range client.requests {
		assert.Contains(t, req.System, "banking app feedback")
		assert.Contains(t, req.User, "What do you think about this new UI?")
		assert.InDelta(t, 0.8, req.Temperature, 1e-9)
		assert.Equal(t, 150, req.MaxTokens)
	}
}

func TestResponsesRunConcurrently(t *testing.T) {
	client := &scriptedClient{delay: 200 * time.Millisecond}
	e := newTestEngine(t, client, WithSource(fixedSource{v: 1}))

	start := time.Now()
	got := e.SelectAndRespond(context.Background(), "hi", Group, participants("a", "b", "c"), "")
	elapsed := time.Since(start)

	assert.Len(t, got, 3)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestTimeoutDropsOnlySlowResponder(t *testing.T) {
	client := &scriptedClient{slow: map[string]bool{"b": true}}
	e := newTestEngine(t, client, WithSource(fixedSource{v: 1}), WithTimeout(50*time.Millisecond))

	got := e.SelectAndRespond(context.Background(), "hi", Group, participants("a", "b", "c"), "")
	require.Len(t, got, 2)
	for _, r := range got {
		assert.NotEqual(t, "b", r.AgentName)
	}
}

func TestPanickingProviderIsContained(t *testing.T) {
	client := &scriptedClient{panics: map[string]bool{"a": true}}
	e := newTestEngine(t, client, WithSource(fixedSource{v: 1}))

	got := e.SelectAndRespond(context.Background(), "hi", Group, participants("a", "b", "c"), "")
	assert.Len(t, got, 2)
}

func TestStaggeredTiming(t *testing.T) {
	client := &scriptedClient{}
	e := newTestEngine(t, client, WithSource(fixedSource{v: 1}), WithTiming(DefaultStaggered))

	got := e.SelectAndRespond(context.Background(), "hi", Group, participants("a", "b", "c"), "")
	require.Len(t, got, 3)
	assert.Equal(t, 500, got[0].DelayMS)
	assert.Equal(t, 500+801, got[1].DelayMS)
	assert.Equal(t, 500+2*801, got[2].DelayMS)
}

func TestParseTiming(t *testing.T) {
	tm, err := ParseTiming("")
	require.NoError(t, err)
	assert.Equal(t, Simultaneous{}, tm)

	tm, err = ParseTiming("staggered")
	require.NoError(t, err)
	assert.Equal(t, DefaultStaggered, tm)

	_, err = ParseTiming("chaotic")
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, Group, ParseMode("group"))
	assert.Equal(t, Group, ParseMode(" GROUP "))
	assert.Equal(t, OneOnOne, ParseMode("one_on_one"))
	assert.Equal(t, OneOnOne, ParseMode("1on1"))
	assert.Equal(t, OneOnOne, ParseMode(""))
}

func TestGeneratorCleansOutput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "Seri, it's nice.", "Seri, it's nice."},
		{"quoted", `"Arre yaar, too many steps."`, "Arre yaar, too many steps."},
		{"label", "Priya Raman: Honestly it's slow.", "Honestly it's slow."},
		{"first name label", "priya: Honestly it's slow.", "Honestly it's slow."},
		{"fenced", "```\nOkay, fine.\n```", "Okay, fine."},
		{"stage directions", "*laughs* Okay  [pause] fine.", "Okay fine."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &scriptedClient{reply: func(string) string { return tc.raw }}
			g := NewGenerator(client, GeneratorConfig{})
			got, err := g.generate(context.Background(), "Priya Raman", "You are Priya Raman, x", "hi")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGeneratorErrors(t *testing.T) {
	cases := []struct {
		name   string
		client *scriptedClient
		reason string
	}{
		{"empty", &scriptedClient{reply: func(string) string { return "  " }}, "empty"},
		{"assistant", &scriptedClient{reply: func(string) string { return "Great question! It is nice." }}, "assistant_phrasing"},
		{"upstream", &scriptedClient{fail: map[string]bool{"X": true}}, "error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGenerator(tc.client, GeneratorConfig{})
			_, err := g.Generate(context.Background(), "You are X, testing", "hi")

			var genErr *GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, tc.reason, genErr.Reason)
			assert.Equal(t, "scripted", genErr.Provider)
		})
	}
}

func TestGeneratorTimeout(t *testing.T) {
	g := NewGenerator(&scriptedClient{slow: map[string]bool{"X": true}}, GeneratorConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, "You are X, testing", "hi")
	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "timeout", genErr.Reason)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGeneratorConfigDefaults(t *testing.T) {
	client := &scriptedClient{}
	g := NewGenerator(client, GeneratorConfig{MaxTokens: 90})
	_, err := g.Generate(context.Background(), "You are X, testing", "hi")
	require.NoError(t, err)

	req := client.requests[0]
	assert.Equal(t, 90, req.MaxTokens)
	assert.InDelta(t, DefaultTemperature, req.Temperature, 1e-9)
	assert.InDelta(t, DefaultPresencePenalty, req.PresencePenalty, 1e-9)
	assert.InDelta(t, DefaultFrequencyPenalty, req.FrequencyPenalty, 1e-9)
}

func TestGeneratorPenaltiesCanBeDisabled(t *testing.T) {
	client := &scriptedClient{}
	off, presence := 0.0, 0.3
	g := NewGenerator(client, GeneratorConfig{PresencePenalty: &presence, FrequencyPenalty: &off})
	_, err := g.Generate(context.Background(), "You are X, testing", "hi")
	require.NoError(t, err)

	req := client.requests[0]
	assert.InDelta(t, 0.3, req.PresencePenalty, 1e-9)
	assert.Zero(t, req.FrequencyPenalty)
}

func TestOrchestratorInputErrors(t *testing.T) {
	client := &scriptedClient{}
	o := NewOrchestrator(newTestEngine(t, client), nil)
	ctx := context.Background()

	assert.Empty(t, o.HandleUtterance(ctx, "c1", "   ", Group, participants("a", "b"), ""))
	assert.Empty(t, o.HandleUtterance(ctx, "c1", "hello", Group, nil, ""))
	assert.Empty(t, client.requests)
}

func TestProcessUtteranceOneOnOne(t *testing.T) {
	client := &scriptedClient{}
	o := NewOrchestrator(newTestEngine(t, client), nil)

	reply := o.ProcessUtterance(context.Background(), Turn{
		SessionID:    "c1",
		Utterance:    "Would you use this?",
		Mode:         OneOnOne,
		Participants: participants("Asha", "Ravi"),
	})
	require.Len(t, reply.Responses, 1)

	var out map[string]any
	data, err := json.Marshal(reply)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Asha", out["agent_name"])
	assert.Equal(t, "tamil", out["region"])
	assert.EqualValues(t, 0, out["delay_ms"])
}

func TestProcessUtteranceOneOnOneFailure(t *testing.T) {
	client := &scriptedClient{fail: map[string]bool{"Asha": true}}
	o := NewOrchestrator(newTestEngine(t, client), nil)

	reply := o.ProcessUtterance(context.Background(), Turn{
		Utterance:    "Would you use this?",
		Mode:         OneOnOne,
		Participants: participants("Asha"),
	})

	data, err := json.Marshal(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{"response_text":"","agent_name":"","region":"north","delay_ms":0}`, string(data))
}

func TestProcessUtteranceGroupJSON(t *testing.T) {
	client := &scriptedClient{}
	o := NewOrchestrator(newTestEngine(t, client, WithSource(fixedSource{v: 0})), nil)

	reply := o.ProcessUtterance(context.Background(), Turn{
		Utterance:    "Thoughts?",
		Mode:         Group,
		Participants: participants("a", "b", "c"),
	})
	data, err := json.Marshal(reply)
	require.NoError(t, err)

	var out []Response
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out, 2)

	empty, err := json.Marshal(Reply{Mode: Group})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}

func TestSessionTurnCarriesCallContext(t *testing.T) {
	client := &scriptedClient{}
	o := NewOrchestrator(newTestEngine(t, client), nil)

	s := Session{ID: "call-1", Topic: "grocery delivery", Mode: OneOnOne, Participants: participants("Asha"), Brief: "Slots open at 7am."}
	reply := o.ProcessUtterance(context.Background(), s.Turn("When do you order?"))

	require.Len(t, reply.Responses, 1)
	require.Len(t, client.requests, 1)
	assert.Contains(t, client.requests[0].System, "about grocery delivery")
	assert.Contains(t, client.requests[0].System, "Slots open at 7am.")
	assert.Contains(t, client.requests[0].User, "When do you order?")
}
