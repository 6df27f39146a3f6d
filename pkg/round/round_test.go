package round

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/grammar"
	"github.com/socialsim4/simkernel/pkg/llm"
	"github.com/socialsim4/simkernel/pkg/scenario"
	"github.com/socialsim4/simkernel/pkg/summarizer"
	"github.com/socialsim4/simkernel/pkg/telemetry"
	"github.com/socialsim4/simkernel/pkg/turn"
)

func containsSubstring(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func newRoundContext(spec *scenario.Spec, names ...string) *turn.Context {
	agents := make(map[string]*agentstate.State, len(names))
	for _, n := range names {
		a, _ := agentstate.New(n, nil, "test")
		agents[n] = a
	}
	return &turn.Context{
		Spec:       spec,
		Agents:     agents,
		SceneState: make(map[string]any),
		Log:        eventlog.New(),
	}
}

func pdSpec(visibility scenario.Visibility) *scenario.Spec {
	return &scenario.Spec{
		ID:          "pd",
		Description: "Two agents choose to cooperate or defect.",
		Grammar:     grammar.NewDiscrete("action", []string{"cooperate", "defect"}),
		Visibility:  visibility,
		MaxRounds:   1,
	}
}

// constClient always returns the same scripted response regardless of
// input, used where a test only needs a fixed reply.
type constClient struct{ text string }

func newConstClient(text string) *constClient { return &constClient{text: text} }

func (c *constClient) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	return c.text, nil
}
func (c *constClient) Embed(ctx context.Context, text string) ([]float64, error) { return nil, nil }

// perAgentClient dispatches to a different underlying client on each
// successive call, matching each agent's declared turn order.
type perAgentClient struct {
	clients map[string]llm.Client
	order   []string
	calls   int
}

func (c *perAgentClient) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	name := c.order[c.calls]
	c.calls++
	return c.clients[name].Chat(ctx, messages, opts)
}

func (c *perAgentClient) Embed(ctx context.Context, text string) ([]float64, error) { return nil, nil }

// cancelAfterFirstCall cancels the shared context as soon as it is
// invoked, simulating a cancellation landing mid-round after an earlier
// agent has already committed.
type cancelAfterFirstCall struct {
	cancel context.CancelFunc
}

func (c *cancelAfterFirstCall) Chat(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	c.cancel()
	<-ctx.Done()
	return "", ctx.Err()
}

func (c *cancelAfterFirstCall) Embed(ctx context.Context, text string) ([]float64, error) { return nil, nil }

func TestRun_SimultaneousCommitsInDeclaredOrderRegardlessOfClientLatency(t *testing.T) {
	spec := pdSpec(scenario.VisibilitySimultaneous)
	tc := newRoundContext(spec, "Alice", "Bob")

	dispatcher := &perAgentClient{
		clients: map[string]llm.Client{
			"Alice": newConstClient(`{"action":"cooperate"}`),
			"Bob":   newConstClient(`{"action":"defect"}`),
		},
		order: []string{"Bob", "Alice"},
	}

	result, err := Run(context.Background(), tc, []string{"Alice", "Bob"}, 1, dispatcher, nil, nil, nil)
	require.NoError(t, err)
	require.False(t, result.Aborted)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "Alice", result.Entries[0].Sender)
	assert.Equal(t, "Bob", result.Entries[1].Sender)
}

func TestRun_SimultaneousNoAgentSeesAnotherAgentsSameRoundAction(t *testing.T) {
	spec := pdSpec(scenario.VisibilitySimultaneous)
	tc := newRoundContext(spec, "Alice", "Bob")

	dispatcher := &perAgentClient{
		clients: map[string]llm.Client{
			"Alice": newConstClient(`{"action":"cooperate"}`),
			"Bob":   newConstClient(`{"action":"defect"}`),
		},
		order: []string{"Alice", "Bob"},
	}

	_, err := Run(context.Background(), tc, []string{"Alice", "Bob"}, 1, dispatcher, nil, nil, nil)
	require.NoError(t, err)

	for _, name := range []string{"Alice", "Bob"} {
		for _, entry := range tc.Agents[name].ShortMemory {
			assert.NotContains(t, entry.Content, "defect")
		}
	}
}

func TestRun_SequentialLaterAgentSeesEarlierAgentsBroadcast(t *testing.T) {
	spec := &scenario.Spec{
		ID:         "chat",
		Grammar:    grammar.NewFreeform("action", []grammar.Parameter{{Name: "message", Required: true}}),
		Visibility: scenario.VisibilitySequential,
		MaxRounds:  1,
	}
	tc := newRoundContext(spec, "Alice", "Bob")

	dispatcher := &perAgentClient{
		clients: map[string]llm.Client{
			"Alice": newConstClient(`{"action":"speak","message":"hello from alice"}`),
			"Bob":   newConstClient(`{"action":"speak","message":"hi alice"}`),
		},
		order: []string{"Alice", "Bob"},
	}

	result, err := Run(context.Background(), tc, []string{"Alice", "Bob"}, 1, dispatcher, nil, nil, nil)
	require.NoError(t, err)
	require.False(t, result.Aborted)

	bobMemory := tc.Agents["Bob"].ShortMemory
	found := false
	for _, entry := range bobMemory {
		if containsSubstring(entry.Content, "hello from alice") {
			found = true
		}
	}
	assert.True(t, found, "bob should observe alice's same-round broadcast in sequential mode")
}

func TestRun_SequentialCancellationAfterFirstAgentAbortsRound(t *testing.T) {
	spec := pdSpec(scenario.VisibilitySequential)
	tc := newRoundContext(spec, "Alice", "Bob")

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &perAgentClient{
		clients: map[string]llm.Client{
			"Alice": newConstClient(`{"action":"cooperate"}`),
			"Bob":   &cancelAfterFirstCall{cancel: cancel},
		},
		order: []string{"Alice", "Bob"},
	}

	result, err := Run(ctx, tc, []string{"Alice", "Bob"}, 4, dispatcher, nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	assert.Equal(t, 1, result.Completed)

	entries := tc.Log.All()
	var sawAliceAction, sawAbortMarker bool
	for _, e := range entries {
		if e.Sender == "Alice" && e.Type == eventlog.TypeAgentAction {
			sawAliceAction = true
		}
		if e.Type == eventlog.TypeRoundAborted {
			sawAbortMarker = true
		}
	}
	assert.True(t, sawAliceAction)
	assert.True(t, sawAbortMarker)
	assert.Empty(t, tc.Agents["Bob"].ShortMemory)
}

func TestRun_InvokesSummariserOncePerAgentAfterCompletedRound(t *testing.T) {
	spec := pdSpec(scenario.VisibilitySimultaneous)
	tc := newRoundContext(spec, "Alice")
	client := newConstClient(`{"action":"cooperate"}`)
	summ := summarizer.New(newConstClient("Alice cooperated."))

	result, err := Run(context.Background(), tc, []string{"Alice"}, 1, client, summ, nil, nil)
	require.NoError(t, err)
	require.False(t, result.Aborted)

	assert.Equal(t, "Alice cooperated.", tc.Agents["Alice"].RollingSummary)
}

func TestRun_AbortedRoundSkipsSummariser(t *testing.T) {
	spec := pdSpec(scenario.VisibilitySequential)
	tc := newRoundContext(spec, "Alice", "Bob")

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &perAgentClient{
		clients: map[string]llm.Client{
			"Alice": newConstClient(`{"action":"cooperate"}`),
			"Bob":   &cancelAfterFirstCall{cancel: cancel},
		},
		order: []string{"Alice", "Bob"},
	}
	summ := summarizer.New(newConstClient("should never be used"))

	result, err := Run(ctx, tc, []string{"Alice", "Bob"}, 1, dispatcher, summ, nil, nil)
	require.NoError(t, err)
	require.True(t, result.Aborted)
	assert.Empty(t, tc.Agents["Alice"].RollingSummary)
}

func TestRun_EmptyAgentOrderReturnsError(t *testing.T) {
	spec := pdSpec(scenario.VisibilitySimultaneous)
	tc := newRoundContext(spec)
	client := newConstClient(`{"action":"cooperate"}`)

	_, err := Run(context.Background(), tc, nil, 1, client, nil, nil, nil)
	require.ErrorIs(t, err, ErrAgentOrderEmpty)
}

func TestRun_RecordsTurnOutcomesAndRoundDurationOnRecorder(t *testing.T) {
	spec := pdSpec(scenario.VisibilitySequential)
	tc := newRoundContext(spec, "Alice", "Bob")
	dispatcher := &perAgentClient{
		clients: map[string]llm.Client{
			"Alice": newConstClient(`{"action":"cooperate"}`),
			"Bob":   newConstClient("not json"),
		},
		order: []string{"Alice", "Bob"},
	}

	reg := prometheus.NewRegistry()
	rec := telemetry.New("round-test", reg)

	result, err := Run(context.Background(), tc, []string{"Alice", "Bob"}, 1, dispatcher, nil, nil, rec)
	require.NoError(t, err)
	require.False(t, result.Aborted)

	metrics, err := reg.Gather()
	require.NoError(t, err)

	var sawOk, sawSkip, sawRoundDuration bool
	for _, mf := range metrics {
		switch mf.GetName() {
		case "simkernel_turns_total":
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "outcome" && l.GetValue() == "ok" && m.GetCounter().GetValue() == 1 {
						sawOk = true
					}
					if l.GetName() == "outcome" && l.GetValue() == "skip" && m.GetCounter().GetValue() == 1 {
						sawSkip = true
					}
				}
			}
		case "simkernel_round_duration_seconds":
			sawRoundDuration = len(mf.GetMetric()) > 0
		}
	}
	assert.True(t, sawOk, "expected one ok-outcome turn to be recorded")
	assert.True(t, sawSkip, "expected one skip-outcome turn to be recorded")
	assert.True(t, sawRoundDuration, "expected the round's duration to be recorded")
}
