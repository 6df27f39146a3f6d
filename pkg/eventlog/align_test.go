package eventlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLog(entries ...Entry) []Entry {
	log := New()
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = log.Append(e)
	}
	return out
}

func TestAlign_IdenticalLogsProduceEmptyDiff(t *testing.T) {
	l := buildLog(
		Entry{Type: TypeAgentAction, Sender: "Alice", Payload: map[string]any{"action": "cooperate"}},
		Entry{Type: TypeAgentAction, Sender: "Bob", Payload: map[string]any{"action": "defect"}},
	)

	diff := Align(l, l)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
}

func TestAlign_DetectsDivergentAction(t *testing.T) {
	control := buildLog(
		Entry{Type: TypeAgentAction, Sender: "Alice", Payload: map[string]any{"action": "cooperate"}},
		Entry{Type: TypeAgentAction, Sender: "Bob", Payload: map[string]any{"action": "cooperate"}},
	)
	treatment := buildLog(
		Entry{Type: TypeAgentAction, Sender: "Alice", Payload: map[string]any{"action": "cooperate"}},
		Entry{Type: TypeAgentAction, Sender: "Bob", Payload: map[string]any{"action": "defect"}},
	)

	diff := Align(control, treatment)
	require.Len(t, diff.Removed, 1)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "defect", diff.Added[0].Entry.Payload["action"])
	assert.Equal(t, "cooperate", diff.Removed[0].Entry.Payload["action"])
}

func TestAlign_EvidenceWindowSurroundsDiff(t *testing.T) {
	base := make([]Entry, 0, 8)
	for i := 0; i < 4; i++ {
		base = append(base, Entry{Type: TypeChat, Sender: "Alice", Payload: map[string]any{"n": i}})
	}
	a := buildLog(base...)

	diverged := make([]Entry, len(base))
	copy(diverged, base)
	diverged[2] = Entry{Type: TypeChat, Sender: "Alice", Payload: map[string]any{"n": 99}}
	b := buildLog(diverged...)

	diff := Align(a, b)
	require.Len(t, diff.Added, 1)
	assert.NotEmpty(t, diff.Added[0].Evidence)
}

func TestAlign_AppendOnlyYieldsOnlyAdditions(t *testing.T) {
	a := buildLog(Entry{Type: TypeChat, Sender: "Alice", Payload: map[string]any{"n": 1}})
	b := buildLog(
		Entry{Type: TypeChat, Sender: "Alice", Payload: map[string]any{"n": 1}},
		Entry{Type: TypeChat, Sender: "Bob", Payload: map[string]any{"n": 2}},
	)

	diff := Align(a, b)
	assert.Empty(t, diff.Removed)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "Bob", diff.Added[0].Entry.Sender)
}
