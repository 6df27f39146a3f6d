package turn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/grammar"
	"github.com/socialsim4/simkernel/pkg/scenario"
)

func TestBroadcast_FiltersByNetworkTopology(t *testing.T) {
	spec := &scenario.Spec{
		Grammar: grammar.NewFreeform("action", []grammar.Parameter{{Name: "message", Required: true}}),
		NetworkTopology: map[string][]string{
			"Alice": {"Bob"},
			"Bob":   {"Charlie"},
		},
		Visibility: scenario.VisibilitySimultaneous,
		MaxRounds:  1,
	}
	tc := newTestContext(spec, "Alice", "Bob", "Charlie")

	client := &scriptedClient{responses: []string{`{"action":"speak","message":"hi"}`}}
	_, err := RunTurn(context.Background(), tc, "Alice", 1, client, nil, nil)
	require.NoError(t, err)

	bobMemory := tc.Agents["Bob"].ShortMemory
	require.NotEmpty(t, bobMemory)
	assert.Contains(t, bobMemory[len(bobMemory)-1].Content, "hi")
	assert.Empty(t, tc.Agents["Charlie"].ShortMemory)

	entries := tc.Log.All()
	var broadcastEntry *eventlog.Entry
	for i := range entries {
		if entries[i].Type == eventlog.TypeSystemBroadcast {
			broadcastEntry = &entries[i]
		}
	}
	require.NotNil(t, broadcastEntry)
	assert.Equal(t, []string{"Bob"}, broadcastEntry.Recipients)
}

func TestApplyResourceEffect_AddsToInventoryAndClampsToMax(t *testing.T) {
	spec := &scenario.Spec{
		Grammar:    grammar.NewFreeform("action", []grammar.Parameter{{Name: "resource"}, {Name: "amount"}}),
		Mechanics:  []scenario.Mechanic{scenario.NewResourcesMechanic(scenario.ResourcesConfig{Resources: []string{"wood"}, MaxStackSize: 10})},
		Visibility: scenario.VisibilitySimultaneous,
		MaxRounds:  1,
	}
	tc := newTestContext(spec, "Alice")
	tc.Agents["Alice"].Properties["inventory"] = map[string]any{"wood": 8}

	client := &scriptedClient{responses: []string{`{"action":"gather","resource":"wood","amount":5}`}}
	_, err := RunTurn(context.Background(), tc, "Alice", 1, client, nil, nil)
	require.NoError(t, err)

	inventory := tc.Agents["Alice"].Properties["inventory"].(map[string]any)
	assert.Equal(t, 10, inventory["wood"])
}
