package simtree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTripsThroughJSON(t *testing.T) {
	tree := NewTree()
	agents, order := pdAgents("Alice", "Bob")
	root, _ := tree.NewRoot(pdSpec(), agents, order)

	_, err := tree.Branch(root, []PatchOp{
		NewAgentPropsPatch("Alice", map[string]any{"trust": 10}, false),
	})
	require.NoError(t, err)

	require.NoError(t, tree.Run(context.Background(), root, 1, &constClient{text: `{"action":"cooperate"}`}, nil, nil))

	snap, err := tree.Snapshot(root)
	require.NoError(t, err)

	data, err := MarshalSnapshot(snap)
	require.NoError(t, err)

	restored, err := UnmarshalSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, snap.Scenario.ID, restored.Scenario.ID)
	assert.Equal(t, snap.Metadata.TurnsCompleted, restored.Metadata.TurnsCompleted)
	assert.Equal(t, snap.Metadata.AgentOrder, restored.Metadata.AgentOrder)
	assert.Len(t, restored.Log, len(snap.Log))
	assert.Equal(t, snap.Agents["Alice"].Name, restored.Agents["Alice"].Name)
}

func TestFromSnapshot_RegistersNewNodeWithRestoredState(t *testing.T) {
	tree := NewTree()
	agents, order := pdAgents("Alice")
	root, _ := tree.NewRoot(pdSpec(), agents, order)
	require.NoError(t, tree.Run(context.Background(), root, 2, &constClient{text: `{"action":"cooperate"}`}, nil, nil))

	snap, err := tree.Snapshot(root)
	require.NoError(t, err)

	other := NewTree()
	restoredID, err := other.FromSnapshot(snap)
	require.NoError(t, err)

	node, err := other.Node(restoredID)
	require.NoError(t, err)
	assert.Equal(t, 2, node.TurnsCompleted)
	assert.Equal(t, StatusIdle, node.Status())
	assert.Equal(t, -1, node.ParentID)
	assert.Contains(t, node.State.Agents, "Alice")
	assert.Equal(t, restoredID, other.RootID())
}

func TestSnapshot_DeepCopiesAgentsSoMutationDoesNotAffectLiveNode(t *testing.T) {
	tree := NewTree()
	agents, order := pdAgents("Alice")
	root, _ := tree.NewRoot(pdSpec(), agents, order)

	snap, err := tree.Snapshot(root)
	require.NoError(t, err)
	snap.Agents["Alice"].Properties = map[string]any{"trust": 99}

	node, _ := tree.Node(root)
	assert.Nil(t, node.State.Agents["Alice"].Properties["trust"])
}
