package simtree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunVariants_RunsAllSiblingsAndReportsProgress(t *testing.T) {
	tree := NewTree()
	agents, order := pdAgents("Alice")
	root, _ := tree.NewRoot(pdSpec(), agents, order)
	control, _ := tree.Branch(root, nil)
	treatment, _ := tree.Branch(root, []PatchOp{
		NewAgentPropsPatch("Alice", map[string]any{"trust": 10}, false),
	})

	client := &constClient{text: `{"action":"cooperate"}`}
	progress := make(chan VariantResult, 2)

	err := RunVariants(context.Background(), tree, []int{control, treatment}, 2, client, nil, nil, progress)
	require.NoError(t, err)

	seen := map[int]bool{}
	for result := range progress {
		require.NoError(t, result.Err)
		seen[result.NodeID] = true
	}
	assert.True(t, seen[control])
	assert.True(t, seen[treatment])

	controlNode, _ := tree.Node(control)
	treatmentNode, _ := tree.Node(treatment)
	assert.Equal(t, StatusCompleted, controlNode.Status())
	assert.Equal(t, StatusCompleted, treatmentNode.Status())
}

func TestRunVariants_PropagatesHardFailure(t *testing.T) {
	tree := NewTree()
	emptyAgents, emptyOrder := pdAgents()
	a, _ := tree.NewRoot(pdSpec(), emptyAgents, emptyOrder)
	agents, order := pdAgents("Alice")
	b, _ := tree.NewRoot(pdSpec(), agents, order) // NewRoot without a shared root is fine for this test

	err := RunVariants(context.Background(), tree, []int{a, b}, 1, &constClient{text: `{"action":"cooperate"}`}, nil, nil, nil)
	require.Error(t, err)
}

func TestCompare_ReportsAgentPropertyAndEventDivergence(t *testing.T) {
	tree := NewTree()
	agents, order := pdAgents("Alice", "Bob")
	root, _ := tree.NewRoot(pdSpec(), agents, order)
	client := &constClient{text: `{"action":"cooperate"}`}
	require.NoError(t, tree.Run(context.Background(), root, 2, client, nil, nil))

	control, _ := tree.Branch(root, nil)
	treatment, _ := tree.Branch(root, []PatchOp{
		NewAgentPropsPatch("Alice", map[string]any{"trust": 10}, false),
	})

	defectClient := &constClient{text: `{"action":"defect"}`}
	require.NoError(t, tree.Run(context.Background(), control, 1, client, nil, nil))
	require.NoError(t, tree.Run(context.Background(), treatment, 1, defectClient, nil, nil))

	diff, err := tree.Compare(control, treatment)
	require.NoError(t, err)

	var foundTrust bool
	for _, d := range diff.AgentDiffs {
		if d.Agent == "Alice" && d.Property == "trust" {
			foundTrust = true
			assert.Nil(t, d.Left)
			assert.Equal(t, 10, d.Right)
		}
	}
	assert.True(t, foundTrust)
	assert.NotEmpty(t, diff.EventDiff.Added)
}

func TestCompare_ReportsAgentPresentOnlyOnOneSideAsFullDiff(t *testing.T) {
	tree := NewTree()

	leftAgents, leftOrder := pdAgents("Alice", "Bob")
	leftAgents["Bob"].Properties = map[string]any{"trust": 5}
	left, err := tree.NewRoot(pdSpec(), leftAgents, leftOrder)
	require.NoError(t, err)

	rightAgents, rightOrder := pdAgents("Alice")
	right, err := tree.NewRoot(pdSpec(), rightAgents, rightOrder)
	require.NoError(t, err)

	diff, err := tree.Compare(left, right)
	require.NoError(t, err)

	var found bool
	for _, d := range diff.AgentDiffs {
		if d.Agent == "Bob" && d.Property == "trust" {
			found = true
			assert.Equal(t, 5, d.Left)
			assert.Nil(t, d.Right)
		}
	}
	assert.True(t, found, "an agent present only on one side should be reported as a full add/remove diff, not skipped")
}

func TestCompare_UnknownNodeReturnsError(t *testing.T) {
	tree := NewTree()
	agents, order := pdAgents("Alice")
	root, _ := tree.NewRoot(pdSpec(), agents, order)

	_, err := tree.Compare(root, 999)
	require.Error(t, err)
}
