package simtree

import (
	"encoding/json"
	"fmt"

	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/scenario"
)

// SnapshotMetadata carries the BranchNode bookkeeping fields that sit
// outside state proper, matching the teacher's checkpoint.State split
// between domain payload and checkpoint metadata.
type SnapshotMetadata struct {
	NodeID         int      `json:"nodeID"`
	ParentID       int      `json:"parentID"`
	Depth          int      `json:"depth"`
	TurnsCompleted int      `json:"turnsCompleted"`
	Status         Status   `json:"status"`
	AgentOrder     []string `json:"agentOrder"`
}

// Snapshot is the §6 external snapshot format: a deep, JSON-serialisable
// copy of one BranchNode, key names matching spec.md exactly (scenario,
// agents, sceneState, log, patchOps, metadata).
type Snapshot struct {
	Scenario   *scenario.Spec              `json:"scenario"`
	Agents     map[string]*agentstate.State `json:"agents"`
	SceneState map[string]any              `json:"sceneState"`
	Log        []eventlog.Entry            `json:"log"`
	PatchOps   []PatchOp                   `json:"patchOps"`
	Metadata   SnapshotMetadata            `json:"metadata"`
}

// Snapshot deep-serialises nodeID's state plus its patchOps chain, per
// §4.H's snapshot(nodeID) operation.
func (t *Tree) Snapshot(nodeID int) (Snapshot, error) {
	node, err := t.Node(nodeID)
	if err != nil {
		return Snapshot{}, err
	}

	agents := make(map[string]*agentstate.State, len(node.State.Agents))
	for name, agent := range node.State.Agents {
		agents[name] = agent.Clone()
	}

	return Snapshot{
		Scenario:   node.State.Scenario,
		Agents:     agents,
		SceneState: cloneSceneState(node.State.SceneState),
		Log:        node.State.Log.All(),
		PatchOps:   append([]PatchOp(nil), node.PatchOps...),
		Metadata: SnapshotMetadata{
			NodeID:         node.NodeID,
			ParentID:       node.ParentID,
			Depth:          node.Depth,
			TurnsCompleted: node.TurnsCompleted,
			Status:         node.Status(),
			AgentOrder:     append([]string(nil), node.State.AgentOrder...),
		},
	}, nil
}

// MarshalSnapshot serialises a Snapshot to JSON bytes.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSnapshot reconstructs a Snapshot from JSON bytes.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("simtree: unmarshal snapshot: %w", err)
	}
	return s, nil
}

// FromSnapshot registers a new, disconnected node (parentID -1, depth 0)
// in t reconstructed from snap, returning its freshly assigned nodeID.
// The snapshot's own metadata.nodeID/parentID/depth are not reused, since
// a restored snapshot always becomes a new root-like entry in whichever
// tree it is loaded into.
func (t *Tree) FromSnapshot(snap Snapshot) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++

	state := &State{
		Scenario:   snap.Scenario,
		Agents:     snap.Agents,
		SceneState: snap.SceneState,
		Log:        eventlog.FromEntries(snap.Log),
		AgentOrder: append([]string(nil), snap.Metadata.AgentOrder...),
	}
	node := newNode(id, -1, 0, state, append([]PatchOp(nil), snap.PatchOps...))
	node.TurnsCompleted = snap.Metadata.TurnsCompleted
	t.nodes[id] = node
	if t.rootID == -1 {
		t.rootID = id
	}
	return id, nil
}
