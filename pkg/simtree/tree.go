// Package simtree implements the Simulation Tree (component H) and the
// Variant Executor (component I): an in-memory, branchable DAG of
// BranchNodes, each running the Round Runner against its own scenario,
// agents, scene state and event log, with structural fork operations and
// parallel sibling execution for comparison.
package simtree

import (
	"context"
	"io"
	"sync"

	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/llm"
	"github.com/socialsim4/simkernel/pkg/logger"
	"github.com/socialsim4/simkernel/pkg/round"
	"github.com/socialsim4/simkernel/pkg/scenario"
	"github.com/socialsim4/simkernel/pkg/summarizer"
	"github.com/socialsim4/simkernel/pkg/telemetry"
	"github.com/socialsim4/simkernel/pkg/turn"
)

// Tree is a process-wide registry of BranchNodes, keyed by monotonically
// assigned nodeID. Every node created by NewRoot or FromSnapshot is
// parentless; the tree does not limit how many such nodes it holds. A single mutex serialises
// structural operations (create, branch); per-node status is guarded
// independently via BranchNode's atomic fields so a status read never
// blocks on an unrelated branch operation.
type Tree struct {
	mu     sync.Mutex
	nodes  map[int]*BranchNode
	nextID int
	rootID int

	// Recorder, if set, receives tracing spans and metrics for every
	// round run by this tree's branches. A nil Recorder (the default) is
	// a valid no-op.
	Recorder *telemetry.Recorder
}

// NewTree returns an empty tree with no root yet created.
func NewTree() *Tree {
	return &Tree{nodes: make(map[int]*BranchNode), rootID: -1}
}

// NewRoot creates the tree's root node from a validated scenario, its
// initial agents, and their declared iteration order. It does not check
// for an existing root: each call adds another parentless node, and RootID
// then reports the most recently created one.
func (t *Tree) NewRoot(spec *scenario.Spec, agents map[string]*agentstate.State, agentOrder []string) (int, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	t.nextID++

	state := &State{
		Scenario:   spec,
		Agents:     agents,
		SceneState: spec.InitialSceneState(),
		Log:        eventlog.New(),
		AgentOrder: append([]string(nil), agentOrder...),
	}
	t.nodes[id] = newNode(id, -1, 0, state, nil)
	t.rootID = id
	return id, nil
}

// RootID returns the tree's root nodeID, or -1 if NewRoot has not been
// called yet.
func (t *Tree) RootID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rootID
}

// Node returns the BranchNode for nodeID.
func (t *Tree) Node(nodeID int) (*BranchNode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.nodes[nodeID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

// Leaves returns every node with no children.
func (t *Tree) Leaves() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	hasChild := make(map[int]bool, len(t.nodes))
	for _, node := range t.nodes {
		if node.ParentID != -1 {
			hasChild[node.ParentID] = true
		}
	}
	leaves := make([]int, 0, len(t.nodes))
	for id := range t.nodes {
		if !hasChild[id] {
			leaves = append(leaves, id)
		}
	}
	return leaves
}

// Running returns every nodeID currently under execution.
func (t *Tree) Running() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	running := make([]int, 0, len(t.nodes))
	for id, node := range t.nodes {
		if node.Status() == StatusRunning {
			running = append(running, id)
		}
	}
	return running
}

// Branch forks a child of parentID, deep-copying its state and applying
// ops atomically in order. The child starts with the parent's
// TurnsCompleted, so its next round continues the parent's numbering. Forking a running parent is refused with
// ErrBranchContention, since the parent's owning runner may be mutating
// its state concurrently.
func (t *Tree) Branch(parentID int, ops []PatchOp) (int, error) {
	parent, err := t.Node(parentID)
	if err != nil {
		return 0, err
	}
	if parent.Status() == StatusRunning {
		return 0, ErrBranchContention
	}

	childState := parent.State.clone()
	for _, op := range ops {
		if err := applyPatch(childState, op); err != nil {
			return 0, err
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	child := newNode(id, parentID, parent.Depth+1, childState, append([]PatchOp(nil), ops...))
	child.TurnsCompleted = parent.TurnsCompleted
	t.nodes[id] = child
	return id, nil
}

func applyPatch(state *State, op PatchOp) error {
	switch op.Kind {
	case PatchAgentProps:
		return applyAgentPropsPatch(state, op)
	case PatchSceneState:
		if state.SceneState == nil {
			state.SceneState = make(map[string]any)
		}
		state.SceneState[op.ScenePath] = op.SceneValue
		return nil
	case PatchInjectEvent:
		state.Log.Append(eventlog.Entry{
			Type:    eventlog.Type(op.EventType),
			Sender:  op.EventSender,
			Payload: op.EventPayload,
		})
		return nil
	case PatchPruneEvents:
		state.Log.PruneFrom(op.PruneFromSeq)
		return nil
	default:
		return ErrUnknownPatchKind
	}
}

func applyAgentPropsPatch(state *State, op PatchOp) error {
	agent, ok := state.Agents[op.AgentName]
	if !ok {
		if !op.AllowCreate {
			return ErrUnknownAgentForPatch
		}
		created, err := agentstate.New(op.AgentName, op.AgentUpdates, "")
		if err != nil {
			return err
		}
		state.Agents[op.AgentName] = created
		state.AgentOrder = append(state.AgentOrder, op.AgentName)
		return nil
	}
	agent.MergeProperties(op.AgentUpdates)
	return nil
}

// Run acquires nodeID for execution (refusing with ErrBranchContention if
// it is not idle), then drives the Round Runner one round at a time until
// maxTurns additional rounds complete, the scenario's own MaxRounds is
// reached, or ctx is cancelled. A round aborted by cancellation returns the
// node to idle with TurnsCompleted reflecting only fully-completed rounds;
// an unrecoverable Round Runner error transitions the node to failed and
// is returned wrapped as *SystemFailure; otherwise the node transitions to
// completed.
func (t *Tree) Run(ctx context.Context, nodeID int, maxTurns int, client llm.Client, summ *summarizer.Summariser, debugSink io.Writer) error {
	node, err := t.Node(nodeID)
	if err != nil {
		return err
	}
	if !node.tryAcquireRunning() {
		return ErrBranchContention
	}

	node.runMu.Lock()
	defer node.runMu.Unlock()

	tc := &turn.Context{
		Spec:       node.State.Scenario,
		Agents:     node.State.Agents,
		SceneState: node.State.SceneState,
		Log:        node.State.Log,
	}

	target := node.TurnsCompleted + maxTurns
	if scenarioMax := node.State.Scenario.MaxRounds; scenarioMax > 0 && scenarioMax < target {
		target = scenarioMax
	}

	for node.TurnsCompleted < target {
		if ctx.Err() != nil {
			node.setStatus(StatusIdle)
			return nil
		}

		roundNum := node.TurnsCompleted + 1
		result, rErr := round.Run(ctx, tc, node.State.AgentOrder, roundNum, client, summ, debugSink, t.Recorder)
		if rErr != nil {
			logger.GetLogger().Error("simtree: round failed", "node", nodeID, "round", roundNum, "error", rErr)
			node.setStatus(StatusFailed)
			return &SystemFailure{NodeID: nodeID, Err: rErr}
		}
		if result.Aborted {
			node.setStatus(StatusIdle)
			return nil
		}
		node.TurnsCompleted++
	}

	node.setStatus(StatusCompleted)
	return nil
}
