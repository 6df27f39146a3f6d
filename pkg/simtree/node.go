package simtree

import (
	"sync"
	"sync/atomic"

	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/scenario"
)

// State is a branch's full mutable record: the frozen scenario it runs
// under, its agents, opaque scene state, and its event log. AgentOrder is
// the declared iteration order the Round Runner uses for simultaneous
// commit ordering and sequential turn order.
type State struct {
	Scenario   *scenario.Spec
	Agents     map[string]*agentstate.State
	SceneState map[string]any
	Log        *eventlog.Log
	AgentOrder []string
}

// clone deep-copies state for a forked child: a new agent map with cloned
// agents, a deep-copied scene state, and an independent log.
func (s *State) clone() *State {
	agents := make(map[string]*agentstate.State, len(s.Agents))
	for name, agent := range s.Agents {
		agents[name] = agent.Clone()
	}
	order := make([]string, len(s.AgentOrder))
	copy(order, s.AgentOrder)
	return &State{
		Scenario:   s.Scenario,
		Agents:     agents,
		SceneState: cloneSceneState(s.SceneState),
		Log:        s.Log.Clone(),
		AgentOrder: order,
	}
}

func cloneSceneState(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneSceneState(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// BranchNode is one vertex of the Simulation Tree.
type BranchNode struct {
	NodeID         int
	ParentID       int // -1 for root
	Depth          int
	TurnsCompleted int

	State *State

	PatchOps []PatchOp

	status            atomic.Value                      // Status
	suggestionsViewed atomic.Pointer[map[int]struct{}] // copy-on-write set

	// runMu serialises Run calls on this node (status CAS already
	// prevents concurrent running, but guards the turnsCompleted/status
	// writes the runner performs as it progresses).
	runMu sync.Mutex
}

func newNode(id, parentID, depth int, state *State, ops []PatchOp) *BranchNode {
	n := &BranchNode{
		NodeID:   id,
		ParentID: parentID,
		Depth:    depth,
		State:    state,
		PatchOps: ops,
	}
	n.status.Store(StatusIdle)
	empty := map[int]struct{}{}
	n.suggestionsViewed.Store(&empty)
	return n
}

// Status returns the node's current run status.
func (n *BranchNode) Status() Status {
	return n.status.Load().(Status)
}

// tryAcquireRunning CAS-transitions idle -> running, returning false if
// the node was not idle.
func (n *BranchNode) tryAcquireRunning() bool {
	return n.status.CompareAndSwap(StatusIdle, StatusRunning)
}

func (n *BranchNode) setStatus(s Status) {
	n.status.Store(s)
}

// HasViewedSuggestion reports whether milestone has already been
// acknowledged for this branch.
func (n *BranchNode) HasViewedSuggestion(milestone int) bool {
	viewed := *n.suggestionsViewed.Load()
	_, ok := viewed[milestone]
	return ok
}

// MarkSuggestionViewed records milestone as acknowledged via a
// copy-on-write swap, so reads never block on this write.
func (n *BranchNode) MarkSuggestionViewed(milestone int) {
	for {
		old := n.suggestionsViewed.Load()
		updated := make(map[int]struct{}, len(*old)+1)
		for k := range *old {
			updated[k] = struct{}{}
		}
		updated[milestone] = struct{}{}
		if n.suggestionsViewed.CompareAndSwap(old, &updated) {
			return
		}
	}
}
