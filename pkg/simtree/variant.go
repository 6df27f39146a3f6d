package simtree

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/llm"
	"github.com/socialsim4/simkernel/pkg/summarizer"
)

// VariantResult reports one sibling's outcome from a RunVariants fan-out.
type VariantResult struct {
	NodeID int
	Err    error
}

// RunVariants drives Run concurrently across nodeIDs — typically a set of
// siblings forked from the same parent for comparison — fanning out one
// goroutine per node, grounded on the same errgroup shape as the Round
// Runner's simultaneous mode and on
// hector/pkg/agent/workflowagent.runParallel's one-result-per-branch
// rendezvous. progress, if non-nil, receives one VariantResult as each
// node finishes; it is closed once every node has reported. RunVariants
// itself returns only once every node has finished or ctx is cancelled.
func RunVariants(ctx context.Context, tree *Tree, nodeIDs []int, maxTurns int, client llm.Client, summ *summarizer.Summariser, debugSink io.Writer, progress chan<- VariantResult) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, id := range nodeIDs {
		id := id
		group.Go(func() error {
			err := tree.Run(groupCtx, id, maxTurns, client, summ, debugSink)
			if progress != nil {
				progress <- VariantResult{NodeID: id, Err: err}
			}
			return err
		})
	}

	err := group.Wait()
	if progress != nil {
		close(progress)
	}
	return err
}

// AgentPropertyDiff reports one property's divergent values between two
// compared branches. Only keys present and unequal in at least one side
// are reported.
type AgentPropertyDiff struct {
	Agent    string
	Property string
	Left     any
	Right    any
}

// VariantDiff is the result of comparing two BranchNodes: their agent
// property divergences and their event log alignment, per §4.G/§4.H's
// "diff two sibling branches" capability.
type VariantDiff struct {
	AgentDiffs []AgentPropertyDiff
	EventDiff  eventlog.Diff
}

// Compare aligns two nodes' event logs and diffs their agents' final
// properties, intended for reviewing siblings forked from a common
// ancestor (e.g. the §8 branch-divergence scenario).
func (t *Tree) Compare(leftID, rightID int) (VariantDiff, error) {
	left, err := t.Node(leftID)
	if err != nil {
		return VariantDiff{}, fmt.Errorf("simtree: compare left: %w", err)
	}
	right, err := t.Node(rightID)
	if err != nil {
		return VariantDiff{}, fmt.Errorf("simtree: compare right: %w", err)
	}

	diff := VariantDiff{
		EventDiff: eventlog.Align(left.State.Log.All(), right.State.Log.All()),
	}

	names := make(map[string]bool)
	for name := range left.State.Agents {
		names[name] = true
	}
	for name := range right.State.Agents {
		names[name] = true
	}

	for name := range names {
		// A missing side's Properties is nil, which diffProperties treats
		// as an empty map — every key on the present side then diffs
		// against a missing rv/lv, producing a full add/remove entry
		// rather than being skipped. An agent present in only one branch
		// (e.g. one sibling's scenario removed it mid-run) must still be
		// reported per §4.I, not silently dropped from the comparison.
		var leftProps, rightProps map[string]any
		if leftAgent, ok := left.State.Agents[name]; ok {
			leftProps = leftAgent.Properties
		}
		if rightAgent, ok := right.State.Agents[name]; ok {
			rightProps = rightAgent.Properties
		}
		diff.AgentDiffs = append(diff.AgentDiffs, diffProperties(name, leftProps, rightProps)...)
	}

	return diff, nil
}

func diffProperties(agent string, left, right map[string]any) []AgentPropertyDiff {
	keys := make(map[string]bool)
	for k := range left {
		keys[k] = true
	}
	for k := range right {
		keys[k] = true
	}

	var diffs []AgentPropertyDiff
	for k := range keys {
		lv, lok := left[k]
		rv, rok := right[k]
		if lok && rok && fmt.Sprint(lv) == fmt.Sprint(rv) {
			continue
		}
		diffs = append(diffs, AgentPropertyDiff{Agent: agent, Property: k, Left: lv, Right: rv})
	}
	return diffs
}
