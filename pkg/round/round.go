// Package round implements the Round Runner (component E): it drives every
// agent's turn for one round under the scenario's visibility policy, then
// triggers a single Context Summariser pass per agent once the round
// completes. Simultaneous fan-out is grounded on
// hector/pkg/agent/workflowagent's NewParallel: one goroutine per agent, a
// context that cancels siblings on the round's context being cancelled,
// and each agent's result written into its own slot of a slice indexed by
// declared order, so the log is committed in that order.
package round

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/llm"
	"github.com/socialsim4/simkernel/pkg/logger"
	"github.com/socialsim4/simkernel/pkg/scenario"
	"github.com/socialsim4/simkernel/pkg/summarizer"
	"github.com/socialsim4/simkernel/pkg/telemetry"
	"github.com/socialsim4/simkernel/pkg/turn"
)

// Result reports what one round produced.
type Result struct {
	// Entries are the event log entries appended for completed agents,
	// in declared order.
	Entries []eventlog.Entry

	// Completed is how many agents in AgentOrder actually committed a
	// turn (ok or skip) before the round ended, used by callers to track
	// turnsCompleted.
	Completed int

	// Aborted is true when the round's context was cancelled before
	// every agent committed a turn.
	Aborted bool
}

// Run drives one round over tc.Agents in agentOrder under spec's declared
// visibility, then — unless the round was aborted — invokes summariser
// once per agent with that agent's own rolling summary and the round's
// events. debugSink, if non-nil, receives every agent's prompt/response
// pair. rec, if non-nil, receives a span and a duration observation for
// the round as a whole, plus a per-turn outcome count from each Commit.
func Run(ctx context.Context, tc *turn.Context, agentOrder []string, roundNum int, client llm.Client, summ *summarizer.Summariser, debugSink io.Writer, rec *telemetry.Recorder) (Result, error) {
	if len(agentOrder) == 0 {
		return Result{}, ErrAgentOrderEmpty
	}

	visibility := string(tc.Spec.Visibility)
	spanCtx, span := rec.StartRound(ctx, roundNum, visibility)
	start := time.Now()

	var result Result
	switch tc.Spec.Visibility {
	case scenario.VisibilitySequential:
		result = runSequential(spanCtx, tc, agentOrder, roundNum, client, debugSink, rec)
	default:
		result = runSimultaneous(spanCtx, tc, agentOrder, roundNum, client, debugSink, rec)
	}
	rec.RecordRound(span, visibility, time.Since(start), nil)

	if result.Aborted {
		tc.Log.Append(eventlog.Entry{
			Turn: roundNum,
			Type: eventlog.TypeRoundAborted,
			Payload: map[string]any{
				"completed": result.Completed,
				"total":     len(agentOrder),
			},
		})
		return result, nil
	}

	if summ != nil {
		roundEvents := eventsForTurn(result.Entries, roundNum)
		for _, name := range agentOrder {
			agent, ok := tc.Agents[name]
			if !ok {
				continue
			}
			summ.Update(ctx, agent, roundNum, roundEvents, tc.Log, tc.Spec.SummaryThreshold)
		}
	}

	return result, nil
}

func eventsForTurn(entries []eventlog.Entry, turnNum int) []eventlog.Entry {
	filtered := make([]eventlog.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Turn == turnNum {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// runSequential drives agents one at a time in declared order. Each
// agent's Commit lands before the next agent's Prepare begins, so later
// agents' prompts see earlier agents' same-round events via their
// rendered context (§4.E).
func runSequential(ctx context.Context, tc *turn.Context, agentOrder []string, roundNum int, client llm.Client, debugSink io.Writer, rec *telemetry.Recorder) Result {
	entries := make([]eventlog.Entry, 0, len(agentOrder))

	for _, name := range agentOrder {
		if ctx.Err() != nil {
			return Result{Entries: entries, Completed: len(entries), Aborted: true}
		}

		pending, err := turn.Prepare(ctx, tc, name, client, debugSink, rec)
		if errors.Is(err, turn.ErrCancelled) {
			return Result{Entries: entries, Completed: len(entries), Aborted: true}
		}
		if err != nil {
			logger.GetLogger().Error("round: prepare failed for agent", "agent", name, "round", roundNum, "error", err)
			return Result{Entries: entries, Completed: len(entries), Aborted: true}
		}

		entries = append(entries, turn.Commit(tc, pending, roundNum, rec))
	}

	return Result{Entries: entries, Completed: len(entries)}
}

// runSimultaneous fans Prepare out concurrently across all agents using
// the same round-start state, then Commits in declared order regardless
// of which Prepare call returned first — the spec's ordering invariant.
func runSimultaneous(ctx context.Context, tc *turn.Context, agentOrder []string, roundNum int, client llm.Client, debugSink io.Writer, rec *telemetry.Recorder) Result {
	pendings := make([]turn.Pending, len(agentOrder))
	prepared := make([]bool, len(agentOrder))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, name := range agentOrder {
		i, name := i, name
		group.Go(func() error {
			pending, err := turn.Prepare(groupCtx, tc, name, client, debugSink, rec)
			if errors.Is(err, turn.ErrCancelled) {
				return nil
			}
			if err != nil {
				return err
			}
			pendings[i] = pending
			prepared[i] = true
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		logger.GetLogger().Error("round: prepare fan-out failed", "round", roundNum, "error", err)
	}

	entries := make([]eventlog.Entry, 0, len(agentOrder))
	for i := range agentOrder {
		if !prepared[i] {
			return Result{Entries: entries, Completed: len(entries), Aborted: true}
		}
		entries = append(entries, turn.Commit(tc, pendings[i], roundNum, rec))
	}

	return Result{Entries: entries, Completed: len(entries)}
}
