package turn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/grammar"
	"github.com/socialsim4/simkernel/pkg/llm"
	"github.com/socialsim4/simkernel/pkg/scenario"
	"github.com/socialsim4/simkernel/pkg/telemetry"
)

const (
	maxCallAttempts    = 3
	callBackoffBase    = 250 * time.Millisecond
	defaultCallTimeout = 60 * time.Second
)

func toLLMMessages(entries []agentstate.MemoryEntry) []llm.Message {
	messages := make([]llm.Message, len(entries))
	for i, e := range entries {
		messages[i] = llm.Message{Role: llm.Role(e.Role), Content: e.Content}
	}
	return messages
}

// callWithRetry implements §7's LMCallError policy: retried up to a fixed
// attempt budget with exponential backoff before the caller converts it to
// a skip with reason llm_unavailable.
func callWithRetry(ctx context.Context, client llm.Client, messages []llm.Message, opts llm.ChatOptions) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxCallAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * callBackoffBase
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
		text, err := client.Chat(callCtx, messages, opts)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("turn: llm call exhausted retry budget: %w", lastErr)
}

// timedCall wraps callWithRetry with an optional telemetry span and a
// per-call latency observation, keyed by the agent's LM binding.
func timedCall(ctx context.Context, client llm.Client, messages []llm.Message, opts llm.ChatOptions, agentName, binding string, rec *telemetry.Recorder) (string, error) {
	spanCtx, span := rec.StartLLMCall(ctx, agentName, binding)
	start := time.Now()
	text, err := callWithRetry(spanCtx, client, messages, opts)
	rec.RecordLLMCall(span, binding, time.Since(start), err)
	return text, err
}

// memoryWrite is a deferred agentstate.AppendMemory call, replayed by
// Commit only once an outcome is known to be ok — never on skip, per §8's
// invariant that a skip leaves ShortMemory untouched.
type memoryWrite struct {
	role    agentstate.Role
	content string
}

// Pending is the outcome of Prepare: everything needed to commit a turn,
// without having mutated any shared state yet. This split lets a
// simultaneous round fan Prepare out concurrently across agents (each
// reads only its own, not-yet-committed state) and then Commit
// sequentially in declared order, so the event log's order never depends
// on LM completion order.
type Pending struct {
	AgentName  string
	IsSkip     bool
	SkipReason grammar.SkipReason
	Values     map[string]any
	writes     []memoryWrite
}

// Prepare runs everything in §4.D up to (but not including) recording:
// role check, prompt composition, the LM call, validation, and the single
// repair retry. It never mutates agent or scene state. rec, if non-nil,
// receives a span and a latency observation around every LM call.
func Prepare(ctx context.Context, tc *Context, agentName string, client llm.Client, debugSink io.Writer, rec *telemetry.Recorder) (Pending, error) {
	agent, ok := tc.Agents[agentName]
	if !ok {
		return Pending{}, fmt.Errorf("%w: %q", ErrUnknownAgent, agentName)
	}

	if err := agent.CheckRole(tc.Spec.AllowedRoles); err != nil {
		return Pending{AgentName: agentName, IsSkip: true, SkipReason: grammar.SkipRoleForbidden}, nil
	}

	prompt := BuildPrompt(agent, tc.Spec)
	messages := buildMessages(agent, tc.Spec, prompt)
	opts := llm.ChatOptions{JSONMode: true}

	rawText, err := timedCall(ctx, client, messages, opts, agentName, agent.LLMBinding, rec)
	writeDebug(debugSink, agentName, prompt, rawText, err)
	if err != nil {
		if isCancellation(ctx, err) {
			return Pending{}, fmt.Errorf("%w: %q: %v", ErrCancelled, agentName, err)
		}
		return Pending{AgentName: agentName, IsSkip: true, SkipReason: grammar.SkipLLMUnavailable}, nil
	}

	result := grammar.Validate(rawText, tc.Spec.Grammar)

	if result.Outcome == grammar.OutcomeRetry {
		chosenAction, _ := result.Values[tc.Spec.Grammar.OutputField].(string)
		reprompt := BuildReprompt(agent, tc.Spec, chosenAction, result.MissingParameters)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: rawText},
			llm.Message{Role: llm.RoleUser, Content: reprompt},
		)

		rawText2, err2 := timedCall(ctx, client, messages, opts, agentName, agent.LLMBinding, rec)
		writeDebug(debugSink, agentName, reprompt, rawText2, err2)
		if err2 != nil {
			if isCancellation(ctx, err2) {
				return Pending{}, fmt.Errorf("%w: %q: %v", ErrCancelled, agentName, err2)
			}
			return Pending{AgentName: agentName, IsSkip: true, SkipReason: grammar.SkipLLMUnavailable}, nil
		}

		result2 := grammar.Validate(rawText2, tc.Spec.Grammar)
		if result2.Outcome != grammar.OutcomeOK {
			return Pending{AgentName: agentName, IsSkip: true, SkipReason: grammar.SkipMissingParams}, nil
		}

		return Pending{
			AgentName: agentName,
			Values:    result2.Values,
			writes: []memoryWrite{
				{agentstate.RoleUser, prompt},
				{agentstate.RoleAssistant, rawText},
				{agentstate.RoleUser, reprompt},
				{agentstate.RoleAssistant, rawText2},
			},
		}, nil
	}

	if result.Outcome != grammar.OutcomeOK {
		return Pending{AgentName: agentName, IsSkip: true, SkipReason: result.Reason}, nil
	}

	return Pending{
		AgentName: agentName,
		Values:    result.Values,
		writes: []memoryWrite{
			{agentstate.RoleUser, prompt},
			{agentstate.RoleAssistant, rawText},
		},
	}, nil
}

// Commit replays a Pending outcome's memory writes (if any), appends the
// event log entry, and — on an ok outcome — runs the post-turn hook. It is
// the branch's single mutation point for a turn and must never be called
// concurrently for the same branch. rec, if non-nil, is credited with the
// turn's outcome.
func Commit(tc *Context, pending Pending, turnNumber int, rec *telemetry.Recorder) eventlog.Entry {
	if pending.IsSkip {
		rec.RecordSkip(string(pending.SkipReason))
		rec.RecordTurnOutcome("skip")
		return recordSkip(tc, pending.AgentName, turnNumber, pending.SkipReason)
	}

	agent, ok := tc.Agents[pending.AgentName]
	if !ok {
		rec.RecordSkip("unknown_agent")
		rec.RecordTurnOutcome("skip")
		return recordSkip(tc, pending.AgentName, turnNumber, grammar.SkipReason("unknown_agent"))
	}
	for _, w := range pending.writes {
		agent.AppendMemory(w.role, w.content)
	}
	rec.RecordTurnOutcome("ok")
	return recordOkAndRunHook(tc, pending.AgentName, turnNumber, pending.Values)
}

// RunTurn is Prepare immediately followed by Commit — the full §4.D cycle
// for a single agent acting alone, used directly by sequential rounds
// where each agent's Commit must land before the next agent's Prepare
// reads the live log.
func RunTurn(ctx context.Context, tc *Context, agentName string, turnNumber int, client llm.Client, debugSink io.Writer, rec *telemetry.Recorder) (eventlog.Entry, error) {
	pending, err := Prepare(ctx, tc, agentName, client, debugSink, rec)
	if err != nil {
		return eventlog.Entry{}, err
	}
	return Commit(tc, pending, turnNumber, rec), nil
}

// isCancellation reports whether err stems from ctx being cancelled or
// timing out, as opposed to a genuine transport failure from the client.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ctx.Err()))
}

func buildMessages(agent *agentstate.State, spec *scenario.Spec, prompt string) []llm.Message {
	entries := agent.RenderContext(spec.Rules)
	messages := toLLMMessages(entries)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	return messages
}

func recordSkip(tc *Context, agentName string, turnNumber int, reason grammar.SkipReason) eventlog.Entry {
	return tc.Log.Append(eventlog.Entry{
		Turn:   turnNumber,
		Type:   eventlog.TypeAgentAction,
		Sender: agentName,
		Payload: map[string]any{
			"error": string(reason),
		},
	})
}

func recordOkAndRunHook(tc *Context, agentName string, turnNumber int, values map[string]any) eventlog.Entry {
	entry := tc.Log.Append(eventlog.Entry{
		Turn:    turnNumber,
		Type:    eventlog.TypeAgentAction,
		Sender:  agentName,
		Payload: values,
	})
	runPostTurnHook(tc, agentName, turnNumber, values)
	return entry
}

func writeDebug(sink io.Writer, agentName, prompt, response string, err error) {
	if sink == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = err.Error()
	}
	fmt.Fprintf(sink, "=== %s ===\n--- prompt ---\n%s\n--- response (%s) ---\n%s\n\n", agentName, prompt, status, response)
}
