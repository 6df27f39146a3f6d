// Package summarizer implements the Context Summariser (component F):
// an LM-assisted refresh of each agent's rollingSummary after a round
// completes, grounded on
// original_source/core/experiment/round_context.py's update_summaries.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/llm"
	"github.com/socialsim4/simkernel/pkg/logger"
)

// Summariser refreshes an agent's rollingSummary given its current summary
// and the events it was allowed to observe this round.
type Summariser struct {
	client llm.Client
}

// New constructs a Summariser backed by client. client may be nil, in
// which case Update is a no-op that leaves every summary untouched —
// useful for scenarios that never enable summarisation.
func New(client llm.Client) *Summariser {
	return &Summariser{client: client}
}

// Update implements §4.F: given an agent's current rollingSummary and the
// round's observed events, ask the LM for a concise 2-4 sentence replacement.
// Failure is tolerated — the previous summary is kept and a warning event
// is appended to log, matching the original's "log the error, keep old
// summary" policy. The returned text is clamped to threshold characters
// before being stored, since nothing about the prompt guarantees a
// compliant model actually honors the "2-4 sentences" instruction — §3
// requires rollingSummary to never exceed threshold regardless of what
// the summariser LM returns.
func (s *Summariser) Update(ctx context.Context, agent *agentstate.State, roundNum int, events []eventlog.Entry, log *eventlog.Log, threshold int) {
	if s == nil || s.client == nil || len(events) == 0 {
		return
	}

	prompt := buildSummaryPrompt(agent.RollingSummary, roundNum, events)
	text, err := s.client.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.ChatOptions{})
	if err != nil {
		logger.GetLogger().Warn("context summariser call failed, keeping previous summary",
			"agent", agent.Name, "round", roundNum, "error", err)
		if log != nil {
			log.Append(eventlog.Entry{
				Turn:    roundNum,
				Type:    eventlog.TypeEnvironmentEvent,
				Sender:  agent.Name,
				Payload: map[string]any{"warning": "summary_update_failed", "error": err.Error()},
			})
		}
		return
	}

	agent.RollingSummary = clampSummary(cleanSummary(text), threshold)
}

// clampSummary truncates text to at most threshold characters. threshold
// <= 0 is treated as "no limit configured" and left unclamped, since
// scenario.Spec.SetDefaults always fills in a positive SummaryThreshold
// before a real round ever calls Update — a non-positive value here only
// happens in a test exercising Update directly.
func clampSummary(text string, threshold int) string {
	if threshold <= 0 || len(text) <= threshold {
		return text
	}
	return strings.TrimSpace(text[:threshold])
}

func buildSummaryPrompt(currentSummary string, roundNum int, events []eventlog.Entry) string {
	var eventsText strings.Builder
	for i, e := range events {
		if i > 0 {
			eventsText.WriteString("\n")
		}
		eventsText.WriteString("- ")
		eventsText.WriteString(describeEvent(e))
	}

	if currentSummary != "" {
		return fmt.Sprintf(
			"Update this agent's running summary with new round events.\n\n"+
				"Current summary:\n%s\n\n"+
				"New events from round %d:\n%s\n\n"+
				"Return ONLY the updated summary (2-4 sentences). Keep it concise. No markdown.",
			currentSummary, roundNum, eventsText.String())
	}
	return fmt.Sprintf(
		"Create an initial summary for this agent after round %d.\n\n"+
			"Events:\n%s\n\n"+
			"Return a concise summary (2-4 sentences). No markdown.",
		roundNum, eventsText.String())
}

func describeEvent(e eventlog.Entry) string {
	switch e.Type {
	case eventlog.TypeAgentAction:
		return fmt.Sprintf("%s performed %v", e.Sender, e.Payload)
	case eventlog.TypeSystemBroadcast, eventlog.TypeChat:
		return fmt.Sprintf("%s said: %v", e.Sender, e.Payload["message"])
	case eventlog.TypeEnvironmentEvent:
		return fmt.Sprintf("environment event: %v", e.Payload)
	default:
		return fmt.Sprintf("%s: %v", e.Type, e.Payload)
	}
}

// cleanSummary strips the stray surrounding quotes the original
// implementation strips before storing the response.
func cleanSummary(text string) string {
	return strings.Trim(strings.TrimSpace(text), `"'`)
}
