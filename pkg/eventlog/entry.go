// Package eventlog implements the append-only, per-branch record of every
// observable event in a simulation: agent actions, broadcasts, chat,
// environment effects, and round-boundary markers.
package eventlog

import "time"

// Type enumerates the kinds of entry a branch's log can contain.
type Type string

const (
	TypeSystemBroadcast     Type = "system_broadcast"
	TypeAgentAction         Type = "agent_action"
	TypeChat                Type = "chat"
	TypeEnvironmentEvent    Type = "environment_event"
	TypeSuggestionDismissed Type = "suggestion_dismissed"
	TypeSnapshot            Type = "snapshot"

	// TypeRoundAborted marks a round cancelled mid-flight; §5's
	// cancellation contract requires the log to carry this marker while
	// preserving events already appended.
	TypeRoundAborted Type = "round_aborted"
)

// Entry is one append-only record. Seq is assigned by Log.Append and
// strictly increases with no gaps within a branch.
type Entry struct {
	Seq        int            `json:"seq"`
	Turn       int            `json:"turn"`
	Type       Type           `json:"type"`
	Sender     string         `json:"sender,omitempty"`
	Recipients []string       `json:"recipients,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
