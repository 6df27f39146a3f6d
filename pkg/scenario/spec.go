// Package scenario defines the declarative substrate of a simulation:
// ScenarioSpec, the immutable template a branch is created from, and the
// mechanic descriptors that attach domain-specific side effects to it.
package scenario

import (
	"fmt"

	"github.com/socialsim4/simkernel/pkg/grammar"
)

// Visibility controls whether agents within a round see each other's
// actions as they happen (sequential) or only after the round completes
// (simultaneous).
type Visibility string

const (
	VisibilitySimultaneous Visibility = "simultaneous"
	VisibilitySequential   Visibility = "sequential"
)

// Spec is an immutable scenario template. Once attached to a simulation it
// never mutates; a new Spec supersedes it only by branching (pkg/simtree).
type Spec struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	Grammar grammar.Grammar `json:"grammar"`

	Visibility Visibility `json:"visibility"`
	Mechanics  []Mechanic `json:"mechanics,omitempty"`
	Rules      []string   `json:"rules,omitempty"`

	// AllowedRoles restricts which agent roles may act in this scenario at
	// all, per original_source's action_controller.py. Empty means any
	// role may act; "*" means any role except "host". Checked by the Turn
	// Pipeline before an LM call is made.
	AllowedRoles []string `json:"allowedRoles,omitempty"`

	// NetworkTopology maps a sender's agent name to the set of agent names
	// allowed to receive its broadcasts. A nil map means unrestricted
	// broadcast.
	NetworkTopology map[string][]string `json:"networkTopology,omitempty"`

	MaxRounds        int `json:"maxRounds"`
	SummaryThreshold int `json:"summaryThreshold,omitempty"`
}

// Validate checks a Spec for internal consistency. Failures here are the
// kernel's ConfigError class: detected at construction, fatal to the spec,
// no branch is ever created.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return &ConfigError{Field: "id", Err: ErrMissingID}
	}
	if s.Visibility != VisibilitySimultaneous && s.Visibility != VisibilitySequential {
		return &ConfigError{Field: "visibility", Err: ErrMissingVisibility}
	}
	if err := s.Grammar.Validate(); err != nil {
		return &ConfigError{Field: "grammar", Err: err}
	}
	for i, m := range s.Mechanics {
		if err := m.validate(); err != nil {
			return &ConfigError{Field: fmt.Sprintf("mechanics[%d]", i), Err: err}
		}
	}
	if s.MaxRounds <= 0 {
		return &ConfigError{Field: "maxRounds", Err: ErrInvalidMaxRounds}
	}
	if s.SummaryThreshold <= 0 {
		s.SummaryThreshold = 500
	}
	return nil
}

// EffectiveRecipients applies NetworkTopology filtering to a broadcast:
// adjacency[sender] ∩ agentsInScene. An absent topology implies full
// broadcast to every other agent in the scene.
func (s *Spec) EffectiveRecipients(sender string, agentsInScene []string) []string {
	if s.NetworkTopology == nil {
		recipients := make([]string, 0, len(agentsInScene))
		for _, name := range agentsInScene {
			if name != sender {
				recipients = append(recipients, name)
			}
		}
		return recipients
	}

	adjacency, ok := s.NetworkTopology[sender]
	if !ok {
		return nil
	}
	inScene := make(map[string]bool, len(agentsInScene))
	for _, name := range agentsInScene {
		inScene[name] = true
	}
	recipients := make([]string, 0, len(adjacency))
	for _, candidate := range adjacency {
		if inScene[candidate] {
			recipients = append(recipients, candidate)
		}
	}
	return recipients
}

// InitialSceneState merges every mechanic's SceneState contribution into a
// single map, used when a simulation's root branch is created.
func (s *Spec) InitialSceneState() map[string]any {
	state := make(map[string]any)
	for _, m := range s.Mechanics {
		for k, v := range m.SceneState() {
			state[k] = v
		}
	}
	return state
}

// InitialAgentProperties merges every mechanic's per-agent property
// defaults, applied when an agent joins a simulation under this spec.
func (s *Spec) InitialAgentProperties() map[string]any {
	props := make(map[string]any)
	for _, m := range s.Mechanics {
		for k, v := range m.InitialAgentProperties() {
			props[k] = v
		}
	}
	return props
}
