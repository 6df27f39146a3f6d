// Package agentstate models one agent's mutable record within a branch:
// its demographics, short-term memory, and rolling summary of everything
// it has observed so far.
package agentstate

import "strings"

// State is an agent's mutable per-branch record. Created at simulation
// init or inherited by fork; mutated only by the Turn Pipeline and the
// Context Summariser running on its owning branch.
type State struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`

	ShortMemory []MemoryEntry `json:"shortMemory,omitempty"`

	// RollingSummary is a string of at most SummaryThreshold characters
	// (enforced by the Context Summariser, not here) representing
	// everything this agent has observed so far.
	RollingSummary string `json:"rollingSummary,omitempty"`

	// LLMBinding names which registered llm.Client this agent's turns and
	// summary refreshes are dispatched to.
	LLMBinding string `json:"llmBinding,omitempty"`
}

// New creates an agent with the given name and initial properties. The
// properties map is copied so the caller's map can be reused or mutated
// freely afterward.
func New(name string, properties map[string]any, llmBinding string) (*State, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	return &State{
		Name:       name,
		Properties: cloneProperties(properties),
		LLMBinding: llmBinding,
	}, nil
}

// AppendMemory records one entry of observed history, merging into the
// last entry when adjacency rules allow it.
func (s *State) AppendMemory(role Role, content string, media ...string) {
	s.ShortMemory = appendMerging(s.ShortMemory, role, content, media)
}

// InjectEnvFeedback appends environment-originated text as a user-role
// memory entry, the mechanism by which broadcasts and mechanic side
// effects reach an agent's context.
func (s *State) InjectEnvFeedback(text string, media ...string) {
	s.AppendMemory(RoleUser, text, media...)
}

// RenderContext returns the memory entries an LM client will consume,
// prepended by a synthesised system message built from RollingSummary,
// Properties, and the scenario's behavioural rules.
func (s *State) RenderContext(rules []string) []MemoryEntry {
	system := s.systemMessage(rules)
	entries := make([]MemoryEntry, 0, len(s.ShortMemory)+1)
	entries = append(entries, MemoryEntry{Role: RoleSystem, Content: system})
	entries = append(entries, s.ShortMemory...)
	return entries
}

func (s *State) systemMessage(rules []string) string {
	var b strings.Builder
	if s.RollingSummary != "" {
		b.WriteString(s.RollingSummary)
	} else {
		b.WriteString("This is the first round; you have no prior observations.")
	}
	if len(rules) > 0 {
		b.WriteString("\n\nRules:\n")
		for _, r := range rules {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clone performs a deep copy of the agent state, used by pkg/simtree when
// forking a branch: siblings must never share mutable memory or property
// maps.
func (s *State) Clone() *State {
	clone := &State{
		Name:           s.Name,
		Properties:     cloneProperties(s.Properties),
		RollingSummary: s.RollingSummary,
		LLMBinding:     s.LLMBinding,
	}
	clone.ShortMemory = make([]MemoryEntry, len(s.ShortMemory))
	for i, entry := range s.ShortMemory {
		media := make([]string, len(entry.MediaRefs))
		copy(media, entry.MediaRefs)
		clone.ShortMemory[i] = MemoryEntry{Role: entry.Role, Content: entry.Content, MediaRefs: media}
	}
	return clone
}

func cloneProperties(props map[string]any) map[string]any {
	clone := make(map[string]any, len(props))
	for k, v := range props {
		if nested, ok := v.(map[string]any); ok {
			clone[k] = cloneProperties(nested)
			continue
		}
		clone[k] = v
	}
	return clone
}

// MergeProperties applies a shallow merge of updates into Properties,
// the mechanism behind the simulation tree's agent_props_patch op.
func (s *State) MergeProperties(updates map[string]any) {
	if s.Properties == nil {
		s.Properties = make(map[string]any)
	}
	for k, v := range updates {
		s.Properties[k] = v
	}
}
