package simtree

// PatchKind tags the four ways a child branch's state may diverge from
// its parent at fork time (§4.H).
type PatchKind string

const (
	PatchAgentProps  PatchKind = "agent_props_patch"
	PatchSceneState  PatchKind = "scene_state_patch"
	PatchInjectEvent PatchKind = "inject_event"
	PatchPruneEvents PatchKind = "prune_events"
)

// PatchOp is a tagged union of the four patch kinds, applied atomically
// and in order when branch() forks a child. Only the field matching Kind
// is read.
type PatchOp struct {
	Kind PatchKind `json:"kind"`

	// AgentProps fields.
	AgentName    string         `json:"agentName,omitempty"`
	AgentUpdates map[string]any `json:"agentUpdates,omitempty"`
	AllowCreate  bool           `json:"allowCreate,omitempty"`

	// SceneState fields. Path is a single top-level key; the kernel's
	// sceneState is shallow enough that nested dotted paths are not
	// needed by any mechanic.
	ScenePath  string `json:"scenePath,omitempty"`
	SceneValue any    `json:"sceneValue,omitempty"`

	// InjectEvent fields.
	EventType    string         `json:"eventType,omitempty"`
	EventSender  string         `json:"eventSender,omitempty"`
	EventPayload map[string]any `json:"eventPayload,omitempty"`

	// PruneEvents fields.
	PruneFromSeq int `json:"pruneFromSeq,omitempty"`
}

// NewAgentPropsPatch builds an agent_props_patch op.
func NewAgentPropsPatch(name string, updates map[string]any, allowCreate bool) PatchOp {
	return PatchOp{Kind: PatchAgentProps, AgentName: name, AgentUpdates: updates, AllowCreate: allowCreate}
}

// NewSceneStatePatch builds a scene_state_patch op.
func NewSceneStatePatch(path string, value any) PatchOp {
	return PatchOp{Kind: PatchSceneState, ScenePath: path, SceneValue: value}
}

// NewInjectEventPatch builds an inject_event op.
func NewInjectEventPatch(eventType, sender string, payload map[string]any) PatchOp {
	return PatchOp{Kind: PatchInjectEvent, EventType: eventType, EventSender: sender, EventPayload: payload}
}

// NewPruneEventsPatch builds a prune_events op.
func NewPruneEventsPatch(fromSeq int) PatchOp {
	return PatchOp{Kind: PatchPruneEvents, PruneFromSeq: fromSeq}
}
