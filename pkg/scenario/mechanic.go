package scenario

import "fmt"

// MechanicKind discriminates the five named mechanic kinds a ScenarioSpec
// may declare, each carrying its own typed config payload rather than an
// opaque map.
type MechanicKind string

const (
	MechanicGrid       MechanicKind = "grid"
	MechanicVoting     MechanicKind = "voting"
	MechanicResources  MechanicKind = "resources"
	MechanicHierarchy  MechanicKind = "hierarchy"
	MechanicDiscussion MechanicKind = "discussion"
)

// GridConfig configures spatial navigation: a bounded 2D grid agents move
// on, with a communication range and a per-move energy cost.
type GridConfig struct {
	Width         int `yaml:"width"`
	Height        int `yaml:"height"`
	ChatRange     int `yaml:"chat_range"`
	MovementCost  int `yaml:"movement_cost"`
}

func (c GridConfig) withDefaults() GridConfig {
	if c.Width == 0 {
		c.Width = 20
	}
	if c.Height == 0 {
		c.Height = 20
	}
	if c.ChatRange == 0 {
		c.ChatRange = 5
	}
	if c.MovementCost == 0 {
		c.MovementCost = 1
	}
	return c
}

// VotingConfig configures proposal-based voting: a quorum fraction and an
// optional turn budget before a proposal auto-closes.
type VotingConfig struct {
	Quorum      float64 `yaml:"quorum"`
	TimeoutTurn int     `yaml:"timeout_turns"`
}

func (c VotingConfig) withDefaults() VotingConfig {
	if c.Quorum == 0 {
		c.Quorum = 0.5
	}
	return c
}

// ResourcesConfig configures a shared pool of collectible resource types
// with a per-type stack cap.
type ResourcesConfig struct {
	Resources     []string `yaml:"resources"`
	InitialAmount int      `yaml:"initial_amount"`
	MaxStackSize  int      `yaml:"max_stack_size"`
}

func (c ResourcesConfig) withDefaults() ResourcesConfig {
	if len(c.Resources) == 0 {
		c.Resources = []string{"food", "wood", "water"}
	}
	if c.MaxStackSize == 0 {
		c.MaxStackSize = 100
	}
	return c
}

// HierarchyConfig configures a command structure: either a tiered "tree" of
// roles with numeric authority levels, or a "flat" structure with none.
type HierarchyConfig struct {
	HierarchyType string         `yaml:"hierarchy_type"`
	Levels        map[string]int `yaml:"levels"`
	CanCommand    bool           `yaml:"can_command"`
}

func (c HierarchyConfig) withDefaults() HierarchyConfig {
	if c.HierarchyType == "" {
		c.HierarchyType = "tree"
	}
	return c
}

func (c HierarchyConfig) validate() error {
	if c.HierarchyType != "tree" && c.HierarchyType != "flat" {
		return fmt.Errorf("%w: hierarchy_type %q must be tree or flat", ErrInvalidMechanic, c.HierarchyType)
	}
	return nil
}

// DiscussionConfig configures free-form or turn-limited agent communication.
type DiscussionConfig struct {
	Moderated         bool `yaml:"moderated"`
	SpeakingTimeLimit int  `yaml:"speaking_time_limit"`
	AllowPrivate      bool `yaml:"allow_private"`
	MaxMessageLength  int  `yaml:"max_message_length"`
}

func (c DiscussionConfig) withDefaults() DiscussionConfig {
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = 1000
	}
	return c
}

// Mechanic is a tagged union over the five mechanic kinds. Exactly one of
// the typed config fields is populated, selected by Kind.
type Mechanic struct {
	Kind MechanicKind

	Grid       GridConfig
	Voting     VotingConfig
	Resources  ResourcesConfig
	Hierarchy  HierarchyConfig
	Discussion DiscussionConfig
}

func NewGridMechanic(cfg GridConfig) Mechanic {
	return Mechanic{Kind: MechanicGrid, Grid: cfg.withDefaults()}
}

func NewVotingMechanic(cfg VotingConfig) Mechanic {
	return Mechanic{Kind: MechanicVoting, Voting: cfg.withDefaults()}
}

func NewResourcesMechanic(cfg ResourcesConfig) Mechanic {
	return Mechanic{Kind: MechanicResources, Resources: cfg.withDefaults()}
}

func NewHierarchyMechanic(cfg HierarchyConfig) Mechanic {
	return Mechanic{Kind: MechanicHierarchy, Hierarchy: cfg.withDefaults()}
}

func NewDiscussionMechanic(cfg DiscussionConfig) Mechanic {
	return Mechanic{Kind: MechanicDiscussion, Discussion: cfg.withDefaults()}
}

func (m Mechanic) validate() error {
	switch m.Kind {
	case MechanicGrid, MechanicVoting, MechanicResources, MechanicDiscussion:
		return nil
	case MechanicHierarchy:
		return m.Hierarchy.validate()
	default:
		return fmt.Errorf("%w: unknown mechanic kind %q", ErrInvalidMechanic, m.Kind)
	}
}

// InitialAgentProperties returns the property defaults a mechanic seeds
// onto every agent when a simulation starts, mirroring each mechanic's
// initialize_agent behaviour.
func (m Mechanic) InitialAgentProperties() map[string]any {
	switch m.Kind {
	case MechanicResources:
		inventory := make(map[string]any, len(m.Resources.Resources))
		for _, r := range m.Resources.Resources {
			inventory[r] = m.Resources.InitialAmount
		}
		return map[string]any{"inventory": inventory}
	case MechanicHierarchy:
		props := map[string]any{"role_level": 1, "can_command": false}
		return props
	case MechanicDiscussion:
		return map[string]any{"speaking_turn": 0, "has_spoken_this_turn": false, "message_count": 0}
	default:
		return nil
	}
}

// SceneState returns the mechanic's contribution to the simulation's
// sceneState map, merged in at scenario initialisation.
func (m Mechanic) SceneState() map[string]any {
	switch m.Kind {
	case MechanicResources:
		return map[string]any{
			"available_resources": m.Resources.Resources,
			"max_stack_size":      m.Resources.MaxStackSize,
		}
	case MechanicHierarchy:
		return map[string]any{
			"hierarchy_type": m.Hierarchy.HierarchyType,
			"role_levels":    m.Hierarchy.Levels,
			"can_command":    m.Hierarchy.CanCommand,
		}
	case MechanicDiscussion:
		return map[string]any{
			"moderated":          m.Discussion.Moderated,
			"speaking_time_limit": m.Discussion.SpeakingTimeLimit,
			"allow_private":      m.Discussion.AllowPrivate,
			"max_message_length": m.Discussion.MaxMessageLength,
		}
	case MechanicGrid:
		return map[string]any{
			"grid_width":      m.Grid.Width,
			"grid_height":     m.Grid.Height,
			"chat_range":      m.Grid.ChatRange,
		}
	case MechanicVoting:
		return map[string]any{
			"voting_quorum":       m.Voting.Quorum,
			"voting_timeout_turn": m.Voting.TimeoutTurn,
		}
	default:
		return nil
	}
}
