package scenario

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/socialsim4/simkernel/pkg/grammar"
)

// rawSpec is the YAML-shaped document a scenario author writes by hand,
// following the structure of original_source's templates/loader.py: loosely
// typed fields converted into the strict Spec, with each mechanic's config
// map decoded into its typed struct via mapstructure.
type rawSpec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	ActionType string   `yaml:"action_type"`
	Actions    []string `yaml:"actions"`
	OutputField string  `yaml:"output_field"`
	IntegerMin int      `yaml:"integer_min"`
	IntegerMax int      `yaml:"integer_max"`
	Parameters []rawParameter `yaml:"parameters"`

	Visibility string `yaml:"visibility"`

	Mechanics []rawMechanic `yaml:"mechanics"`
	Rules     []string      `yaml:"rules"`

	AllowedRoles []string `yaml:"allowed_roles"`

	NetworkTopology map[string][]string `yaml:"network_topology"`

	MaxRounds        int `yaml:"max_rounds"`
	SummaryThreshold int `yaml:"summary_threshold"`
}

type rawParameter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

type rawMechanic struct {
	Kind   string         `yaml:"kind"`
	Config map[string]any `yaml:"config"`
}

// LoadSpec parses a YAML document into a validated Spec.
func LoadSpec(data []byte) (*Spec, error) {
	var raw rawSpec
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Field: "yaml", Err: err}
	}
	return fromRaw(raw)
}

// LoadSpecFile reads and parses a YAML scenario file from disk.
func LoadSpecFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Field: "file", Err: err}
	}
	return LoadSpec(data)
}

func fromRaw(raw rawSpec) (*Spec, error) {
	g, err := grammarFromRaw(raw)
	if err != nil {
		return nil, &ConfigError{Field: "grammar", Err: err}
	}

	mechanics := make([]Mechanic, 0, len(raw.Mechanics))
	for i, rm := range raw.Mechanics {
		m, err := mechanicFromRaw(rm)
		if err != nil {
			return nil, &ConfigError{Field: fmt.Sprintf("mechanics[%d]", i), Err: err}
		}
		mechanics = append(mechanics, m)
	}

	spec := &Spec{
		ID:               raw.ID,
		Name:             raw.Name,
		Description:      raw.Description,
		Grammar:          g,
		Visibility:       Visibility(raw.Visibility),
		Mechanics:        mechanics,
		Rules:            raw.Rules,
		AllowedRoles:     raw.AllowedRoles,
		NetworkTopology:  raw.NetworkTopology,
		MaxRounds:        raw.MaxRounds,
		SummaryThreshold: raw.SummaryThreshold,
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func grammarFromRaw(raw rawSpec) (grammar.Grammar, error) {
	switch raw.ActionType {
	case "discrete":
		return grammar.NewDiscrete(raw.OutputField, raw.Actions), nil
	case "integer":
		return grammar.NewInteger(raw.OutputField, raw.IntegerMin, raw.IntegerMax), nil
	case "freeform":
		params := make([]grammar.Parameter, 0, len(raw.Parameters))
		for _, p := range raw.Parameters {
			params = append(params, grammar.Parameter{Name: p.Name, Description: p.Description, Required: p.Required})
		}
		return grammar.NewFreeform(raw.OutputField, params), nil
	default:
		return grammar.Grammar{}, fmt.Errorf("%w: %q", ErrInvalidActionType, raw.ActionType)
	}
}

func mechanicFromRaw(raw rawMechanic) (Mechanic, error) {
	switch MechanicKind(raw.Kind) {
	case MechanicGrid:
		var cfg GridConfig
		if err := decode(raw.Config, &cfg); err != nil {
			return Mechanic{}, err
		}
		return NewGridMechanic(cfg), nil
	case MechanicVoting:
		var cfg VotingConfig
		if err := decode(raw.Config, &cfg); err != nil {
			return Mechanic{}, err
		}
		return NewVotingMechanic(cfg), nil
	case MechanicResources:
		var cfg ResourcesConfig
		if err := decode(raw.Config, &cfg); err != nil {
			return Mechanic{}, err
		}
		return NewResourcesMechanic(cfg), nil
	case MechanicHierarchy:
		var cfg HierarchyConfig
		if err := decode(raw.Config, &cfg); err != nil {
			return Mechanic{}, err
		}
		return NewHierarchyMechanic(cfg), nil
	case MechanicDiscussion:
		var cfg DiscussionConfig
		if err := decode(raw.Config, &cfg); err != nil {
			return Mechanic{}, err
		}
		return NewDiscussionMechanic(cfg), nil
	default:
		return Mechanic{}, fmt.Errorf("%w: unknown mechanic kind %q", ErrInvalidMechanic, raw.Kind)
	}
}

func decode(raw map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "yaml",
		Result:  target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}
