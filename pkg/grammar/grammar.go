// Package grammar implements the action grammar that is the contract
// between a language model and the simulation kernel: the set of shapes an
// agent's decision can take, and the validator that maps raw LM text onto
// one of them.
package grammar

import "fmt"

// Kind discriminates the three grammar shapes a ScenarioSpec can declare.
// Downstream code (prompt builder, validator, post-turn hook) dispatches
// on Kind rather than treating the grammar as an untyped map.
type Kind string

const (
	KindDiscrete Kind = "discrete"
	KindInteger  Kind = "integer"
	KindFreeform Kind = "freeform"
)

// Parameter describes one named field of a freeform action.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Grammar is a tagged union over the three action shapes. Exactly one of
// Discrete, Integer, or Freeform is populated, selected by Kind.
type Grammar struct {
	Kind Kind `json:"kind"`

	// OutputField is the JSON key the LM is asked to populate, e.g.
	// "action", "effort", "value".
	OutputField string `json:"outputField"`

	// Discrete holds the ordered, case-sensitive canonical action names.
	// Populated only when Kind == KindDiscrete.
	Discrete []string `json:"discrete,omitempty"`

	// IntegerMin/IntegerMax bound an inclusive range. Populated only when
	// Kind == KindInteger.
	IntegerMin int `json:"integerMin,omitempty"`
	IntegerMax int `json:"integerMax,omitempty"`

	// Freeform holds the named parameter schema. Populated only when
	// Kind == KindFreeform.
	Freeform []Parameter `json:"freeform,omitempty"`
}

// NewDiscrete builds a discrete-action grammar.
func NewDiscrete(outputField string, actions []string) Grammar {
	return Grammar{Kind: KindDiscrete, OutputField: outputField, Discrete: actions}
}

// NewInteger builds an integer-range grammar.
func NewInteger(outputField string, min, max int) Grammar {
	return Grammar{Kind: KindInteger, OutputField: outputField, IntegerMin: min, IntegerMax: max}
}

// NewFreeform builds a freeform-parameter grammar.
func NewFreeform(outputField string, params []Parameter) Grammar {
	return Grammar{Kind: KindFreeform, OutputField: outputField, Freeform: params}
}

// Validate checks a ScenarioSpec-attached grammar for internal consistency,
// the ConfigError class of failure in the kernel's error taxonomy: caught
// at construction time, before any branch exists.
func (g Grammar) Validate() error {
	if g.OutputField == "" {
		return fmt.Errorf("%w: output field is empty", ErrConfigInvalid)
	}
	switch g.Kind {
	case KindDiscrete:
		if len(g.Discrete) == 0 {
			return fmt.Errorf("%w: discrete grammar has no actions", ErrConfigInvalid)
		}
	case KindInteger:
		if g.IntegerMin > g.IntegerMax {
			return fmt.Errorf("%w: integer range [%d,%d] is inverted", ErrConfigInvalid, g.IntegerMin, g.IntegerMax)
		}
	case KindFreeform:
		if len(g.Freeform) == 0 {
			return fmt.Errorf("%w: freeform grammar declares no parameters", ErrConfigInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown grammar kind %q", ErrConfigInvalid, g.Kind)
	}
	return nil
}

// MissingParameters returns the required Freeform parameter names absent
// from values. Only meaningful for Kind == KindFreeform.
func (g Grammar) MissingParameters(values map[string]any) []string {
	var missing []string
	for _, p := range g.Freeform {
		if !p.Required {
			continue
		}
		if _, ok := values[p.Name]; !ok {
			missing = append(missing, p.Name)
		}
	}
	return missing
}
