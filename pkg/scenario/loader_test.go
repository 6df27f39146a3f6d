package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialsim4/simkernel/pkg/grammar"
)

const prisonersDilemmaYAML = `
id: prisoners-dilemma
name: Prisoner's Dilemma
action_type: discrete
output_field: action
actions: [cooperate, defect]
visibility: simultaneous
max_rounds: 10
rules:
  - Agents cannot communicate between rounds.
`

func TestLoadSpec_DiscreteGrammar(t *testing.T) {
	spec, err := LoadSpec([]byte(prisonersDilemmaYAML))
	require.NoError(t, err)
	assert.Equal(t, "prisoners-dilemma", spec.ID)
	assert.Equal(t, grammar.KindDiscrete, spec.Grammar.Kind)
	assert.Equal(t, []string{"cooperate", "defect"}, spec.Grammar.Discrete)
	assert.Equal(t, VisibilitySimultaneous, spec.Visibility)
}

const villageYAML = `
id: village
name: Village
action_type: integer
output_field: effort
integer_min: 1
integer_max: 7
visibility: sequential
max_rounds: 5
mechanics:
  - kind: grid
    config:
      width: 30
      height: 30
      chat_range: 8
  - kind: resources
    config:
      resources: [food, wood]
      initial_amount: 1
`

func TestLoadSpec_IntegerGrammarWithMechanics(t *testing.T) {
	spec, err := LoadSpec([]byte(villageYAML))
	require.NoError(t, err)
	require.Len(t, spec.Mechanics, 2)

	grid := spec.Mechanics[0]
	assert.Equal(t, MechanicGrid, grid.Kind)
	assert.Equal(t, 30, grid.Grid.Width)
	assert.Equal(t, 8, grid.Grid.ChatRange)

	resources := spec.Mechanics[1]
	assert.Equal(t, MechanicResources, resources.Kind)
	assert.Equal(t, []string{"food", "wood"}, resources.Resources.Resources)
	assert.Equal(t, 1, resources.Resources.InitialAmount)
}

func TestLoadSpec_UnknownActionTypeIsConfigError(t *testing.T) {
	_, err := LoadSpec([]byte("id: x\naction_type: mystery\nvisibility: simultaneous\nmax_rounds: 1\n"))
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestLoadSpec_UnknownMechanicKindIsConfigError(t *testing.T) {
	yaml := `
id: x
action_type: discrete
output_field: action
actions: [a]
visibility: simultaneous
max_rounds: 1
mechanics:
  - kind: mystery
`
	_, err := LoadSpec([]byte(yaml))
	require.Error(t, err)
}

func TestLoadSpecFile_MissingFileIsConfigError(t *testing.T) {
	_, err := LoadSpecFile("/nonexistent/path/scenario.yaml")
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
