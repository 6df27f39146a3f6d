package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/config"
)

// rosterFile is the YAML shape a scenario operator hand-writes alongside a
// scenario spec to declare the population running through it and which LM
// binding each one speaks to. It is deliberately separate from
// scenario.Spec: a Spec describes the rules of a scenario, a roster
// describes who is playing it this run.
type rosterFile struct {
	LLMs   map[string]config.LLMConfig `yaml:"llms"`
	Agents []rosterAgent               `yaml:"agents"`
}

type rosterAgent struct {
	Name       string         `yaml:"name"`
	LLMBinding string         `yaml:"llm_binding"`
	Properties map[string]any `yaml:"properties"`
}

// loadRoster reads a roster file and returns the LLM configs keyed by
// binding name, the constructed agents keyed by name, and their declared
// iteration order.
func loadRoster(path string) (map[string]config.LLMConfig, map[string]*agentstate.State, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading roster %s: %w", path, err)
	}

	var raw rosterFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	if len(raw.Agents) == 0 {
		return nil, nil, nil, fmt.Errorf("roster %s declares no agents", path)
	}

	agents := make(map[string]*agentstate.State, len(raw.Agents))
	order := make([]string, 0, len(raw.Agents))
	for _, a := range raw.Agents {
		state, err := agentstate.New(a.Name, a.Properties, a.LLMBinding)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("roster %s agent %q: %w", path, a.Name, err)
		}
		agents[a.Name] = state
		order = append(order, a.Name)
	}

	return raw.LLMs, agents, order, nil
}
