// Package turn implements one agent's single decision cycle: compose
// prompt, call the LM, validate the response, record the outcome, and run
// the scenario's post-turn side effects.
package turn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/grammar"
	"github.com/socialsim4/simkernel/pkg/scenario"
)

// interpretScore buckets a 0-100 numeric trait into the three brackets the
// prompt builder reports, matching original_source's _interpret_score.
func interpretScore(value int) string {
	switch {
	case value <= 33:
		return "low"
	case value <= 66:
		return "moderate"
	default:
		return "high"
	}
}

func article(word string) string {
	if word == "" {
		return "a"
	}
	switch strings.ToLower(word)[0] {
	case 'a', 'e', 'i', 'o', 'u':
		return "an"
	default:
		return "a"
	}
}

// buildAgentDescription renders section 1: an identity paragraph derived
// from properties, with numeric traits bucketised at the 33/66 boundaries.
// Matches original_source's build_agent_description exactly, including its
// "age_group"/"profession" special-casing and deterministic trait order.
func buildAgentDescription(properties map[string]any) string {
	ageGroup, _ := properties["age_group"].(string)
	if ageGroup == "" {
		ageGroup = "adult"
	}
	profession, _ := properties["profession"].(string)
	if profession == "" {
		profession = "person"
	}

	parts := []string{fmt.Sprintf("You are %s %s %s.", article(ageGroup), ageGroup, profession)}

	keys := make([]string, 0, len(properties))
	for k := range properties {
		if k == "age_group" || k == "profession" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := properties[key].(type) {
		case int:
			parts = append(parts, fmt.Sprintf("Your %s score is %d/100 (%s).", key, v, interpretScore(v)))
		case float64:
			parts = append(parts, fmt.Sprintf("Your %s score is %v/100 (%s).", key, v, interpretScore(int(v))))
		case string:
			parts = append(parts, fmt.Sprintf("Your %s is %s.", key, v))
		}
	}

	return strings.Join(parts, " ")
}

// renderActions renders section 3, dispatched on the grammar's discriminator.
func renderActions(g grammar.Grammar) string {
	switch g.Kind {
	case grammar.KindDiscrete:
		var b strings.Builder
		b.WriteString("## Available Actions\n")
		for _, a := range g.Discrete {
			fmt.Fprintf(&b, "- %s: %s\n", a, a)
		}
		return strings.TrimRight(b.String(), "\n")
	case grammar.KindInteger:
		return fmt.Sprintf("## Your Action\nChoose a value from %d to %d.", g.IntegerMin, g.IntegerMax)
	case grammar.KindFreeform:
		var b strings.Builder
		b.WriteString("## Your Action\nProvide the following parameters:\n")
		for _, p := range g.Freeform {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "- %s (%s): %s\n", p.Name, req, p.Description)
		}
		return strings.TrimRight(b.String(), "\n")
	default:
		return "## Available Actions\n(none declared)"
	}
}

// renderResponseFormat renders section 5's exact output-field instruction.
func renderResponseFormat(g grammar.Grammar) string {
	switch g.Kind {
	case grammar.KindDiscrete:
		quoted := make([]string, len(g.Discrete))
		for i, a := range g.Discrete {
			quoted[i] = fmt.Sprintf("%q", a)
		}
		return fmt.Sprintf(`## Your Response
Respond ONLY with valid JSON: {"reasoning": "one sentence", %q: "<%s>"}`, g.OutputField, strings.Join(quoted, ", "))
	case grammar.KindInteger:
		return fmt.Sprintf(`## Your Response
Respond ONLY with valid JSON: {"reasoning": "one sentence", %q: <integer from %d-%d>}`, g.OutputField, g.IntegerMin, g.IntegerMax)
	case grammar.KindFreeform:
		fields := make([]string, 0, len(g.Freeform)+1)
		fields = append(fields, fmt.Sprintf("%q: \"<action>\"", g.OutputField))
		for _, p := range g.Freeform {
			fields = append(fields, fmt.Sprintf("%q: <%s>", p.Name, p.Name))
		}
		return fmt.Sprintf("## Your Response\nRespond ONLY with valid JSON: {%s}", strings.Join(fields, ", "))
	default:
		return "## Your Response\nRespond ONLY with valid JSON."
	}
}

// BuildPrompt composes the five fixed sections of §4.D in order: identity,
// scenario description, available actions, rolling context, and the
// JSON-only closing instruction.
func BuildPrompt(agent *agentstate.State, spec *scenario.Spec) string {
	sections := []string{
		buildAgentDescription(agent.Properties),
		"\n## Scenario\n" + spec.Description,
		"\n" + renderActions(spec.Grammar),
		contextSection(agent.RollingSummary),
		"\n" + renderResponseFormat(spec.Grammar),
		"\nNo markdown. No explanation. Only JSON.",
	}
	return strings.Join(sections, "\n")
}

func contextSection(summary string) string {
	if summary == "" {
		return "\n## Context\nThis is the first round - no previous context."
	}
	return "\n## Context\n" + summary
}

// BuildReprompt matches original_source's build_reprompt: the base prompt
// plus an instruction restating only the missing parameters from a
// KindFreeform grammar's schema.
func BuildReprompt(agent *agentstate.State, spec *scenario.Spec, chosenAction string, missing []string) string {
	base := BuildPrompt(agent, spec)

	paramsByName := make(map[string]grammar.Parameter, len(spec.Grammar.Freeform))
	for _, p := range spec.Grammar.Freeform {
		paramsByName[p.Name] = p
	}

	descs := make([]string, 0, len(missing))
	for _, name := range missing {
		desc := name
		if p, ok := paramsByName[name]; ok && p.Description != "" {
			desc = p.Description
		}
		descs = append(descs, fmt.Sprintf("%q: <%s>", name, desc))
	}

	reprompt := fmt.Sprintf("\n\nYou chose to %s. This action requires parameters.\nRespond ONLY with valid JSON: {\"action\": %q, %s}",
		chosenAction, chosenAction, strings.Join(descs, ", "))
	return base + reprompt
}
