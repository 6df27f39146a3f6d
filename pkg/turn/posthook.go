package turn

import (
	"fmt"

	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/scenario"
)

// minutesPerTurn is the scenario clock's fixed per-turn advance, mirroring
// the "minutes-per-turn advance" example in spec.md §4.D.
const minutesPerTurn = 10

// runPostTurnHook implements §4.D step 5: advance the scenario clock, run
// every declared mechanic's side effect against the acting agent's chosen
// values, and broadcast any "message" parameter through network topology
// filtering.
func runPostTurnHook(tc *Context, agentName string, turnNumber int, values map[string]any) {
	advanceClock(tc)

	for _, mechanic := range tc.Spec.Mechanics {
		switch mechanic.Kind {
		case scenario.MechanicGrid:
			applyGridEffect(tc, agentName, values)
		case scenario.MechanicVoting:
			applyVotingEffect(tc, agentName, values)
		case scenario.MechanicResources:
			applyResourceEffect(tc, agentName, values, mechanic)
		case scenario.MechanicDiscussion:
			applyDiscussionEffect(tc, agentName, values)
		case scenario.MechanicHierarchy:
			// State-management only; no direct action to apply.
		}
	}

	if message, ok := values["message"].(string); ok && message != "" {
		broadcast(tc, agentName, turnNumber, message)
	}
}

func advanceClock(tc *Context) {
	if tc.SceneState == nil {
		return
	}
	current, _ := tc.SceneState["clock_minutes"].(int)
	tc.SceneState["clock_minutes"] = current + minutesPerTurn
}

func applyGridEffect(tc *Context, agentName string, values map[string]any) {
	agent, ok := tc.Agents[agentName]
	if !ok {
		return
	}
	if location, ok := values["location"].(string); ok {
		agent.MergeProperties(map[string]any{"location": location})
	}
}

func applyVotingEffect(tc *Context, agentName string, values map[string]any) {
	proposal, hasProposal := values["proposal"].(string)
	vote, hasVote := values["vote"].(string)
	if !hasProposal || !hasVote {
		return
	}
	if tc.SceneState == nil {
		return
	}
	tallies, _ := tc.SceneState["votes"].(map[string]map[string]string)
	if tallies == nil {
		tallies = make(map[string]map[string]string)
	}
	if tallies[proposal] == nil {
		tallies[proposal] = make(map[string]string)
	}
	tallies[proposal][agentName] = vote
	tc.SceneState["votes"] = tallies
}

func applyResourceEffect(tc *Context, agentName string, values map[string]any, mechanic scenario.Mechanic) {
	agent, ok := tc.Agents[agentName]
	if !ok {
		return
	}
	resource, hasResource := values["resource"].(string)
	amount, hasAmount := asInt(values["amount"])
	if !hasResource || !hasAmount {
		return
	}
	inventory, _ := agent.Properties["inventory"].(map[string]any)
	if inventory == nil {
		inventory = make(map[string]any)
	}
	current, _ := asInt(inventory[resource])
	updated := current + amount
	if mechanic.Resources.MaxStackSize > 0 && updated > mechanic.Resources.MaxStackSize {
		updated = mechanic.Resources.MaxStackSize
	}
	inventory[resource] = updated
	agent.MergeProperties(map[string]any{"inventory": inventory})
}

// asInt accepts either a native int (set by code constructing Context
// state directly) or a float64 (the shape encoding/json produces for every
// JSON number), matching the numeric types a freeform action's validated
// Values map may actually contain.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func applyDiscussionEffect(tc *Context, agentName string, values map[string]any) {
	agent, ok := tc.Agents[agentName]
	if !ok {
		return
	}
	if _, spoke := values["message"]; spoke {
		count, _ := agent.Properties["message_count"].(int)
		agent.MergeProperties(map[string]any{
			"message_count":        count + 1,
			"has_spoken_this_turn": true,
		})
	}
}

// broadcast implements §4.D's networkTopology filtering: the effective
// recipients are adjacency[sender] ∩ agentsInScene, or every other agent
// when no topology is declared. Per §9's open question, a system_broadcast
// event is always recorded in addition to the per-recipient memory
// injection, with the event's recipients field authoritative.
func broadcast(tc *Context, sender string, turnNumber int, message string) {
	recipients := tc.Spec.EffectiveRecipients(sender, tc.agentsInScene())

	tc.Log.Append(eventlog.Entry{
		Turn:       turnNumber,
		Type:       eventlog.TypeSystemBroadcast,
		Sender:     sender,
		Recipients: recipients,
		Payload:    map[string]any{"message": message},
	})

	for _, name := range recipients {
		if agent, ok := tc.Agents[name]; ok {
			agent.InjectEnvFeedback(fmt.Sprintf("%s says: %s", sender, message))
		}
	}
}
