package turn

import (
	"github.com/socialsim4/simkernel/pkg/agentstate"
	"github.com/socialsim4/simkernel/pkg/eventlog"
	"github.com/socialsim4/simkernel/pkg/scenario"
)

// Context bundles the mutable pieces of a branch a turn operates on,
// without depending on pkg/simtree's BranchNode wrapper — simtree composes
// a Context from its own state before handing it to the Round Runner.
type Context struct {
	Spec       *scenario.Spec
	Agents     map[string]*agentstate.State
	SceneState map[string]any
	Log        *eventlog.Log
}

// agentsInScene returns the declared agent names, used for broadcast
// topology filtering.
func (c *Context) agentsInScene() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	return names
}
