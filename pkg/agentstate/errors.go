package agentstate

import "errors"

var (
	// ErrEmptyName rejects an agent with no name; name is the unique key a
	// simulation indexes agents by.
	ErrEmptyName = errors.New("agentstate: name is required")

	// ErrRoleForbidden is returned by CheckRole when an agent's role is not
	// among the action's allowed roles; the turn pipeline converts this
	// into a skip with reason role_forbidden, sparing an LM call.
	ErrRoleForbidden = errors.New("agentstate: role forbidden for this action")
)
