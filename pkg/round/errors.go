package round

import "errors"

// ErrAgentOrderEmpty is returned by Run when a round is asked to drive
// zero agents.
var ErrAgentOrderEmpty = errors.New("round: agent order must not be empty")
