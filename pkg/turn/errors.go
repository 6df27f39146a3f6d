package turn

import "errors"

// ErrUnknownAgent is returned when RunTurn is asked to act for a name not
// present in the Context's agent map.
var ErrUnknownAgent = errors.New("turn: unknown agent")

// ErrCancelled is returned by Prepare when the supplied context was
// cancelled mid-call, distinguishing a round abort from an ordinary
// LMCallError — §5's cancellation contract keeps a cancelled agent's turn
// out of the log entirely rather than recording it as a skip.
var ErrCancelled = errors.New("turn: prepare cancelled")
