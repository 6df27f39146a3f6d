package grammar

import "errors"

// ErrConfigInvalid is the ConfigError sentinel: a Grammar that fails
// Validate is rejected at ScenarioSpec construction time, before any
// branch exists.
var ErrConfigInvalid = errors.New("grammar: invalid configuration")

// Outcome classifies what happened when validating raw LM text against a
// Grammar.
type Outcome string

const (
	// OutcomeOK means the text was mapped onto a value the action grammar
	// accepts.
	OutcomeOK Outcome = "ok"

	// OutcomeRetry means a required freeform parameter was missing and the
	// turn pipeline should re-prompt once with the missing-parameter
	// clause.
	OutcomeRetry Outcome = "retry"

	// OutcomeSkip means validation failed in a way the turn pipeline
	// cannot repair; the turn is recorded as a skip, not a failure.
	OutcomeSkip Outcome = "skip"
)

// SkipReason enumerates why a turn was skipped, per §4.C/§4.D of the
// kernel's action-validation contract.
type SkipReason string

const (
	SkipInvalidJSON    SkipReason = "invalid_json"
	SkipMissingField   SkipReason = "missing_field"
	SkipUnknownAction  SkipReason = "unknown_action"
	SkipMissingParams  SkipReason = "missing_params"
	SkipLLMUnavailable SkipReason = "llm_unavailable"
	SkipRoleForbidden  SkipReason = "role_forbidden"
)
