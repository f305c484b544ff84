package contract

import (
	"errors"

	statex "github.com/jirapatw/guidebot/agent/state"
)

var (
	// ErrStorageUnavailable means the context store could not be reached.
	// Reads degrade to an ephemeral default context; writes fail the turn's
	// persistence but not its reply. Aliased so callers can match against
	// either package.
	ErrStorageUnavailable = statex.ErrStoreUnavailable

	// ErrCapabilityTimeout marks a gateway call that exceeded its deadline.
	ErrCapabilityTimeout = errors.New("capability call timed out")

	// ErrCapability marks any other gateway failure.
	ErrCapability = errors.New("capability call failed")

	// ErrValidation marks structured extraction missing required fields.
	// Surfaced to the user as a clarifying question, never as a failure.
	ErrValidation = errors.New("validation failed")

	// ErrSchemaViolation marks a model response that does not match the
	// expected structured schema.
	ErrSchemaViolation = errors.New("model response violates schema")

	// ErrModelInvoke marks a language-model invocation failure.
	ErrModelInvoke = errors.New("model invoke failed")
)
