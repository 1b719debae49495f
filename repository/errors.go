package repository

import "errors"

// Error values used across repositories and services. Handlers map these
// to HTTP responses with errors.Is instead of matching on error text.
var (
	// ErrValidation marks missing or malformed input (empty content,
	// unknown role, missing ids).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers both "does not exist" and "exists but is not
	// yours"; the two are deliberately indistinguishable in responses so
	// existence is not leaked.
	ErrNotFound = errors.New("not found or not accessible")

	// ErrDuplicateEntitlement is returned when granting access that the
	// user already holds and that has not expired.
	ErrDuplicateEntitlement = errors.New("user already has active access to this agent")

	// ErrInvalidReference is returned when a referenced user or agent does
	// not exist or is inactive.
	ErrInvalidReference = errors.New("referenced user or agent does not exist or is not active")

	// ErrDuplicateName is returned when a unique-name invariant would be
	// violated (categories, agents within a category).
	ErrDuplicateName = errors.New("name already in use")

	// ErrAgentInUse is returned when deleting an agent that still has
	// active chats.
	ErrAgentInUse = errors.New("agent has active chats")
)
