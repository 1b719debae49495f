package services

import "errors"

var (
	// ErrMissingCredential is returned when a provider that requires an
	// API key is selected but no key is configured.
	ErrMissingCredential = errors.New("provider requires an API key")

	// ErrAccessDenied is returned when the caller holds no valid
	// entitlement for the agent.
	ErrAccessDenied = errors.New("no access to this agent")

	// ErrEmptyChat is returned when a title is requested for a chat with
	// no user messages.
	ErrEmptyChat = errors.New("chat has no user messages")
)
