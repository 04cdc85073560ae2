package session

import "errors"

// Typed failures the caller must branch on. None are retried internally.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when a session is past its deadline.
	ErrExpired = errors.New("session expired")

	// ErrNotActive is returned when an operation requires a state the
	// session is not in.
	ErrNotActive = errors.New("session not active")

	// ErrMessageLimit is returned when a session has reached its
	// configured message limit.
	ErrMessageLimit = errors.New("message limit exceeded")

	// ErrAttachmentTooLarge is returned when an attachment exceeds the
	// session's configured size limit.
	ErrAttachmentTooLarge = errors.New("attachment too large")
)
