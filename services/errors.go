package services

import (
	"errors"
)

var (
	// Benign race conditions. Expected whenever several nodes do the
	// same work concurrently; callers log them at warning level at
	// most and carry on.

	// Another node already registered a task with this name.
	ErrDuplicateTask = errors.New("Task already scheduled")

	// The task was disposed elsewhere before we got to it.
	ErrStaleTask = errors.New("Task no longer exists")

	// The row was already committed by a racing drain.
	ErrDuplicateKey = errors.New("Duplicate key")

	// Lookups.
	ErrNotFound = errors.New("Not found")

	// Logic errors - a mutation was attempted on the empty cache
	// sentinel. Indicates a caller used TransientWrite semantics on a
	// ReadOnly result.
	ErrUnsupportedMutation = errors.New(
		"Unsupported mutation on empty session cache")

	// Service registry access before the service was started.
	ServiceNotReadyError = errors.New("Service not ready")
)
