// Package common defines shared sentinel errors used across the penflow
// data layer. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Remote store errors.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// Sync errors.
	ErrUnknownCollection = errors.New("unknown collection")
)
