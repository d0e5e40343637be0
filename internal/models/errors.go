// ABOUTME: Error taxonomy shared by every layer of the retrieval engine
// ABOUTME: Callers classify failures with errors.Is against these sentinels
package models

import "errors"

var (
	// ErrValidation marks a bad request or unsupported input; never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown document or conversation where an
	// interface explicitly reports it.
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks an embedding or language model provider failure.
	ErrUpstream = errors.New("upstream provider error")

	// ErrDegraded marks a recoverable failure (expansion, re-ranking) that
	// is logged and replaced by a fallback result.
	ErrDegraded = errors.New("degraded result")
)
