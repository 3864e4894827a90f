package dispatcher

import "errors"

var (
	// ErrPostNotFound means the post id does not exist in the store.
	ErrPostNotFound = errors.New("post not found")

	// ErrAlreadyProcessed means another execution claimed the post first.
	// Callers treat it as an expected concurrency outcome, not a failure.
	ErrAlreadyProcessed = errors.New("post already claimed for dispatch")

	// ErrContentGeneration means content could not be produced before any
	// platform was attempted. The whole dispatch fails.
	ErrContentGeneration = errors.New("content generation failed")
)
