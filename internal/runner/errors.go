package runner

import "errors"

var (
	// ErrMaxIterations indicates the loop hit the iteration cap. Reported
	// distinctly from provider failure so callers can tell non-convergence
	// from backend trouble.
	ErrMaxIterations = errors.New("maximum iterations reached")

	// ErrCancelled indicates cancellation was raised and honored.
	ErrCancelled = errors.New("run cancelled")

	// ErrNoProvider indicates the runner has no provider configured.
	ErrNoProvider = errors.New("no provider configured")

	// ErrEmptyInput indicates Run was called with nothing to send.
	ErrEmptyInput = errors.New("empty input")

	// ErrRunInProgress indicates a second Run was attempted while one is
	// active. Each conversation has exactly one causal thread.
	ErrRunInProgress = errors.New("run already in progress")
)
