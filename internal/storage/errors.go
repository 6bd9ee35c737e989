package storage

import "errors"

// Sentinel errors shared by the report and feature-row stores. Backends translate
// driver errors into these so the sinks, the report generator and the replay
// verifier can branch without importing a driver.
var (
	// ErrNotFound is returned when no stored run matches the requested run ID.
	ErrNotFound = errors.New("run not found")

	// ErrDuplicateKey is returned when a run ID (or a run's feature rows) is already stored.
	// A run is written once by its sink and never rewritten.
	ErrDuplicateKey = errors.New("run already stored")

	// ErrInvalidInput is returned for a nil report, an empty run ID or rows without a run ID.
	ErrInvalidInput = errors.New("invalid store input")
)
