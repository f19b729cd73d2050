package checkpoints

import "errors"

var (
	// ErrCheckpointMissing reports that a checkpoint artifact is absent or
	// unreadable. Fatal to load; the caller decides whether to start from
	// scratch.
	ErrCheckpointMissing = errors.New("checkpoint artifact missing")

	// ErrStateCorrupt reports that a structured state file exists but
	// fails to parse. Fatal to load.
	ErrStateCorrupt = errors.New("persisted state corrupt")
)
