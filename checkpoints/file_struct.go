package checkpoints

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileStructManager resolves stable paths for the artifacts that make up
// one checkpoint: the model weights, the optimizer state blob, and the
// data-processor structured state. All three live under one checkpoint
// directory and are treated as a single atomic checkpoint by callers.
type FileStructManager struct {
	root string
}

// NewFileStructManager creates a resolver rooted at dir, creating the
// directory if it does not exist.
func NewFileStructManager(dir string) (*FileStructManager, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %v", err)
	}
	return &FileStructManager{root: dir}, nil
}

// Root returns the checkpoint directory.
func (fsm *FileStructManager) Root() string {
	return fsm.root
}

// WeightsPath returns the model weight artifact path.
func (fsm *FileStructManager) WeightsPath() string {
	return filepath.Join(fsm.root, "weights.ckpt")
}

// OptimizerStatePath returns the optimizer state artifact path.
func (fsm *FileStructManager) OptimizerStatePath() string {
	return filepath.Join(fsm.root, "optimizer.ckpt")
}

// ProcessorStatePath returns the data-processor structured state path.
func (fsm *FileStructManager) ProcessorStatePath() string {
	return filepath.Join(fsm.root, "processor_state.json")
}
