package training

import (
	"fmt"

	"github.com/Santhosh-KS/neural-pipeline/checkpoints"
	"github.com/Santhosh-KS/neural-pipeline/layers"
)

// ModelWrapper couples a model with the checkpoint layout and saver so the
// inferencer and trainer can persist and restore weights without touching
// serialization details.
type ModelWrapper struct {
	model layers.Model
	fsm   *checkpoints.FileStructManager
	saver *checkpoints.CheckpointSaver
}

// NewModelWrapper creates a wrapper around the given model.
func NewModelWrapper(model layers.Model, fsm *checkpoints.FileStructManager, saver *checkpoints.CheckpointSaver) (*ModelWrapper, error) {
	if model == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if fsm == nil {
		return nil, fmt.Errorf("file structure manager cannot be nil")
	}
	if saver == nil {
		return nil, fmt.Errorf("checkpoint saver cannot be nil")
	}
	return &ModelWrapper{model: model, fsm: fsm, saver: saver}, nil
}

// Model returns the wrapped model.
func (w *ModelWrapper) Model() layers.Model {
	return w.model
}

// SaveWeights snapshots every named parameter into the weight artifact.
func (w *ModelWrapper) SaveWeights() error {
	named := w.model.NamedParameters()
	weights := make([]checkpoints.WeightTensor, 0, len(named))
	for _, p := range named {
		data, err := p.Tensor.Float32s()
		if err != nil {
			return fmt.Errorf("failed to read parameter %s: %v", p.Name, err)
		}
		weights = append(weights, checkpoints.WeightTensor{
			Name:  p.Name,
			Shape: append([]int(nil), p.Tensor.Shape...),
			Data:  append([]float32(nil), data...),
		})
	}

	checkpoint := &checkpoints.Checkpoint{Weights: weights}
	if err := w.saver.SaveCheckpoint(checkpoint, w.fsm.WeightsPath()); err != nil {
		return fmt.Errorf("failed to save weights: %v", err)
	}
	return nil
}

// LoadWeights restores every named parameter in place from the weight
// artifact. The artifact must cover the model exactly: a missing parameter
// or a shape mismatch is reported as an incomplete checkpoint.
func (w *ModelWrapper) LoadWeights() error {
	checkpoint, err := w.saver.LoadCheckpoint(w.fsm.WeightsPath())
	if err != nil {
		return err
	}

	saved := make(map[string]checkpoints.WeightTensor, len(checkpoint.Weights))
	for _, wt := range checkpoint.Weights {
		saved[wt.Name] = wt
	}

	for _, p := range w.model.NamedParameters() {
		wt, ok := saved[p.Name]
		if !ok {
			return fmt.Errorf("parameter %s absent from checkpoint: %w", p.Name, checkpoints.ErrCheckpointMissing)
		}
		dst, err := p.Tensor.Float32s()
		if err != nil {
			return fmt.Errorf("failed to access parameter %s: %v", p.Name, err)
		}
		if len(wt.Data) != len(dst) {
			return fmt.Errorf("parameter %s has %d elements, checkpoint holds %d: %w",
				p.Name, len(dst), len(wt.Data), checkpoints.ErrCheckpointMissing)
		}
		copy(dst, wt.Data)
	}
	return nil
}
