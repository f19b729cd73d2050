package training

import (
	"fmt"
	"log/slog"

	"github.com/Santhosh-KS/neural-pipeline/batch"
	"github.com/Santhosh-KS/neural-pipeline/checkpoints"
	"github.com/Santhosh-KS/neural-pipeline/layers"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// InferencerConfig configures a ModelInferencer.
type InferencerConfig struct {
	// Device is where the model lives and where batches are moved before
	// the forward pass.
	Device tensor.DeviceType

	// Format selects the checkpoint serialization format.
	Format checkpoints.CheckpointFormat
}

// DefaultInferencerConfig returns a CPU inferencer writing JSON artifacts.
func DefaultInferencerConfig() *InferencerConfig {
	return &InferencerConfig{
		Device: tensor.CPU,
		Format: checkpoints.FormatJSON,
	}
}

// ModelInferencer runs a model in evaluation mode. It owns the model
// placement and the checkpoint wiring; ModelTrainer embeds it and extends
// it with the training loop.
type ModelInferencer struct {
	wrapper *ModelWrapper
	fsm     *checkpoints.FileStructManager
	saver   *checkpoints.CheckpointSaver
	device  tensor.DeviceType
	logger  *slog.Logger
}

// NewModelInferencer creates an inferencer and moves the model's
// parameters to the configured device.
func NewModelInferencer(model layers.Model, fsm *checkpoints.FileStructManager, config *InferencerConfig, logger *slog.Logger) (*ModelInferencer, error) {
	if config == nil {
		config = DefaultInferencerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	saver := checkpoints.NewCheckpointSaver(config.Format)
	wrapper, err := NewModelWrapper(model, fsm, saver)
	if err != nil {
		return nil, fmt.Errorf("failed to create model wrapper: %v", err)
	}

	for _, p := range model.Parameters() {
		p.MoveTo(config.Device)
	}

	return &ModelInferencer{
		wrapper: wrapper,
		fsm:     fsm,
		saver:   saver,
		device:  config.Device,
		logger:  logger,
	}, nil
}

// Model returns the wrapped model.
func (mi *ModelInferencer) Model() layers.Model {
	return mi.wrapper.Model()
}

// Device returns the device the model lives on.
func (mi *ModelInferencer) Device() tensor.DeviceType {
	return mi.device
}

// Logger returns the inferencer's logger.
func (mi *ModelInferencer) Logger() *slog.Logger {
	return mi.logger
}

// Predict runs one evaluation-mode forward pass over the batch data. The
// data is moved to the model's device first; the output carries no
// gradient tape.
func (mi *ModelInferencer) Predict(b *batch.Batch) (*tensor.Tensor, error) {
	if b == nil {
		return nil, fmt.Errorf("batch cannot be nil")
	}
	data := b.Data
	if mi.device != tensor.CPU {
		data = data.ToDevice(mi.device)
	}
	return mi.wrapper.Model().Forward(data, layers.Eval)
}

// Load restores the model weights from the checkpoint directory.
func (mi *ModelInferencer) Load() error {
	if err := mi.wrapper.LoadWeights(); err != nil {
		return fmt.Errorf("failed to load weights: %w", err)
	}
	mi.logger.Debug("weights restored", "path", mi.fsm.WeightsPath())
	return nil
}
