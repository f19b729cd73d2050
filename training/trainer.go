package training

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Santhosh-KS/neural-pipeline/batch"
	"github.com/Santhosh-KS/neural-pipeline/checkpoints"
	"github.com/Santhosh-KS/neural-pipeline/layers"
	"github.com/Santhosh-KS/neural-pipeline/optimizer"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// BatchSource yields batches for one pass over a dataset. Next returns
// io.EOF when the pass is exhausted; Reset rewinds for the next pass.
type BatchSource interface {
	Reset() error
	Next() (*batch.Batch, error)
}

// TrainPipeline bundles the components that turn an inferencer into a
// trainer. Criterion, Optimizer and LearningRate are required; Metrics
// is optional.
type TrainPipeline struct {
	Criterion    Loss
	Optimizer    optimizer.Optimizer
	LearningRate *LearningRate
	Metrics      MetricsCollector
}

func (p *TrainPipeline) validate() error {
	if p == nil {
		return fmt.Errorf("train pipeline cannot be nil")
	}
	if p.Criterion == nil {
		return fmt.Errorf("train pipeline requires a criterion")
	}
	if p.Optimizer == nil {
		return fmt.Errorf("train pipeline requires an optimizer")
	}
	if p.LearningRate == nil {
		return fmt.Errorf("train pipeline requires a learning rate holder")
	}
	return nil
}

// TrainerState is a deep snapshot of everything the trainer would persist:
// the model weights and the optimizer buffers. Mutating the snapshot never
// affects the live trainer.
type TrainerState struct {
	Weights   []checkpoints.WeightTensor
	Optimizer *checkpoints.OptimizerState
}

// ModelTrainer drives the training loop. It embeds ModelInferencer, so a
// trainer is also an inferencer; Predict with an explicit phase flag
// shadows the embedded evaluation-only variant.
type ModelTrainer struct {
	*ModelInferencer
	pipeline  *TrainPipeline
	history   *LossHistory
	observers []EpochObserver
	epochNum  int
}

// NewModelTrainer creates a trainer over the given model and pipeline.
// The optimizer's groups are aligned to the learning rate holder so the
// two start synchronized.
func NewModelTrainer(model layers.Model, fsm *checkpoints.FileStructManager, config *InferencerConfig, pipeline *TrainPipeline, logger *slog.Logger) (*ModelTrainer, error) {
	if err := pipeline.validate(); err != nil {
		return nil, err
	}

	inferencer, err := NewModelInferencer(model, fsm, config, logger)
	if err != nil {
		return nil, err
	}

	pipeline.Optimizer.SetLearningRate(pipeline.LearningRate.Value())

	return &ModelTrainer{
		ModelInferencer: inferencer,
		pipeline:        pipeline,
		history:         NewLossHistory(),
		epochNum:        -1,
	}, nil
}

// Predict runs one forward pass. In the training phase the pass builds a
// gradient tape; otherwise it delegates to the evaluation-mode pass.
func (mt *ModelTrainer) Predict(b *batch.Batch, isTrain bool) (*tensor.Tensor, error) {
	if !isTrain {
		return mt.ModelInferencer.Predict(b)
	}
	if b == nil {
		return nil, fmt.Errorf("batch cannot be nil")
	}
	data := b.Data
	if mt.device != tensor.CPU {
		data = data.ToDevice(mt.device)
	}
	return mt.Model().Forward(data, layers.Train)
}

// ProcessBatch runs one batch through the full step: forward, optional
// metrics, loss, and in the training phase backward plus an optimizer
// step. The batch loss is appended to the phase's history.
func (mt *ModelTrainer) ProcessBatch(b *batch.Batch, isTrain bool) error {
	if b == nil {
		return fmt.Errorf("batch cannot be nil")
	}

	target := b.Target
	if mt.device != tensor.CPU {
		target = target.ToDevice(mt.device)
	}

	if isTrain {
		mt.pipeline.Optimizer.ZeroGrad()
	}

	output, err := mt.Predict(b, isTrain)
	if err != nil {
		return fmt.Errorf("failed to run forward pass: %w", err)
	}

	if mt.pipeline.Metrics != nil {
		if err := mt.pipeline.Metrics.CalcMetrics(output, target, isTrain); err != nil {
			mt.logger.Warn("metrics collection failed", "error", err, "train", isTrain)
		}
	}

	loss, err := mt.pipeline.Criterion.Forward(output, target)
	if err != nil {
		return fmt.Errorf("failed to compute loss: %w", err)
	}
	lossValue, err := loss.Item()
	if err != nil {
		return fmt.Errorf("criterion produced a non-scalar loss: %w", err)
	}

	if isTrain {
		if err := loss.Backward(); err != nil {
			return fmt.Errorf("failed to run backward pass: %w", err)
		}
		if err := mt.pipeline.Optimizer.Step(); err != nil {
			return fmt.Errorf("failed to apply optimizer step: %w", err)
		}
	}

	mt.history.Append(lossValue, isTrain)
	return nil
}

// TrainEpoch runs one full epoch: every training batch, then every
// validation batch, strictly in that order. A nil source skips its phase.
// The epoch counter advances only after both phases complete.
func (mt *ModelTrainer) TrainEpoch(train, validation BatchSource, epochIdx int, stageName string) error {
	mt.logger.Info("epoch started", "stage", stageName, "epoch", epochIdx,
		"lr", mt.pipeline.LearningRate.Value())

	if err := mt.runPhase(train, true); err != nil {
		return fmt.Errorf("training phase of epoch %d failed: %w", epochIdx, err)
	}
	if err := mt.runPhase(validation, false); err != nil {
		return fmt.Errorf("validation phase of epoch %d failed: %w", epochIdx, err)
	}

	mt.epochNum = epochIdx
	mt.notifyObservers(stageName, epochIdx)
	mt.logger.Info("epoch finished", "stage", stageName, "epoch", epochIdx)
	return nil
}

// AddObserver registers an observer notified after every completed epoch.
func (mt *ModelTrainer) AddObserver(observer EpochObserver) {
	if observer != nil {
		mt.observers = append(mt.observers, observer)
	}
}

func (mt *ModelTrainer) notifyObservers(stageName string, epochIdx int) {
	if len(mt.observers) == 0 {
		return
	}
	stats := EpochStats{
		Stage:          stageName,
		Epoch:          epochIdx,
		LearningRate:   mt.pipeline.LearningRate.Value(),
		TrainLoss:      MeanLoss(mt.history.Train()),
		ValidationLoss: MeanLoss(mt.history.Validation()),
	}
	if mt.pipeline.Metrics != nil {
		stats.Metrics = mt.pipeline.Metrics.Metrics(false)
	}
	for _, observer := range mt.observers {
		observer.OnEpochEnd(stats)
	}
}

func (mt *ModelTrainer) runPhase(source BatchSource, isTrain bool) error {
	if source == nil {
		return nil
	}
	if err := source.Reset(); err != nil {
		return fmt.Errorf("failed to reset batch source: %w", err)
	}
	for {
		b, err := source.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to draw batch: %w", err)
		}
		if err := mt.ProcessBatch(b, isTrain); err != nil {
			return err
		}
	}
}

// UpdateLearningRate sets the learning rate on every optimizer group and
// on the holder, keeping the two synchronized for the next save.
func (mt *ModelTrainer) UpdateLearningRate(lr float64) {
	mt.pipeline.Optimizer.SetLearningRate(lr)
	mt.pipeline.LearningRate.SetValue(lr)
	mt.logger.Info("learning rate updated", "lr", lr)
}

// GetLosses returns copies of the per-batch loss histories, training
// first, validation second.
func (mt *ModelTrainer) GetLosses() (train, validation []float64) {
	return mt.history.Train(), mt.history.Validation()
}

// ResetLosses clears both loss histories.
func (mt *ModelTrainer) ResetLosses() {
	mt.history.Reset()
}

// LastEpochIdx returns the index of the last completed epoch, or -1 when
// no epoch has completed since construction or the last Load.
func (mt *ModelTrainer) LastEpochIdx() int {
	return mt.epochNum
}

// Pipeline returns the trainer's pipeline components.
func (mt *ModelTrainer) Pipeline() *TrainPipeline {
	return mt.pipeline
}

// GetState snapshots the model weights and optimizer buffers. The
// snapshot is deep: it shares no memory with the live trainer.
func (mt *ModelTrainer) GetState() (*TrainerState, error) {
	named := mt.Model().NamedParameters()
	weights := make([]checkpoints.WeightTensor, 0, len(named))
	for _, p := range named {
		data, err := p.Tensor.Float32s()
		if err != nil {
			return nil, fmt.Errorf("failed to read parameter %s: %v", p.Name, err)
		}
		weights = append(weights, checkpoints.WeightTensor{
			Name:  p.Name,
			Shape: append([]int(nil), p.Tensor.Shape...),
			Data:  append([]float32(nil), data...),
		})
	}

	optState, err := mt.pipeline.Optimizer.State()
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot optimizer state: %v", err)
	}

	return &TrainerState{Weights: weights, Optimizer: optState}, nil
}

// SaveState persists the full training state: the optimizer buffers, the
// structured resume point, then the model weights.
func (mt *ModelTrainer) SaveState() error {
	optState, err := mt.pipeline.Optimizer.State()
	if err != nil {
		return fmt.Errorf("failed to snapshot optimizer state: %v", err)
	}
	if err := mt.saver.SaveOptimizerState(optState, mt.fsm.OptimizerStatePath()); err != nil {
		return fmt.Errorf("failed to save optimizer state: %w", err)
	}

	state := &checkpoints.ProcessorState{
		LastEpochIdx: mt.epochNum,
		LR:           mt.pipeline.LearningRate.Value(),
	}
	if err := checkpoints.SaveProcessorState(state, mt.fsm.ProcessorStatePath()); err != nil {
		return fmt.Errorf("failed to save trainer state: %w", err)
	}

	if err := mt.wrapper.SaveWeights(); err != nil {
		return err
	}

	mt.logger.Info("training state saved", "dir", mt.fsm.Root(),
		"epoch", mt.epochNum, "lr", state.LR)
	return nil
}

// Load restores the full training state: weights, then optimizer buffers
// filtered against the current configuration, then the resume point. The
// epoch counter and learning rate change only if every stage succeeds.
func (mt *ModelTrainer) Load() error {
	if err := mt.ModelInferencer.Load(); err != nil {
		return err
	}

	optState, err := mt.saver.LoadOptimizerState(mt.fsm.OptimizerStatePath())
	if err != nil {
		return fmt.Errorf("failed to load optimizer state: %w", err)
	}
	savedEntries := len(optState.StateData)
	if err := mt.pipeline.Optimizer.LoadState(optState); err != nil {
		return fmt.Errorf("failed to restore optimizer state: %w", err)
	}
	mt.logger.Debug("optimizer state restored",
		"saved_entries", savedEntries, "own_keys", len(mt.pipeline.Optimizer.StateKeys()))

	state, err := checkpoints.LoadProcessorState(mt.fsm.ProcessorStatePath())
	if err != nil {
		return fmt.Errorf("failed to load trainer state: %w", err)
	}

	mt.epochNum = state.LastEpochIdx
	mt.pipeline.LearningRate.SetValue(state.LR)
	mt.pipeline.Optimizer.SetLearningRate(state.LR)

	mt.logger.Info("training state restored", "dir", mt.fsm.Root(),
		"epoch", state.LastEpochIdx, "lr", state.LR)
	return nil
}
