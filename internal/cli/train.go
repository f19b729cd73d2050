package cli

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/Santhosh-KS/neural-pipeline/checkpoints"
	"github.com/Santhosh-KS/neural-pipeline/layers"
	"github.com/Santhosh-KS/neural-pipeline/optimizer"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
	"github.com/Santhosh-KS/neural-pipeline/training"
)

func newTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a reference MLP on a synthetic regression task",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runTrain(cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("checkpoint-dir", "checkpoints", "directory for checkpoint artifacts")
	flags.String("format", "json", "checkpoint format: json or binary")
	flags.Int("epochs", 10, "number of training epochs")
	flags.Int("batch-size", 8, "batch size")
	flags.Float64("learning-rate", 0.01, "base learning rate")
	flags.Float64("momentum", 0.9, "SGD momentum")
	flags.String("optimizer", "sgd", "optimizer: sgd or adam")
	flags.String("scheduler", "constant", "learning rate schedule: constant, step, exponential or cosine")
	flags.Int("hidden-size", 16, "hidden layer width")
	flags.Int("samples", 128, "number of synthetic samples")
	flags.Int64("seed", 42, "random seed")
	flags.Bool("resume", false, "resume from an existing checkpoint")

	return cmd
}

func runTrain(cfg *Config) error {
	logger := newLogger(cfg.Verbose || verbose)
	rng := rand.New(rand.NewSource(cfg.Seed))

	model, err := layers.NewModelBuilder(rng, 2).
		AddDense(cfg.HiddenSize, true, "hidden").
		AddReLU("act").
		AddDense(1, true, "out").
		Compile()
	if err != nil {
		return fmt.Errorf("failed to build model: %w", err)
	}

	fsm, err := checkpoints.NewFileStructManager(cfg.CheckpointDir)
	if err != nil {
		return fmt.Errorf("failed to prepare checkpoint directory: %w", err)
	}

	opt, err := buildOptimizer(cfg, model)
	if err != nil {
		return err
	}

	pipeline := &training.TrainPipeline{
		Criterion:    training.NewMSELoss(),
		Optimizer:    opt,
		LearningRate: training.NewLearningRate(cfg.LearningRate),
		Metrics:      training.NewRegressionMetrics(),
	}

	format := checkpoints.FormatJSON
	if cfg.Format == "binary" {
		format = checkpoints.FormatBinary
	}
	trainerConfig := &training.InferencerConfig{Device: tensor.CPU, Format: format}

	trainer, err := training.NewModelTrainer(model, fsm, trainerConfig, pipeline, logger)
	if err != nil {
		return fmt.Errorf("failed to create trainer: %w", err)
	}
	trainer.AddObserver(training.NewLogObserver(logger))

	startEpoch := 0
	if cfg.Resume {
		if err := trainer.Load(); err != nil {
			if errors.Is(err, checkpoints.ErrCheckpointMissing) {
				logger.Warn("no checkpoint to resume from, starting fresh", "dir", fsm.Root())
			} else {
				return fmt.Errorf("failed to resume: %w", err)
			}
		} else {
			startEpoch = trainer.LastEpochIdx() + 1
		}
	}

	trainLoader, validationLoader, err := syntheticLoaders(cfg, rng)
	if err != nil {
		return err
	}

	scheduler := buildScheduler(cfg)
	logger.Info("training started", "epochs", cfg.Epochs, "start_epoch", startEpoch,
		"optimizer", cfg.Optimizer, "scheduler", scheduler.GetName())

	for epoch := startEpoch; epoch < startEpoch+cfg.Epochs; epoch++ {
		trainer.ResetLosses()
		if rate := scheduler.GetLR(epoch, cfg.LearningRate); rate != pipeline.LearningRate.Value() {
			trainer.UpdateLearningRate(rate)
		}
		if err := trainer.TrainEpoch(trainLoader, validationLoader, epoch, "fit"); err != nil {
			return err
		}
		if err := trainer.SaveState(); err != nil {
			return err
		}
	}

	logger.Info("training finished", "last_epoch", trainer.LastEpochIdx(), "dir", fsm.Root())
	return nil
}

func buildOptimizer(cfg *Config, model layers.Model) (optimizer.Optimizer, error) {
	groups := []*optimizer.ParamGroup{
		optimizer.Group("model", model.Parameters(), cfg.LearningRate),
	}
	switch cfg.Optimizer {
	case "adam":
		config := optimizer.DefaultAdamConfig()
		config.LearningRate = cfg.LearningRate
		opt, err := optimizer.NewAdam(config, groups)
		if err != nil {
			return nil, fmt.Errorf("failed to create adam optimizer: %w", err)
		}
		return opt, nil
	default:
		opt, err := optimizer.NewSGD(optimizer.SGDConfig{
			LearningRate: cfg.LearningRate,
			Momentum:     cfg.Momentum,
		}, groups)
		if err != nil {
			return nil, fmt.Errorf("failed to create sgd optimizer: %w", err)
		}
		return opt, nil
	}
}

func buildScheduler(cfg *Config) training.LRScheduler {
	switch cfg.Scheduler {
	case "step":
		return training.NewStepLRScheduler(10, 0.5)
	case "exponential":
		return training.NewExponentialLRScheduler(0.95)
	case "cosine":
		return training.NewCosineAnnealingLRScheduler(cfg.Epochs, 0)
	default:
		return &training.ConstantLRScheduler{}
	}
}

// syntheticLoaders builds train and validation loaders for a noisy
// two-input regression task, split 80/20.
func syntheticLoaders(cfg *Config, rng *rand.Rand) (*training.DataLoader, *training.DataLoader, error) {
	data := make([]*tensor.Tensor, 0, cfg.Samples)
	targets := make([]*tensor.Tensor, 0, cfg.Samples)
	for i := 0; i < cfg.Samples; i++ {
		a := float32(rng.Float64()*2 - 1)
		b := float32(rng.Float64()*2 - 1)
		noise := float32(rng.NormFloat64() * 0.01)
		dt, err := tensor.NewTensor([]int{2}, tensor.Float32, tensor.CPU, []float32{a, b})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build sample: %w", err)
		}
		tt, err := tensor.NewTensor([]int{1}, tensor.Float32, tensor.CPU, []float32{a + 2*b + noise})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build sample target: %w", err)
		}
		data = append(data, dt)
		targets = append(targets, tt)
	}

	split := cfg.Samples * 4 / 5
	if split == 0 || split == cfg.Samples {
		return nil, nil, fmt.Errorf("too few samples (%d) to split into train and validation", cfg.Samples)
	}

	trainSet, err := training.NewSliceDataset(data[:split], targets[:split])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build training dataset: %w", err)
	}
	validationSet, err := training.NewSliceDataset(data[split:], targets[split:])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build validation dataset: %w", err)
	}

	trainLoader, err := training.NewDataLoader(trainSet, cfg.BatchSize, true, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build training loader: %w", err)
	}
	validationLoader, err := training.NewDataLoader(validationSet, cfg.BatchSize, false, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build validation loader: %w", err)
	}
	return trainLoader, validationLoader, nil
}
