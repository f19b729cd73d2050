package training

import (
	"log/slog"
)

// EpochStats summarizes one completed epoch for observers.
type EpochStats struct {
	Stage          string
	Epoch          int
	LearningRate   float64
	TrainLoss      float64
	ValidationLoss float64
	Metrics        map[string]float64
}

// EpochObserver receives a notification after each completed epoch.
type EpochObserver interface {
	OnEpochEnd(stats EpochStats)
}

// LogObserver reports epoch summaries through a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an observer writing to the given logger, or to
// the default logger when nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnEpochEnd(stats EpochStats) {
	args := []any{
		"stage", stats.Stage,
		"epoch", stats.Epoch,
		"lr", stats.LearningRate,
		"train_loss", stats.TrainLoss,
		"validation_loss", stats.ValidationLoss,
	}
	for name, value := range stats.Metrics {
		args = append(args, name, value)
	}
	o.logger.Info("epoch summary", args...)
}

// MeanLoss averages a loss sequence; an empty sequence averages to zero.
func MeanLoss(losses []float64) float64 {
	if len(losses) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range losses {
		sum += v
	}
	return sum / float64(len(losses))
}
