package training

import (
	"fmt"
	"math"
	"sync"

	"github.com/Santhosh-KS/neural-pipeline/batch"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// MetricsCollector accumulates evaluation metrics from model outputs during
// an epoch. Collection failures never interrupt training; the trainer logs
// them and continues with the batch.
type MetricsCollector interface {
	// CalcMetrics updates the collector with one batch of outputs and targets.
	// isTrain distinguishes the training phase from the validation phase.
	CalcMetrics(output *tensor.Tensor, target batch.Value, isTrain bool) error

	// Metrics returns the accumulated metric values by name.
	Metrics(isTrain bool) map[string]float64

	// Reset clears all accumulated state.
	Reset()
}

type phaseCounts struct {
	correct float64
	total   float64
	absErr  float64
	sqErr   float64
}

// ClassificationMetrics tracks argmax accuracy over 2-D outputs against
// one-hot targets.
type ClassificationMetrics struct {
	mu    sync.Mutex
	train phaseCounts
	val   phaseCounts
}

// NewClassificationMetrics creates an empty accuracy collector.
func NewClassificationMetrics() *ClassificationMetrics {
	return &ClassificationMetrics{}
}

// CalcMetrics counts rows whose predicted argmax matches the target argmax.
func (m *ClassificationMetrics) CalcMetrics(output *tensor.Tensor, target batch.Value, isTrain bool) error {
	targetTensor, err := metricsTarget(target)
	if err != nil {
		return err
	}
	if len(output.Shape) != 2 {
		return fmt.Errorf("classification metrics require 2D output, got %dD", len(output.Shape))
	}
	if !sameShape(output.Shape, targetTensor.Shape) {
		return fmt.Errorf("output shape %v does not match target shape %v", output.Shape, targetTensor.Shape)
	}

	outData, err := output.Float32s()
	if err != nil {
		return fmt.Errorf("failed to read output data: %v", err)
	}
	targetData, err := targetTensor.Float32s()
	if err != nil {
		return fmt.Errorf("failed to read target data: %v", err)
	}

	rows, cols := output.Shape[0], output.Shape[1]

	m.mu.Lock()
	defer m.mu.Unlock()
	counts := m.phase(isTrain)
	for i := 0; i < rows; i++ {
		row := outData[i*cols : (i+1)*cols]
		want := targetData[i*cols : (i+1)*cols]
		if argmax(row) == argmax(want) {
			counts.correct++
		}
		counts.total++
	}
	return nil
}

// Metrics returns {"accuracy": fraction} for the requested phase.
func (m *ClassificationMetrics) Metrics(isTrain bool) map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := m.phase(isTrain)
	accuracy := 0.0
	if counts.total > 0 {
		accuracy = counts.correct / counts.total
	}
	return map[string]float64{"accuracy": accuracy}
}

// Reset clears both phases.
func (m *ClassificationMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.train = phaseCounts{}
	m.val = phaseCounts{}
}

func (m *ClassificationMetrics) phase(isTrain bool) *phaseCounts {
	if isTrain {
		return &m.train
	}
	return &m.val
}

// RegressionMetrics tracks mean absolute and mean squared error.
type RegressionMetrics struct {
	mu    sync.Mutex
	train phaseCounts
	val   phaseCounts
}

// NewRegressionMetrics creates an empty regression collector.
func NewRegressionMetrics() *RegressionMetrics {
	return &RegressionMetrics{}
}

// CalcMetrics accumulates elementwise absolute and squared error.
func (m *RegressionMetrics) CalcMetrics(output *tensor.Tensor, target batch.Value, isTrain bool) error {
	targetTensor, err := metricsTarget(target)
	if err != nil {
		return err
	}
	if !sameShape(output.Shape, targetTensor.Shape) {
		return fmt.Errorf("output shape %v does not match target shape %v", output.Shape, targetTensor.Shape)
	}

	outData, err := output.Float32s()
	if err != nil {
		return fmt.Errorf("failed to read output data: %v", err)
	}
	targetData, err := targetTensor.Float32s()
	if err != nil {
		return fmt.Errorf("failed to read target data: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	counts := m.phase(isTrain)
	for i := range outData {
		diff := float64(outData[i] - targetData[i])
		counts.absErr += math.Abs(diff)
		counts.sqErr += diff * diff
		counts.total++
	}
	return nil
}

// Metrics returns {"mae": ..., "mse": ...} for the requested phase.
func (m *RegressionMetrics) Metrics(isTrain bool) map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := m.phase(isTrain)
	mae, mse := 0.0, 0.0
	if counts.total > 0 {
		mae = counts.absErr / counts.total
		mse = counts.sqErr / counts.total
	}
	return map[string]float64{"mae": mae, "mse": mse}
}

// Reset clears both phases.
func (m *RegressionMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.train = phaseCounts{}
	m.val = phaseCounts{}
}

func (m *RegressionMetrics) phase(isTrain bool) *phaseCounts {
	if isTrain {
		return &m.train
	}
	return &m.val
}

func metricsTarget(target batch.Value) (*tensor.Tensor, error) {
	t, err := batch.LeafTensor(target)
	if err != nil {
		return nil, fmt.Errorf("metrics target must be a single tensor: %v", err)
	}
	return t, nil
}

func argmax(row []float32) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
