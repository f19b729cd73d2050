package training

import (
	"fmt"

	"github.com/Santhosh-KS/neural-pipeline/batch"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// Loss computes a scalar criterion from a model output and a batch target.
// The returned tensor participates in gradient tracking whenever the output
// does, so calling Backward on it drives the optimizer step.
type Loss interface {
	// Forward computes the scalar loss value.
	Forward(output *tensor.Tensor, target batch.Value) (*tensor.Tensor, error)

	// Name returns the criterion name for logging.
	Name() string
}

// MSELoss is the mean squared error criterion.
type MSELoss struct{}

// NewMSELoss creates an MSE criterion.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

// Forward computes mean((output - target)^2) over all elements.
func (l *MSELoss) Forward(output *tensor.Tensor, target batch.Value) (*tensor.Tensor, error) {
	targetTensor, err := lossTarget(target)
	if err != nil {
		return nil, err
	}

	diff, err := tensor.Sub(output, targetTensor)
	if err != nil {
		return nil, fmt.Errorf("failed to compute MSE difference: %v", err)
	}

	squared, err := tensor.Mul(diff, diff)
	if err != nil {
		return nil, fmt.Errorf("failed to square MSE difference: %v", err)
	}

	return tensor.Mean(squared)
}

// Name returns the criterion name.
func (l *MSELoss) Name() string {
	return "MSELoss"
}

// CrossEntropyLoss combines a log-softmax over the last dimension with a
// negative log-likelihood against one-hot targets, averaged over the batch.
type CrossEntropyLoss struct{}

// NewCrossEntropyLoss creates a cross-entropy criterion. Targets must be
// one-hot encoded with the same shape as the model output.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Forward computes -sum(target * log_softmax(output)) / batchSize.
func (l *CrossEntropyLoss) Forward(output *tensor.Tensor, target batch.Value) (*tensor.Tensor, error) {
	targetTensor, err := lossTarget(target)
	if err != nil {
		return nil, err
	}

	logProbs, err := tensor.LogSoftmax(output)
	if err != nil {
		return nil, fmt.Errorf("failed to compute log-softmax: %v", err)
	}

	weighted, err := tensor.Mul(logProbs, targetTensor)
	if err != nil {
		return nil, fmt.Errorf("failed to weight log-probabilities: %v", err)
	}

	total, err := tensor.SumAll(weighted)
	if err != nil {
		return nil, fmt.Errorf("failed to sum weighted log-probabilities: %v", err)
	}

	batchSize := 1
	if len(output.Shape) > 0 {
		batchSize = output.Shape[0]
	}

	return tensor.Scale(total, -1.0/float32(batchSize))
}

// Name returns the criterion name.
func (l *CrossEntropyLoss) Name() string {
	return "CrossEntropyLoss"
}

func lossTarget(target batch.Value) (*tensor.Tensor, error) {
	t, err := batch.LeafTensor(target)
	if err != nil {
		return nil, fmt.Errorf("loss target must be a single tensor: %v", err)
	}
	return t, nil
}
