package layers

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// Dense is a fully connected layer: y = x*W + b.
type Dense struct {
	name    string
	weight  *tensor.Tensor
	bias    *tensor.Tensor
	useBias bool
}

// NewDense creates a dense layer with He-initialized weights drawn from
// the provided random source.
func NewDense(r *rand.Rand, inputSize, outputSize int, useBias bool, name string) (*Dense, error) {
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("dense layer sizes must be positive, got %d and %d", inputSize, outputSize)
	}

	std := float32(math.Sqrt(2.0 / float64(inputSize)))
	weight, err := tensor.RandomNormal(r, []int{inputSize, outputSize}, 0, std, tensor.CPU)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize weights: %v", err)
	}
	weight.SetRequiresGrad(true)

	d := &Dense{name: name, weight: weight, useBias: useBias}
	if useBias {
		bias, err := tensor.Zeros([]int{outputSize}, tensor.Float32, tensor.CPU)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize bias: %v", err)
		}
		bias.SetRequiresGrad(true)
		d.bias = bias
	}
	return d, nil
}

// Forward computes the affine transform. Evaluation mode runs against
// detached parameters so no gradient tape is built.
func (d *Dense) Forward(x *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	weight, bias := d.weight, d.bias
	if mode == Eval {
		weight = weight.Detach()
		if bias != nil {
			bias = bias.Detach()
		}
	}

	out, err := tensor.MatMul(x, weight)
	if err != nil {
		return nil, err
	}
	if bias == nil {
		return out, nil
	}
	return tensor.Add(out, bias)
}

func (d *Dense) Parameters() []*tensor.Tensor {
	if d.bias == nil {
		return []*tensor.Tensor{d.weight}
	}
	return []*tensor.Tensor{d.weight, d.bias}
}

func (d *Dense) Name() string {
	return d.name
}
