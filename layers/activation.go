package layers

import (
	"fmt"
	"math/rand"

	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// ReLU applies the rectifier elementwise. It has no parameters and no
// mode-dependent behavior.
type ReLU struct {
	name string
}

func NewReLU(name string) *ReLU {
	return &ReLU{name: name}
}

func (r *ReLU) Forward(x *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	return tensor.ReLU(x)
}

func (r *ReLU) Parameters() []*tensor.Tensor { return nil }

func (r *ReLU) Name() string { return r.name }

// Dropout zeroes a random fraction of activations in training mode and
// rescales the rest (inverted dropout). In evaluation mode it is the
// identity, which makes it the layer that gives the train/eval mode fork
// observable behavior.
type Dropout struct {
	name string
	rate float32
	rng  *rand.Rand
}

// NewDropout creates a dropout layer. The random source is explicit so
// runs stay reproducible under the caller's seed.
func NewDropout(r *rand.Rand, rate float32, name string) (*Dropout, error) {
	if rate < 0 || rate >= 1 {
		return nil, fmt.Errorf("dropout rate must be in [0, 1), got %f", rate)
	}
	if r == nil {
		return nil, fmt.Errorf("random source cannot be nil")
	}
	return &Dropout{name: name, rate: rate, rng: r}, nil
}

func (d *Dropout) Forward(x *tensor.Tensor, mode Mode) (*tensor.Tensor, error) {
	if mode == Eval || d.rate == 0 {
		return x, nil
	}

	keep := 1 - d.rate
	maskData := make([]float32, x.NumElems)
	for i := range maskData {
		if d.rng.Float32() < keep {
			maskData[i] = 1 / keep
		}
	}
	mask, err := tensor.NewTensor(x.Shape, tensor.Float32, x.Device, maskData)
	if err != nil {
		return nil, err
	}
	return tensor.Mul(x, mask)
}

func (d *Dropout) Parameters() []*tensor.Tensor { return nil }

func (d *Dropout) Name() string { return d.name }
