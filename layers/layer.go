// Package layers provides the trainable model contract and a small set of
// reference layers. The forward pass takes an explicit mode so no layer
// depends on sticky state toggled on the model object: a Train forward
// builds a gradient tape and applies train-only behavior such as dropout,
// an Eval forward does neither.
package layers

import (
	"fmt"

	"github.com/Santhosh-KS/neural-pipeline/batch"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// Mode selects training or evaluation behavior for one forward pass.
type Mode int

const (
	Eval Mode = iota
	Train
)

func (m Mode) String() string {
	switch m {
	case Eval:
		return "Eval"
	case Train:
		return "Train"
	default:
		return "Unknown"
	}
}

// Layer is one step of a sequential model.
type Layer interface {
	Forward(x *tensor.Tensor, mode Mode) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	Name() string
}

// NamedParameter pairs a parameter tensor with its stable persistence name.
type NamedParameter struct {
	Name   string
	Tensor *tensor.Tensor
}

// Model is a trainable model: a forward pass over a batch value tree with
// an explicit mode, and access to the parameters the optimizer updates
// and the checkpoint machinery persists. Models taking several named
// inputs receive them as a nested batch value.
type Model interface {
	Forward(input batch.Value, mode Mode) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor
	NamedParameters() []NamedParameter
}

// Sequential chains layers in order over a single input tensor. It is the
// Model implementation produced by ModelBuilder.
type Sequential struct {
	layers []Layer
}

func (s *Sequential) Forward(input batch.Value, mode Mode) (*tensor.Tensor, error) {
	x, err := batch.LeafTensor(input)
	if err != nil {
		return nil, fmt.Errorf("sequential model takes a single input tensor: %v", err)
	}
	out := x
	for _, layer := range s.layers {
		out, err = layer.Forward(out, mode)
		if err != nil {
			return nil, fmt.Errorf("layer %s forward failed: %v", layer.Name(), err)
		}
	}
	return out, nil
}

func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, layer := range s.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

func (s *Sequential) NamedParameters() []NamedParameter {
	var named []NamedParameter
	for _, layer := range s.layers {
		params := layer.Parameters()
		switch len(params) {
		case 0:
		case 1:
			named = append(named, NamedParameter{Name: layer.Name() + ".weight", Tensor: params[0]})
		case 2:
			named = append(named,
				NamedParameter{Name: layer.Name() + ".weight", Tensor: params[0]},
				NamedParameter{Name: layer.Name() + ".bias", Tensor: params[1]},
			)
		default:
			for i, p := range params {
				named = append(named, NamedParameter{Name: fmt.Sprintf("%s.param_%d", layer.Name(), i), Tensor: p})
			}
		}
	}
	return named
}

// Layers exposes the layer chain, mainly for inspection in tests.
func (s *Sequential) Layers() []Layer {
	return s.layers
}
