package layers

import (
	"fmt"
	"math/rand"
)

// ModelBuilder assembles a Sequential model layer by layer, tracking the
// feature size flowing between layers so dense shapes follow from the
// input size.
type ModelBuilder struct {
	rng         *rand.Rand
	currentSize int
	layers      []Layer
	err         error
}

// NewModelBuilder starts a model taking inputSize features. The random
// source seeds every parameter initialization and dropout mask.
func NewModelBuilder(r *rand.Rand, inputSize int) *ModelBuilder {
	mb := &ModelBuilder{rng: r, currentSize: inputSize}
	if r == nil {
		mb.err = fmt.Errorf("random source cannot be nil")
	}
	if inputSize <= 0 {
		mb.err = fmt.Errorf("input size must be positive, got %d", inputSize)
	}
	return mb
}

// AddDense appends a fully connected layer.
func (mb *ModelBuilder) AddDense(outputSize int, useBias bool, name string) *ModelBuilder {
	if mb.err != nil {
		return mb
	}
	if name == "" {
		name = fmt.Sprintf("dense_%d", len(mb.layers)+1)
	}
	layer, err := NewDense(mb.rng, mb.currentSize, outputSize, useBias, name)
	if err != nil {
		mb.err = fmt.Errorf("failed to build layer %s: %v", name, err)
		return mb
	}
	mb.layers = append(mb.layers, layer)
	mb.currentSize = outputSize
	return mb
}

// AddReLU appends a rectifier activation.
func (mb *ModelBuilder) AddReLU(name string) *ModelBuilder {
	if mb.err != nil {
		return mb
	}
	if name == "" {
		name = fmt.Sprintf("relu_%d", len(mb.layers)+1)
	}
	mb.layers = append(mb.layers, NewReLU(name))
	return mb
}

// AddDropout appends a dropout layer.
func (mb *ModelBuilder) AddDropout(rate float32, name string) *ModelBuilder {
	if mb.err != nil {
		return mb
	}
	if name == "" {
		name = fmt.Sprintf("dropout_%d", len(mb.layers)+1)
	}
	layer, err := NewDropout(mb.rng, rate, name)
	if err != nil {
		mb.err = fmt.Errorf("failed to build layer %s: %v", name, err)
		return mb
	}
	mb.layers = append(mb.layers, layer)
	return mb
}

// Compile finalizes the model.
func (mb *ModelBuilder) Compile() (*Sequential, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	if len(mb.layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}
	return &Sequential{layers: mb.layers}, nil
}
