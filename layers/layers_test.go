package layers

import (
	"math/rand"
	"testing"

	"github.com/Santhosh-KS/neural-pipeline/batch"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

func buildMLP(t *testing.T, seed int64) *Sequential {
	t.Helper()
	model, err := NewModelBuilder(rand.New(rand.NewSource(seed)), 4).
		AddDense(8, true, "dense_1").
		AddReLU("relu_1").
		AddDense(2, true, "dense_2").
		Compile()
	if err != nil {
		t.Fatalf("Failed to compile model: %v", err)
	}
	return model
}

func input(t *testing.T, batchSize, features int) *tensor.Tensor {
	t.Helper()
	data := make([]float32, batchSize*features)
	for i := range data {
		data[i] = float32(i%7) * 0.25
	}
	x, err := tensor.NewTensor([]int{batchSize, features}, tensor.Float32, tensor.CPU, data)
	if err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}
	return x
}

func TestSequentialForwardShapes(t *testing.T) {
	model := buildMLP(t, 1)
	x := input(t, 3, 4)

	out, err := model.Forward(batch.Leaf{Tensor: x}, Eval)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if out.Shape[0] != 3 || out.Shape[1] != 2 {
		t.Errorf("Expected output shape [3 2], got %v", out.Shape)
	}
}

func TestParameterCollection(t *testing.T) {
	model := buildMLP(t, 1)

	params := model.Parameters()
	if len(params) != 4 {
		t.Fatalf("Expected 4 parameters (2 weights, 2 biases), got %d", len(params))
	}
	for i, p := range params {
		if !p.RequiresGrad() {
			t.Errorf("Parameter %d must require gradients", i)
		}
	}

	named := model.NamedParameters()
	expected := []string{"dense_1.weight", "dense_1.bias", "dense_2.weight", "dense_2.bias"}
	if len(named) != len(expected) {
		t.Fatalf("Expected %d named parameters, got %d", len(expected), len(named))
	}
	for i, n := range named {
		if n.Name != expected[i] {
			t.Errorf("Expected name %s, got %s", expected[i], n.Name)
		}
	}
}

func TestEvalForwardBuildsNoTape(t *testing.T) {
	model := buildMLP(t, 1)
	x := input(t, 2, 4)

	out, err := model.Forward(batch.Leaf{Tensor: x}, Eval)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if out.RequiresGrad() {
		t.Error("Eval forward must not track gradients")
	}

	out, err = model.Forward(batch.Leaf{Tensor: x}, Train)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if !out.RequiresGrad() {
		t.Error("Train forward must track gradients")
	}
}

func TestDropoutModeFork(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	dropout, err := NewDropout(rng, 0.5, "dropout_1")
	if err != nil {
		t.Fatalf("Failed to create dropout: %v", err)
	}
	x := input(t, 1, 4)

	// Eval is the identity.
	out, err := dropout.Forward(x, Eval)
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if out != x {
		t.Error("Eval dropout must be the identity")
	}

	// Train zeroes some activations over enough trials.
	zeroed := false
	for trial := 0; trial < 50 && !zeroed; trial++ {
		out, err = dropout.Forward(x, Train)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		data, _ := out.Float32s()
		for _, v := range data {
			if v == 0 {
				zeroed = true
			}
		}
	}
	if !zeroed {
		t.Error("Train dropout never zeroed an activation in 50 trials")
	}
}

func TestDropoutValidation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := NewDropout(rng, 1.0, "d"); err == nil {
		t.Error("Expected error for rate 1.0")
	}
	if _, err := NewDropout(nil, 0.5, "d"); err == nil {
		t.Error("Expected error for nil random source")
	}
}

func TestBuilderErrors(t *testing.T) {
	if _, err := NewModelBuilder(rand.New(rand.NewSource(1)), 0).AddDense(2, true, "").Compile(); err == nil {
		t.Error("Expected error for non-positive input size")
	}
	if _, err := NewModelBuilder(rand.New(rand.NewSource(1)), 4).Compile(); err == nil {
		t.Error("Expected error for empty model")
	}
	if _, err := NewModelBuilder(nil, 4).AddDense(2, true, "").Compile(); err == nil {
		t.Error("Expected error for nil random source")
	}
}
