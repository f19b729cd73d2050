package optimizer

import (
	"math"
	"testing"

	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

func TestDefaultAdamConfig(t *testing.T) {
	config := DefaultAdamConfig()
	if config.LearningRate != 0.001 {
		t.Errorf("Expected LearningRate 0.001, got %f", config.LearningRate)
	}
	if config.Beta1 != 0.9 || config.Beta2 != 0.999 || config.Epsilon != 1e-8 {
		t.Error("Unexpected Adam defaults")
	}
}

func TestAdamConfigValidation(t *testing.T) {
	p := param(t, []float32{1})
	groups := []*ParamGroup{Group("model", []*tensor.Tensor{p}, 0)}

	cases := []AdamConfig{
		{LearningRate: 0, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8},
		{LearningRate: 0.001, Beta1: 1, Beta2: 0.999, Epsilon: 1e-8},
		{LearningRate: 0.001, Beta1: 0.9, Beta2: 0, Epsilon: 1e-8},
		{LearningRate: 0.001, Beta1: 0.9, Beta2: 0.999, Epsilon: 0},
		{LearningRate: 0.001, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, WeightDecay: -1},
	}
	for i, config := range cases {
		if _, err := NewAdam(config, groups); err == nil {
			t.Errorf("Case %d: expected config validation error", i)
		}
	}
}

func TestAdamFirstStepMatchesClosedForm(t *testing.T) {
	// With constant gradient g, the bias-corrected first step is
	// lr * g / (|g| + eps), independent of the betas.
	p := param(t, []float32{1})
	config := DefaultAdamConfig()
	config.LearningRate = 0.1
	adam, err := NewAdam(config, []*ParamGroup{Group("model", []*tensor.Tensor{p}, 0)})
	if err != nil {
		t.Fatalf("Failed to create Adam: %v", err)
	}

	backwardOnce(t, p)
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	data, _ := p.Float32s()
	expected := 1 - 0.1 // g = 1
	if math.Abs(float64(data[0])-expected) > 1e-4 {
		t.Errorf("Expected %f after first step, got %f", expected, data[0])
	}
	if adam.StepCount() != 1 {
		t.Errorf("Expected step count 1, got %d", adam.StepCount())
	}
}

func TestAdamStateRoundTrip(t *testing.T) {
	p := param(t, []float32{1, 2})
	adam, _ := NewAdam(DefaultAdamConfig(), []*ParamGroup{Group("model", []*tensor.Tensor{p}, 0)})

	backwardOnce(t, p)
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}

	state, err := adam.State()
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if state.Type != "Adam" {
		t.Errorf("Expected type Adam, got %s", state.Type)
	}
	// One m and one v buffer per parameter tensor.
	if len(state.StateData) != 2 {
		t.Fatalf("Expected 2 state buffers, got %d", len(state.StateData))
	}

	p2 := param(t, []float32{1, 2})
	restored, _ := NewAdam(DefaultAdamConfig(), []*ParamGroup{Group("model", []*tensor.Tensor{p2}, 0)})
	if err := restored.LoadState(state); err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if restored.StepCount() != 1 {
		t.Errorf("Step count not restored: %d", restored.StepCount())
	}
	for _, key := range []string{"m_model_0", "v_model_0"} {
		for i := range adam.m["m_model_0"] {
			var orig, got float32
			if key == "m_model_0" {
				orig, got = adam.m[key][i], restored.m[key][i]
			} else {
				orig, got = adam.v[key][i], restored.v[key][i]
			}
			if orig != got {
				t.Errorf("Buffer %s mismatch at %d: %f vs %f", key, i, orig, got)
			}
		}
	}
}

func TestAdamConvergesOnQuadratic(t *testing.T) {
	// Minimize (w - 3)^2 by following its gradient.
	w := param(t, []float32{0})
	config := DefaultAdamConfig()
	config.LearningRate = 0.1
	adam, _ := NewAdam(config, []*ParamGroup{Group("model", []*tensor.Tensor{w}, 0)})

	target, _ := tensor.NewTensor([]int{1}, tensor.Float32, tensor.CPU, []float32{3})
	for i := 0; i < 300; i++ {
		adam.ZeroGrad()
		diff, err := tensor.Sub(w, target)
		if err != nil {
			t.Fatalf("Sub failed: %v", err)
		}
		sq, err := tensor.Mul(diff, diff)
		if err != nil {
			t.Fatalf("Mul failed: %v", err)
		}
		loss, err := tensor.SumAll(sq)
		if err != nil {
			t.Fatalf("SumAll failed: %v", err)
		}
		if err := loss.Backward(); err != nil {
			t.Fatalf("Backward failed: %v", err)
		}
		if err := adam.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
	}

	data, _ := w.Float32s()
	if math.Abs(float64(data[0])-3) > 0.1 {
		t.Errorf("Expected convergence near 3, got %f", data[0])
	}
}
