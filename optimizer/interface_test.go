package optimizer

import (
	"testing"

	"github.com/Santhosh-KS/neural-pipeline/checkpoints"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

func TestLoadStateFiltersStaleKeys(t *testing.T) {
	// Save state from a two-group configuration.
	pa := param(t, []float32{1, 2})
	pb := param(t, []float32{3})
	wide, _ := NewSGD(SGDConfig{LearningRate: 0.1, Momentum: 0.9}, []*ParamGroup{
		Group("backbone", []*tensor.Tensor{pa}, 0),
		Group("head", []*tensor.Tensor{pb}, 0),
	})
	backwardOnce(t, pa, pb)
	if err := wide.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	state, err := wide.State()
	if err != nil {
		t.Fatalf("State failed: %v", err)
	}
	if len(state.StateData) != 2 {
		t.Fatalf("Expected 2 state buffers, got %d", len(state.StateData))
	}

	// Load into a reconfigured optimizer owning only one of the groups.
	// The stale key is dropped silently, never surfaced as an error.
	pc := param(t, []float32{1, 2})
	narrow, _ := NewSGD(SGDConfig{LearningRate: 0.1, Momentum: 0.9},
		[]*ParamGroup{Group("backbone", []*tensor.Tensor{pc}, 0)})
	if err := narrow.LoadState(state); err != nil {
		t.Fatalf("LoadState must filter, not fail: %v", err)
	}

	key := "momentum_backbone_0"
	for i := range wide.momentum[key] {
		if narrow.momentum[key][i] != wide.momentum[key][i] {
			t.Errorf("Intersecting key not restored at %d", i)
		}
	}
}

func TestLoadStateAcrossOptimizerTypes(t *testing.T) {
	// An Adam blob loaded into SGD shares no keys; everything filters out.
	p := param(t, []float32{1, 2})
	adam, _ := NewAdam(DefaultAdamConfig(), []*ParamGroup{Group("model", []*tensor.Tensor{p}, 0)})
	backwardOnce(t, p)
	if err := adam.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	state, _ := adam.State()

	p2 := param(t, []float32{1, 2})
	sgd, _ := NewSGD(SGDConfig{LearningRate: 0.1, Momentum: 0.9},
		[]*ParamGroup{Group("model", []*tensor.Tensor{p2}, 0)})
	if err := sgd.LoadState(state); err != nil {
		t.Fatalf("Cross-type LoadState must filter, not fail: %v", err)
	}
	for _, v := range sgd.momentum["momentum_model_0"] {
		if v != 0 {
			t.Error("No buffer may be touched by fully-filtered state")
		}
	}
}

func TestLoadStateSizeMismatchIsError(t *testing.T) {
	p := param(t, []float32{1, 2})
	sgd, _ := NewSGD(SGDConfig{LearningRate: 0.1, Momentum: 0.9},
		[]*ParamGroup{Group("model", []*tensor.Tensor{p}, 0)})

	bad := &checkpoints.OptimizerState{
		Type: "SGD",
		StateData: []checkpoints.OptimizerTensor{
			{Name: "momentum_model_0", Shape: []int{3}, Data: []float32{1, 2, 3}, StateType: "momentum"},
		},
	}
	if err := sgd.LoadState(bad); err == nil {
		t.Error("Expected error for intersecting key with wrong size")
	}

	if err := sgd.LoadState(nil); err == nil {
		t.Error("Expected error for nil state")
	}
}

func TestGroupValidation(t *testing.T) {
	p := param(t, []float32{1})

	if err := validateGroups([]*ParamGroup{Group("a", []*tensor.Tensor{p}, 0), Group("a", []*tensor.Tensor{p}, 0)}); err == nil {
		t.Error("Expected error for duplicate group names")
	}
	if err := validateGroups([]*ParamGroup{Group("a", nil, 0)}); err == nil {
		t.Error("Expected error for empty group")
	}
	if err := validateGroups([]*ParamGroup{Group("a", []*tensor.Tensor{nil}, 0)}); err == nil {
		t.Error("Expected error for nil parameter")
	}
}
