// Package optimizer implements gradient-descent optimizers over parameter
// groups, with serializable state for checkpoint resume.
package optimizer

import (
	"fmt"

	"github.com/Santhosh-KS/neural-pipeline/checkpoints"
	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// ParamGroup is a named subset of model parameters sharing one learning
// rate.
type ParamGroup struct {
	Name   string
	Params []*tensor.Tensor
	LR     float64
}

// Optimizer is the common contract for all optimizers. State save and
// restore round-trips through checkpoints.OptimizerState so a trainer can
// persist the optimizer without knowing its type.
type Optimizer interface {
	// ZeroGrad discards accumulated gradients on every parameter.
	ZeroGrad()

	// Step applies one update using the gradients currently accumulated
	// on the parameters. The learning rate is read from each group at
	// call time, so a rate update takes effect on the next step.
	Step() error

	// State extracts a snapshot of the optimizer's internal buffers.
	State() (*checkpoints.OptimizerState, error)

	// LoadState restores internal buffers from a saved snapshot. Entries
	// whose keys do not exist in this optimizer's own state are silently
	// dropped: a reconfiguration filters, it never fails.
	LoadState(state *checkpoints.OptimizerState) error

	// StateKeys reports the state entry names this optimizer owns.
	StateKeys() map[string]bool

	// ParamGroups exposes the parameter groups.
	ParamGroups() []*ParamGroup

	// SetLearningRate overwrites the learning rate in every group.
	SetLearningRate(lr float64)
}

// Group is a convenience constructor for a single parameter group.
func Group(name string, params []*tensor.Tensor, lr float64) *ParamGroup {
	return &ParamGroup{Name: name, Params: params, LR: lr}
}

func validateGroups(groups []*ParamGroup) error {
	if len(groups) == 0 {
		return fmt.Errorf("no parameter groups provided")
	}
	seen := map[string]bool{}
	for _, g := range groups {
		if g == nil || len(g.Params) == 0 {
			return fmt.Errorf("parameter group cannot be empty")
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate parameter group name %q", g.Name)
		}
		seen[g.Name] = true
		for i, p := range g.Params {
			if p == nil {
				return fmt.Errorf("group %q parameter %d is nil", g.Name, i)
			}
			if p.DType != tensor.Float32 {
				return fmt.Errorf("group %q parameter %d has dtype %s, want Float32", g.Name, i, p.DType)
			}
		}
	}
	return nil
}

func zeroGradGroups(groups []*ParamGroup) {
	for _, g := range groups {
		for _, p := range g.Params {
			p.ZeroGrad()
		}
	}
}

func setGroupLearningRate(groups []*ParamGroup, lr float64) {
	for _, g := range groups {
		g.LR = lr
	}
}

// bufferKey names one state buffer: <kind>_<group>_<index>.
func bufferKey(kind, group string, idx int) string {
	return fmt.Sprintf("%s_%s_%d", kind, group, idx)
}

// restoreBuffer copies a saved state tensor into a live buffer, checking
// the element count.
func restoreBuffer(dst []float32, saved checkpoints.OptimizerTensor) error {
	if len(saved.Data) != len(dst) {
		return fmt.Errorf("state size mismatch for %s: expected %d elements, got %d",
			saved.Name, len(dst), len(saved.Data))
	}
	copy(dst, saved.Data)
	return nil
}

// filterState drops entries whose names this optimizer does not own.
func filterState(state *checkpoints.OptimizerState, keys map[string]bool) []checkpoints.OptimizerTensor {
	var kept []checkpoints.OptimizerTensor
	for _, entry := range state.StateData {
		if keys[entry.Name] {
			kept = append(kept, entry)
		}
	}
	return kept
}
