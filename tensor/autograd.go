package tensor

import (
	"fmt"
)

// operation is one recorded node of the autograd tape. backward receives
// the gradient flowing into the operation's output and returns one
// gradient per input, aligned with inputs(); a nil entry means the input
// does not need a gradient.
type operation interface {
	inputs() []*Tensor
	backward(gradOut *Tensor) ([]*Tensor, error)
}

func anyRequiresGrad(tensors ...*Tensor) bool {
	for _, t := range tensors {
		if t.requiresGrad {
			return true
		}
	}
	return false
}

// record attaches the creator operation to an op result when any input is
// tracked. Untracked inputs produce untracked results and no tape.
func record(result *Tensor, op operation) *Tensor {
	if anyRequiresGrad(op.inputs()...) {
		result.requiresGrad = true
		result.creator = op
	}
	return result
}

// Backward runs reverse-mode differentiation from a scalar tensor,
// accumulating gradients into every tracked leaf reachable on the tape.
// Repeated calls accumulate; callers reset gradients between steps.
func (t *Tensor) Backward() error {
	if t.DType != Float32 {
		return fmt.Errorf("Backward requires a Float32 tensor, got %s", t.DType)
	}
	if t.NumElems != 1 {
		return fmt.Errorf("Backward requires a scalar tensor, got shape %v", t.Shape)
	}
	if t.creator == nil && !t.requiresGrad {
		return fmt.Errorf("tensor does not require gradients")
	}

	order := topoSort(t)

	seed, err := Ones([]int{1}, Float32, t.Device)
	if err != nil {
		return err
	}
	grads := map[*Tensor]*Tensor{t: seed}

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		g := grads[node]
		if g == nil {
			continue
		}

		if node.creator == nil {
			if node.requiresGrad {
				if node.grad == nil {
					node.grad = g.Clone()
				} else if err := addInPlace(node.grad, g); err != nil {
					return fmt.Errorf("failed to accumulate gradient: %w", err)
				}
			}
			continue
		}

		inputGrads, err := node.creator.backward(g)
		if err != nil {
			return fmt.Errorf("backward pass failed: %w", err)
		}
		ins := node.creator.inputs()
		if len(inputGrads) != len(ins) {
			return fmt.Errorf("backward produced %d gradients for %d inputs", len(inputGrads), len(ins))
		}
		for j, in := range ins {
			ig := inputGrads[j]
			if ig == nil {
				continue
			}
			if existing := grads[in]; existing == nil {
				grads[in] = ig
			} else if err := addInPlace(existing, ig); err != nil {
				return fmt.Errorf("failed to accumulate gradient: %w", err)
			}
		}
	}
	return nil
}

// topoSort orders the tape so every tensor appears after its inputs.
func topoSort(root *Tensor) []*Tensor {
	var order []*Tensor
	visited := map[*Tensor]bool{}
	var visit func(t *Tensor)
	visit = func(t *Tensor) {
		if visited[t] {
			return
		}
		visited[t] = true
		if t.creator != nil {
			for _, in := range t.creator.inputs() {
				visit(in)
			}
		}
		order = append(order, t)
	}
	visit(root)
	return order
}

func addInPlace(dst, src *Tensor) error {
	if !shapesEqual(dst.Shape, src.Shape) {
		return fmt.Errorf("gradient shape mismatch: %v vs %v", dst.Shape, src.Shape)
	}
	dstData, err := dst.Float32s()
	if err != nil {
		return err
	}
	srcData, err := src.Float32s()
	if err != nil {
		return err
	}
	for i := range dstData {
		dstData[i] += srcData[i]
	}
	return nil
}
