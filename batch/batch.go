// Package batch defines the unit of training and validation input: a pair
// of value trees holding the model input and the target. A value is either
// a single tensor leaf or a nested mapping of further values, to arbitrary
// depth. The two cases are a closed sum type, so device transfer is a
// total traversal with no partially-movable batches.
package batch

import (
	"fmt"
	"sort"

	"github.com/Santhosh-KS/neural-pipeline/tensor"
)

// Value is one node of a batch value tree. The only implementations are
// Leaf and Nested.
type Value interface {
	// ToDevice returns a copy of the value tree with every leaf placed on
	// the requested device.
	ToDevice(device tensor.DeviceType) Value

	// Leaves appends every leaf tensor in deterministic key order.
	Leaves(dst []*tensor.Tensor) []*tensor.Tensor

	sealed()
}

// Leaf wraps a single tensor.
type Leaf struct {
	Tensor *tensor.Tensor
}

// NewLeaf creates a leaf value. A nil tensor violates the batch contract.
func NewLeaf(t *tensor.Tensor) (Leaf, error) {
	if t == nil {
		return Leaf{}, fmt.Errorf("batch leaf cannot hold a nil tensor")
	}
	return Leaf{Tensor: t}, nil
}

func (l Leaf) ToDevice(device tensor.DeviceType) Value {
	return Leaf{Tensor: l.Tensor.ToDevice(device)}
}

func (l Leaf) Leaves(dst []*tensor.Tensor) []*tensor.Tensor {
	return append(dst, l.Tensor)
}

func (l Leaf) sealed() {}

// Nested is a string-keyed mapping of child values.
type Nested map[string]Value

func (n Nested) ToDevice(device tensor.DeviceType) Value {
	moved := make(Nested, len(n))
	for key, child := range n {
		moved[key] = child.ToDevice(device)
	}
	return moved
}

func (n Nested) Leaves(dst []*tensor.Tensor) []*tensor.Tensor {
	keys := make([]string, 0, len(n))
	for key := range n {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		dst = n[key].Leaves(dst)
	}
	return dst
}

func (n Nested) sealed() {}

// Batch is one unit of training or validation input.
type Batch struct {
	Data   Value
	Target Value
}

// New validates and assembles a batch. Both value trees must be present
// and every nested mapping must be fully populated.
func New(data, target Value) (*Batch, error) {
	if err := validate("data", data); err != nil {
		return nil, err
	}
	if err := validate("target", target); err != nil {
		return nil, err
	}
	return &Batch{Data: data, Target: target}, nil
}

func validate(field string, v Value) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("batch %s cannot be nil", field)
	case Leaf:
		if val.Tensor == nil {
			return fmt.Errorf("batch %s holds a nil tensor leaf", field)
		}
	case Nested:
		if len(val) == 0 {
			return fmt.Errorf("batch %s holds an empty mapping", field)
		}
		for key, child := range val {
			if err := validate(field+"."+key, child); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("batch %s holds unknown value type %T", field, v)
	}
	return nil
}

// LeafTensor unwraps a value expected to be a single tensor leaf.
func LeafTensor(v Value) (*tensor.Tensor, error) {
	leaf, ok := v.(Leaf)
	if !ok {
		return nil, fmt.Errorf("expected a tensor leaf, got %T", v)
	}
	return leaf.Tensor, nil
}
