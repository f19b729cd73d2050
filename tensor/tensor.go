package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int32:
		return "Int32"
	default:
		return "Unknown"
	}
}

// DeviceType records where a tensor buffer is placed. Placement is an
// explicit property of every tensor and is never read from process-global
// configuration; moving data between devices always goes through ToDevice.
type DeviceType int

const (
	CPU DeviceType = iota
	Accelerator
)

func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "CPU"
	case Accelerator:
		return "Accelerator"
	default:
		return "Unknown"
	}
}

// Tensor is a dense n-dimensional array with optional gradient tracking.
// A tensor participates in autograd only while requiresGrad is set; the
// creator field links it back to the operation that produced it.
type Tensor struct {
	Shape        []int
	Strides      []int
	DType        DType
	Device       DeviceType
	Data         interface{}
	NumElems     int
	requiresGrad bool
	grad         *Tensor
	creator      operation
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s, elements=%d)",
		t.Shape, t.DType, t.Device, t.NumElems)
}

func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

// Grad returns the accumulated gradient, or nil if none has been computed.
func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// ZeroGrad discards the accumulated gradient.
func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

// Detach returns a tensor sharing this tensor's buffer but detached from
// the autograd graph. Forward passes through detached parameters build no
// tape, which is how evaluation-mode inference avoids gradient tracking.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		Shape:    append([]int(nil), t.Shape...),
		Strides:  append([]int(nil), t.Strides...),
		DType:    t.DType,
		Device:   t.Device,
		Data:     t.Data,
		NumElems: t.NumElems,
	}
}

// Clone returns a deep copy with gradient state cleared.
func (t *Tensor) Clone() *Tensor {
	c := t.Detach()
	switch data := t.Data.(type) {
	case []float32:
		buf := make([]float32, len(data))
		copy(buf, data)
		c.Data = buf
	case []int32:
		buf := make([]int32, len(data))
		copy(buf, data)
		c.Data = buf
	}
	return c
}

// ToDevice returns a copy of the tensor placed on the requested device.
// The transfer is total: the whole buffer moves. Gradient state does not
// follow the copy.
func (t *Tensor) ToDevice(device DeviceType) *Tensor {
	if t.Device == device {
		return t
	}
	c := t.Clone()
	c.Device = device
	return c
}

// MoveTo retags the tensor's placement in place, preserving gradient
// tracking. Used for parameters, which move to a device once and stay
// there; transient values go through ToDevice instead.
func (t *Tensor) MoveTo(device DeviceType) {
	t.Device = device
	if t.grad != nil {
		t.grad.Device = device
	}
}

// Float32s returns the underlying float32 buffer.
func (t *Tensor) Float32s() ([]float32, error) {
	data, ok := t.Data.([]float32)
	if !ok {
		return nil, fmt.Errorf("tensor holds %s data, not Float32", t.DType)
	}
	return data, nil
}

// Int32s returns the underlying int32 buffer.
func (t *Tensor) Int32s() ([]int32, error) {
	data, ok := t.Data.([]int32)
	if !ok {
		return nil, fmt.Errorf("tensor holds %s data, not Int32", t.DType)
	}
	return data, nil
}

// Item returns the single value of a scalar tensor.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("Item requires a scalar tensor, got shape %v", t.Shape)
	}
	switch data := t.Data.(type) {
	case []float32:
		return float64(data[0]), nil
	case []int32:
		return float64(data[0]), nil
	default:
		return 0, fmt.Errorf("unsupported data type %s", t.DType)
	}
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("invalid shape: must have at least one dimension")
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}
