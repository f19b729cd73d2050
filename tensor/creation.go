package tensor

import (
	"fmt"
	"math/rand"
)

// NewTensor creates a tensor from an existing data slice. The slice length
// must match the shape exactly.
func NewTensor(shape []int, dtype DType, device DeviceType, data interface{}) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	switch d := data.(type) {
	case []float32:
		if dtype != Float32 {
			return nil, fmt.Errorf("data type mismatch: []float32 data with dtype %s", dtype)
		}
		if len(d) != numElems {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, numElems)
		}
	case []int32:
		if dtype != Int32 {
			return nil, fmt.Errorf("data type mismatch: []int32 data with dtype %s", dtype)
		}
		if len(d) != numElems {
			return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)", len(d), shape, numElems)
		}
	default:
		return nil, fmt.Errorf("unsupported data type %T", data)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		DType:    dtype,
		Device:   device,
		Data:     data,
		NumElems: numElems,
	}, nil
}

// Zeros creates a zero-filled tensor.
func Zeros(shape []int, dtype DType, device DeviceType) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	numElems := calculateNumElements(shape)
	switch dtype {
	case Float32:
		return NewTensor(shape, dtype, device, make([]float32, numElems))
	case Int32:
		return NewTensor(shape, dtype, device, make([]int32, numElems))
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dtype)
	}
}

// Ones creates a one-filled tensor.
func Ones(shape []int, dtype DType, device DeviceType) (*Tensor, error) {
	return Full(shape, 1.0, dtype, device)
}

// Full creates a tensor filled with a constant value.
func Full(shape []int, value float64, dtype DType, device DeviceType) (*Tensor, error) {
	t, err := Zeros(shape, dtype, device)
	if err != nil {
		return nil, err
	}
	switch data := t.Data.(type) {
	case []float32:
		for i := range data {
			data[i] = float32(value)
		}
	case []int32:
		for i := range data {
			data[i] = int32(value)
		}
	}
	return t, nil
}

// RandomNormal creates a float32 tensor with normally distributed values.
// The random source is an explicit argument so initialization stays
// reproducible under the caller's seed.
func RandomNormal(r *rand.Rand, shape []int, mean, std float32, device DeviceType) (*Tensor, error) {
	if r == nil {
		return nil, fmt.Errorf("random source cannot be nil")
	}
	t, err := Zeros(shape, Float32, device)
	if err != nil {
		return nil, err
	}
	data := t.Data.([]float32)
	for i := range data {
		data[i] = mean + std*float32(r.NormFloat64())
	}
	return t, nil
}
