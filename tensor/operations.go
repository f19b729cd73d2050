package tensor

import (
	"fmt"
	"math"
)

func checkBinaryOperands(t1, t2 *Tensor) error {
	if t1.DType != Float32 || t2.DType != Float32 {
		return fmt.Errorf("operation requires Float32 operands, got %s and %s", t1.DType, t2.DType)
	}
	if t1.Device != t2.Device {
		return fmt.Errorf("operands on different devices: %s vs %s", t1.Device, t2.Device)
	}
	return nil
}

func newFloat32Result(shape []int, device DeviceType, data []float32) *Tensor {
	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		DType:    Float32,
		Device:   device,
		Data:     data,
		NumElems: len(data),
	}
}

// Add computes t1 + t2. The operands must share a shape, except that a
// 1-D t2 matching t1's trailing dimension broadcasts across rows (the
// bias case).
func Add(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkBinaryOperands(t1, t2); err != nil {
		return nil, err
	}
	a, _ := t1.Float32s()
	b, _ := t2.Float32s()

	if shapesEqual(t1.Shape, t2.Shape) {
		out := make([]float32, len(a))
		for i := range a {
			out[i] = a[i] + b[i]
		}
		result := newFloat32Result(t1.Shape, t1.Device, out)
		return record(result, &addOp{t1: t1, t2: t2}), nil
	}

	last := t1.Shape[len(t1.Shape)-1]
	if len(t2.Shape) == 1 && t2.Shape[0] == last {
		out := make([]float32, len(a))
		for i := range a {
			out[i] = a[i] + b[i%last]
		}
		result := newFloat32Result(t1.Shape, t1.Device, out)
		return record(result, &addOp{t1: t1, t2: t2, broadcast: true}), nil
	}

	return nil, fmt.Errorf("incompatible shapes for Add: %v and %v", t1.Shape, t2.Shape)
}

type addOp struct {
	t1, t2    *Tensor
	broadcast bool
}

func (op *addOp) inputs() []*Tensor { return []*Tensor{op.t1, op.t2} }

func (op *addOp) backward(gradOut *Tensor) ([]*Tensor, error) {
	g, err := gradOut.Float32s()
	if err != nil {
		return nil, err
	}
	g1 := gradOut.Clone()
	if !op.broadcast {
		return []*Tensor{g1, gradOut.Clone()}, nil
	}
	last := op.t2.Shape[0]
	reduced := make([]float32, last)
	for i, v := range g {
		reduced[i%last] += v
	}
	g2 := newFloat32Result(op.t2.Shape, gradOut.Device, reduced)
	return []*Tensor{g1, g2}, nil
}

// Sub computes t1 - t2 elementwise.
func Sub(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkBinaryOperands(t1, t2); err != nil {
		return nil, err
	}
	if !shapesEqual(t1.Shape, t2.Shape) {
		return nil, fmt.Errorf("incompatible shapes for Sub: %v and %v", t1.Shape, t2.Shape)
	}
	a, _ := t1.Float32s()
	b, _ := t2.Float32s()
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	result := newFloat32Result(t1.Shape, t1.Device, out)
	return record(result, &subOp{t1: t1, t2: t2}), nil
}

type subOp struct {
	t1, t2 *Tensor
}

func (op *subOp) inputs() []*Tensor { return []*Tensor{op.t1, op.t2} }

func (op *subOp) backward(gradOut *Tensor) ([]*Tensor, error) {
	g, err := gradOut.Float32s()
	if err != nil {
		return nil, err
	}
	neg := make([]float32, len(g))
	for i, v := range g {
		neg[i] = -v
	}
	return []*Tensor{
		gradOut.Clone(),
		newFloat32Result(op.t2.Shape, gradOut.Device, neg),
	}, nil
}

// Mul computes t1 * t2 elementwise.
func Mul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkBinaryOperands(t1, t2); err != nil {
		return nil, err
	}
	if !shapesEqual(t1.Shape, t2.Shape) {
		return nil, fmt.Errorf("incompatible shapes for Mul: %v and %v", t1.Shape, t2.Shape)
	}
	a, _ := t1.Float32s()
	b, _ := t2.Float32s()
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] * b[i]
	}
	result := newFloat32Result(t1.Shape, t1.Device, out)
	return record(result, &mulOp{t1: t1, t2: t2}), nil
}

type mulOp struct {
	t1, t2 *Tensor
}

func (op *mulOp) inputs() []*Tensor { return []*Tensor{op.t1, op.t2} }

func (op *mulOp) backward(gradOut *Tensor) ([]*Tensor, error) {
	g, err := gradOut.Float32s()
	if err != nil {
		return nil, err
	}
	a, _ := op.t1.Float32s()
	b, _ := op.t2.Float32s()
	g1 := make([]float32, len(g))
	g2 := make([]float32, len(g))
	for i := range g {
		g1[i] = g[i] * b[i]
		g2[i] = g[i] * a[i]
	}
	return []*Tensor{
		newFloat32Result(op.t1.Shape, gradOut.Device, g1),
		newFloat32Result(op.t2.Shape, gradOut.Device, g2),
	}, nil
}

// Scale computes t * s for a scalar constant s.
func Scale(t *Tensor, s float32) (*Tensor, error) {
	a, err := t.Float32s()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] * s
	}
	result := newFloat32Result(t.Shape, t.Device, out)
	return record(result, &scaleOp{t: t, s: s}), nil
}

type scaleOp struct {
	t *Tensor
	s float32
}

func (op *scaleOp) inputs() []*Tensor { return []*Tensor{op.t} }

func (op *scaleOp) backward(gradOut *Tensor) ([]*Tensor, error) {
	g, err := gradOut.Float32s()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(g))
	for i, v := range g {
		out[i] = v * op.s
	}
	return []*Tensor{newFloat32Result(op.t.Shape, gradOut.Device, out)}, nil
}

// MatMul computes the product of two 2-D tensors [m,k] x [k,n].
func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkBinaryOperands(t1, t2); err != nil {
		return nil, err
	}
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2-D tensors, got %v and %v", t1.Shape, t2.Shape)
	}
	m, k := t1.Shape[0], t1.Shape[1]
	k2, n := t2.Shape[0], t2.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("inner dimensions do not match: %v and %v", t1.Shape, t2.Shape)
	}
	a, _ := t1.Float32s()
	b, _ := t2.Float32s()
	out := matmulFloat32(a, b, m, k, n)
	result := newFloat32Result([]int{m, n}, t1.Device, out)
	return record(result, &matmulOp{t1: t1, t2: t2}), nil
}

func matmulFloat32(a, b []float32, m, k, n int) []float32 {
	out := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out[i*n+j] += av * b[p*n+j]
			}
		}
	}
	return out
}

func transposeFloat32(a []float32, rows, cols int) []float32 {
	out := make([]float32, len(a))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[j*rows+i] = a[i*cols+j]
		}
	}
	return out
}

type matmulOp struct {
	t1, t2 *Tensor
}

func (op *matmulOp) inputs() []*Tensor { return []*Tensor{op.t1, op.t2} }

func (op *matmulOp) backward(gradOut *Tensor) ([]*Tensor, error) {
	g, err := gradOut.Float32s()
	if err != nil {
		return nil, err
	}
	m, k := op.t1.Shape[0], op.t1.Shape[1]
	n := op.t2.Shape[1]
	a, _ := op.t1.Float32s()
	b, _ := op.t2.Float32s()

	// dA = dOut x B^T, dB = A^T x dOut
	bt := transposeFloat32(b, k, n)
	at := transposeFloat32(a, m, k)
	g1 := matmulFloat32(g, bt, m, n, k)
	g2 := matmulFloat32(at, g, k, m, n)
	return []*Tensor{
		newFloat32Result([]int{m, k}, gradOut.Device, g1),
		newFloat32Result([]int{k, n}, gradOut.Device, g2),
	}, nil
}

// SumAll reduces a tensor to a scalar by summing every element.
func SumAll(t *Tensor) (*Tensor, error) {
	a, err := t.Float32s()
	if err != nil {
		return nil, err
	}
	var sum float32
	for _, v := range a {
		sum += v
	}
	result := newFloat32Result([]int{1}, t.Device, []float32{sum})
	return record(result, &sumAllOp{t: t}), nil
}

type sumAllOp struct {
	t *Tensor
}

func (op *sumAllOp) inputs() []*Tensor { return []*Tensor{op.t} }

func (op *sumAllOp) backward(gradOut *Tensor) ([]*Tensor, error) {
	g, err := gradOut.Float32s()
	if err != nil {
		return nil, err
	}
	out := make([]float32, op.t.NumElems)
	for i := range out {
		out[i] = g[0]
	}
	return []*Tensor{newFloat32Result(op.t.Shape, gradOut.Device, out)}, nil
}

// Mean reduces a tensor to its scalar mean.
func Mean(t *Tensor) (*Tensor, error) {
	sum, err := SumAll(t)
	if err != nil {
		return nil, err
	}
	return Scale(sum, 1.0/float32(t.NumElems))
}

// ReLU applies max(0, x) elementwise.
func ReLU(t *Tensor) (*Tensor, error) {
	a, err := t.Float32s()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(a))
	for i, v := range a {
		if v > 0 {
			out[i] = v
		}
	}
	result := newFloat32Result(t.Shape, t.Device, out)
	return record(result, &reluOp{t: t}), nil
}

type reluOp struct {
	t *Tensor
}

func (op *reluOp) inputs() []*Tensor { return []*Tensor{op.t} }

func (op *reluOp) backward(gradOut *Tensor) ([]*Tensor, error) {
	g, err := gradOut.Float32s()
	if err != nil {
		return nil, err
	}
	a, _ := op.t.Float32s()
	out := make([]float32, len(g))
	for i := range g {
		if a[i] > 0 {
			out[i] = g[i]
		}
	}
	return []*Tensor{newFloat32Result(op.t.Shape, gradOut.Device, out)}, nil
}

// LogSoftmax applies a numerically stable log-softmax along the last
// dimension of a 2-D tensor.
func LogSoftmax(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("LogSoftmax requires a 2-D tensor, got %v", t.Shape)
	}
	a, err := t.Float32s()
	if err != nil {
		return nil, err
	}
	rows, cols := t.Shape[0], t.Shape[1]
	out := make([]float32, len(a))
	for i := 0; i < rows; i++ {
		row := a[i*cols : (i+1)*cols]
		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxVal))
		}
		logSum := float32(math.Log(sumExp)) + maxVal
		for j, v := range row {
			out[i*cols+j] = v - logSum
		}
	}
	result := newFloat32Result(t.Shape, t.Device, out)
	return record(result, &logSoftmaxOp{t: t, out: out}), nil
}

type logSoftmaxOp struct {
	t   *Tensor
	out []float32
}

func (op *logSoftmaxOp) inputs() []*Tensor { return []*Tensor{op.t} }

func (op *logSoftmaxOp) backward(gradOut *Tensor) ([]*Tensor, error) {
	g, err := gradOut.Float32s()
	if err != nil {
		return nil, err
	}
	rows, cols := op.t.Shape[0], op.t.Shape[1]
	out := make([]float32, len(g))
	for i := 0; i < rows; i++ {
		var rowSum float32
		for j := 0; j < cols; j++ {
			rowSum += g[i*cols+j]
		}
		for j := 0; j < cols; j++ {
			idx := i*cols + j
			softmax := float32(math.Exp(float64(op.out[idx])))
			out[idx] = g[idx] - softmax*rowSum
		}
	}
	return []*Tensor{newFloat32Result(op.t.Shape, gradOut.Device, out)}, nil
}
