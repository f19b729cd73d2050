package tensor

import (
	"math"
	"testing"
)

func mustTensor(t *testing.T, shape []int, data []float32) *Tensor {
	t.Helper()
	tensor, err := NewTensor(shape, Float32, CPU, data)
	if err != nil {
		t.Fatalf("Failed to create tensor: %v", err)
	}
	return tensor
}

func TestBackwardThroughAddMul(t *testing.T) {
	x := mustTensor(t, []int{2}, []float32{2, 3})
	y := mustTensor(t, []int{2}, []float32{4, 5})
	x.SetRequiresGrad(true)
	y.SetRequiresGrad(true)

	// loss = sum(x * y) => dL/dx = y, dL/dy = x
	prod, err := Mul(x, y)
	if err != nil {
		t.Fatalf("Mul failed: %v", err)
	}
	loss, err := SumAll(prod)
	if err != nil {
		t.Fatalf("SumAll failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	gx, _ := x.Grad().Float32s()
	gy, _ := y.Grad().Float32s()
	if gx[0] != 4 || gx[1] != 5 {
		t.Errorf("Expected dL/dx = [4 5], got %v", gx)
	}
	if gy[0] != 2 || gy[1] != 3 {
		t.Errorf("Expected dL/dy = [2 3], got %v", gy)
	}
}

func TestBackwardAccumulatesAcrossCalls(t *testing.T) {
	x := mustTensor(t, []int{2}, []float32{1, 1})
	x.SetRequiresGrad(true)

	for i := 0; i < 2; i++ {
		loss, err := SumAll(x)
		if err != nil {
			t.Fatalf("SumAll failed: %v", err)
		}
		if err := loss.Backward(); err != nil {
			t.Fatalf("Backward failed: %v", err)
		}
	}

	g, _ := x.Grad().Float32s()
	if g[0] != 2 || g[1] != 2 {
		t.Errorf("Expected accumulated gradient [2 2], got %v", g)
	}

	x.ZeroGrad()
	if x.Grad() != nil {
		t.Error("Expected nil gradient after ZeroGrad")
	}
}

func TestBackwardMatMul(t *testing.T) {
	a := mustTensor(t, []int{2, 2}, []float32{1, 2, 3, 4})
	b := mustTensor(t, []int{2, 2}, []float32{5, 6, 7, 8})
	a.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	out, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("MatMul failed: %v", err)
	}
	loss, err := SumAll(out)
	if err != nil {
		t.Fatalf("SumAll failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	// dL/dA = ones x B^T, dL/dB = A^T x ones
	ga, _ := a.Grad().Float32s()
	expectedA := []float32{11, 15, 11, 15}
	for i := range expectedA {
		if ga[i] != expectedA[i] {
			t.Errorf("dL/dA[%d]: expected %f, got %f", i, expectedA[i], ga[i])
		}
	}
	gb, _ := b.Grad().Float32s()
	expectedB := []float32{4, 4, 6, 6}
	for i := range expectedB {
		if gb[i] != expectedB[i] {
			t.Errorf("dL/dB[%d]: expected %f, got %f", i, expectedB[i], gb[i])
		}
	}
}

func TestBackwardBiasBroadcast(t *testing.T) {
	x := mustTensor(t, []int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	bias := mustTensor(t, []int{3}, []float32{1, 1, 1})
	bias.SetRequiresGrad(true)

	out, err := Add(x, bias)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	loss, err := SumAll(out)
	if err != nil {
		t.Fatalf("SumAll failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	// Bias gradient sums over the batch dimension.
	g, _ := bias.Grad().Float32s()
	for i := range g {
		if g[i] != 2 {
			t.Errorf("Expected bias gradient 2 at %d, got %f", i, g[i])
		}
	}
}

func TestNoTapeWithoutTrackedInputs(t *testing.T) {
	x := mustTensor(t, []int{2}, []float32{1, 2})
	y := mustTensor(t, []int{2}, []float32{3, 4})

	out, err := Mul(x, y)
	if err != nil {
		t.Fatalf("Mul failed: %v", err)
	}
	if out.RequiresGrad() {
		t.Error("Result of untracked inputs must not require gradients")
	}
	loss, _ := SumAll(out)
	if err := loss.Backward(); err == nil {
		t.Error("Expected Backward to fail without a tape")
	}
}

func TestLogSoftmaxGradientSumsToZero(t *testing.T) {
	x := mustTensor(t, []int{1, 3}, []float32{1, 2, 3})
	x.SetRequiresGrad(true)

	logp, err := LogSoftmax(x)
	if err != nil {
		t.Fatalf("LogSoftmax failed: %v", err)
	}

	// Pick out one class log-probability as the loss.
	mask := mustTensor(t, []int{1, 3}, []float32{0, 1, 0})
	picked, err := Mul(logp, mask)
	if err != nil {
		t.Fatalf("Mul failed: %v", err)
	}
	loss, err := SumAll(picked)
	if err != nil {
		t.Fatalf("SumAll failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	g, _ := x.Grad().Float32s()
	var sum float64
	for _, v := range g {
		sum += float64(v)
	}
	if math.Abs(sum) > 1e-5 {
		t.Errorf("LogSoftmax input gradient should sum to zero, got %f", sum)
	}
}
