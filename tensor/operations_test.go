package tensor

import (
	"math"
	"math/rand"
	"testing"
)

func TestAddSubMulForward(t *testing.T) {
	a := mustTensor(t, []int{2, 2}, []float32{1, 2, 3, 4})
	b := mustTensor(t, []int{2, 2}, []float32{10, 20, 30, 40})

	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	sumData, _ := sum.Float32s()
	if sumData[3] != 44 {
		t.Errorf("Expected 44, got %f", sumData[3])
	}

	diff, err := Sub(b, a)
	if err != nil {
		t.Fatalf("Sub failed: %v", err)
	}
	diffData, _ := diff.Float32s()
	if diffData[0] != 9 {
		t.Errorf("Expected 9, got %f", diffData[0])
	}

	prod, err := Mul(a, b)
	if err != nil {
		t.Fatalf("Mul failed: %v", err)
	}
	prodData, _ := prod.Float32s()
	if prodData[1] != 40 {
		t.Errorf("Expected 40, got %f", prodData[1])
	}

	c := mustTensor(t, []int{3}, []float32{1, 2, 3})
	if _, err := Mul(a, c); err == nil {
		t.Error("Expected shape mismatch error")
	}
}

func TestCrossDeviceOperandsRejected(t *testing.T) {
	a := mustTensor(t, []int{2}, []float32{1, 2})
	b := mustTensor(t, []int{2}, []float32{3, 4}).ToDevice(Accelerator)
	if _, err := Add(a, b); err == nil {
		t.Error("Expected error for operands on different devices")
	}
}

func TestMatMulForward(t *testing.T) {
	a := mustTensor(t, []int{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := mustTensor(t, []int{3, 2}, []float32{7, 8, 9, 10, 11, 12})

	out, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("MatMul failed: %v", err)
	}
	if !shapesEqual(out.Shape, []int{2, 2}) {
		t.Fatalf("Expected shape [2 2], got %v", out.Shape)
	}
	data, _ := out.Float32s()
	expected := []float32{58, 64, 139, 154}
	for i := range expected {
		if data[i] != expected[i] {
			t.Errorf("Expected %f at %d, got %f", expected[i], i, data[i])
		}
	}
}

func TestMeanAndReLU(t *testing.T) {
	x := mustTensor(t, []int{4}, []float32{-2, -1, 1, 2})

	mean, err := Mean(x)
	if err != nil {
		t.Fatalf("Mean failed: %v", err)
	}
	v, _ := mean.Item()
	if v != 0 {
		t.Errorf("Expected mean 0, got %f", v)
	}

	relu, err := ReLU(x)
	if err != nil {
		t.Fatalf("ReLU failed: %v", err)
	}
	data, _ := relu.Float32s()
	expected := []float32{0, 0, 1, 2}
	for i := range expected {
		if data[i] != expected[i] {
			t.Errorf("Expected %f at %d, got %f", expected[i], i, data[i])
		}
	}
}

func TestLogSoftmaxRowsSumToOne(t *testing.T) {
	x := mustTensor(t, []int{2, 3}, []float32{1, 2, 3, -1, 0, 1})
	logp, err := LogSoftmax(x)
	if err != nil {
		t.Fatalf("LogSoftmax failed: %v", err)
	}
	data, _ := logp.Float32s()
	for row := 0; row < 2; row++ {
		var sum float64
		for col := 0; col < 3; col++ {
			sum += math.Exp(float64(data[row*3+col]))
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("Row %d probabilities sum to %f, expected 1", row, sum)
		}
	}
}

func TestRandomNormalReproducible(t *testing.T) {
	t1, err := RandomNormal(rand.New(rand.NewSource(7)), []int{8}, 0, 1, CPU)
	if err != nil {
		t.Fatalf("RandomNormal failed: %v", err)
	}
	t2, _ := RandomNormal(rand.New(rand.NewSource(7)), []int{8}, 0, 1, CPU)

	d1, _ := t1.Float32s()
	d2, _ := t2.Float32s()
	for i := range d1 {
		if d1[i] != d2[i] {
			t.Errorf("Same seed produced different values at %d", i)
		}
	}

	if _, err := RandomNormal(nil, []int{2}, 0, 1, CPU); err == nil {
		t.Error("Expected error for nil random source")
	}
}
