package training

// LearningRate holds the current base learning rate. The trainer keeps it
// synchronized with the optimizer's parameter groups across checkpoint
// save and resume so the two never diverge.
type LearningRate struct {
	value float64
}

// NewLearningRate creates a holder with an initial value.
func NewLearningRate(value float64) *LearningRate {
	return &LearningRate{value: value}
}

// Value returns the current learning rate.
func (lr *LearningRate) Value() float64 {
	return lr.value
}

// SetValue overwrites the current learning rate.
func (lr *LearningRate) SetValue(value float64) {
	lr.value = value
}
