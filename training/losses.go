package training

// LossHistory keeps the scalar loss of every processed batch in two
// ordered, append-only sequences, one per phase. Both sequences grow
// monotonically within an epoch and are cleared only by an explicit
// Reset, which reinitializes each sequence independently.
type LossHistory struct {
	train      []float64
	validation []float64
}

// NewLossHistory creates an empty history.
func NewLossHistory() *LossHistory {
	return &LossHistory{}
}

// Append records one batch loss in the phase selected by isTrain.
func (h *LossHistory) Append(loss float64, isTrain bool) {
	if isTrain {
		h.train = append(h.train, loss)
	} else {
		h.validation = append(h.validation, loss)
	}
}

// Train returns a copy of the training sequence.
func (h *LossHistory) Train() []float64 {
	return append([]float64(nil), h.train...)
}

// Validation returns a copy of the validation sequence.
func (h *LossHistory) Validation() []float64 {
	return append([]float64(nil), h.validation...)
}

// Reset clears both sequences.
func (h *LossHistory) Reset() {
	h.train = nil
	h.validation = nil
}
