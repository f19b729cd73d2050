package optimizer

import (
	"fmt"

	"github.com/Santhosh-KS/neural-pipeline/checkpoints"
)

// SGDConfig holds SGD hyperparameters.
type SGDConfig struct {
	LearningRate float64
	Momentum     float64
	WeightDecay  float64
	Nesterov     bool
}

// DefaultSGDConfig returns vanilla SGD at lr 0.01.
func DefaultSGDConfig() SGDConfig {
	return SGDConfig{LearningRate: 0.01}
}

// SGD implements stochastic gradient descent with optional momentum,
// weight decay, and Nesterov acceleration.
type SGD struct {
	config SGDConfig
	groups []*ParamGroup

	// momentum buffers, parallel to each group's params
	momentum  map[string][]float32
	stepCount uint64
}

// NewSGD creates an SGD optimizer over the given parameter groups. Group
// learning rates default to the configured rate when unset.
func NewSGD(config SGDConfig, groups []*ParamGroup) (*SGD, error) {
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", config.LearningRate)
	}
	if config.Momentum < 0 || config.Momentum > 1 {
		return nil, fmt.Errorf("momentum must be in [0, 1], got %f", config.Momentum)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("weight decay must be non-negative, got %f", config.WeightDecay)
	}
	if config.Nesterov && config.Momentum == 0 {
		return nil, fmt.Errorf("nesterov acceleration requires momentum")
	}
	if err := validateGroups(groups); err != nil {
		return nil, err
	}

	sgd := &SGD{
		config:   config,
		groups:   groups,
		momentum: map[string][]float32{},
	}
	for _, g := range groups {
		if g.LR == 0 {
			g.LR = config.LearningRate
		}
		if config.Momentum > 0 {
			for i, p := range g.Params {
				sgd.momentum[bufferKey("momentum", g.Name, i)] = make([]float32, p.NumElems)
			}
		}
	}
	return sgd, nil
}

func (sgd *SGD) ZeroGrad() {
	zeroGradGroups(sgd.groups)
}

func (sgd *SGD) Step() error {
	momentum := float32(sgd.config.Momentum)
	decay := float32(sgd.config.WeightDecay)

	for _, g := range sgd.groups {
		lr := float32(g.LR)
		for i, p := range g.Params {
			grad := p.Grad()
			if grad == nil {
				continue
			}
			gradData, err := grad.Float32s()
			if err != nil {
				return fmt.Errorf("group %q parameter %d: %v", g.Name, i, err)
			}
			weights, err := p.Float32s()
			if err != nil {
				return fmt.Errorf("group %q parameter %d: %v", g.Name, i, err)
			}

			buf := sgd.momentum[bufferKey("momentum", g.Name, i)]
			for j := range weights {
				gv := gradData[j] + decay*weights[j]
				if buf != nil {
					buf[j] = momentum*buf[j] + gv
					if sgd.config.Nesterov {
						gv += momentum * buf[j]
					} else {
						gv = buf[j]
					}
				}
				weights[j] -= lr * gv
			}
		}
	}
	sgd.stepCount++
	return nil
}

func (sgd *SGD) State() (*checkpoints.OptimizerState, error) {
	state := &checkpoints.OptimizerState{
		Type: "SGD",
		Parameters: map[string]float64{
			"momentum":     sgd.config.Momentum,
			"weight_decay": sgd.config.WeightDecay,
			"step_count":   float64(sgd.stepCount),
		},
	}
	for _, g := range sgd.groups {
		for i, p := range g.Params {
			key := bufferKey("momentum", g.Name, i)
			buf, ok := sgd.momentum[key]
			if !ok {
				continue
			}
			data := make([]float32, len(buf))
			copy(data, buf)
			state.StateData = append(state.StateData, checkpoints.OptimizerTensor{
				Name:      key,
				Shape:     append([]int(nil), p.Shape...),
				Data:      data,
				StateType: "momentum",
			})
		}
	}
	return state, nil
}

func (sgd *SGD) LoadState(state *checkpoints.OptimizerState) error {
	if state == nil {
		return fmt.Errorf("optimizer state cannot be nil")
	}
	for _, entry := range filterState(state, sgd.StateKeys()) {
		if err := restoreBuffer(sgd.momentum[entry.Name], entry); err != nil {
			return err
		}
	}
	if sc, ok := state.Parameters["step_count"]; ok {
		sgd.stepCount = uint64(sc)
	}
	return nil
}

func (sgd *SGD) StateKeys() map[string]bool {
	keys := make(map[string]bool, len(sgd.momentum))
	for key := range sgd.momentum {
		keys[key] = true
	}
	return keys
}

func (sgd *SGD) ParamGroups() []*ParamGroup {
	return sgd.groups
}

func (sgd *SGD) SetLearningRate(lr float64) {
	sgd.config.LearningRate = lr
	setGroupLearningRate(sgd.groups, lr)
}

// StepCount returns the number of optimization steps applied.
func (sgd *SGD) StepCount() uint64 {
	return sgd.stepCount
}
