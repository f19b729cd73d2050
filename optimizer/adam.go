package optimizer

import (
	"fmt"
	"math"

	"github.com/Santhosh-KS/neural-pipeline/checkpoints"
)

// AdamConfig holds Adam hyperparameters.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns the standard Adam configuration.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Adam implements the Adam optimizer with bias correction.
type Adam struct {
	config AdamConfig
	groups []*ParamGroup

	m         map[string][]float32
	v         map[string][]float32
	stepCount uint64
}

// NewAdam creates an Adam optimizer over the given parameter groups.
func NewAdam(config AdamConfig, groups []*ParamGroup) (*Adam, error) {
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", config.LearningRate)
	}
	if config.Beta1 <= 0 || config.Beta1 >= 1 {
		return nil, fmt.Errorf("beta1 must be in (0, 1), got %f", config.Beta1)
	}
	if config.Beta2 <= 0 || config.Beta2 >= 1 {
		return nil, fmt.Errorf("beta2 must be in (0, 1), got %f", config.Beta2)
	}
	if config.Epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %f", config.Epsilon)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("weight decay must be non-negative, got %f", config.WeightDecay)
	}
	if err := validateGroups(groups); err != nil {
		return nil, err
	}

	adam := &Adam{
		config: config,
		groups: groups,
		m:      map[string][]float32{},
		v:      map[string][]float32{},
	}
	for _, g := range groups {
		if g.LR == 0 {
			g.LR = config.LearningRate
		}
		for i, p := range g.Params {
			adam.m[bufferKey("m", g.Name, i)] = make([]float32, p.NumElems)
			adam.v[bufferKey("v", g.Name, i)] = make([]float32, p.NumElems)
		}
	}
	return adam, nil
}

func (a *Adam) ZeroGrad() {
	zeroGradGroups(a.groups)
}

func (a *Adam) Step() error {
	a.stepCount++
	beta1 := a.config.Beta1
	beta2 := a.config.Beta2
	correction1 := 1 - math.Pow(beta1, float64(a.stepCount))
	correction2 := 1 - math.Pow(beta2, float64(a.stepCount))
	decay := float32(a.config.WeightDecay)

	for _, g := range a.groups {
		lr := g.LR
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

			m := a.m[bufferKey("m", g.Name, i)]
			v := a.v[bufferKey("v", g.Name, i)]
			for j := range weights {
				gv := float64(gradData[j] + decay*weights[j])
				m[j] = float32(beta1*float64(m[j]) + (1-beta1)*gv)
				v[j] = float32(beta2*float64(v[j]) + (1-beta2)*gv*gv)
				mHat := float64(m[j]) / correction1
				vHat := float64(v[j]) / correction2
				weights[j] -= float32(lr * mHat / (math.Sqrt(vHat) + a.config.Epsilon))
			}
		}
	}
	return nil
}

func (a *Adam) State() (*checkpoints.OptimizerState, error) {
	state := &checkpoints.OptimizerState{
		Type: "Adam",
		Parameters: map[string]float64{
			"beta1":        a.config.Beta1,
			"beta2":        a.config.Beta2,
			"epsilon":      a.config.Epsilon,
			"weight_decay": a.config.WeightDecay,
			"step_count":   float64(a.stepCount),
		},
	}
	appendBuffer := func(kind string, buffers map[string][]float32, groupName string, idx int, shape []int) {
		key := bufferKey(kind, groupName, idx)
		buf := buffers[key]
		data := make([]float32, len(buf))
		copy(data, buf)
		state.StateData = append(state.StateData, checkpoints.OptimizerTensor{
			Name:      key,
			Shape:     append([]int(nil), shape...),
			Data:      data,
			StateType: kind,
		})
	}
	for _, g := range a.groups {
		for i, p := range g.Params {
			appendBuffer("m", a.m, g.Name, i, p.Shape)
			appendBuffer("v", a.v, g.Name, i, p.Shape)
		}
	}
	return state, nil
}

func (a *Adam) LoadState(state *checkpoints.OptimizerState) error {
	if state == nil {
		return fmt.Errorf("optimizer state cannot be nil")
	}
	keys := a.StateKeys()
	for _, entry := range filterState(state, keys) {
		var dst []float32
		if buf, ok := a.m[entry.Name]; ok {
			dst = buf
		} else {
			dst = a.v[entry.Name]
		}
		if err := restoreBuffer(dst, entry); err != nil {
			return err
		}
	}
	if sc, ok := state.Parameters["step_count"]; ok {
		a.stepCount = uint64(sc)
	}
	return nil
}

func (a *Adam) StateKeys() map[string]bool {
	keys := make(map[string]bool, len(a.m)+len(a.v))
	for key := range a.m {
		keys[key] = true
	}
	for key := range a.v {
		keys[key] = true
	}
	return keys
}

func (a *Adam) ParamGroups() []*ParamGroup {
	return a.groups
}

func (a *Adam) SetLearningRate(lr float64) {
	a.config.LearningRate = lr
	setGroupLearningRate(a.groups, lr)
}

// StepCount returns the number of optimization steps applied.
func (a *Adam) StepCount() uint64 {
	return a.stepCount
}
