package training

import (
	"fmt"
	"math"

	"github.com/namesLeon/trivialaugment/checkpoints"
)

// Optimizer updates a flat parameter vector from a same-shaped gradient and
// can round-trip its internal state through a checkpoint.
type Optimizer interface {
	Step(params, grads []float32) error
	SetLearningRate(lr float64)
	LearningRate() float64
	State() checkpoints.OptimizerState
	LoadState(state checkpoints.OptimizerState) error
	Name() string
}

// SGDConfig holds the hyperparameters for SGD.
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
	config    SGDConfig
	lr        float64
	velocity  []float32
	stepCount uint64
}

// NewSGD creates an SGD optimizer. The momentum buffer is allocated lazily on
// the first step, sized to the parameter vector.
func NewSGD(config SGDConfig) *SGD {
	return &SGD{config: config, lr: config.LearningRate}
}

func (o *SGD) Name() string { return "sgd" }

func (o *SGD) SetLearningRate(lr float64) { o.lr = lr }

func (o *SGD) LearningRate() float64 { return o.lr }

// Step applies one parameter update in place.
func (o *SGD) Step(params, grads []float32) error {
	if len(params) != len(grads) {
		return fmt.Errorf("parameter/gradient length mismatch: %d vs %d", len(params), len(grads))
	}
	if o.config.Momentum != 0 && o.velocity == nil {
		o.velocity = make([]float32, len(params))
	}
	if o.velocity != nil && len(o.velocity) != len(params) {
		return fmt.Errorf("momentum buffer length mismatch: %d vs %d", len(o.velocity), len(params))
	}

	lr := float32(o.lr)
	momentum := float32(o.config.Momentum)
	decay := float32(o.config.WeightDecay)

	for i := range params {
		g := grads[i]
		if decay != 0 {
			g += decay * params[i]
		}
		if momentum != 0 {
			v := momentum*o.velocity[i] + g
			o.velocity[i] = v
			if o.config.Nesterov {
				g += momentum * v
			} else {
				g = v
			}
		}
		params[i] -= lr * g
	}

	o.stepCount++
	return nil
}

func (o *SGD) State() checkpoints.OptimizerState {
	state := checkpoints.OptimizerState{
		Kind:         o.Name(),
		StepCount:    o.stepCount,
		LearningRate: o.lr,
		Buffers:      map[string][]float32{},
	}
	if o.velocity != nil {
		velocity := make([]float32, len(o.velocity))
		copy(velocity, o.velocity)
		state.Buffers["velocity"] = velocity
	}
	return state
}

func (o *SGD) LoadState(state checkpoints.OptimizerState) error {
	if state.Kind != o.Name() {
		return fmt.Errorf("optimizer kind mismatch: checkpoint has %q, expected %q", state.Kind, o.Name())
	}
	o.stepCount = state.StepCount
	o.lr = state.LearningRate
	if velocity, ok := state.Buffers["velocity"]; ok {
		o.velocity = make([]float32, len(velocity))
		copy(o.velocity, velocity)
	} else {
		o.velocity = nil
	}
	return nil
}

// AdamConfig holds the hyperparameters for Adam.
type AdamConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultAdamConfig returns the standard Adam settings.
func DefaultAdamConfig() AdamConfig {
	return AdamConfig{
		LearningRate: 0.001,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

// Adam implements the Adam optimizer with bias-corrected moment estimates.
type Adam struct {
	config    AdamConfig
	lr        float64
	m         []float32
	v         []float32
	stepCount uint64
}

// NewAdam creates an Adam optimizer. Zero-valued betas/epsilon fall back to
// the standard defaults.
func NewAdam(config AdamConfig) *Adam {
	defaults := DefaultAdamConfig()
	if config.Beta1 == 0 {
		config.Beta1 = defaults.Beta1
	}
	if config.Beta2 == 0 {
		config.Beta2 = defaults.Beta2
	}
	if config.Epsilon == 0 {
		config.Epsilon = defaults.Epsilon
	}
	return &Adam{config: config, lr: config.LearningRate}
}

func (o *Adam) Name() string { return "adam" }

func (o *Adam) SetLearningRate(lr float64) { o.lr = lr }

func (o *Adam) LearningRate() float64 { return o.lr }

// Step applies one parameter update in place.
func (o *Adam) Step(params, grads []float32) error {
	if len(params) != len(grads) {
		return fmt.Errorf("parameter/gradient length mismatch: %d vs %d", len(params), len(grads))
	}
	if o.m == nil {
		o.m = make([]float32, len(params))
		o.v = make([]float32, len(params))
	}
	if len(o.m) != len(params) {
		return fmt.Errorf("moment buffer length mismatch: %d vs %d", len(o.m), len(params))
	}

	o.stepCount++
	beta1 := o.config.Beta1
	beta2 := o.config.Beta2
	correction1 := 1 - math.Pow(beta1, float64(o.stepCount))
	correction2 := 1 - math.Pow(beta2, float64(o.stepCount))
	decay := float32(o.config.WeightDecay)

	for i := range params {
		g := grads[i]
		if decay != 0 {
			g += decay * params[i]
		}

		o.m[i] = float32(beta1)*o.m[i] + float32(1-beta1)*g
		o.v[i] = float32(beta2)*o.v[i] + float32(1-beta2)*g*g

		mHat := float64(o.m[i]) / correction1
		vHat := float64(o.v[i]) / correction2

		params[i] -= float32(o.lr * mHat / (math.Sqrt(vHat) + o.config.Epsilon))
	}

	return nil
}

func (o *Adam) State() checkpoints.OptimizerState {
	state := checkpoints.OptimizerState{
		Kind:         o.Name(),
		StepCount:    o.stepCount,
		LearningRate: o.lr,
		Buffers:      map[string][]float32{},
	}
	if o.m != nil {
		m := make([]float32, len(o.m))
		copy(m, o.m)
		v := make([]float32, len(o.v))
		copy(v, o.v)
		state.Buffers["m"] = m
		state.Buffers["v"] = v
	}
	return state
}

func (o *Adam) LoadState(state checkpoints.OptimizerState) error {
	if state.Kind != o.Name() {
		return fmt.Errorf("optimizer kind mismatch: checkpoint has %q, expected %q", state.Kind, o.Name())
	}
	o.stepCount = state.StepCount
	o.lr = state.LearningRate
	m, okM := state.Buffers["m"]
	v, okV := state.Buffers["v"]
	if okM != okV || (okM && len(m) != len(v)) {
		return fmt.Errorf("inconsistent Adam moment buffers in checkpoint")
	}
	if okM {
		o.m = make([]float32, len(m))
		copy(o.m, m)
		o.v = make([]float32, len(v))
		copy(o.v, v)
	} else {
		o.m, o.v = nil, nil
	}
	return nil
}
