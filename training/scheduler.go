package training

import (
	"math"
)

// LRScheduler maps an epoch to a learning rate. Schedulers are pure
// functions of the epoch so resumed runs pick up the right rate without any
// replayed state. Epochs are 1-based.
type LRScheduler interface {
	LR(epoch int, baseLR float64) float64
	Name() string
}

// ConstantLR keeps the base learning rate for the whole run.
type ConstantLR struct{}

func (ConstantLR) LR(epoch int, baseLR float64) float64 { return baseLR }

func (ConstantLR) Name() string { return "constant" }

// StepLR reduces the learning rate by a factor every StepSize epochs.
type StepLR struct {
	StepSize int
	Gamma    float64
}

// NewStepLR creates a step scheduler with sane defaults for out-of-range
// arguments.
func NewStepLR(stepSize int, gamma float64) *StepLR {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLR{StepSize: stepSize, Gamma: gamma}
}

func (s *StepLR) LR(epoch int, baseLR float64) float64 {
	times := (epoch - 1) / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLR) Name() string { return "step" }

// CosineLR anneals the learning rate from baseLR to MinLR over TotalEpochs
// following a half cosine.
type CosineLR struct {
	TotalEpochs int
	MinLR       float64
}

// NewCosineLR creates a cosine annealing scheduler.
func NewCosineLR(totalEpochs int, minLR float64) *CosineLR {
	if totalEpochs <= 0 {
		totalEpochs = 100
	}
	if minLR < 0 {
		minLR = 0
	}
	return &CosineLR{TotalEpochs: totalEpochs, MinLR: minLR}
}

func (s *CosineLR) LR(epoch int, baseLR float64) float64 {
	if epoch >= s.TotalEpochs {
		return s.MinLR
	}
	progress := float64(epoch-1) / float64(s.TotalEpochs)
	return s.MinLR + (baseLR-s.MinLR)*(1+math.Cos(math.Pi*progress))/2
}

func (s *CosineLR) Name() string { return "cosine" }
