// Package augment implements data-augmentation policies applied to training
// inputs before they reach the model. Images are flat float32 vectors with
// values in [0, 1].
package augment

import (
	"fmt"
	"math/rand/v2"
)

// Policy transforms a single training input. Implementations draw all
// randomness from the supplied source so augmentation is reproducible across
// checkpoint resumes.
type Policy interface {
	Name() string
	Apply(rng *rand.Rand, image []float32) []float32
}

// ForName returns the policy registered under the given name.
func ForName(name string) (Policy, error) {
	switch name {
	case "identity":
		return Identity{}, nil
	case "trivial":
		return NewTrivialAugment(false), nil
	case "trivial-wide":
		return NewTrivialAugment(true), nil
	default:
		return nil, fmt.Errorf("unknown augmentation policy %q", name)
	}
}

// Identity passes inputs through unchanged. Used for baselines.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Apply(rng *rand.Rand, image []float32) []float32 {
	return image
}

// op is one augmentation primitive. magnitude is in [0, 1] after scaling.
type op struct {
	name  string
	apply func(rng *rand.Rand, image []float32, magnitude float64)
}

// TrivialAugment applies exactly one primitive per sample, chosen uniformly,
// with a magnitude drawn uniformly from the allowed range. That is the whole
// policy; there is no search and no learned schedule.
type TrivialAugment struct {
	ops      []op
	maxScale float64
}

// NewTrivialAugment builds the policy. The wide variant doubles the magnitude
// range.
func NewTrivialAugment(wide bool) *TrivialAugment {
	scale := 1.0
	if wide {
		scale = 2.0
	}
	return &TrivialAugment{
		ops: []op{
			{"identity", func(rng *rand.Rand, img []float32, m float64) {}},
			{"invert", opInvert},
			{"solarize", opSolarize},
			{"brightness", opBrightness},
			{"contrast", opContrast},
			{"cutout", opCutout},
		},
		maxScale: scale,
	}
}

func (p *TrivialAugment) Name() string {
	if p.maxScale > 1 {
		return "trivial-wide"
	}
	return "trivial"
}

// Apply returns an augmented copy; the input is never modified in place
// because the dataset owns it across epochs.
func (p *TrivialAugment) Apply(rng *rand.Rand, image []float32) []float32 {
	out := make([]float32, len(image))
	copy(out, image)

	chosen := p.ops[rng.IntN(len(p.ops))]
	magnitude := rng.Float64() * p.maxScale
	chosen.apply(rng, out, magnitude)

	clamp(out)
	return out
}

func opInvert(rng *rand.Rand, img []float32, m float64) {
	for i := range img {
		img[i] = 1 - img[i]
	}
}

// opSolarize inverts pixels above a magnitude-dependent threshold.
func opSolarize(rng *rand.Rand, img []float32, m float64) {
	threshold := float32(1 - m)
	for i := range img {
		if img[i] >= threshold {
			img[i] = 1 - img[i]
		}
	}
}

func opBrightness(rng *rand.Rand, img []float32, m float64) {
	// Shift up or down with equal probability.
	delta := float32(m * 0.5)
	if rng.IntN(2) == 0 {
		delta = -delta
	}
	for i := range img {
		img[i] += delta
	}
}

// opContrast scales pixels around the image mean.
func opContrast(rng *rand.Rand, img []float32, m float64) {
	var sum float64
	for _, v := range img {
		sum += float64(v)
	}
	mean := float32(sum / float64(len(img)))

	factor := float32(1 + m)
	if rng.IntN(2) == 0 {
		factor = float32(1 / (1 + m))
	}
	for i := range img {
		img[i] = mean + (img[i]-mean)*factor
	}
}

// opCutout zeroes a contiguous span proportional to the magnitude.
func opCutout(rng *rand.Rand, img []float32, m float64) {
	span := int(m * 0.25 * float64(len(img)))
	if span <= 0 {
		return
	}
	if span > len(img) {
		span = len(img)
	}
	start := rng.IntN(len(img) - span + 1)
	for i := start; i < start+span; i++ {
		img[i] = 0
	}
}

func clamp(img []float32) {
	for i, v := range img {
		if v < 0 {
			img[i] = 0
		} else if v > 1 {
			img[i] = 1
		}
	}
}
