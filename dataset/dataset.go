// Package dataset provides the fixed datasets the trainer consumes: an
// in-memory slice dataset, a deterministic synthetic generator, and a
// CIFAR-10 binary-batch loader.
package dataset

import (
	"fmt"
	"math/rand/v2"
)

// Slice is an in-memory labeled dataset. Images are flat float32 vectors
// with values in [0, 1].
type Slice struct {
	Images     [][]float32
	Labels     []int
	ClassNames []string
}

// Len returns the number of samples.
func (s *Slice) Len() int {
	return len(s.Images)
}

// Get returns one sample.
func (s *Slice) Get(idx int) ([]float32, int, error) {
	if idx < 0 || idx >= len(s.Images) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", idx, len(s.Images))
	}
	return s.Images[idx], s.Labels[idx], nil
}

// Summary returns a one-line description of the dataset.
func (s *Slice) Summary() string {
	return fmt.Sprintf("%d samples, %d classes", len(s.Images), len(s.ClassNames))
}

// Split partitions the dataset into train and eval slices, reserving the
// trailing holdout fraction for evaluation. The split is deterministic: the
// same dataset and fraction always produce the same partition, so resumed
// runs evaluate on the same samples.
func (s *Slice) Split(holdout float64) (*Slice, *Slice, error) {
	if holdout <= 0 || holdout >= 1 {
		return nil, nil, fmt.Errorf("holdout fraction must be in (0, 1), got %v", holdout)
	}
	n := len(s.Images)
	cut := n - int(float64(n)*holdout)
	if cut <= 0 || cut >= n {
		return nil, nil, fmt.Errorf("holdout %v leaves an empty split for %d samples", holdout, n)
	}

	train := &Slice{Images: s.Images[:cut], Labels: s.Labels[:cut], ClassNames: s.ClassNames}
	eval := &Slice{Images: s.Images[cut:], Labels: s.Labels[cut:], ClassNames: s.ClassNames}
	return train, eval, nil
}

// Synthetic generates a deterministic classification dataset: each class is a
// noisy template vector. Useful for tests and for exercising the pipeline
// without data on disk.
func Synthetic(samples, features, classes int, seed uint64) (*Slice, error) {
	if samples < classes {
		return nil, fmt.Errorf("need at least one sample per class: samples=%d classes=%d", samples, classes)
	}
	if features <= 0 || classes <= 1 {
		return nil, fmt.Errorf("invalid shape: features=%d classes=%d", features, classes)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	templates := make([][]float32, classes)
	for c := range templates {
		tpl := make([]float32, features)
		for i := range tpl {
			tpl[i] = float32(rng.Float64())
		}
		templates[c] = tpl
	}

	names := make([]string, classes)
	for c := range names {
		names[c] = fmt.Sprintf("class-%d", c)
	}

	ds := &Slice{
		Images:     make([][]float32, samples),
		Labels:     make([]int, samples),
		ClassNames: names,
	}
	for n := 0; n < samples; n++ {
		label := n % classes
		img := make([]float32, features)
		for i, v := range templates[label] {
			img[i] = clampUnit(v + float32(rng.NormFloat64())*0.15)
		}
		ds.Images[n] = img
		ds.Labels[n] = label
	}

	return ds, nil
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
