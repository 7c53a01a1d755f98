// Package model provides a small feedforward image classifier with flat
// parameter access, so the training loop can capture and restore exact
// weights through checkpoints.
package model

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Classifier is a two-layer network: dense -> ReLU -> dense -> softmax
// cross-entropy. All parameters live in a single flat vector laid out as
// [W1, b1, W2, b2].
type Classifier struct {
	features int
	hidden   int
	classes  int
	params   []float32
}

// NewClassifier creates a classifier with He-initialized weights drawn from
// the given source.
func NewClassifier(features, hidden, classes int, rng *rand.Rand) (*Classifier, error) {
	if features <= 0 || hidden <= 0 || classes <= 1 {
		return nil, fmt.Errorf("invalid classifier shape: features=%d hidden=%d classes=%d", features, hidden, classes)
	}

	c := &Classifier{
		features: features,
		hidden:   hidden,
		classes:  classes,
		params:   make([]float32, hidden*features+hidden+classes*hidden+classes),
	}

	w1 := c.params[:hidden*features]
	scale1 := float32(math.Sqrt(2.0 / float64(features)))
	for i := range w1 {
		w1[i] = float32(rng.NormFloat64()) * scale1
	}

	w2Start := hidden*features + hidden
	w2 := c.params[w2Start : w2Start+classes*hidden]
	scale2 := float32(math.Sqrt(2.0 / float64(hidden)))
	for i := range w2 {
		w2[i] = float32(rng.NormFloat64()) * scale2
	}

	return c, nil
}

// Features returns the expected input length.
func (c *Classifier) Features() int { return c.features }

// Classes returns the number of output classes.
func (c *Classifier) Classes() int { return c.classes }

// Parameters returns the live flat parameter vector. Callers that need a
// stable snapshot must copy it.
func (c *Classifier) Parameters() []float32 {
	return c.params
}

// SetParameters replaces the parameter vector, e.g. when resuming from a
// checkpoint.
func (c *Classifier) SetParameters(p []float32) error {
	if len(p) != len(c.params) {
		return fmt.Errorf("parameter count mismatch: expected %d, got %d", len(c.params), len(p))
	}
	copy(c.params, p)
	return nil
}

// slices splits the flat parameter vector into its four blocks.
func (c *Classifier) slices(params []float32) (w1, b1, w2, b2 []float32) {
	i := 0
	w1 = params[i : i+c.hidden*c.features]
	i += c.hidden * c.features
	b1 = params[i : i+c.hidden]
	i += c.hidden
	w2 = params[i : i+c.classes*c.hidden]
	i += c.classes * c.hidden
	b2 = params[i : i+c.classes]
	return
}

// forward computes hidden activations and class probabilities for one input.
// The returned loss is the cross-entropy against the label.
func (c *Classifier) forward(input []float32, label int, hidden, probs []float32) (float64, int) {
	w1, b1, w2, b2 := c.slices(c.params)

	for j := 0; j < c.hidden; j++ {
		sum := b1[j]
		row := w1[j*c.features : (j+1)*c.features]
		for i, x := range input {
			sum += row[i] * x
		}
		if sum < 0 {
			sum = 0
		}
		hidden[j] = sum
	}

	// The prediction must come from the raw logits: softmax below
	// overwrites probs in place.
	maxLogit := float32(math.Inf(-1))
	predicted := 0
	for k := 0; k < c.classes; k++ {
		sum := b2[k]
		row := w2[k*c.hidden : (k+1)*c.hidden]
		for j, h := range hidden {
			sum += row[j] * h
		}
		probs[k] = sum
		if sum > maxLogit {
			maxLogit = sum
			predicted = k
		}
	}

	// Stable softmax.
	var total float64
	for k := 0; k < c.classes; k++ {
		e := math.Exp(float64(probs[k] - maxLogit))
		probs[k] = float32(e)
		total += e
	}
	for k := 0; k < c.classes; k++ {
		probs[k] = float32(float64(probs[k]) / total)
	}

	loss := -math.Log(math.Max(float64(probs[label]), 1e-12))
	return loss, predicted
}

// BatchGradients runs forward and backward over a batch and returns the mean
// gradient, the mean loss, and the number of correct predictions.
func (c *Classifier) BatchGradients(inputs [][]float32, labels []int) ([]float32, float64, int, error) {
	if err := c.checkBatch(inputs, labels); err != nil {
		return nil, 0, 0, err
	}

	grads := make([]float32, len(c.params))
	gw1, gb1, gw2, gb2 := c.slices(grads)
	_, _, w2, _ := c.slices(c.params)

	hidden := make([]float32, c.hidden)
	probs := make([]float32, c.classes)
	dHidden := make([]float32, c.hidden)

	var totalLoss float64
	correct := 0

	for n, input := range inputs {
		label := labels[n]
		loss, predicted := c.forward(input, label, hidden, probs)
		totalLoss += loss
		if predicted == label {
			correct++
		}

		// dLogits = probs - onehot(label)
		for j := range dHidden {
			dHidden[j] = 0
		}
		for k := 0; k < c.classes; k++ {
			d := probs[k]
			if k == label {
				d -= 1
			}
			gb2[k] += d
			gRow := gw2[k*c.hidden : (k+1)*c.hidden]
			wRow := w2[k*c.hidden : (k+1)*c.hidden]
			for j, h := range hidden {
				gRow[j] += d * h
				dHidden[j] += d * wRow[j]
			}
		}

		// ReLU gate: hidden[j] == 0 means the unit was inactive.
		for j, h := range hidden {
			if h <= 0 {
				continue
			}
			d := dHidden[j]
			gb1[j] += d
			gRow := gw1[j*c.features : (j+1)*c.features]
			for i, x := range input {
				gRow[i] += d * x
			}
		}
	}

	inv := float32(1.0 / float64(len(inputs)))
	for i := range grads {
		grads[i] *= inv
	}

	meanLoss := totalLoss / float64(len(inputs))
	if math.IsNaN(meanLoss) || math.IsInf(meanLoss, 0) {
		return nil, meanLoss, correct, fmt.Errorf("non-finite loss %v", meanLoss)
	}

	return grads, meanLoss, correct, nil
}

// BatchEvaluate runs forward-only over a batch and returns mean loss and the
// number of correct predictions.
func (c *Classifier) BatchEvaluate(inputs [][]float32, labels []int) (float64, int, error) {
	if err := c.checkBatch(inputs, labels); err != nil {
		return 0, 0, err
	}

	hidden := make([]float32, c.hidden)
	probs := make([]float32, c.classes)

	var totalLoss float64
	correct := 0
	for n, input := range inputs {
		loss, predicted := c.forward(input, labels[n], hidden, probs)
		totalLoss += loss
		if predicted == labels[n] {
			correct++
		}
	}

	meanLoss := totalLoss / float64(len(inputs))
	if math.IsNaN(meanLoss) || math.IsInf(meanLoss, 0) {
		return meanLoss, correct, fmt.Errorf("non-finite loss %v", meanLoss)
	}
	return meanLoss, correct, nil
}

func (c *Classifier) checkBatch(inputs [][]float32, labels []int) error {
	if len(inputs) == 0 {
		return fmt.Errorf("empty batch")
	}
	if len(inputs) != len(labels) {
		return fmt.Errorf("batch size mismatch: %d inputs, %d labels", len(inputs), len(labels))
	}
	for n, input := range inputs {
		if len(input) != c.features {
			return fmt.Errorf("input %d has %d features, expected %d", n, len(input), c.features)
		}
		if labels[n] < 0 || labels[n] >= c.classes {
			return fmt.Errorf("label %d out of range [0, %d)", labels[n], c.classes)
		}
	}
	return nil
}
