package stats

import (
	"errors"
	"math"
	"testing"
)

func TestAggregateKnownValues(t *testing.T) {
	// Five repeated-run accuracies. By hand: mean 0.90, sample std 0.0158114,
	// se 0.0070711, t(0.975, df=4) = 2.776445, half-width 0.0196326.
	values := []float64{0.90, 0.91, 0.89, 0.92, 0.88}

	summary, err := Aggregate(values)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if summary.N != 5 {
		t.Errorf("N: expected 5, got %d", summary.N)
	}
	if math.Abs(summary.Mean-0.90) > 1e-12 {
		t.Errorf("Mean: expected 0.90, got %v", summary.Mean)
	}
	if math.Abs(summary.StdDev-0.015811388) > 1e-8 {
		t.Errorf("StdDev: expected 0.015811388, got %v", summary.StdDev)
	}
	if math.Abs(summary.Interval-0.0196326) > 1e-4 {
		t.Errorf("Interval: expected ~0.0196326, got %v", summary.Interval)
	}

	// The interval is symmetric around the mean by construction; make the
	// bounds explicit anyway.
	lower := summary.Mean - summary.Interval
	upper := summary.Mean + summary.Interval
	if math.Abs((summary.Mean-lower)-(upper-summary.Mean)) > 1e-12 {
		t.Errorf("interval not symmetric: [%v, %v] around %v", lower, upper, summary.Mean)
	}
}

func TestAggregateTwoSamples(t *testing.T) {
	// Smallest valid sample. t(0.975, df=1) = 12.7062.
	summary, err := Aggregate([]float64{0.5, 0.7})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if math.Abs(summary.Mean-0.6) > 1e-12 {
		t.Errorf("Mean: expected 0.6, got %v", summary.Mean)
	}
	if math.Abs(summary.Interval-12.7062*summary.StdErr) > 1e-3 {
		t.Errorf("Interval: expected ~%v, got %v", 12.7062*summary.StdErr, summary.Interval)
	}
}

func TestAggregateInsufficientSamples(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"empty", nil},
		{"single value", []float64{0.91}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Aggregate(tt.values)
			var insufficient *InsufficientSamplesError
			if !errors.As(err, &insufficient) {
				t.Fatalf("expected InsufficientSamplesError, got: %v", err)
			}
			if insufficient.N != len(tt.values) {
				t.Errorf("error N: expected %d, got %d", len(tt.values), insufficient.N)
			}
		})
	}
}

func TestAggregateDeterministic(t *testing.T) {
	values := []float64{0.9612, 0.9655, 0.9641, 0.9598, 0.9630, 0.9644}

	first, err := Aggregate(values)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	second, err := Aggregate(values)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if first != second {
		t.Errorf("same input produced different summaries: %+v vs %+v", first, second)
	}
}
