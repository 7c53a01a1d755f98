// Package stats computes point estimates and confidence intervals over the
// final metrics of repeated training runs.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// InsufficientSamplesError reports an aggregation attempt with fewer than two
// samples, for which the sample variance is undefined.
type InsufficientSamplesError struct {
	N int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("need at least 2 samples to compute a confidence interval, got %d", e.N)
}

// Summary holds the aggregate statistics for one set of repeated-run metrics.
type Summary struct {
	N        int
	Mean     float64
	StdDev   float64 // sample standard deviation (n-1 denominator)
	StdErr   float64
	Interval float64 // 95% CI half-width: mean ± Interval
}

func (s Summary) String() string {
	return fmt.Sprintf("%.4f ± %.4f (n=%d)", s.Mean, s.Interval, s.N)
}

// Aggregate computes the sample mean and a 95% confidence interval from the
// given metric values using the Student's t distribution with n-1 degrees of
// freedom. It is a pure function of its input.
func Aggregate(values []float64) (Summary, error) {
	n := len(values)
	if n < 2 {
		return Summary{}, &InsufficientSamplesError{N: n}
	}

	mean, std := stat.MeanStdDev(values, nil)
	se := std / math.Sqrt(float64(n))

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	tCrit := tDist.Quantile(0.975)

	return Summary{
		N:        n,
		Mean:     mean,
		StdDev:   std,
		StdErr:   se,
		Interval: tCrit * se,
	}, nil
}
