// Package experiment runs repeated training runs sequentially and collects
// per-run outcomes for unattended overnight batches.
package experiment

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Run identifies one training run inside a batch.
type Run struct {
	Index    int // 1-based position in the batch
	ID       string
	Tag      string
	Seed     uint64
	SavePath string
}

// Result is the outcome of one run. Err is nil only when Completed is true.
type Result struct {
	Run         Run
	Completed   bool
	FinalMetric float64
	Err         error
	Elapsed     time.Duration
}

// Report summarizes a finished batch.
type Report struct {
	Results   []Result
	Completed int
	Failed    int
	Elapsed   time.Duration
}

// FinalMetrics returns the final metric of every completed run, in order.
func (r Report) FinalMetrics() []float64 {
	var values []float64
	for _, res := range r.Results {
		if res.Completed {
			values = append(values, res.FinalMetric)
		}
	}
	return values
}

// Batch describes a sequence of seed-varied repetitions of one configuration.
type Batch struct {
	Tag      string
	Runs     int
	BaseSeed uint64
	// OutDir receives the per-run checkpoint files. Empty disables
	// checkpointing for every run in the batch.
	OutDir string
}

// TrainFunc executes one training run and returns its final metric.
// The experiment runner treats it as opaque; failures are contained to the
// run that raised them.
type TrainFunc func(run Run) (float64, error)

// Runner executes batches strictly sequentially: runs share one compute
// device, and parallel contention would corrupt the measurements being
// collected.
type Runner struct {
	train TrainFunc
	out   io.Writer
}

// NewRunner creates a batch runner that reports progress to out.
func NewRunner(train TrainFunc, out io.Writer) (*Runner, error) {
	if train == nil {
		return nil, fmt.Errorf("train function is required")
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{train: train, out: out}, nil
}

// Execute runs every repetition in order. A failed run is recorded and the
// next one still starts: batches complete best-effort, never all-or-nothing.
func (r *Runner) Execute(batch Batch) (Report, error) {
	if batch.Runs <= 0 {
		return Report{}, fmt.Errorf("batch must have at least one run, got %d", batch.Runs)
	}
	if batch.Tag == "" {
		return Report{}, fmt.Errorf("batch tag is required")
	}

	report := Report{Results: make([]Result, 0, batch.Runs)}
	batchStart := time.Now()

	fmt.Fprintf(r.out, "Starting batch %q: %d runs\n", batch.Tag, batch.Runs)

	for i := 1; i <= batch.Runs; i++ {
		run := Run{
			Index: i,
			ID:    uuid.NewString(),
			Tag:   fmt.Sprintf("%s_%d", batch.Tag, i),
			Seed:  batch.BaseSeed + uint64(i),
		}
		if batch.OutDir != "" {
			run.SavePath = filepath.Join(batch.OutDir, run.Tag+".ckpt")
		}

		fmt.Fprintf(r.out, "[%d/%d] Running %s (run %s)\n", i, batch.Runs, run.Tag, run.ID)

		start := time.Now()
		metric, err := r.train(run)
		elapsed := time.Since(start)

		result := Result{Run: run, Elapsed: elapsed}
		if err != nil {
			result.Err = err
			report.Failed++
			fmt.Fprintf(r.out, "[%d/%d] FAILED after %v: %v\n", i, batch.Runs, elapsed.Round(time.Second), err)
		} else {
			result.Completed = true
			result.FinalMetric = metric
			report.Completed++
			fmt.Fprintf(r.out, "[%d/%d] completed in %v: final metric %.4f\n", i, batch.Runs, elapsed.Round(time.Second), metric)
		}
		report.Results = append(report.Results, result)
	}

	report.Elapsed = time.Since(batchStart)
	r.printSummary(batch, report)
	return report, nil
}

func (r *Runner) printSummary(batch Batch, report Report) {
	fmt.Fprintf(r.out, "\nBatch %q summary: %d/%d completed in %v\n",
		batch.Tag, report.Completed, len(report.Results), report.Elapsed.Round(time.Second))
	for _, res := range report.Results {
		if res.Completed {
			fmt.Fprintf(r.out, "  ok     %s  metric=%.4f  (%v)\n", res.Run.Tag, res.FinalMetric, res.Elapsed.Round(time.Second))
		} else {
			fmt.Fprintf(r.out, "  FAILED %s  %v\n", res.Run.Tag, res.Err)
		}
	}
}
