package training

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/namesLeon/trivialaugment/augment"
	"github.com/namesLeon/trivialaugment/checkpoints"
)

// Model is the surface the trainer needs from the network being trained.
// The concrete implementation lives behind this interface; the trainer only
// moves parameters, gradients, and metrics across it.
type Model interface {
	Parameters() []float32
	SetParameters(params []float32) error
	BatchGradients(inputs [][]float32, labels []int) (grads []float32, loss float64, correct int, err error)
	BatchEvaluate(inputs [][]float32, labels []int) (loss float64, correct int, err error)
}

// Recorder receives one metric record per evaluation event.
type Recorder interface {
	Log(epoch int, name string, value float64) error
}

// discardRecorder drops every record; used when no recorder is supplied.
type discardRecorder struct{}

func (discardRecorder) Log(epoch int, name string, value float64) error { return nil }

// State is the trainer's position in its epoch-driven state machine.
type State int

const (
	StateInit State = iota
	StateRunning
	StateCheckpointing
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateCheckpointing:
		return "CHECKPOINTING"
	case StateFinished:
		return "FINISHED"
	case StateAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// TrainingStepError reports a fatal failure during a training or evaluation
// step. It is never retried: the run aborts and the last checkpoint stays
// valid for a future resume.
type TrainingStepError struct {
	Epoch int
	Batch int
	Err   error
}

func (e *TrainingStepError) Error() string {
	return fmt.Sprintf("training step failed at epoch %d, batch %d: %v", e.Epoch, e.Batch, e.Err)
}

func (e *TrainingStepError) Unwrap() error { return e.Err }

// Options configures a training run.
type Options struct {
	Epochs    int
	BatchSize int
	BaseLR    float64

	// CheckpointInterval is the save cadence in epochs. Zero means the
	// default of 20. The final epoch is always saved regardless of cadence.
	CheckpointInterval int

	Seed         uint64
	Tag          string
	ConfigDigest string

	// Verbose enables per-epoch progress output.
	Verbose bool
}

// DefaultCheckpointInterval is the save cadence when none is configured.
const DefaultCheckpointInterval = 20

// Trainer drives the epoch loop: augment, train, evaluate, checkpoint.
// It is a single-threaded sequential state machine; the only shared state it
// touches is the checkpoint file, through the Store.
type Trainer struct {
	model  Model
	opt    Optimizer
	policy augment.Policy
	sched  LRScheduler
	opts   Options

	// store is nil when persistence is disabled; such a run cannot resume.
	store *checkpoints.Store
	rec   Recorder

	src *rand.PCG
	rng *rand.Rand

	state State
	epoch int // last fully completed epoch, 0 before the first
	best  float64
}

// NewTrainer assembles a trainer. store may be nil to disable checkpointing;
// rec may be nil to discard metrics.
func NewTrainer(model Model, opt Optimizer, policy augment.Policy, sched LRScheduler, opts Options, store *checkpoints.Store, rec Recorder) (*Trainer, error) {
	if model == nil || opt == nil || policy == nil || sched == nil {
		return nil, fmt.Errorf("model, optimizer, policy, and scheduler are all required")
	}
	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", opts.Epochs)
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.CheckpointInterval == 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}
	if rec == nil {
		rec = discardRecorder{}
	}

	src := rand.NewPCG(opts.Seed, opts.Seed^0xda3e39cb94b95bdb)
	return &Trainer{
		model:  model,
		opt:    opt,
		policy: policy,
		sched:  sched,
		opts:   opts,
		store:  store,
		rec:    rec,
		src:    src,
		rng:    rand.New(src),
		state:  StateInit,
	}, nil
}

// State returns the trainer's current state.
func (t *Trainer) State() State { return t.state }

// Epoch returns the last fully completed epoch (0 before the first).
func (t *Trainer) Epoch() int { return t.epoch }

// BestMetric returns the best evaluation accuracy observed so far.
func (t *Trainer) BestMetric() float64 { return t.best }

// Run executes the training loop over the train split, evaluating each epoch
// on the eval split. If a checkpoint exists it resumes at the epoch after the
// last saved one; otherwise it starts fresh at epoch 1. Returns nil only
// after all configured epochs completed and the final checkpoint (if enabled)
// was written.
func (t *Trainer) Run(train, eval Dataset) error {
	start, err := t.init()
	if err != nil {
		t.state = StateAborted
		return err
	}
	if start > t.opts.Epochs {
		// Checkpoint already covers the whole run; nothing left to do.
		t.state = StateFinished
		return nil
	}

	trainLoader, err := NewDataLoader(train, t.opts.BatchSize, true)
	if err != nil {
		t.state = StateAborted
		return fmt.Errorf("failed to create training loader: %v", err)
	}
	evalLoader, err := NewDataLoader(eval, t.opts.BatchSize, false)
	if err != nil {
		t.state = StateAborted
		return fmt.Errorf("failed to create evaluation loader: %v", err)
	}

	for epoch := start; epoch <= t.opts.Epochs; epoch++ {
		t.state = StateRunning
		epochStart := time.Now()

		lr := t.sched.LR(epoch, t.opts.BaseLR)
		t.opt.SetLearningRate(lr)

		trainLoss, trainAcc, err := t.trainEpoch(trainLoader, epoch)
		if err != nil {
			t.state = StateAborted
			return err
		}

		evalLoss, evalAcc, err := t.evaluateEpoch(evalLoader, epoch)
		if err != nil {
			t.state = StateAborted
			return err
		}

		if err := t.record(epoch, trainLoss, trainAcc, evalLoss, evalAcc); err != nil {
			t.state = StateAborted
			return err
		}
		if evalAcc > t.best {
			t.best = evalAcc
		}
		t.epoch = epoch

		if t.opts.Verbose {
			fmt.Printf("Epoch %d/%d: Train Loss=%.4f, Train Acc=%.2f%%, Eval Loss=%.4f, Eval Acc=%.2f%%, LR=%.5f, Time=%v\n",
				epoch, t.opts.Epochs, trainLoss, trainAcc*100, evalLoss, evalAcc*100, lr, time.Since(epochStart).Round(time.Millisecond))
		}

		final := epoch == t.opts.Epochs
		if t.store != nil && (epoch%t.opts.CheckpointInterval == 0 || final) {
			t.state = StateCheckpointing
			if err := t.saveCheckpoint(); err != nil {
				t.state = StateAborted
				return err
			}
		}
	}

	t.state = StateFinished
	return nil
}

// init performs the resume-vs-fresh branch. It returns the first epoch to
// run: 1 for a fresh start, k+1 when resuming a checkpoint saved at epoch k.
func (t *Trainer) init() (int, error) {
	t.state = StateInit
	if t.store == nil {
		return 1, nil
	}

	ckpt, ok, err := t.store.Load()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}

	if t.opts.ConfigDigest != "" && ckpt.ConfigDigest != "" && ckpt.ConfigDigest != t.opts.ConfigDigest {
		return 0, fmt.Errorf("checkpoint %s was produced by a different configuration; delete it or match the original config", t.store.Path())
	}

	if err := t.model.SetParameters(ckpt.Weights); err != nil {
		return 0, fmt.Errorf("failed to restore model weights: %v", err)
	}
	if err := t.opt.LoadState(ckpt.Optimizer); err != nil {
		return 0, fmt.Errorf("failed to restore optimizer state: %v", err)
	}
	if len(ckpt.RNGState) > 0 {
		if err := t.src.UnmarshalBinary(ckpt.RNGState); err != nil {
			return 0, fmt.Errorf("failed to restore RNG state: %v", err)
		}
	}
	t.best = ckpt.BestMetric
	t.epoch = ckpt.Epoch

	if t.opts.Verbose {
		fmt.Printf("Resuming from checkpoint %s: continuing at epoch %d\n", t.store.Path(), ckpt.Epoch+1)
	}
	return ckpt.Epoch + 1, nil
}

// trainEpoch runs one full pass over the training split, augmenting each
// batch before the gradient step.
func (t *Trainer) trainEpoch(loader *DataLoader, epoch int) (float64, float64, error) {
	loader.Reset(t.rng)

	var totalLoss float64
	var totalCorrect, totalSamples, batchCount int

	for {
		batch, err := loader.Next()
		if err != nil {
			return 0, 0, &TrainingStepError{Epoch: epoch, Batch: batchCount + 1, Err: err}
		}
		if batch == nil {
			break
		}
		batchCount++

		augmented := make([][]float32, len(batch.Inputs))
		for i, img := range batch.Inputs {
			augmented[i] = t.policy.Apply(t.rng, img)
		}

		grads, loss, correct, err := t.model.BatchGradients(augmented, batch.Labels)
		if err != nil {
			return 0, 0, &TrainingStepError{Epoch: epoch, Batch: batchCount, Err: err}
		}
		if err := t.opt.Step(t.model.Parameters(), grads); err != nil {
			return 0, 0, &TrainingStepError{Epoch: epoch, Batch: batchCount, Err: fmt.Errorf("optimizer step failed: %v", err)}
		}

		n := len(batch.Inputs)
		totalLoss += loss * float64(n)
		totalCorrect += correct
		totalSamples += n
	}

	return totalLoss / float64(totalSamples), float64(totalCorrect) / float64(totalSamples), nil
}

// evaluateEpoch runs forward-only over the held-out split.
func (t *Trainer) evaluateEpoch(loader *DataLoader, epoch int) (float64, float64, error) {
	loader.Reset(t.rng)

	var totalLoss float64
	var totalCorrect, totalSamples, batchCount int

	for {
		batch, err := loader.Next()
		if err != nil {
			return 0, 0, &TrainingStepError{Epoch: epoch, Batch: batchCount + 1, Err: err}
		}
		if batch == nil {
			break
		}
		batchCount++

		loss, correct, err := t.model.BatchEvaluate(batch.Inputs, batch.Labels)
		if err != nil {
			return 0, 0, &TrainingStepError{Epoch: epoch, Batch: batchCount, Err: fmt.Errorf("evaluation failed: %v", err)}
		}

		n := len(batch.Inputs)
		totalLoss += loss * float64(n)
		totalCorrect += correct
		totalSamples += n
	}

	return totalLoss / float64(totalSamples), float64(totalCorrect) / float64(totalSamples), nil
}

func (t *Trainer) record(epoch int, trainLoss, trainAcc, evalLoss, evalAcc float64) error {
	values := []struct {
		name  string
		value float64
	}{
		{"train/loss", trainLoss},
		{"train/accuracy", trainAcc},
		{"eval/loss", evalLoss},
		{"eval/accuracy", evalAcc},
	}
	for _, v := range values {
		if err := t.rec.Log(epoch, v.name, v.value); err != nil {
			return fmt.Errorf("failed to record metric %s: %v", v.name, err)
		}
	}
	return nil
}

// saveCheckpoint snapshots the completed epoch. Called only at epoch
// boundaries, so a resume always starts clean.
func (t *Trainer) saveCheckpoint() error {
	rngState, err := t.src.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to capture RNG state: %v", err)
	}

	params := t.model.Parameters()
	weights := make([]float32, len(params))
	copy(weights, params)

	ckpt := &checkpoints.Checkpoint{
		Epoch:        t.epoch,
		Weights:      weights,
		Optimizer:    t.opt.State(),
		BestMetric:   t.best,
		RNGState:     rngState,
		Tag:          t.opts.Tag,
		ConfigDigest: t.opts.ConfigDigest,
	}
	if err := t.store.Save(ckpt); err != nil {
		return err
	}

	if t.opts.Verbose {
		fmt.Printf("Saved checkpoint at epoch %d to %s\n", t.epoch, t.store.Path())
	}
	return nil
}
