package checkpoints

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// checkpointMagic identifies a checkpoint file. A file that exists but does
// not start with this header is reported as corrupt, not absent.
var checkpointMagic = []byte("TACKPT01")

// Checkpoint is a durable snapshot of training state: everything needed to
// resume a run at the next epoch boundary without repeating or skipping work.
type Checkpoint struct {
	// Epoch is the index of the last fully completed epoch (1-based).
	// Checkpoints are only ever written at epoch boundaries.
	Epoch int

	// Weights holds the model parameters as a flat vector.
	Weights []float32

	// Optimizer captures the optimizer's internal state (momentum buffers,
	// moment estimates, step count) so resumed updates match uninterrupted ones.
	Optimizer OptimizerState

	// BestMetric is the best evaluation metric observed so far.
	BestMetric float64

	// RNGState is the marshaled state of the run's random source, so shuffle
	// order and augmentation sampling continue exactly where they left off.
	RNGState []byte

	// Tag is the human-readable experiment tag the run was started with.
	Tag string

	// ConfigDigest fingerprints the configuration that produced this
	// checkpoint. A resume under a different configuration is rejected.
	ConfigDigest string

	SavedAt time.Time
}

// OptimizerState captures optimizer-internal state for checkpointing.
type OptimizerState struct {
	Kind         string
	StepCount    uint64
	LearningRate float64
	Buffers      map[string][]float32
}

// CorruptCheckpointError reports a checkpoint file that exists but cannot be
// read back. It is never returned for a missing file.
type CorruptCheckpointError struct {
	Path   string
	Reason string
}

func (e *CorruptCheckpointError) Error() string {
	return fmt.Sprintf("corrupt checkpoint %s: %s", e.Path, e.Reason)
}

// Store reads and writes the single checkpoint slot at a fixed path.
// There is never more than one writer; atomicity against crashes comes from
// writing a temporary file and renaming it over the canonical path.
type Store struct {
	path string
}

// NewStore creates a checkpoint store for the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the canonical checkpoint path.
func (s *Store) Path() string {
	return s.path
}

// Save serializes the checkpoint and atomically replaces any prior checkpoint
// at the store's path. A crash at any point leaves either the previous valid
// file or the complete new one, never a partial write.
func (s *Store) Save(ckpt *Checkpoint) error {
	if ckpt == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}
	if ckpt.SavedAt.IsZero() {
		ckpt.SavedAt = time.Now()
	}

	var buf bytes.Buffer
	buf.Write(checkpointMagic)
	if err := gob.NewEncoder(&buf).Encode(ckpt); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %v", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %v", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write checkpoint: %v", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync checkpoint: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close checkpoint file: %v", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace checkpoint: %v", err)
	}

	return nil
}

// Load reads the checkpoint at the store's path. A missing file is not an
// error: it returns (nil, false, nil) so training starts fresh from epoch 0.
// A file that exists but cannot be parsed returns a *CorruptCheckpointError;
// callers must surface it rather than silently starting over.
func (s *Store) Load() (*Checkpoint, bool, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer f.Close()

	magic := make([]byte, len(checkpointMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, false, &CorruptCheckpointError{Path: s.path, Reason: "file too short for header"}
	}
	if !bytes.Equal(magic, checkpointMagic) {
		return nil, false, &CorruptCheckpointError{Path: s.path, Reason: "bad magic header"}
	}

	var ckpt Checkpoint
	if err := gob.NewDecoder(f).Decode(&ckpt); err != nil {
		return nil, false, &CorruptCheckpointError{Path: s.path, Reason: fmt.Sprintf("decode failed: %v", err)}
	}

	return &ckpt, true, nil
}
