package training

import (
	"fmt"
	"math/rand/v2"
)

// Dataset is the minimal surface the trainer needs from a data source.
type Dataset interface {
	Len() int
	Get(idx int) (image []float32, label int, err error)
}

// Batch is one batch of inputs and labels.
type Batch struct {
	Inputs [][]float32
	Labels []int
}

// DataLoader provides batching and per-epoch shuffling over a dataset.
// Shuffling draws from the RNG passed to Reset so a resumed run reproduces
// the exact batch order of the interrupted one.
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	indices   []int
	position  int
}

// NewDataLoader creates a DataLoader. batchSize must be positive.
func NewDataLoader(dataset Dataset, batchSize int, shuffle bool) (*DataLoader, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if dataset.Len() == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}

	indices := make([]int, dataset.Len())
	for i := range indices {
		indices[i] = i
	}
	return &DataLoader{
		dataset:   dataset,
		batchSize: batchSize,
		shuffle:   shuffle,
		indices:   indices,
	}, nil
}

// Len returns the number of batches per epoch. The final batch may be short.
func (dl *DataLoader) Len() int {
	return (dl.dataset.Len() + dl.batchSize - 1) / dl.batchSize
}

// Reset rewinds the loader for a new epoch, reshuffling if enabled.
func (dl *DataLoader) Reset(rng *rand.Rand) {
	dl.position = 0
	if dl.shuffle {
		rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// Next returns the next batch, or nil once the epoch is exhausted.
func (dl *DataLoader) Next() (*Batch, error) {
	if dl.position >= len(dl.indices) {
		return nil, nil
	}

	end := dl.position + dl.batchSize
	if end > len(dl.indices) {
		end = len(dl.indices)
	}

	batch := &Batch{
		Inputs: make([][]float32, 0, end-dl.position),
		Labels: make([]int, 0, end-dl.position),
	}
	for _, idx := range dl.indices[dl.position:end] {
		img, label, err := dl.dataset.Get(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}
		batch.Inputs = append(batch.Inputs, img)
		batch.Labels = append(batch.Labels, label)
	}
	dl.position = end

	return batch, nil
}
