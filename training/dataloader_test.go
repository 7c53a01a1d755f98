package training

import (
	"fmt"
	"math/rand/v2"
	"testing"
)

// sliceDataset is a minimal in-memory Dataset for loader tests.
type sliceDataset struct {
	images [][]float32
	labels []int
}

func (d *sliceDataset) Len() int { return len(d.images) }

func (d *sliceDataset) Get(idx int) ([]float32, int, error) {
	if idx < 0 || idx >= len(d.images) {
		return nil, 0, fmt.Errorf("index %d out of range", idx)
	}
	return d.images[idx], d.labels[idx], nil
}

func makeDataset(n int) *sliceDataset {
	d := &sliceDataset{}
	for i := 0; i < n; i++ {
		d.images = append(d.images, []float32{float32(i)})
		d.labels = append(d.labels, i%2)
	}
	return d
}

func drainEpoch(t *testing.T, dl *DataLoader) []*Batch {
	t.Helper()
	var batches []*Batch
	for {
		batch, err := dl.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if batch == nil {
			return batches
		}
		batches = append(batches, batch)
	}
}

func TestDataLoaderBatching(t *testing.T) {
	dl, err := NewDataLoader(makeDataset(10), 4, false)
	if err != nil {
		t.Fatalf("NewDataLoader failed: %v", err)
	}
	if dl.Len() != 3 {
		t.Errorf("Len: expected 3 batches, got %d", dl.Len())
	}

	dl.Reset(rand.New(rand.NewPCG(1, 1)))
	batches := drainEpoch(t, dl)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0].Inputs) != 4 || len(batches[2].Inputs) != 2 {
		t.Errorf("batch sizes wrong: %d, %d, %d",
			len(batches[0].Inputs), len(batches[1].Inputs), len(batches[2].Inputs))
	}

	// Without shuffle, order is the dataset order.
	if batches[0].Inputs[0][0] != 0 || batches[2].Inputs[1][0] != 9 {
		t.Error("unshuffled loader did not preserve dataset order")
	}
}

func TestDataLoaderEpochCoversEverySampleOnce(t *testing.T) {
	dl, err := NewDataLoader(makeDataset(17), 5, true)
	if err != nil {
		t.Fatalf("NewDataLoader failed: %v", err)
	}

	rng := rand.New(rand.NewPCG(2, 3))
	for epoch := 0; epoch < 3; epoch++ {
		dl.Reset(rng)
		seen := map[float32]int{}
		for _, batch := range drainEpoch(t, dl) {
			for _, img := range batch.Inputs {
				seen[img[0]]++
			}
		}
		if len(seen) != 17 {
			t.Fatalf("epoch %d: expected 17 unique samples, saw %d", epoch, len(seen))
		}
		for v, count := range seen {
			if count != 1 {
				t.Fatalf("epoch %d: sample %v appeared %d times", epoch, v, count)
			}
		}
	}
}

func TestDataLoaderShuffleDeterministicPerSeed(t *testing.T) {
	order := func(seed uint64) []float32 {
		dl, err := NewDataLoader(makeDataset(20), 20, true)
		if err != nil {
			t.Fatalf("NewDataLoader failed: %v", err)
		}
		dl.Reset(rand.New(rand.NewPCG(seed, seed)))
		batch := drainEpoch(t, dl)[0]
		var out []float32
		for _, img := range batch.Inputs {
			out = append(out, img[0])
		}
		return out
	}

	a, b, c := order(7), order(7), order(8)
	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same seed produced different shuffles")
		}
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different seeds produced identical shuffles")
	}
}

func TestDataLoaderValidation(t *testing.T) {
	if _, err := NewDataLoader(makeDataset(5), 0, false); err == nil {
		t.Error("zero batch size should fail")
	}
	if _, err := NewDataLoader(&sliceDataset{}, 4, false); err == nil {
		t.Error("empty dataset should fail")
	}
}
