package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSyntheticDeterministic(t *testing.T) {
	a, err := Synthetic(100, 16, 4, 7)
	if err != nil {
		t.Fatalf("Synthetic failed: %v", err)
	}
	b, err := Synthetic(100, 16, 4, 7)
	if err != nil {
		t.Fatalf("Synthetic failed: %v", err)
	}

	if a.Len() != 100 || b.Len() != 100 {
		t.Fatalf("expected 100 samples, got %d and %d", a.Len(), b.Len())
	}
	for n := 0; n < a.Len(); n++ {
		imgA, labelA, _ := a.Get(n)
		imgB, labelB, _ := b.Get(n)
		if labelA != labelB {
			t.Fatalf("sample %d labels differ: %d vs %d", n, labelA, labelB)
		}
		for i := range imgA {
			if imgA[i] != imgB[i] {
				t.Fatalf("sample %d differs at pixel %d", n, i)
			}
		}
	}

	c, err := Synthetic(100, 16, 4, 8)
	if err != nil {
		t.Fatalf("Synthetic failed: %v", err)
	}
	imgA, _, _ := a.Get(0)
	imgC, _, _ := c.Get(0)
	same := true
	for i := range imgA {
		if imgA[i] != imgC[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical datasets")
	}
}

func TestSyntheticValidation(t *testing.T) {
	if _, err := Synthetic(3, 16, 4, 1); err == nil {
		t.Error("fewer samples than classes should fail")
	}
	if _, err := Synthetic(10, 0, 4, 1); err == nil {
		t.Error("zero features should fail")
	}
	if _, err := Synthetic(10, 16, 1, 1); err == nil {
		t.Error("single class should fail")
	}
}

func TestGetOutOfRange(t *testing.T) {
	ds, err := Synthetic(10, 4, 2, 1)
	if err != nil {
		t.Fatalf("Synthetic failed: %v", err)
	}
	if _, _, err := ds.Get(-1); err == nil {
		t.Error("Get(-1) should fail")
	}
	if _, _, err := ds.Get(10); err == nil {
		t.Error("Get past end should fail")
	}
}

func TestSplit(t *testing.T) {
	ds, err := Synthetic(100, 4, 2, 1)
	if err != nil {
		t.Fatalf("Synthetic failed: %v", err)
	}

	train, eval, err := ds.Split(0.2)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if train.Len() != 80 || eval.Len() != 20 {
		t.Errorf("expected 80/20 split, got %d/%d", train.Len(), eval.Len())
	}

	// Same fraction, same partition.
	train2, _, err := ds.Split(0.2)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	img1, _, _ := train.Get(79)
	img2, _, _ := train2.Get(79)
	for i := range img1 {
		if img1[i] != img2[i] {
			t.Fatal("Split is not deterministic")
		}
	}

	if _, _, err := ds.Split(0); err == nil {
		t.Error("holdout 0 should fail")
	}
	if _, _, err := ds.Split(1); err == nil {
		t.Error("holdout 1 should fail")
	}
}

func writeCIFARBatch(t *testing.T, path string, records int, startLabel int) {
	t.Helper()
	data := make([]byte, records*cifarRecordBytes)
	for r := 0; r < records; r++ {
		off := r * cifarRecordBytes
		data[off] = byte((startLabel + r) % 10)
		for i := 0; i < cifarImageBytes; i++ {
			data[off+1+i] = byte((r + i) % 256)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write batch file: %v", err)
	}
}

func TestLoadCIFAR10(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, cifarBatchDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create batch dir: %v", err)
	}

	for i, name := range cifarTrainBatches {
		writeCIFARBatch(t, filepath.Join(dir, name), 4, i)
	}
	writeCIFARBatch(t, filepath.Join(dir, "test_batch.bin"), 2, 0)

	train, test, err := LoadCIFAR10(root)
	if err != nil {
		t.Fatalf("LoadCIFAR10 failed: %v", err)
	}

	if train.Len() != 20 {
		t.Errorf("train: expected 20 samples, got %d", train.Len())
	}
	if test.Len() != 2 {
		t.Errorf("test: expected 2 samples, got %d", test.Len())
	}

	img, label, err := train.Get(0)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if label != 0 {
		t.Errorf("first label: expected 0, got %d", label)
	}
	if len(img) != cifarImageBytes {
		t.Errorf("image length: expected %d, got %d", cifarImageBytes, len(img))
	}
	// Pixel i of record 0 is byte i%256, normalized.
	if img[5] != 5.0/255.0 {
		t.Errorf("pixel 5: expected %f, got %f", 5.0/255.0, img[5])
	}
	for _, v := range img {
		if v < 0 || v > 1 {
			t.Fatalf("pixel out of range: %f", v)
		}
	}
}

func TestLoadCIFAR10Errors(t *testing.T) {
	if _, _, err := LoadCIFAR10(t.TempDir()); err == nil {
		t.Error("missing batches should fail")
	}

	root := t.TempDir()
	dir := filepath.Join(root, cifarBatchDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create batch dir: %v", err)
	}
	for _, name := range cifarTrainBatches {
		writeCIFARBatch(t, filepath.Join(dir, name), 2, 0)
	}
	// Truncated test batch.
	if err := os.WriteFile(filepath.Join(dir, "test_batch.bin"), make([]byte, 100), 0644); err != nil {
		t.Fatalf("failed to write truncated batch: %v", err)
	}
	if _, _, err := LoadCIFAR10(root); err == nil {
		t.Error("truncated batch should fail")
	}
}
