package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CIFAR-10 binary batch layout: each record is 1 label byte followed by
// 3072 pixel bytes (32x32, three channels).
const (
	cifarImageBytes  = 3072
	cifarRecordBytes = 1 + cifarImageBytes
	cifarBatchDir    = "cifar-10-batches-bin"
)

var cifarClassNames = []string{
	"airplane", "automobile", "bird", "cat", "deer",
	"dog", "frog", "horse", "ship", "truck",
}

var cifarTrainBatches = []string{
	"data_batch_1.bin", "data_batch_2.bin", "data_batch_3.bin",
	"data_batch_4.bin", "data_batch_5.bin",
}

// LoadCIFAR10 reads the CIFAR-10 binary batches under root and returns the
// train and test splits with pixels normalized to [0, 1].
func LoadCIFAR10(root string) (*Slice, *Slice, error) {
	dir := filepath.Join(root, cifarBatchDir)

	train := &Slice{ClassNames: cifarClassNames}
	for _, name := range cifarTrainBatches {
		if err := readCIFARBatch(filepath.Join(dir, name), train); err != nil {
			return nil, nil, fmt.Errorf("failed to load training batch %s: %v", name, err)
		}
	}

	test := &Slice{ClassNames: cifarClassNames}
	if err := readCIFARBatch(filepath.Join(dir, "test_batch.bin"), test); err != nil {
		return nil, nil, fmt.Errorf("failed to load test batch: %v", err)
	}

	return train, test, nil
}

func readCIFARBatch(path string, dst *Slice) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<16)
	record := make([]byte, cifarRecordBytes)
	for {
		_, err := io.ReadFull(r, record)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("truncated record: %v", err)
		}

		label := int(record[0])
		if label < 0 || label >= len(cifarClassNames) {
			return fmt.Errorf("label %d out of range", label)
		}

		img := make([]float32, cifarImageBytes)
		for i, b := range record[1:] {
			img[i] = float32(b) / 255.0
		}
		dst.Images = append(dst.Images, img)
		dst.Labels = append(dst.Labels, label)
	}
}
