// Package metrics provides the append-only metric event stream written during
// training and the readers the results aggregator uses afterwards. Records
// are JSON objects, one per line, consumable by time-series tooling.
package metrics

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Record is one evaluation event.
type Record struct {
	Epoch     int       `json:"epoch"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger appends records to a JSONL file. Training is single-threaded, so the
// logger needs no locking; the file is opened append-only so an earlier run's
// records survive a resume.
type Logger struct {
	f   *os.File
	enc *json.Encoder
}

// NewLogger opens (or creates) the metric log at path for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open metric log: %v", err)
	}
	return &Logger{f: f, enc: json.NewEncoder(f)}, nil
}

// Log appends one record with the current wall-clock time.
func (l *Logger) Log(epoch int, name string, value float64) error {
	rec := Record{Epoch: epoch, Name: name, Value: value, Timestamp: time.Now()}
	if err := l.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to append metric record: %v", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	return l.f.Close()
}

// Memory is an in-process recorder, used by tests and by runs that do not
// persist metrics.
type Memory struct {
	Records []Record
}

// Log appends one record in memory.
func (m *Memory) Log(epoch int, name string, value float64) error {
	m.Records = append(m.Records, Record{Epoch: epoch, Name: name, Value: value, Timestamp: time.Now()})
	return nil
}

// ReadFile parses a JSONL metric log.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metric log: %v", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("bad metric record at %s:%d: %v", path, line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metric log: %v", err)
	}
	return records, nil
}

// FinalValue returns the value of the last record with the given name.
func FinalValue(records []Record, name string) (float64, bool) {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Name == name {
			return records[i].Value, true
		}
	}
	return 0, false
}

// FinalValues reads the given metric logs and returns the final value of the
// named metric from each, in input order. A log that never recorded the
// metric is an error: it indicates an incomplete run mixed into the results.
func FinalValues(paths []string, name string) ([]float64, error) {
	values := make([]float64, 0, len(paths))
	for _, path := range paths {
		records, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		v, ok := FinalValue(records, name)
		if !ok {
			return nil, fmt.Errorf("metric %q not found in %s", name, path)
		}
		values = append(values, v)
	}
	return values, nil
}
