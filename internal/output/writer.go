// Package output writes fetched records to a local JSON-lines file.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const bufferSize = 64 * 1024

// JSONLWriter appends one record per line to a file opened once for the run.
// Records are buffered; Close flushes and releases the file and must be called
// on every exit path.
type JSONLWriter struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	buf     *bufio.Writer
	records int64
	closed  bool
}

// Create truncates or creates path (and its parent directory) for writing.
func Create(path string) (*JSONLWriter, error) {
	if path == "" {
		return nil, errors.New("output path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	// #nosec G304 -- the output path is chosen by the operator.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output %s: %w", path, err)
	}
	return &JSONLWriter{
		path: path,
		file: f,
		buf:  bufio.NewWriterSize(f, bufferSize),
	}, nil
}

// WriteRecord appends record followed by a newline. record must not contain
// a newline.
func (w *JSONLWriter) WriteRecord(record []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("write %s: %w", w.path, os.ErrClosed)
	}
	if _, err := w.buf.Write(record); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	w.records++
	return nil
}

// Records returns how many records have been written.
func (w *JSONLWriter) Records() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Path returns the output file path.
func (w *JSONLWriter) Path() string {
	return w.path
}

// Close flushes buffered records and closes the file. It is safe to call more
// than once.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", w.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", w.path, closeErr)
	}
	return nil
}
