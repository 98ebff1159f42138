package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/magpie/table"
)

// stagedFile is written under a temporary name and renamed into place on commit.
type stagedFile struct {
	path string
	file *os.File
	done bool
}

func createStaged(filename string) (*stagedFile, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	dir, base := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create staging file for %q: %w", filename, err)
	}
	return &stagedFile{path: filename, file: f}, nil
}

func (s *stagedFile) commit() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.file.Close(); err != nil {
		os.Remove(s.file.Name())
		return fmt.Errorf("close %q: %w", s.path, err)
	}
	if err := os.Rename(s.file.Name(), s.path); err != nil {
		os.Remove(s.file.Name())
		return fmt.Errorf("move output into %q: %w", s.path, err)
	}
	return nil
}

func (s *stagedFile) discard() error {
	if s.done {
		return nil
	}
	s.done = true
	s.file.Close()
	if err := os.Remove(s.file.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staging file: %w", err)
	}
	return nil
}

func validateNonEmpty(kind, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s file: %w", kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", kind)
	}
	return nil
}

// CSVWriter writes a table as header-included CSV. Null cells are empty.
type CSVWriter struct {
	staged *stagedFile
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter stages a CSV file that appears at filename on Close.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	staged, err := createStaged(filename)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{
		staged: staged,
		writer: csv.NewWriter(staged.file),
	}, nil
}

// Write emits the header and every row of t.
func (cw *CSVWriter) Write(t *table.Table) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writer.Write(t.Names()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range t.Records() {
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and moves the file into place.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.staged.discard()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.staged.commit()
}

// Discard drops the staged output.
func (cw *CSVWriter) Discard() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.staged.discard()
}

// Validate ensures the committed file has content.
func (cw *CSVWriter) Validate() error {
	return validateNonEmpty("csv", cw.staged.path)
}

// JSONWriter writes newline-delimited JSON objects keyed by column name.
// Keys keep table column order; nulls are encoded as null.
type JSONWriter struct {
	staged *stagedFile
	writer *bufio.Writer
	mu     sync.Mutex
}

// NewJSONWriter stages a JSONL file that appears at filename on Close.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	staged, err := createStaged(filename)
	if err != nil {
		return nil, err
	}
	return &JSONWriter{
		staged: staged,
		writer: bufio.NewWriter(staged.file),
	}, nil
}

// Write appends one JSON line per row.
func (jw *JSONWriter) Write(t *table.Table) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	keys := make([][]byte, t.Width())
	for j, name := range t.Names() {
		key, err := json.Marshal(name)
		if err != nil {
			return fmt.Errorf("encode json key: %w", err)
		}
		keys[j] = key
	}

	for i := 0; i < t.Height(); i++ {
		jw.writer.WriteByte('{')
		for j, value := range t.Row(i) {
			if j > 0 {
				jw.writer.WriteByte(',')
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode json record %d: %w", i, err)
			}
			jw.writer.Write(keys[j])
			jw.writer.WriteByte(':')
			jw.writer.Write(encoded)
		}
		jw.writer.WriteString("}\n")
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and moves the file into place.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		jw.staged.discard()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.staged.commit()
}

// Discard drops the staged output.
func (jw *JSONWriter) Discard() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()
	return jw.staged.discard()
}

// Validate ensures the committed file exists. A run with no rows yields an empty file.
func (jw *JSONWriter) Validate() error {
	if _, err := os.Stat(jw.staged.path); err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
