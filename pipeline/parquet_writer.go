package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/parquet-go/parquet-go"

	"github.com/aluiziolira/magpie/models"
	"github.com/aluiziolira/magpie/table"
)

// ErrUnknownColumn is returned when a table carries a column the parquet schema lacks.
var ErrUnknownColumn = errors.New("pipeline: column not in parquet schema")

// speciesRecord is the parquet schema of the final table. Every field is
// optional because diagonal concatenation may leave any column null.
type speciesRecord struct {
	CommonName     *string  `parquet:"common_name"`
	ScientificName *string  `parquet:"scientific_name"`
	Percent        *float32 `parquet:"percent"`
	Checklists     *int32   `parquet:"checklists"`
	Country        *string  `parquet:"country"`
	Region         *string  `parquet:"region"`
	SubRegion      *string  `parquet:"sub_region"`
	Hotspot        *string  `parquet:"hotspot"`
	StartMonth     *uint32  `parquet:"start_month"`
	EndMonth       *uint32  `parquet:"end_month"`
}

// ParquetWriter writes the final table as snappy-compressed parquet.
type ParquetWriter struct {
	staged *stagedFile
	writer *parquet.Writer
	mu     sync.Mutex
}

// NewParquetWriter stages a parquet file that appears at filename on Close.
func NewParquetWriter(filename string) (*ParquetWriter, error) {
	staged, err := createStaged(filename)
	if err != nil {
		return nil, err
	}
	var zero speciesRecord
	w := parquet.NewWriter(staged.file, parquet.SchemaOf(&zero), parquet.Compression(&parquet.Snappy))
	return &ParquetWriter{staged: staged, writer: w}, nil
}

// Write converts every row of t into a speciesRecord.
func (pw *ParquetWriter) Write(t *table.Table) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	for _, name := range t.Names() {
		if _, ok := (&speciesRecord{}).field(name); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
	}

	for i := 0; i < t.Height(); i++ {
		rec := speciesRecord{}
		for _, col := range t.Columns() {
			if col.IsNull(i) {
				continue
			}
			if err := rec.set(col.Name, col.Value(i)); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		if err := pw.writer.Write(&rec); err != nil {
			return fmt.Errorf("write parquet record: %w", err)
		}
	}
	return nil
}

// Close finalises the footer and moves the file into place.
func (pw *ParquetWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if err := pw.writer.Close(); err != nil {
		pw.staged.discard()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return pw.staged.commit()
}

// Discard drops the staged output.
func (pw *ParquetWriter) Discard() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return pw.staged.discard()
}

// Validate ensures the committed file has content.
func (pw *ParquetWriter) Validate() error {
	return validateNonEmpty("parquet", pw.staged.path)
}

func (r *speciesRecord) field(name string) (any, bool) {
	switch name {
	case models.ColCommonName:
		return &r.CommonName, true
	case models.ColScientificName:
		return &r.ScientificName, true
	case models.ColPercent:
		return &r.Percent, true
	case models.ColChecklists:
		return &r.Checklists, true
	case models.ColCountry:
		return &r.Country, true
	case models.ColRegion:
		return &r.Region, true
	case models.ColSubRegion:
		return &r.SubRegion, true
	case models.ColHotspot:
		return &r.Hotspot, true
	case models.ColStartMonth:
		return &r.StartMonth, true
	case models.ColEndMonth:
		return &r.EndMonth, true
	default:
		return nil, false
	}
}

func (r *speciesRecord) set(name string, value any) error {
	dst, ok := r.field(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	switch p := dst.(type) {
	case **string:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("column %q: want string, got %T", name, value)
		}
		*p = &v
	case **float32:
		v, ok := value.(float32)
		if !ok {
			return fmt.Errorf("column %q: want float32, got %T", name, value)
		}
		*p = &v
	case **int32:
		v, ok := value.(int32)
		if !ok {
			return fmt.Errorf("column %q: want int32, got %T", name, value)
		}
		*p = &v
	case **uint32:
		v, ok := value.(uint32)
		if !ok {
			return fmt.Errorf("column %q: want uint32, got %T", name, value)
		}
		*p = &v
	}
	return nil
}
