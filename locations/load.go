// Package locations reads and produces the location tables that drive a species scrape.
package locations

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"

	"github.com/aluiziolira/magpie/models"
)

var (
	// ErrMissingColumn is returned when a location file lacks a column the query needs.
	ErrMissingColumn = errors.New("locations: missing column")
	// ErrEmptyFile is returned for a location file without a header.
	ErrEmptyFile = errors.New("locations: empty file")
)

// RequiredColumns lists the columns a location file must carry for g and s.
func RequiredColumns(g models.ListGranularity, s models.ComparisonScope) []string {
	cols := []string{models.ColCountry, models.ColRegion, models.ColSubRegion}
	if g == models.GranularityHotspot {
		cols = append(cols, models.ColHotspot)
	}
	return append(cols, models.CodeColumns(g, s)...)
}

// Load decodes the location table at path and checks it has every column
// needed to query at granularity g against scope s.
func Load(path string, g models.ListGranularity, s models.ComparisonScope) ([]models.LocationRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open location file: %w", err)
	}
	defer f.Close()

	rows, err := Decode(f, RequiredColumns(g, s))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// Decode reads location rows from CSV. Columns not in required are optional.
func Decode(r io.Reader, required []string) ([]models.LocationRow, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	present := make(map[string]bool, len(header))
	for i, name := range header {
		header[i] = clean(name)
		present[header[i]] = true
	}

	var missing []string
	for _, col := range required {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	dec, err := csvutil.NewDecoder(reader, header...)
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}

	var rows []models.LocationRow
	for {
		var row models.LocationRow
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, cleanRow(row))
	}
	return rows, nil
}

func cleanRow(r models.LocationRow) models.LocationRow {
	return models.LocationRow{
		Country:       clean(r.Country),
		CountryCode:   clean(r.CountryCode),
		Region:        clean(r.Region),
		RegionCode:    clean(r.RegionCode),
		SubRegion:     clean(r.SubRegion),
		SubRegionCode: clean(r.SubRegionCode),
		Hotspot:       clean(r.Hotspot),
		HotspotCode:   clean(r.HotspotCode),
	}
}

// clean strips whitespace and stray surrounding quotes.
func clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
