package models

import "time"

// SpeciesRow is one extracted line of a targets page.
type SpeciesRow struct {
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	Percent        float32 `json:"percent"`
}

// ScraperResult holds the overall result of a scraping run.
type ScraperResult struct {
	StartTime      time.Time
	EndTime        time.Time
	PayloadCount   int
	FragmentCount  int
	EmptyFragments int
	RowCount       int
	RequestCount   int
	RetryCount     int
	GiveUpCount    int
	ErrorsByType   map[string]int
}

// Duration is the wall-clock time of the run.
func (r *ScraperResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}
