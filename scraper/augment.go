package scraper

import (
	"fmt"

	"github.com/aluiziolira/magpie/models"
	"github.com/aluiziolira/magpie/parser"
	"github.com/aluiziolira/magpie/table"
)

type constantColumn struct {
	name  string
	value any
}

// Augment appends the constant location and window columns to a species fragment.
func Augment(frag *table.Table, checklists int32, rec models.LocationRecord, w models.TimeWindow) error {
	constants := []constantColumn{
		{models.ColChecklists, checklists},
		{models.ColCountry, rec.Country},
		{models.ColRegion, rec.Region},
		{models.ColSubRegion, rec.SubRegion},
	}
	if rec.Hotspot != nil {
		constants = append(constants, constantColumn{models.ColHotspot, *rec.Hotspot})
	}
	constants = append(constants,
		constantColumn{models.ColStartMonth, uint32(w.Start)},
		constantColumn{models.ColEndMonth, uint32(w.End)},
	)

	for _, c := range constants {
		if err := frag.WithConstant(c.name, c.value); err != nil {
			return fmt.Errorf("augment %s: %w", c.name, err)
		}
	}
	return nil
}

// Schema is the zero-row table whose columns fix the output order for g.
func Schema(g models.ListGranularity) (*table.Table, error) {
	frag, err := parser.EmptyFragment()
	if err != nil {
		return nil, err
	}
	rec := models.LocationRecord{}
	if g == models.GranularityHotspot {
		rec.Hotspot = new(string)
	}
	if err := Augment(frag, 0, rec, models.TimeWindow{}); err != nil {
		return nil, err
	}
	return frag, nil
}
