package models

// Output table columns, in final order. Hotspot is present only for hotspot scrapes.
const (
	ColCommonName     = "common_name"
	ColScientificName = "scientific_name"
	ColPercent        = "percent"
	ColChecklists     = "checklists"
	ColCountry        = "country"
	ColRegion         = "region"
	ColSubRegion      = "sub_region"
	ColHotspot        = "hotspot"
	ColStartMonth     = "start_month"
	ColEndMonth       = "end_month"
)

// OutputColumns lists the final table columns for granularity g.
func OutputColumns(g ListGranularity) []string {
	cols := []string{ColCommonName, ColScientificName, ColPercent, ColChecklists, ColCountry, ColRegion, ColSubRegion}
	if g == GranularityHotspot {
		cols = append(cols, ColHotspot)
	}
	return append(cols, ColStartMonth, ColEndMonth)
}
