package models

// LocationRecord identifies the place a fragment was scraped for.
type LocationRecord struct {
	Country   string
	Region    string
	SubRegion string
	Hotspot   *string
}

// LocationRow is one row of a location table. Hotspot columns are empty in sub-region tables.
type LocationRow struct {
	Country       string `csv:"country" json:"country"`
	CountryCode   string `csv:"country_code" json:"country_code"`
	Region        string `csv:"region" json:"region"`
	RegionCode    string `csv:"region_code" json:"region_code"`
	SubRegion     string `csv:"sub_region" json:"sub_region"`
	SubRegionCode string `csv:"sub_region_code" json:"sub_region_code"`
	Hotspot       string `csv:"hotspot,omitempty" json:"hotspot,omitempty"`
	HotspotCode   string `csv:"hotspot_code,omitempty" json:"hotspot_code,omitempty"`
}

// Code returns the value of a *_code column by name.
func (r LocationRow) Code(column string) (string, bool) {
	switch column {
	case "country_code":
		return r.CountryCode, true
	case "region_code":
		return r.RegionCode, true
	case "sub_region_code":
		return r.SubRegionCode, true
	case "hotspot_code":
		return r.HotspotCode, true
	default:
		return "", false
	}
}

// Record builds the LocationRecord for this row.
func (r LocationRow) Record(g ListGranularity) LocationRecord {
	rec := LocationRecord{
		Country:   r.Country,
		Region:    r.Region,
		SubRegion: r.SubRegion,
	}
	if g == GranularityHotspot {
		hotspot := r.Hotspot
		rec.Hotspot = &hotspot
	}
	return rec
}

// Country is a top-level eBird region.
type Country struct {
	Country     string `csv:"country"`
	CountryCode string `csv:"country_code"`
}

// Region is a first-level subdivision with its country copied in.
type Region struct {
	Country     string `csv:"country"`
	CountryCode string `csv:"country_code"`
	Region      string `csv:"region"`
	RegionCode  string `csv:"region_code"`
}

// SubRegion is a second-level subdivision with its ancestors copied in.
type SubRegion struct {
	Country       string `csv:"country"`
	CountryCode   string `csv:"country_code"`
	Region        string `csv:"region"`
	RegionCode    string `csv:"region_code"`
	SubRegion     string `csv:"sub_region"`
	SubRegionCode string `csv:"sub_region_code"`
}

// Hotspot is a birding site with its full ancestry copied in.
type Hotspot struct {
	Country       string `csv:"country"`
	CountryCode   string `csv:"country_code"`
	Region        string `csv:"region"`
	RegionCode    string `csv:"region_code"`
	SubRegion     string `csv:"sub_region"`
	SubRegionCode string `csv:"sub_region_code"`
	Hotspot       string `csv:"hotspot"`
	HotspotCode   string `csv:"hotspot_code"`
}

// NewRegion attaches a region to its country.
func NewRegion(c Country, name, code string) Region {
	return Region{
		Country:     c.Country,
		CountryCode: c.CountryCode,
		Region:      name,
		RegionCode:  code,
	}
}

// NewSubRegion attaches a sub-region to its region.
func NewSubRegion(r Region, name, code string) SubRegion {
	return SubRegion{
		Country:       r.Country,
		CountryCode:   r.CountryCode,
		Region:        r.Region,
		RegionCode:    r.RegionCode,
		SubRegion:     name,
		SubRegionCode: code,
	}
}

// NewHotspot attaches a hotspot to its sub-region.
func NewHotspot(s SubRegion, name, code string) Hotspot {
	return Hotspot{
		Country:       s.Country,
		CountryCode:   s.CountryCode,
		Region:        s.Region,
		RegionCode:    s.RegionCode,
		SubRegion:     s.SubRegion,
		SubRegionCode: s.SubRegionCode,
		Hotspot:       name,
		HotspotCode:   code,
	}
}
