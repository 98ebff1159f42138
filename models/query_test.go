package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllMonthsExpandsToTwelveSingletons(t *testing.T) {
	windows := AllMonths()
	require.Len(t, windows, 12)
	for i, w := range windows {
		month := uint8(i + 1)
		assert.Equal(t, TimeWindow{Start: month, End: month}, w)
	}
}

func TestFullYearIsOneWindow(t *testing.T) {
	assert.Equal(t, []TimeWindow{{Start: 1, End: 12}}, FullYear())
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    TimeWindow
		wantErr bool
	}{
		{name: "start and end from separate tokens", input: "3-7", want: TimeWindow{Start: 3, End: 7}},
		{name: "whitespace", input: " 1 - 12 ", want: TimeWindow{Start: 1, End: 12}},
		{name: "inverted kept as given", input: "11-2", want: TimeWindow{Start: 11, End: 2}},
		{name: "single token", input: "3", wantErr: true},
		{name: "month zero", input: "0-4", wantErr: true},
		{name: "month thirteen", input: "4-13", wantErr: true},
		{name: "not a number", input: "march-may", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestSingleMonth(t *testing.T) {
	got, err := SingleMonth(5)
	require.NoError(t, err)
	assert.Equal(t, []TimeWindow{{Start: 5, End: 5}}, got)

	_, err = SingleMonth(13)
	assert.Error(t, err)
}

func TestTimeWindowInverted(t *testing.T) {
	assert.True(t, TimeWindow{Start: 11, End: 2}.Inverted())
	assert.False(t, TimeWindow{Start: 2, End: 2}.Inverted())
}

func TestCodeColumns(t *testing.T) {
	assert.Equal(t, []string{"sub_region_code", "region_code"}, CodeColumns(GranularitySubRegion, ScopeRegion))
	assert.Equal(t, []string{"hotspot_code", "hotspot_code"}, CodeColumns(GranularityHotspot, ScopeHotspot))
	assert.Equal(t, []string{"hotspot_code"}, CodeColumns(GranularityHotspot, ScopeGlobal))
}

func TestScopeCompatibility(t *testing.T) {
	tests := []struct {
		granularity ListGranularity
		scope       ComparisonScope
		want        bool
	}{
		{GranularityHotspot, ScopeHotspot, true},
		{GranularityHotspot, ScopeGlobal, true},
		{GranularityHotspot, ScopeRegion, false},
		{GranularityHotspot, ScopeSubRegion, false},
		{GranularitySubRegion, ScopeSubRegion, true},
		{GranularitySubRegion, ScopeRegion, true},
		{GranularitySubRegion, ScopeCountry, true},
		{GranularitySubRegion, ScopeGlobal, true},
		{GranularitySubRegion, ScopeHotspot, false},
	}

	for _, tt := range tests {
		t.Run(tt.granularity.String()+"/"+tt.scope.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.CompatibleWith(tt.granularity))
		})
	}
}

func TestWireTokens(t *testing.T) {
	assert.Equal(t, "hotspot_code", GranularityHotspot.CodeColumn())
	assert.Equal(t, "region", GranularitySubRegion.IdentityPrefix())
	assert.Equal(t, "hotspot", GranularityHotspot.IdentityPrefix())
	assert.Equal(t, "", ScopeGlobal.CodeColumn())
	assert.Equal(t, "day", BasisDate.String())
	assert.Equal(t, "life", BasisLife.String())

	basis, err := ParseTemporalBasis("ytd")
	require.NoError(t, err)
	assert.Equal(t, BasisYear, basis)

	scope, err := ParseComparisonScope("local")
	require.NoError(t, err)
	assert.Equal(t, ScopeSubRegion, scope)

	_, err = ParseListGranularity("county")
	assert.Error(t, err)
}

func TestLocationRowRecord(t *testing.T) {
	row := LocationRow{
		Country: "United States", Region: "Ohio", SubRegion: "Franklin",
		SubRegionCode: "US-OH-049", Hotspot: "Scioto Audubon", HotspotCode: "L123",
	}

	rec := row.Record(GranularityHotspot)
	require.NotNil(t, rec.Hotspot)
	assert.Equal(t, "Scioto Audubon", *rec.Hotspot)

	rec = row.Record(GranularitySubRegion)
	assert.Nil(t, rec.Hotspot)
	assert.Equal(t, "Franklin", rec.SubRegion)

	code, ok := row.Code("sub_region_code")
	assert.True(t, ok)
	assert.Equal(t, "US-OH-049", code)
	_, ok = row.Code("county_code")
	assert.False(t, ok)
}
