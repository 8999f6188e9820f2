package parser_test

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	"github.com/couchcryptid/aviation-weather-etl/internal/parser"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func newParser() *parser.Parser {
	return parser.New(domain.NewRegistry(), slog.Default())
}

func number(t *testing.T, obs *domain.Observation, name string) float64 {
	t.Helper()
	p := obs.Property(name)
	require.NotNil(t, p, "property %s", name)
	v, ok := p.Value.Number()
	require.True(t, ok, "property %s is not numeric: %s", name, p.Value)
	return v
}

func TestParse_ADDSMetars(t *testing.T) {
	result, err := newParser().Parse(readFixture(t, "adds_metars.xml"))
	require.NoError(t, err)
	assert.Equal(t, parser.SchemaADDS, result.Schema)
	require.Len(t, result.Observations, 2)

	first := result.Observations[0]
	assert.Equal(t, domain.KindMetar, first.Kind)
	assert.Equal(t, "KDCA", first.StationID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 52, 0, 0, time.UTC), first.ValidFrom)
	assert.Equal(t, first.ValidFrom, first.ValidTo)
	assert.True(t, strings.HasPrefix(first.RawText, "KDCA 011252Z"))
	require.NotNil(t, first.Position)
	assert.Equal(t, domain.LatLon{Lat: 38.85, Lon: -77.03}, *first.Position)
	assert.Nil(t, first.Boundary)

	assert.Equal(t, 5.0, number(t, first, "airTemperature"))
	assert.Equal(t, "C", first.Property("airTemperature").Unit)
	assert.Equal(t, 12.0, number(t, first, "windSpeed"))
	assert.Equal(t, "kt", first.Property("windSpeed").Unit)
	assert.Equal(t, 10.0, number(t, first, "horizontalVisibility"))
	assert.Equal(t, "mi", first.Property("horizontalVisibility").Unit)
	assert.Equal(t, 30.12, number(t, first, "altimeter"))
	assert.Equal(t, "hg", first.Property("altimeter").Unit)
	assert.Equal(t, "VFR", first.Property("flightCategory").Value.String())
	assert.Empty(t, first.Property("flightCategory").Unit)
	assert.Equal(t, "FEW050 BKN180", first.Property("skyCondition").Value.String())
	assert.Equal(t, 18000.0, number(t, first, "ceiling"))

	for _, dropped := range []string{"qualityControlFlags", "elevationM", "metarType", "quality_control_flags"} {
		assert.Nil(t, first.Property(dropped), dropped)
	}
	assert.Len(t, first.Properties, 10)

	speci := result.Observations[1]
	assert.Equal(t, domain.KindMetar, speci.Kind)
	assert.Equal(t, 800.0, number(t, speci, "ceiling"))
	assert.Equal(t, "BR", speci.Property("presentWeather").Value.String())

	require.Len(t, result.Skipped, 2)
	assert.Equal(t, 2, result.Skipped[0].Index)
	assert.Equal(t, "METAR", result.Skipped[0].Tag)
	assert.ErrorIs(t, result.Skipped[0], domain.ErrMissingStationID)
	assert.Equal(t, 3, result.Skipped[1].Index)
	assert.Equal(t, "KBWI", result.Skipped[1].StationID)
	assert.ErrorIs(t, result.Skipped[1], domain.ErrMissingGeometry)
}

func TestParse_StationCodedReportsUseRegistry(t *testing.T) {
	reg := domain.NewRegistry()
	p := parser.New(reg, slog.Default())

	sites, err := p.Parse(readFixture(t, "adds_stations.xml"))
	require.NoError(t, err)
	assert.Empty(t, sites.Observations)
	require.Len(t, sites.Stations, 2)
	require.Len(t, sites.Skipped, 1)
	assert.ErrorIs(t, sites.Skipped[0], domain.ErrMissingGeometry)
	assert.Equal(t, 2, reg.Len())

	dca, ok := reg.Lookup("kdca")
	require.True(t, ok)
	require.NotNil(t, dca.Elevation)
	assert.Equal(t, 5.0, *dca.Elevation)

	result, err := p.Parse(readFixture(t, "adds_metars.xml"))
	require.NoError(t, err)
	require.Len(t, result.Observations, 3)
	require.Len(t, result.Skipped, 1)

	bwi := result.Observations[2]
	assert.Equal(t, "KBWI", bwi.StationID)
	require.NotNil(t, bwi.Position)
	assert.Equal(t, domain.LatLon{Lat: 39.17, Lon: -76.68}, *bwi.Position)
	assert.True(t, bwi.Property("horizontalVisibility").Value.IsNoReading())
	assert.Equal(t, "CLR", bwi.Property("skyCondition").Value.String())
	assert.Nil(t, bwi.Property("ceiling"))
}

func TestParse_SiteListInSameDocument(t *testing.T) {
	reg := domain.NewRegistry()
	reg.Merge([]domain.Station{{ID: "KBWI", Lat: 39.17, Lon: -76.68}})
	p := parser.New(reg, slog.Default())

	result, err := p.Parse(readFixture(t, "adds_pireps.xml"))
	require.NoError(t, err)
	require.Len(t, result.Stations, 1)
	require.Len(t, result.Observations, 1)

	pirep := result.Observations[0]
	assert.Equal(t, domain.KindAircraftReport, pirep.Kind)
	assert.Equal(t, "KIAD", pirep.StationID)
	require.NotNil(t, pirep.Position)
	assert.Equal(t, domain.LatLon{Lat: 38.95, Lon: -77.45}, *pirep.Position)
	assert.Equal(t, 8000.0, number(t, pirep, "altitude"))
	assert.Equal(t, "turbulence_intensity=MOD turbulence_base_ft_msl=7000 turbulence_top_ft_msl=9000",
		pirep.Property("turbulence").Value.String())
	assert.Equal(t, "PIREP", pirep.Property("reportType").Value.String())

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "N123", result.Skipped[0].StationID)
	assert.Equal(t, "AircraftReport", result.Skipped[0].Tag)
	assert.ErrorIs(t, result.Skipped[0], domain.ErrMissingGeometry)

	// Site entries merge into the registry.
	_, ok := reg.Lookup("KBWI")
	assert.True(t, ok)
	_, ok = reg.Lookup("KIAD")
	assert.True(t, ok)
}

func siteList(id string, lat, lon float64) []byte {
	return []byte(fmt.Sprintf(`<response><data>
  <Station><station_id>%s</station_id><latitude>%g</latitude><longitude>%g</longitude></Station>
</data></response>`, id, lat, lon))
}

func TestParse_SiteListsAccumulate(t *testing.T) {
	reg := domain.NewRegistry()
	p := parser.New(reg, slog.Default())

	_, err := p.Parse(siteList("KAAA", 40.1, -75.1))
	require.NoError(t, err)
	_, err = p.Parse(siteList("KBBB", 41.2, -74.2))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	result, err := p.Parse([]byte(`<response><data>
  <METAR><station_id>KAAA</station_id><observation_time>2024-03-01T12:00:00Z</observation_time><wind_speed_kt>5</wind_speed_kt></METAR>
  <METAR><station_id>KBBB</station_id><observation_time>2024-03-01T12:05:00Z</observation_time><wind_speed_kt>7</wind_speed_kt></METAR>
</data></response>`))
	require.NoError(t, err)
	assert.Empty(t, result.Skipped)
	require.Len(t, result.Observations, 2)

	positions := map[string]domain.LatLon{}
	for _, obs := range result.Observations {
		require.NotNil(t, obs.Position, obs.StationID)
		positions[obs.StationID] = *obs.Position
	}
	assert.Equal(t, map[string]domain.LatLon{
		"KAAA": {Lat: 40.1, Lon: -75.1},
		"KBBB": {Lat: 41.2, Lon: -74.2},
	}, positions)
}

func TestParse_ADDSSigmets(t *testing.T) {
	result, err := newParser().Parse(readFixture(t, "adds_sigmets.xml"))
	require.NoError(t, err)
	require.Len(t, result.Observations, 1)

	sigmet := result.Observations[0]
	assert.Equal(t, domain.KindSigmet, sigmet.Kind)
	assert.True(t, strings.HasPrefix(sigmet.StationID, "SIGMET-CONVECTIVE-"), sigmet.StationID)
	assert.Nil(t, sigmet.Position)
	want := []domain.LatLon{
		{Lat: 35.0, Lon: -95.0},
		{Lat: 35.5, Lon: -93.0},
		{Lat: 33.0, Lon: -93.5},
		{Lat: 35.0, Lon: -95.0},
	}
	if diff := cmp.Diff(want, sigmet.Boundary); diff != "" {
		t.Errorf("boundary mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, time.Date(2024, 3, 1, 14, 55, 0, 0, time.UTC), sigmet.ValidFrom)
	assert.Equal(t, "CONVECTIVE", sigmet.Property("hazardType").Value.String())
	assert.Equal(t, "SEV", sigmet.Property("hazardSeverity").Value.String())
	assert.Equal(t, "SIGMET", sigmet.Property("advisoryType").Value.String())
	assert.Equal(t, 0.0, number(t, sigmet, "minAltitude"))
	assert.Equal(t, 45000.0, number(t, sigmet, "maxAltitude"))
	assert.Equal(t, "ft", sigmet.Property("maxAltitude").Unit)

	require.Len(t, result.Skipped, 1)
	assert.True(t, strings.HasPrefix(result.Skipped[0].StationID, "AIRMET-ICE-"))
	assert.ErrorIs(t, result.Skipped[0], domain.ErrMissingGeometry)

	again, err := newParser().Parse(readFixture(t, "adds_sigmets.xml"))
	require.NoError(t, err)
	assert.Equal(t, sigmet.StationID, again.Observations[0].StationID)
}

func TestParse_ADDSTafUsesFirstForecastGroup(t *testing.T) {
	result, err := newParser().Parse(readFixture(t, "adds_taf.xml"))
	require.NoError(t, err)
	require.Len(t, result.Observations, 1)

	taf := result.Observations[0]
	assert.Equal(t, domain.KindTaf, taf.Kind)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), taf.ValidFrom)
	assert.Equal(t, 320.0, number(t, taf, "windDirection"))
	assert.Equal(t, 12.0, number(t, taf, "windSpeed"))
	assert.Equal(t, "FEW050", taf.Property("skyCondition").Value.String())
	assert.Nil(t, taf.Property("changeIndicator"))
	assert.Nil(t, taf.Property("fcstTimeFrom"))
	assert.Nil(t, taf.Property("issueTime"))
}

func TestParse_IWXXMBulletin(t *testing.T) {
	result, err := newParser().Parse(readFixture(t, "iwxxm_bulletin.xml"))
	require.NoError(t, err)
	assert.Equal(t, parser.SchemaIWXXM, result.Schema)
	require.Len(t, result.Observations, 2)

	metar := result.Observations[0]
	assert.Equal(t, domain.KindMetar, metar.Kind)
	assert.Equal(t, "EGLC", metar.StationID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 50, 0, 0, time.UTC), metar.ValidFrom)
	require.NotNil(t, metar.Position)
	assert.Equal(t, domain.LatLon{Lat: 51.505, Lon: 0.055}, *metar.Position)

	assert.Equal(t, 9.0, number(t, metar, "airTemperature"))
	assert.Equal(t, "C", metar.Property("airTemperature").Unit)
	assert.Equal(t, 1012.0, number(t, metar, "altimeter"))
	assert.Equal(t, "hPa", metar.Property("altimeter").Unit)
	assert.Equal(t, 240.0, number(t, metar, "windDirection"))
	assert.Equal(t, 14.0, number(t, metar, "windSpeed"))
	assert.Equal(t, "kt", metar.Property("windSpeed").Unit)
	assert.Equal(t, 9999.0, number(t, metar, "horizontalVisibility"))
	assert.Equal(t, "m", metar.Property("horizontalVisibility").Unit)
	assert.Equal(t, "-RA", metar.Property("presentWeather").Value.String())
	assert.Equal(t, "false", metar.Property("cavok").Value.String())
	assert.Equal(t, "SCT025 BKN039", metar.Property("skyCondition").Value.String())
	assert.Equal(t, 3937.0, number(t, metar, "ceiling"))

	sigmet := result.Observations[1]
	assert.Equal(t, domain.KindSigmet, sigmet.Kind)
	assert.Equal(t, "EGGX", sigmet.StationID)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), sigmet.ValidFrom)
	assert.Len(t, sigmet.Boundary, 4)
	assert.Equal(t, domain.LatLon{Lat: 60.0, Lon: -10.0}, sigmet.Boundary[2])
	assert.Equal(t, "SEV_TURB", sigmet.Property("hazardType").Value.String())
	assert.Equal(t, 90.0, number(t, sigmet, "directionOfMotion"))

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "SpaceWeatherAdvisory", result.Skipped[0].Tag)
	assert.ErrorIs(t, result.Skipped[0], domain.ErrUnknownType)
}

func TestParse_IWXXMUnknownGeometry(t *testing.T) {
	doc := `<iwxxm:SIGMET xmlns:iwxxm="http://icao.int/iwxxm/3.0" xmlns:gml="http://www.opengis.net/gml/3.2" xmlns:aixm="http://www.aixm.aero/schema/5.1.1">
  <iwxxm:issuingAirTrafficServicesUnit><aixm:designator>KZNY</aixm:designator></iwxxm:issuingAirTrafficServicesUnit>
  <iwxxm:validPeriod><gml:TimePeriod><gml:beginPosition>2024-03-01T12:00:00Z</gml:beginPosition></gml:TimePeriod></iwxxm:validPeriod>
  <iwxxm:analysis><iwxxm:geometry><aixm:horizontalProjection><aixm:Curve/></aixm:horizontalProjection></iwxxm:geometry></iwxxm:analysis>
</iwxxm:SIGMET>`

	result, err := newParser().Parse([]byte(doc))
	require.ErrorIs(t, err, domain.ErrEmptyResult)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "KZNY", result.Skipped[0].StationID)
	assert.ErrorIs(t, result.Skipped[0], domain.ErrUnknownType)
}

func TestParse_EmptyResult(t *testing.T) {
	result, err := newParser().Parse([]byte(`<response><data num_results="0"></data></response>`))
	require.ErrorIs(t, err, domain.ErrEmptyResult)
	require.NotNil(t, result)
	assert.True(t, result.Empty())
	assert.Equal(t, parser.SchemaADDS, result.Schema)
}

func TestParse_InvalidDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"whitespace only", "  \n"},
		{"unknown root", "<html><body/></html>"},
		{"namespaced response", `<response xmlns="urn:example"><data/></response>`},
		{"missing data", "<response><errors/></response>"},
		{"truncated", "<response><data><METAR>"},
		{"not xml", "station_id,latitude\nKDCA,38.85"},
		{"empty bulletin entry", `<collect:MeteorologicalBulletin xmlns:collect="http://def.wmo.int/collect/2014"><collect:meteorologicalInformation/></collect:MeteorologicalBulletin>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newParser().Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidDocument), "got %v", err)
			assert.Nil(t, result)
		})
	}
}

func TestParse_InvalidDocumentKeepsRegistry(t *testing.T) {
	reg := domain.NewRegistry()
	reg.Merge([]domain.Station{{ID: "KDCA", Lat: 38.85, Lon: -77.03}})
	p := parser.New(reg, slog.Default())

	_, err := p.Parse([]byte("<response><data><Station><station_id>KIAD</station_id>"))
	require.ErrorIs(t, err, domain.ErrInvalidDocument)

	_, ok := reg.Lookup("KDCA")
	assert.True(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestParse_MissingTime(t *testing.T) {
	doc := `<response><data>
  <METAR><station_id>KDCA</station_id><latitude>38.85</latitude><longitude>-77.03</longitude></METAR>
  <METAR><station_id>KDCA</station_id><observation_time>yesterday</observation_time><latitude>38.85</latitude><longitude>-77.03</longitude></METAR>
</data></response>`

	result, err := newParser().Parse([]byte(doc))
	require.ErrorIs(t, err, domain.ErrEmptyResult)
	require.Len(t, result.Skipped, 2)
	for _, s := range result.Skipped {
		assert.ErrorIs(t, s, domain.ErrMissingTime)
		assert.Equal(t, "KDCA", s.StationID)
	}
}

func TestParse_UnknownReportElement(t *testing.T) {
	doc := `<response><data>
  <PIREP_LEGACY><station_id>KDCA</station_id></PIREP_LEGACY>
  <METAR><station_id>KDCA</station_id><observation_time>2024-03-01T12:52:00Z</observation_time><latitude>38.85</latitude><longitude>-77.03</longitude></METAR>
</data></response>`

	result, err := newParser().Parse([]byte(doc))
	require.NoError(t, err)
	assert.Len(t, result.Observations, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, 0, result.Skipped[0].Index)
	assert.ErrorIs(t, result.Skipped[0], domain.ErrUnknownType)
}
