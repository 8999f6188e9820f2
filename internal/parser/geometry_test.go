package parser

import (
	"testing"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePos(t *testing.T) {
	tests := []struct {
		name string
		pos  string
		want *domain.LatLon
	}{
		{"lat lon", "51.505 0.055", &domain.LatLon{Lat: 51.505, Lon: 0.055}},
		{"extra whitespace", "  38.85\t-77.03 ", &domain.LatLon{Lat: 38.85, Lon: -77.03}},
		{"with altitude", "38.85 -77.03 120", &domain.LatLon{Lat: 38.85, Lon: -77.03}},
		{"single value", "38.85", nil},
		{"out of range", "91 10", nil},
		{"not numeric", "north east", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePos(tt.pos)
			if tt.want == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestParsePosList(t *testing.T) {
	got, err := parsePosList("55.0 -20.0 60.0 -20.0 60.0 -10.0")
	require.NoError(t, err)
	assert.Equal(t, []domain.LatLon{{Lat: 55, Lon: -20}, {Lat: 60, Lon: -20}, {Lat: 60, Lon: -10}}, got)

	_, err = parsePosList("55.0 -20.0 60.0")
	assert.Error(t, err)

	_, err = parsePosList("55.0 -200.0")
	assert.Error(t, err)
}

func TestResolveGeometry(t *testing.T) {
	reg := domain.NewRegistry()
	reg.Merge([]domain.Station{{ID: "KDCA", Lat: 38.85, Lon: -77.03}})
	s := &parseState{registry: reg, staged: map[string]domain.Station{
		"KIAD": {ID: "KIAD", Lat: 38.95, Lon: -77.45},
	}}

	tests := []struct {
		name      string
		stationID string
		report    *rawReport
		wantPos   *domain.LatLon
		wantErr   error
	}{
		{
			name:      "inline point",
			stationID: "KDCA",
			report:    &rawReport{geometry: geometryPoint, point: &domain.LatLon{Lat: 1, Lon: 2}},
			wantPos:   &domain.LatLon{Lat: 1, Lon: 2},
		},
		{
			name:      "registry station",
			stationID: "kdca",
			report:    &rawReport{},
			wantPos:   &domain.LatLon{Lat: 38.85, Lon: -77.03},
		},
		{
			name:      "staged station wins",
			stationID: "KIAD",
			report:    &rawReport{geometry: geometryStation},
			wantPos:   &domain.LatLon{Lat: 38.95, Lon: -77.45},
		},
		{
			name:      "unknown station",
			stationID: "KXYZ",
			report:    &rawReport{},
			wantErr:   domain.ErrMissingGeometry,
		},
		{
			name:      "empty area",
			stationID: "KDCA",
			report:    &rawReport{geometry: geometryArea},
			wantErr:   domain.ErrMissingGeometry,
		},
		{
			name:      "unknown geometry",
			stationID: "KDCA",
			report:    &rawReport{geometry: "circle"},
			wantErr:   domain.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := domain.NewObservation(domain.KindMetar, tt.stationID, timeZero)
			err := s.resolveGeometry(tt.report, obs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, obs.Position)
			assert.Equal(t, *tt.wantPos, *obs.Position)
		})
	}
}
