package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
)

// Geometry types carried by a rawReport.
const (
	geometryStation = "station" // no inline geometry; resolve through the registry
	geometryPoint   = "point"
	geometryArea    = "area"
)

// geometryHandler places an observation using the report's geometry.
type geometryHandler func(s *parseState, r *rawReport, obs *domain.Observation) error

// geometryHandlers is the geometry-type dispatch table.
var geometryHandlers = map[string]geometryHandler{
	geometryPoint:   placePoint,
	geometryStation: placeStation,
	geometryArea:    placeArea,
}

// resolveGeometry dispatches on the report's geometry type. A miss is
// ErrUnknownType.
func (s *parseState) resolveGeometry(r *rawReport, obs *domain.Observation) error {
	kind := r.geometry
	if kind == "" {
		kind = geometryStation
	}
	h, ok := geometryHandlers[kind]
	if !ok {
		return fmt.Errorf("%w: geometry %q", domain.ErrUnknownType, kind)
	}
	return h(s, r, obs)
}

func placePoint(s *parseState, r *rawReport, obs *domain.Observation) error {
	if r.point == nil {
		return placeStation(s, r, obs)
	}
	pos := *r.point
	obs.Position = &pos
	return nil
}

func placeStation(s *parseState, _ *rawReport, obs *domain.Observation) error {
	st, ok := s.lookup(obs.StationID)
	if !ok {
		return domain.ErrMissingGeometry
	}
	obs.Position = &domain.LatLon{Lat: st.Lat, Lon: st.Lon}
	return nil
}

func placeArea(_ *parseState, r *rawReport, obs *domain.Observation) error {
	if len(r.boundary) == 0 {
		return domain.ErrMissingGeometry
	}
	obs.Boundary = append([]domain.LatLon(nil), r.boundary...)
	return nil
}

// parseLatLon parses a latitude/longitude text pair.
func parseLatLon(lat, lon string) (*domain.LatLon, bool) {
	la, errLat := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	lo, errLon := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if errLat != nil || errLon != nil {
		return nil, false
	}
	if la < -90 || la > 90 || lo < -180 || lo > 180 {
		return nil, false
	}
	return &domain.LatLon{Lat: la, Lon: lo}, true
}

// parsePos parses a GML position string "lat lon".
func parsePos(pos string) (*domain.LatLon, bool) {
	parts := strings.Fields(pos)
	if len(parts) < 2 {
		return nil, false
	}
	return parseLatLon(parts[0], parts[1])
}

// parsePosList parses a GML posList "lat lon lat lon ..." into ordered vertices.
func parsePosList(list string) ([]domain.LatLon, error) {
	parts := strings.Fields(list)
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("posList has odd coordinate count %d", len(parts))
	}
	out := make([]domain.LatLon, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		p, ok := parseLatLon(parts[i], parts[i+1])
		if !ok {
			return nil, fmt.Errorf("posList vertex %d: invalid coordinates %q %q", i/2, parts[i], parts[i+1])
		}
		out = append(out, *p)
	}
	return out, nil
}
