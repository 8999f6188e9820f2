package parser

import (
	"fmt"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
)

// Report tags, the keys of the shared handler table.
const (
	TagMetar          = "Metar"
	TagTaf            = "Taf"
	TagSigmet         = "Sigmet"
	TagAircraftReport = "AircraftReport"
	TagSiteList       = "SiteList"
)

// Metadata keys a decoder fills on rawReport.meta. Both schemas use the ADDS
// names so handlers stay schema-neutral.
const (
	metaRawText         = "raw_text"
	metaStationCode     = "station_code"
	metaStationID       = "station_id"
	metaAircraftRef     = "aircraft_ref"
	metaObservationTime = "observation_time"
	metaValidFrom       = "valid_time_from"
	metaLatitude        = "latitude"
	metaLongitude       = "longitude"
	metaElevation       = "elevation_m"
	metaAdvisoryType    = "airsigmet_type"
	metaHazard          = "hazard_type"
	metaReportID        = "report_id"
)

// rawReport is one report as decoded from either schema, before it becomes
// an Observation.
type rawReport struct {
	index    int
	element  string // element name as it appeared in the document
	tag      string // handler-table key
	meta     map[string]string
	fields   []domain.RawField
	geometry string
	point    *domain.LatLon
	boundary []domain.LatLon
}

func newRawReport(index int, element, tag string) *rawReport {
	return &rawReport{
		index:   index,
		element: element,
		tag:     tag,
		meta:    make(map[string]string),
	}
}

// addField appends a raw field, keeping only the first occurrence of a name.
func (r *rawReport) addField(f domain.RawField) {
	for _, existing := range r.fields {
		if existing.Name == f.Name {
			return
		}
	}
	r.fields = append(r.fields, f)
}

// reportHandler turns a rawReport into an Observation.
type reportHandler func(s *parseState, r *rawReport) (*domain.Observation, error)

// handlers is the report-tag dispatch table shared by both decoders.
// SiteList has no entry: site entries are staged in a first pass.
var handlers = map[string]reportHandler{
	TagMetar:          pointReport(domain.KindMetar, metaObservationTime),
	TagTaf:            pointReport(domain.KindTaf, metaValidFrom),
	TagAircraftReport: pointReport(domain.KindAircraftReport, metaObservationTime),
	TagSigmet:         sigmetReport,
}

// dispatch runs the handler for the report's tag.
func (s *parseState) dispatch(r *rawReport) (*domain.Observation, error) {
	h, ok := handlers[r.tag]
	if !ok {
		return nil, fmt.Errorf("%w: report %q", domain.ErrUnknownType, r.element)
	}
	return h(s, r)
}

// pointReport builds a handler for point-located reports timed by timeKey.
func pointReport(kind domain.Kind, timeKey string) reportHandler {
	return func(s *parseState, r *rawReport) (*domain.Observation, error) {
		stationID, err := resolveStationID(r)
		if err != nil {
			return nil, err
		}
		validFrom, err := domain.ParseReportTime(r.meta[timeKey])
		if err != nil {
			return newObservation(kind, stationID, r), err
		}

		obs := newObservation(kind, stationID, r)
		obs.ValidFrom = validFrom
		obs.ValidTo = validFrom
		if err := s.resolveGeometry(r, obs); err != nil {
			return obs, err
		}
		normalizeFields(obs, r.fields)
		return obs, nil
	}
}

// sigmetReport handles area hazards. ADDS AIRSIGMETs carry no station, so a
// deterministic key is synthesized from the advisory itself.
func sigmetReport(s *parseState, r *rawReport) (*domain.Observation, error) {
	stationID, err := resolveStationID(r)
	if err != nil {
		seed := r.meta[metaRawText]
		if seed == "" {
			seed = r.meta[metaReportID]
		}
		stationID = domain.SyntheticStationID(r.meta[metaAdvisoryType], r.meta[metaHazard], seed)
	}
	validFrom, err := domain.ParseReportTime(r.meta[metaValidFrom])
	if err != nil {
		return newObservation(domain.KindSigmet, stationID, r), err
	}

	obs := newObservation(domain.KindSigmet, stationID, r)
	obs.ValidFrom = validFrom
	obs.ValidTo = validFrom
	switch r.geometry {
	case "", geometryStation, geometryPoint:
		return obs, domain.ErrMissingGeometry
	}
	if err := s.resolveGeometry(r, obs); err != nil {
		return obs, err
	}
	normalizeFields(obs, r.fields)
	return obs, nil
}

func newObservation(kind domain.Kind, stationID string, r *rawReport) *domain.Observation {
	obs := domain.NewObservation(kind, stationID, timeZero)
	obs.RawText = r.meta[metaRawText]
	return obs
}

// resolveStationID applies the id priority: station code, then station id,
// then aircraft reference.
func resolveStationID(r *rawReport) (string, error) {
	for _, key := range []string{metaStationCode, metaStationID, metaAircraftRef} {
		if v := r.meta[key]; v != "" {
			return v, nil
		}
	}
	return "", domain.ErrMissingStationID
}

func normalizeFields(obs *domain.Observation, fields []domain.RawField) {
	for _, f := range fields {
		if p := domain.Normalize(f); p != nil {
			obs.Set(p)
		}
	}
}

// siteEntry converts a SiteList report into a Station.
func siteEntry(r *rawReport) (domain.Station, error) {
	id, err := resolveStationID(r)
	if err != nil {
		return domain.Station{}, err
	}
	pos, ok := parseLatLon(r.meta[metaLatitude], r.meta[metaLongitude])
	if !ok {
		return domain.Station{}, domain.ErrMissingGeometry
	}
	st := domain.Station{ID: id, Lat: pos.Lat, Lon: pos.Lon}
	if elev, ok := domain.ParseValue(r.meta[metaElevation]).Number(); ok {
		st.Elevation = &elev
	}
	return st, nil
}
