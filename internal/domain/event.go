package domain

import (
	"slices"
	"strings"
	"time"
)

// Kind discriminates the report variants carried by an Observation.
type Kind string

const (
	KindMetar          Kind = "metar"
	KindTaf            Kind = "taf"
	KindSigmet         Kind = "sigmet"
	KindAircraftReport Kind = "aircraft_report"
)

// LatLon is a WGS-84 coordinate pair.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Station is a reporting site from a site-list document.
type Station struct {
	ID        string   `json:"id"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Elevation *float64 `json:"elevation,omitempty"`
}

// Observation is one parsed report instance. Position and Boundary are
// mutually exclusive: area hazards carry a Boundary, everything else a Position.
// ValidTo is derived by InferIntervals and is never read from the document.
type Observation struct {
	Kind       Kind
	StationID  string
	RawText    string
	Position   *LatLon
	Boundary   []LatLon
	Properties map[string]*Property
	ValidFrom  time.Time
	ValidTo    time.Time

	// Severity is the aggregate color from the last classification pass.
	Severity Severity
}

// NewObservation creates an observation with an empty property set.
func NewObservation(kind Kind, stationID string, validFrom time.Time) *Observation {
	return &Observation{
		Kind:       kind,
		StationID:  stationID,
		ValidFrom:  validFrom,
		ValidTo:    validFrom,
		Properties: make(map[string]*Property),
	}
}

// Set adds or replaces a property.
func (o *Observation) Set(p *Property) {
	o.Properties[p.Name] = p
}

// Property returns the named property, or nil.
func (o *Observation) Property(name string) *Property {
	return o.Properties[name]
}

// Active reports whether t falls inside [ValidFrom, ValidTo).
func (o *Observation) Active(t time.Time) bool {
	return !t.Before(o.ValidFrom) && t.Before(o.ValidTo)
}

// PropertySnapshot is the serialized form of a Property.
type PropertySnapshot struct {
	Name  string   `json:"name"`
	Unit  string   `json:"unit,omitempty"`
	Value Value    `json:"value"`
	Color Severity `json:"color,omitempty"`
}

// Snapshot is a detached, serializable copy of an Observation handed to
// collaborators outside the store's lock.
type Snapshot struct {
	Kind       Kind               `json:"kind"`
	StationID  string             `json:"station_id"`
	RawText    string             `json:"raw_text,omitempty"`
	Position   *LatLon            `json:"position,omitempty"`
	Boundary   []LatLon           `json:"boundary,omitempty"`
	Properties []PropertySnapshot `json:"properties"`
	ValidFrom  time.Time          `json:"valid_from"`
	ValidTo    time.Time          `json:"valid_to"`
	Severity   Severity           `json:"severity,omitempty"`
}

// Snapshot copies the observation. Properties are ordered by name so the
// output is stable.
func (o *Observation) Snapshot() Snapshot {
	s := Snapshot{
		Kind:       o.Kind,
		StationID:  o.StationID,
		RawText:    o.RawText,
		ValidFrom:  o.ValidFrom,
		ValidTo:    o.ValidTo,
		Severity:   o.Severity,
		Properties: make([]PropertySnapshot, 0, len(o.Properties)),
	}
	if o.Position != nil {
		pos := *o.Position
		s.Position = &pos
	}
	if len(o.Boundary) > 0 {
		s.Boundary = append([]LatLon(nil), o.Boundary...)
	}
	for _, p := range o.Properties {
		s.Properties = append(s.Properties, PropertySnapshot{
			Name:  p.Name,
			Unit:  p.Unit,
			Value: p.Value,
			Color: p.Color(),
		})
	}
	slices.SortFunc(s.Properties, func(a, b PropertySnapshot) int {
		return strings.Compare(a.Name, b.Name)
	})
	return s
}
