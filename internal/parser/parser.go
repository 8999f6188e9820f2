// Package parser decodes aviation weather XML documents into observations.
//
// Two schemas are accepted: the ADDS dataserver response
// (<response><data>...</data></response>) and IWXXM bulletins, whose
// elements are namespace qualified and whose geometry is a GML position
// string "lat lon". Parse sniffs the root element and hands the document
// to the matching decoder; both decoders feed the same report handlers.
package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
)

// Schema identifies the wire format of a document.
type Schema string

const (
	SchemaADDS  Schema = "adds"
	SchemaIWXXM Schema = "iwxxm"
)

var timeZero time.Time

// Result is the outcome of parsing one document.
type Result struct {
	Schema       Schema
	Observations []*domain.Observation
	Stations     []domain.Station
	Skipped      []*domain.RecordError
}

// Empty reports whether the document yielded neither observations nor stations.
func (r *Result) Empty() bool {
	return len(r.Observations) == 0 && len(r.Stations) == 0
}

// Parser turns documents into observations, resolving station geometry
// through a shared registry.
type Parser struct {
	registry *domain.Registry
	logger   *slog.Logger
}

// New creates a Parser. Stations from the site-list documents it parses are
// merged into the registry.
func New(registry *domain.Registry, logger *slog.Logger) *Parser {
	if registry == nil {
		registry = domain.NewRegistry()
	}
	return &Parser{registry: registry, logger: logger}
}

// Registry returns the station registry the parser resolves against.
func (p *Parser) Registry() *domain.Registry { return p.registry }

// Parse decodes a fully buffered document.
//
// Document-level failures wrap domain.ErrInvalidDocument. Per-record failures
// do not abort the document; they are listed in Result.Skipped. A document
// that yields nothing returns its Result together with domain.ErrEmptyResult.
// Stations from site-list entries are committed to the registry only when the
// whole document decoded.
func (p *Parser) Parse(doc []byte) (*Result, error) {
	schema, reports, err := decode(doc)
	if err != nil {
		return nil, err
	}

	s := &parseState{registry: p.registry, staged: make(map[string]domain.Station)}
	result := &Result{Schema: schema}

	// Site entries first, so station-coded reports in the same document resolve.
	for _, r := range reports {
		if r.tag != TagSiteList {
			continue
		}
		st, err := siteEntry(r)
		if err != nil {
			result.Skipped = append(result.Skipped, recordError(r, "", err))
			continue
		}
		s.staged[strings.ToUpper(st.ID)] = st
		result.Stations = append(result.Stations, st)
	}

	for _, r := range reports {
		if r.tag == TagSiteList {
			continue
		}
		obs, err := s.dispatch(r)
		if err != nil {
			stationID := ""
			if obs != nil {
				stationID = obs.StationID
			}
			result.Skipped = append(result.Skipped, recordError(r, stationID, err))
			continue
		}
		result.Observations = append(result.Observations, obs)
	}

	for _, skipped := range result.Skipped {
		p.logger.Debug("report skipped",
			"schema", schema,
			"index", skipped.Index,
			"tag", skipped.Tag,
			"station_id", skipped.StationID,
			"error", skipped.Err,
		)
	}

	if len(result.Stations) > 0 {
		p.registry.Merge(result.Stations)
		p.logger.Info("station registry updated", "stations", len(result.Stations), "known", p.registry.Len())
	}

	if result.Empty() {
		return result, domain.ErrEmptyResult
	}
	return result, nil
}

// parseState is the per-document resolution context.
type parseState struct {
	registry *domain.Registry
	staged   map[string]domain.Station
}

// lookup consults the document's own site entries before the registry.
func (s *parseState) lookup(id string) (domain.Station, bool) {
	if st, ok := s.staged[strings.ToUpper(strings.TrimSpace(id))]; ok {
		return st, true
	}
	return s.registry.Lookup(id)
}

func recordError(r *rawReport, stationID string, err error) *domain.RecordError {
	return &domain.RecordError{Index: r.index, Tag: r.element, StationID: stationID, Err: err}
}

// decode sniffs the root element and runs the matching schema decoder.
func decode(doc []byte) (Schema, []*rawReport, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	start, err := rootElement(dec)
	if err != nil {
		return "", nil, err
	}

	var root node
	if err := dec.DecodeElement(&root, &start); err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}

	switch {
	case start.Name.Local == "response" && start.Name.Space == "":
		reports, err := decodeADDS(&root)
		return SchemaADDS, reports, err
	case isIWXXMNamespace(start.Name.Space):
		reports, err := decodeIWXXM(&root)
		return SchemaIWXXM, reports, err
	default:
		return "", nil, fmt.Errorf("%w: unrecognized root element %q", domain.ErrInvalidDocument, start.Name.Local)
	}
}

func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, fmt.Errorf("%w: no root element", domain.ErrInvalidDocument)
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}
