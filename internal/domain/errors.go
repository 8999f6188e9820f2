package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDocument means the root element or document shape was not
	// recognized. Fatal for the load.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrMissingStationID means a report carried no station code, station id
	// or aircraft reference. The record is skipped.
	ErrMissingStationID = errors.New("missing station id")

	// ErrMissingGeometry means neither the report nor the station registry
	// yielded coordinates. The record is skipped.
	ErrMissingGeometry = errors.New("missing geometry")

	// ErrMissingTime means the report's observation or validity time was
	// absent or unparseable. The record is skipped.
	ErrMissingTime = errors.New("missing report time")

	// ErrUnknownType is a report-tag or geometry-type dispatch miss.
	ErrUnknownType = errors.New("unknown report or geometry type")

	// ErrEmptyResult means the document parsed but produced no records.
	// Callers treat it as a "no data" condition rather than a failure.
	ErrEmptyResult = errors.New("empty result")
)

// RecordError describes one report that was skipped during parsing.
type RecordError struct {
	Index     int    // position of the report within the document
	Tag       string // element name of the report
	StationID string // resolved station id, if any
	Err       error
}

func (e *RecordError) Error() string {
	if e.StationID != "" {
		return fmt.Sprintf("record %d (%s %s): %v", e.Index, e.Tag, e.StationID, e.Err)
	}
	return fmt.Sprintf("record %d (%s): %v", e.Index, e.Tag, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
