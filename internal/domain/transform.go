package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"
)

// reportTimeLayouts are the timestamp forms seen in ADDS and IWXXM documents.
var reportTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z",
	"2006-01-02 15:04:05",
}

// ParseReportTime parses a document timestamp into UTC.
func ParseReportTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingTime
	}
	for _, layout := range reportTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable %q", ErrMissingTime, s)
}

// SyntheticStationID produces a deterministic key for reports that carry no
// station, such as ADDS AIRSIGMETs. The same raw report always yields the
// same key, so reloading a document does not invent new series.
func SyntheticStationID(advisoryType, hazard, rawText string) string {
	input := fmt.Sprintf("%s|%s|%s", advisoryType, hazard, strings.TrimSpace(rawText))
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:6])

	parts := make([]string, 0, 3)
	for _, p := range []string{advisoryType, hazard} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, strings.ToUpper(p))
		}
	}
	parts = append(parts, short)
	return strings.Join(parts, "-")
}

// ceilingCovers are the sky covers that constitute a ceiling.
var ceilingCovers = map[string]struct{}{
	"BKN": {},
	"OVC": {},
	"OVX": {},
	"VV":  {},
}

// Ceiling returns the lowest broken-or-worse cloud base in feet.
func Ceiling(layers []SkyLayer) (float64, bool) {
	lowest := math.Inf(1)
	for _, l := range layers {
		if _, ok := ceilingCovers[strings.ToUpper(strings.TrimSpace(l.Cover))]; !ok {
			continue
		}
		if ft, ok := ParseValue(l.BaseFeet).Number(); ok && ft < lowest {
			lowest = ft
		}
	}
	if math.IsInf(lowest, 1) {
		return 0, false
	}
	return lowest, true
}
