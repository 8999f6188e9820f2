package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Severity is the color band assigned to a property or a whole observation.
// The zero value is the neutral, un-thresholded color.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityGood
	SeverityMarginal
	SeveritySevere
)

func (s Severity) String() string {
	switch s {
	case SeverityGood:
		return "good"
	case SeverityMarginal:
		return "marginal"
	case SeveritySevere:
		return "severe"
	default:
		return ""
	}
}

// MarshalText renders the severity as its lowercase name; neutral is empty.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names written by MarshalText; anything else is
// neutral.
func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(v string) Severity {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "good":
		return SeverityGood
	case "marginal":
		return SeverityMarginal
	case "severe":
		return SeveritySevere
	default:
		return SeverityNone
	}
}

type valueKind uint8

const (
	kindNoReading valueKind = iota
	kindNumber
	kindText
)

// Value holds a property reading: a number, a string, or NoReading.
// The zero Value is NoReading.
type Value struct {
	kind valueKind
	num  float64
	text string
}

// NoReading is the explicit "no value reported" sentinel. It is never classified.
var NoReading = Value{}

// NumberValue wraps a numeric reading.
func NumberValue(v float64) Value { return Value{kind: kindNumber, num: v} }

// TextValue wraps a non-numeric reading. Blank text is NoReading.
func TextValue(s string) Value {
	if strings.TrimSpace(s) == "" {
		return NoReading
	}
	return Value{kind: kindText, text: s}
}

// ParseValue decodes raw document text. Blank text and the ADDS missing
// markers ("M", "UNK") decode to NoReading; numeric text decodes to a number.
func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "M" || strings.EqualFold(raw, "UNK") {
		return NoReading
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return NumberValue(v)
	}
	return Value{kind: kindText, text: raw}
}

// IsNoReading reports whether the value is the NoReading sentinel.
func (v Value) IsNoReading() bool { return v.kind == kindNoReading }

// Number returns the numeric reading and whether the value is numeric.
func (v Value) Number() (float64, bool) {
	if v.kind != kindNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindText:
		return v.text
	default:
		return ""
	}
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and
// NoReading as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return json.Marshal(v.num)
	case kindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// ColorObserver is called synchronously after a property's color changes.
type ColorObserver func(p *Property, previous, current Severity)

// Property is one normalized parameter of an observation. Name, Unit and
// Value are fixed at construction; only the color changes afterwards.
type Property struct {
	Name  string
	Unit  string
	Value Value

	color     Severity
	observers []ColorObserver
}

// NewProperty creates a property with the neutral color.
func NewProperty(name, unit string, value Value) *Property {
	return &Property{Name: name, Unit: unit, Value: value}
}

// Color returns the current severity color.
func (p *Property) Color() Severity { return p.color }

// Observe attaches a color-change observer.
func (p *Property) Observe(fn ColorObserver) {
	if fn == nil {
		return
	}
	p.observers = append(p.observers, fn)
}

// SetColor updates the color and notifies observers when it changed.
// It reports whether the color changed.
func (p *Property) SetColor(c Severity) bool {
	if p.color == c {
		return false
	}
	previous := p.color
	p.color = c
	for _, fn := range p.observers {
		fn(p, previous, c)
	}
	return true
}
