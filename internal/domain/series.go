package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"
)

// SampleTimeKey is the JSON key of a sample's timestamp. No parameter may
// share it.
const SampleTimeKey = "time"

// ErrReservedParameter is returned for a series request naming SampleTimeKey.
var ErrReservedParameter = errors.New("reserved parameter name")

// ValidateSeriesParams rejects parameter lists that would collide with the
// sample timestamp.
func ValidateSeriesParams(params []string) error {
	if slices.Contains(params, SampleTimeKey) {
		return fmt.Errorf("%w: %q", ErrReservedParameter, SampleTimeKey)
	}
	return nil
}

// Sample is one point of an extracted time series. Values holds one entry
// per requested parameter; nil means the parameter had no numeric reading.
type Sample struct {
	Time   time.Time
	Values map[string]*float64
}

// MarshalJSON flattens the sample into {"time": ..., "<param>": value|null}.
func (s Sample) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Values)+1)
	for k, v := range s.Values {
		if k == SampleTimeKey {
			return nil, fmt.Errorf("%w: %q", ErrReservedParameter, k)
		}
		out[k] = v
	}
	out[SampleTimeKey] = s.Time
	return json.Marshal(out)
}

// ExtractSeries returns the chronological samples for records of the given
// station (or route key). The sequence is lazy and can be ranged over any
// number of times; it re-derives from records on every iteration.
//
// Records reporting the same instant collapse into the last one, which is the
// one InferIntervals leaves active, so sample times strictly increase.
func ExtractSeries(name string, params []string, records []*Observation) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		matched := stationRecords(name, records)
		for i, obs := range matched {
			if i+1 < len(matched) && matched[i+1].ValidFrom.Equal(obs.ValidFrom) {
				continue
			}
			if !yield(sampleOf(obs, params)) {
				return
			}
		}
	}
}

// CollectSeries materializes ExtractSeries. The result is never nil.
func CollectSeries(name string, params []string, records []*Observation) []Sample {
	out := make([]Sample, 0)
	for s := range ExtractSeries(name, params, records) {
		out = append(out, s)
	}
	return out
}

func stationRecords(name string, records []*Observation) []*Observation {
	var matched []*Observation
	for _, obs := range records {
		if obs.StationID == name {
			matched = append(matched, obs)
		}
	}
	slices.SortStableFunc(matched, func(a, b *Observation) int {
		return a.ValidFrom.Compare(b.ValidFrom)
	})
	return matched
}

func sampleOf(obs *Observation, params []string) Sample {
	s := Sample{Time: obs.ValidFrom, Values: make(map[string]*float64, len(params))}
	for _, param := range params {
		s.Values[param] = nil
		p := obs.Properties[param]
		if p == nil {
			continue
		}
		if v, ok := p.Value.Number(); ok {
			s.Values[param] = &v
		}
	}
	return s
}

// NearestActive returns the record of the station whose [ValidFrom, ValidTo)
// contains t, or nil when t lies outside every known interval.
func NearestActive(stationID string, t time.Time, records []*Observation) *Observation {
	for _, obs := range records {
		if obs.StationID == stationID && obs.Active(t) {
			return obs
		}
	}
	return nil
}

// SyncToNow is NearestActive at the package clock's current time.
func SyncToNow(stationID string, records []*Observation) *Observation {
	return NearestActive(stationID, clock.Now(), records)
}
