package domain

import (
	"cmp"
	"slices"
	"time"
)

// DefaultInterval is the validity given to a station's last record when the
// batch offers nothing longer, and always to a station with a single record.
const DefaultInterval = 72 * time.Hour

// InferIntervals derives ValidTo for every record in a freshly parsed batch.
//
// Records are stable-sorted by (StationID, ValidFrom) in place. Each record is
// valid until the next record of the same station; a station's last record is
// valid for the longest interval seen for that station, but never less than
// defaultInterval. Passing zero uses DefaultInterval.
//
// A record with a zero ValidFrom is a parser contract violation and panics.
func InferIntervals(records []*Observation, defaultInterval time.Duration) []*Observation {
	if defaultInterval <= 0 {
		defaultInterval = DefaultInterval
	}

	slices.SortStableFunc(records, func(a, b *Observation) int {
		if c := cmp.Compare(a.StationID, b.StationID); c != 0 {
			return c
		}
		return a.ValidFrom.Compare(b.ValidFrom)
	})

	start := 0
	for start < len(records) {
		end := start
		for end+1 < len(records) && records[end+1].StationID == records[start].StationID {
			end++
		}
		inferStation(records[start:end+1], defaultInterval)
		start = end + 1
	}
	return records
}

// inferStation fills one station's run of sorted records.
func inferStation(run []*Observation, defaultInterval time.Duration) {
	var longest time.Duration
	for i := 0; i < len(run)-1; i++ {
		if run[i].ValidFrom.IsZero() {
			panic("domain: observation " + run[i].StationID + " has no valid-from time")
		}
		run[i].ValidTo = run[i+1].ValidFrom
		if d := run[i].ValidTo.Sub(run[i].ValidFrom); d > longest {
			longest = d
		}
	}

	last := run[len(run)-1]
	if last.ValidFrom.IsZero() {
		panic("domain: observation " + last.StationID + " has no valid-from time")
	}
	last.ValidTo = last.ValidFrom.Add(max(longest, defaultInterval))
}
