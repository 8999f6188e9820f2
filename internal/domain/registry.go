package domain

import (
	"strings"
	"sync"
)

// Registry is the station-id -> coordinates lookup populated from site-list
// documents. It is created once per process; every site list merges into it,
// so stations from earlier lists stay resolvable.
type Registry struct {
	mu       sync.RWMutex
	stations map[string]Station
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stations: make(map[string]Station)}
}

// Merge adds or overwrites the given stations, keeping the rest. A station
// reported again takes its latest coordinates.
func (r *Registry) Merge(stations []Station) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range stations {
		r.stations[normalizeStationID(s.ID)] = s
	}
}

// Lookup returns the station with the given id.
func (r *Registry) Lookup(id string) (Station, bool) {
	if r == nil {
		return Station{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stations[normalizeStationID(id)]
	return s, ok
}

// Len returns the number of known stations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stations)
}

func normalizeStationID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
