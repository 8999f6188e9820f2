// Package store holds the in-memory observation collections, one per source.
//
// Each load replaces a source's collection wholesale; a failed load never
// touches it. All mutation (replace, reclassify, clear) is serialized under a
// single write lock, and queries work on copies taken under the read lock.
package store

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	"github.com/google/uuid"
)

// ErrUnknownSource is returned by queries naming a source with no collection.
var ErrUnknownSource = errors.New("unknown source")

// Collection is one source's current batch of observations.
type Collection struct {
	ID           string
	Source       string
	LoadedAt     time.Time
	NoData       bool
	Skipped      int
	Observations []*domain.Observation
}

// Summary describes a collection without its observations.
type Summary struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Count    int            `json:"count"`
	Skipped  int            `json:"skipped"`
	Stations int            `json:"stations"`
	LoadedAt time.Time      `json:"loaded_at"`
	NoData   bool           `json:"no_data"`
	Colors   map[string]int `json:"colors,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithObserver attaches fn to every property of every collection loaded
// afterwards. It runs under the store's write lock and must not call back
// into the store.
func WithObserver(fn domain.ColorObserver) Option {
	return func(s *Store) { s.observer = fn }
}

// Store owns the collections and the active threshold rules.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	rules       []domain.ThresholdRule
	observer    domain.ColorObserver
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{collections: make(map[string]*Collection)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Replace installs a freshly inferred batch as the source's collection and
// classifies it against the active rules.
func (s *Store) Replace(source string, observations []*domain.Observation, skipped int) Summary {
	c := &Collection{
		ID:           uuid.NewString(),
		Source:       source,
		LoadedAt:     domain.Now(),
		Skipped:      skipped,
		Observations: observations,
	}
	if s.observer != nil {
		for _, obs := range observations {
			for _, p := range obs.Properties {
				p.Observe(s.observer)
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rules) > 0 {
		domain.ClassifyAll(c.Observations, s.rules)
	}
	s.collections[source] = c
	return summarize(c)
}

// ReplaceEmpty records a load that parsed but yielded nothing. The source's
// previous observations are dropped so displays show "no data".
func (s *Store) ReplaceEmpty(source string, skipped int) Summary {
	c := &Collection{
		ID:       uuid.NewString(),
		Source:   source,
		LoadedAt: domain.Now(),
		NoData:   true,
		Skipped:  skipped,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[source] = c
	return summarize(c)
}

// SetThresholds validates rules, makes them active, and reclassifies every
// collection. Invalid rules leave the current rules and colors untouched.
func (s *Store) SetThresholds(rules []domain.ThresholdRule) (map[domain.Severity]int, error) {
	if err := domain.ValidateRules(rules); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = slices.Clone(rules)

	counts := make(map[domain.Severity]int, 3)
	for _, c := range s.collections {
		for sev, n := range domain.ClassifyAll(c.Observations, s.rules) {
			counts[sev] += n
		}
	}
	return counts, nil
}

// ClearThresholds drops the active rules and resets every color to neutral.
func (s *Store) ClearThresholds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
	for _, c := range s.collections {
		for _, obs := range c.Observations {
			domain.ClearClassification(obs)
		}
	}
}

// Rules returns a copy of the active threshold rules.
func (s *Store) Rules() []domain.ThresholdRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.rules)
}

// Series extracts a station's time series from a source's collection.
func (s *Store) Series(source, station string, params []string) ([]domain.Sample, error) {
	if err := domain.ValidateSeriesParams(params); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return domain.CollectSeries(station, params, c.Observations), nil
}

// Active returns the station's observation current at t.
func (s *Store) Active(source, station string, at time.Time) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[source]
	if !ok {
		return domain.Snapshot{}, false, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	obs := domain.NearestActive(station, at, c.Observations)
	if obs == nil {
		return domain.Snapshot{}, false, nil
	}
	return obs.Snapshot(), true, nil
}

// Current returns the station's observation active at the package clock's
// current time.
func (s *Store) Current(source, station string) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[source]
	if !ok {
		return domain.Snapshot{}, false, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	obs := domain.SyncToNow(station, c.Observations)
	if obs == nil {
		return domain.Snapshot{}, false, nil
	}
	return obs.Snapshot(), true, nil
}

// Units resolves display units for a station's parameters.
func (s *Store) Units(source, station string, params []string) (map[string]domain.UnitInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return domain.UnitData(station, params, c.Observations, s.rules), nil
}

// Snapshots copies every observation of a source's collection, along with
// the collection ID.
func (s *Store) Snapshots(source string) (string, []domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[source]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	out := make([]domain.Snapshot, 0, len(c.Observations))
	for _, obs := range c.Observations {
		out = append(out, obs.Snapshot())
	}
	return c.ID, out, nil
}

// Summaries lists every collection, ordered by source name.
func (s *Store) Summaries() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.collections))
	for _, c := range s.collections {
		out = append(out, summarize(c))
	}
	slices.SortFunc(out, func(a, b Summary) int {
		return strings.Compare(a.Source, b.Source)
	})
	return out
}

// Count returns the number of observations held for a source.
func (s *Store) Count(source string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[source]; ok {
		return len(c.Observations)
	}
	return 0
}

func summarize(c *Collection) Summary {
	sum := Summary{
		ID:       c.ID,
		Source:   c.Source,
		Count:    len(c.Observations),
		Skipped:  c.Skipped,
		LoadedAt: c.LoadedAt,
		NoData:   c.NoData,
	}
	stations := make(map[string]struct{})
	for _, obs := range c.Observations {
		stations[obs.StationID] = struct{}{}
		if obs.Severity != domain.SeverityNone {
			if sum.Colors == nil {
				sum.Colors = make(map[string]int, 3)
			}
			sum.Colors[obs.Severity.String()]++
		}
	}
	sum.Stations = len(stations)
	return sum
}
