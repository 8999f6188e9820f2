// Package pipeline drives document loads from the configured sources into the store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	"github.com/couchcryptid/aviation-weather-etl/internal/observability"
	"github.com/couchcryptid/aviation-weather-etl/internal/parser"
	"github.com/couchcryptid/aviation-weather-etl/internal/store"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// Source is one configured document feed.
type Source struct {
	Name     string
	Location string
	// SiteList sources only feed the station registry.
	SiteList bool
}

// Fetcher retrieves a raw document.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Invalidator is implemented by fetchers that cache documents. A document that
// fails to parse is invalidated so the next attempt refetches it.
type Invalidator interface {
	Invalidate(location string)
}

// Publisher forwards a freshly classified collection downstream.
type Publisher interface {
	Publish(ctx context.Context, source, loadID string, snaps []domain.Snapshot) error
}

// Config wires a Loader. Publisher may be nil.
type Config struct {
	Sources         []Source
	Fetcher         Fetcher
	Parser          *parser.Parser
	Store           *store.Store
	Publisher       Publisher
	Logger          *slog.Logger
	Metrics         *observability.Metrics
	DefaultInterval time.Duration
	// Retries is the number of extra fetch attempts after a failure.
	Retries        int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Loader runs the fetch-parse-infer-store-classify-publish cycle for each source.
type Loader struct {
	sources         []Source
	fetcher         Fetcher
	parser          *parser.Parser
	store           *store.Store
	publisher       Publisher
	logger          *slog.Logger
	metrics         *observability.Metrics
	defaultInterval time.Duration
	retries         int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
	ready           atomic.Bool
}

// NewLoader creates a Loader, applying defaults for unset durations.
func NewLoader(cfg Config) *Loader {
	l := &Loader{
		sources:         cfg.Sources,
		fetcher:         cfg.Fetcher,
		parser:          cfg.Parser,
		store:           cfg.Store,
		publisher:       cfg.Publisher,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		defaultInterval: cfg.DefaultInterval,
		retries:         cfg.Retries,
		initialBackoff:  cfg.InitialBackoff,
		maxBackoff:      cfg.MaxBackoff,
	}
	if l.defaultInterval <= 0 {
		l.defaultInterval = domain.DefaultInterval
	}
	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	if l.initialBackoff <= 0 {
		l.initialBackoff = 200 * time.Millisecond
	}
	if l.maxBackoff <= 0 {
		l.maxBackoff = 5 * time.Second
	}
	return l
}

// CheckReadiness returns nil once at least one source has loaded successfully.
func (l *Loader) CheckReadiness(_ context.Context) error {
	if !l.ready.Load() {
		return errors.New("no source has loaded yet")
	}
	return nil
}

// RunOnce loads every source. Site lists load first and in order, so that
// station-coded reports resolve; the remaining sources load concurrently.
// A failing source does not stop the others; their errors are joined.
func (l *Loader) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error
	var mu sync.Mutex
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err)
	}

	for _, src := range l.sources {
		if !src.SiteList {
			continue
		}
		if _, err := l.Load(ctx, src); err != nil && !errors.Is(err, domain.ErrEmptyResult) {
			record(err)
		}
	}

	var wg sync.WaitGroup
	for _, src := range l.sources {
		if src.SiteList {
			continue
		}
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			if _, err := l.Load(ctx, src); err != nil && !errors.Is(err, domain.ErrEmptyResult) {
				record(err)
			}
		}(src)
	}
	wg.Wait()

	l.logger.Info("load cycle complete",
		"sources", len(l.sources),
		"failed", len(errs),
		"duration", time.Since(start),
	)
	return errors.Join(errs...)
}

// Load refreshes a single source. On failure the source's previous
// collection is left in place. A document that parses but yields nothing
// empties the collection and returns domain.ErrEmptyResult.
func (l *Loader) Load(ctx context.Context, src Source) (store.Summary, error) {
	start := time.Now()
	defer func() {
		l.metrics.LoadDuration.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())
	}()

	doc, err := l.fetch(ctx, src)
	if err != nil {
		return l.fail(src, "fetch failed", err)
	}

	result, err := l.parser.Parse(doc)
	for _, skipped := range skippedOf(result) {
		l.metrics.RecordsSkipped.WithLabelValues(src.Name, skipReason(skipped.Err)).Inc()
	}
	if result != nil && len(result.Stations) > 0 {
		l.metrics.StationsKnown.Set(float64(l.parser.Registry().Len()))
	}

	switch {
	case errors.Is(err, domain.ErrEmptyResult) && src.SiteList:
		l.metrics.LoadsTotal.WithLabelValues(src.Name, "empty").Inc()
		l.logger.Warn("site list returned no stations", "source", src.Name, "skipped", len(result.Skipped))
		return store.Summary{Source: src.Name, NoData: true}, err
	case errors.Is(err, domain.ErrEmptyResult):
		sum := l.store.ReplaceEmpty(src.Name, len(result.Skipped))
		l.metrics.LoadsTotal.WithLabelValues(src.Name, "empty").Inc()
		l.metrics.ObservationsHeld.WithLabelValues(src.Name).Set(0)
		l.logger.Warn("source returned no data", "source", src.Name, "skipped", len(result.Skipped))
		return sum, err
	case err != nil:
		if inv, ok := l.fetcher.(Invalidator); ok {
			inv.Invalidate(src.Location)
		}
		return l.fail(src, "parse failed", err)
	}

	if src.SiteList {
		l.metrics.LoadsTotal.WithLabelValues(src.Name, "success").Inc()
		l.logger.Info("site list loaded", "source", src.Name, "stations", len(result.Stations))
		return store.Summary{Source: src.Name, Skipped: len(result.Skipped), LoadedAt: domain.Now()}, nil
	}

	observations := domain.InferIntervals(result.Observations, l.defaultInterval)
	sum := l.store.Replace(src.Name, observations, len(result.Skipped))

	l.metrics.RecordsParsed.WithLabelValues(src.Name).Add(float64(len(observations)))
	l.metrics.ObservationsHeld.WithLabelValues(src.Name).Set(float64(sum.Count))
	l.metrics.LoadsTotal.WithLabelValues(src.Name, "success").Inc()
	l.ready.Store(true)
	l.logger.Info("source loaded",
		"source", src.Name,
		"load_id", sum.ID,
		"schema", result.Schema,
		"observations", sum.Count,
		"stations", sum.Stations,
		"skipped", sum.Skipped,
	)

	l.publish(ctx, src.Name)
	return sum, nil
}

// fetch retrieves the document, retrying with exponential backoff.
func (l *Loader) fetch(ctx context.Context, src Source) ([]byte, error) {
	backoff := l.initialBackoff
	var lastErr error
	for attempt := 0; attempt <= l.retries; attempt++ {
		if attempt > 0 {
			if !retry.SleepWithContext(ctx, backoff) {
				return nil, ctx.Err()
			}
			backoff = retry.NextBackoff(backoff, l.maxBackoff)
		}

		start := time.Now()
		doc, err := l.fetcher.Fetch(ctx, src.Location)
		l.metrics.FetchDuration.WithLabelValues(src.Name).Observe(time.Since(start).Seconds())
		if err == nil {
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		l.logger.Warn("fetch attempt failed", "source", src.Name, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// publish forwards the source's classified collection. Failures are logged
// and counted; the stored collection is unaffected.
func (l *Loader) publish(ctx context.Context, source string) {
	if l.publisher == nil {
		return
	}
	loadID, snaps, err := l.store.Snapshots(source)
	if err != nil || len(snaps) == 0 {
		return
	}
	if err := l.publisher.Publish(ctx, source, loadID, snaps); err != nil {
		l.metrics.PublishErrors.Inc()
		l.logger.Error("publish failed", "source", source, "load_id", loadID, "error", err)
		return
	}
	l.metrics.MessagesProduced.Add(float64(len(snaps)))
}

func (l *Loader) fail(src Source, msg string, err error) (store.Summary, error) {
	l.metrics.LoadsTotal.WithLabelValues(src.Name, "error").Inc()
	l.logger.Error(msg, "source", src.Name, "location", src.Location, "error", err)
	return store.Summary{}, fmt.Errorf("load %s: %w", src.Name, err)
}

func skippedOf(r *parser.Result) []*domain.RecordError {
	if r == nil {
		return nil
	}
	return r.Skipped
}

// skipReason turns a record error into a metric label.
func skipReason(err error) string {
	for _, known := range []error{
		domain.ErrMissingStationID,
		domain.ErrMissingGeometry,
		domain.ErrMissingTime,
		domain.ErrUnknownType,
	} {
		if errors.Is(err, known) {
			return strings.ReplaceAll(known.Error(), " ", "_")
		}
	}
	return "other"
}
