// Command wxparse parses local weather documents and prints the resulting
// collections, a station time series, units, or the active observation as JSON.
//
// Each document becomes its own collection, named after the file without its
// extension, so reports from different documents never share validity windows.
// Station queries cover every collection holding the station unless -source
// names one, and print results keyed by collection.
//
// Usage:
//
//	go run ./cmd/wxparse \
//	  -sites data/stations.xml \
//	  -station KDCA -params windSpeed,ceiling \
//	  -thresholds '[{"parameter":"windSpeed","marginal":20,"severe":35}]' \
//	  data/metars.xml data/tafs.xml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/aviation-weather-etl/internal/adapter/fetch"
	"github.com/couchcryptid/aviation-weather-etl/internal/config"
	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	"github.com/couchcryptid/aviation-weather-etl/internal/parser"
	"github.com/couchcryptid/aviation-weather-etl/internal/store"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "wxparse:", err)
		os.Exit(1)
	}
}

type options struct {
	sites      string
	source     string
	station    string
	params     string
	at         string
	units      bool
	thresholds string
	interval   time.Duration
	verbose    bool
	documents  []string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("wxparse", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.sites, "sites", "", "comma-separated site-list documents, loaded before the others")
	fs.StringVar(&o.source, "source", "", "collection to print or query, named after its document")
	fs.StringVar(&o.station, "station", "", "station (or synthetic hazard id) to query")
	fs.StringVar(&o.params, "params", "", "comma-separated parameters for -station queries")
	fs.StringVar(&o.at, "at", "", "RFC3339 time, or \"now\", for the active observation of -station")
	fs.BoolVar(&o.units, "units", false, "print the units of -params for -station")
	fs.StringVar(&o.thresholds, "thresholds", "", "threshold rules as JSON, or @file")
	fs.DurationVar(&o.interval, "interval", domain.DefaultInterval, "validity of a station's last report")
	fs.BoolVar(&o.verbose, "v", false, "log skipped reports to stderr")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.documents = fs.Args()

	if len(o.documents) == 0 {
		fs.Usage()
		return nil, errors.New("at least one document is required")
	}
	if (o.at != "" || o.units) && o.station == "" {
		return nil, errors.New("-at and -units need -station")
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	// stdout carries the JSON result, so logs go to stderr.
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rules, err := loadRules(o.thresholds)
	if err != nil {
		return err
	}
	st := store.New()
	if _, err := st.SetThresholds(rules); err != nil {
		return err
	}

	prs := parser.New(domain.NewRegistry(), logger)
	var files fetch.FileFetcher
	ctx := context.Background()

	skipped := []string{}
	for _, path := range splitList(o.sites) {
		result, err := parseFile(ctx, files, prs, path)
		if err != nil && !errors.Is(err, domain.ErrEmptyResult) {
			return err
		}
		skipped = appendSkipped(skipped, path, result)
	}

	var sources []string
	for _, path := range o.documents {
		result, err := parseFile(ctx, files, prs, path)
		if err != nil && !errors.Is(err, domain.ErrEmptyResult) {
			return err
		}
		skipped = appendSkipped(skipped, path, result)

		name := sourceName(path, sources)
		switch {
		case errors.Is(err, domain.ErrEmptyResult):
			st.ReplaceEmpty(name, len(result.Skipped))
		case len(result.Observations) == 0:
			// A site list passed as a document only feeds the registry.
			continue
		default:
			st.Replace(name, domain.InferIntervals(result.Observations, o.interval), len(result.Skipped))
		}
		sources = append(sources, name)
	}

	if o.source != "" {
		if !slices.Contains(sources, o.source) {
			return fmt.Errorf("%w: %s (have %s)", store.ErrUnknownSource, o.source, strings.Join(sources, ", "))
		}
		sources = []string{o.source}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if o.station == "" {
		return encodeCollections(enc, st, sources, skipped)
	}
	out, err := queryStation(st, o, sources)
	if err != nil {
		return err
	}
	return enc.Encode(out)
}

type collectionOutput struct {
	Summary      store.Summary     `json:"summary"`
	Observations []domain.Snapshot `json:"observations"`
}

func encodeCollections(enc *json.Encoder, st *store.Store, sources []string, skipped []string) error {
	summaries := make(map[string]store.Summary)
	for _, sum := range st.Summaries() {
		summaries[sum.Source] = sum
	}
	collections := make([]collectionOutput, 0, len(sources))
	for _, name := range sources {
		_, snaps, err := st.Snapshots(name)
		if err != nil {
			return err
		}
		collections = append(collections, collectionOutput{Summary: summaries[name], Observations: snaps})
	}
	return enc.Encode(map[string]any{"collections": collections, "skipped": skipped})
}

// queryStation answers a -station query against each source holding the
// station, keyed by source name.
func queryStation(st *store.Store, o *options, sources []string) (map[string]any, error) {
	params := splitList(o.params)
	out := make(map[string]any, len(sources))

	if o.at != "" {
		var at time.Time
		if o.at != "now" {
			var err error
			if at, err = time.Parse(time.RFC3339, o.at); err != nil {
				return nil, fmt.Errorf("parse -at: %w", err)
			}
		}
		for _, name := range sources {
			var (
				snap  domain.Snapshot
				found bool
				err   error
			)
			if at.IsZero() {
				snap, found, err = st.Current(name, o.station)
			} else {
				snap, found, err = st.Active(name, o.station, at)
			}
			if err != nil {
				return nil, err
			}
			if found {
				out[name] = snap
			}
		}
		if len(out) == 0 {
			if at.IsZero() {
				at = domain.Now()
			}
			return nil, fmt.Errorf("no observation for %s active at %s", o.station, at.UTC().Format(time.RFC3339))
		}
		return out, nil
	}

	for _, name := range sources {
		samples, err := st.Series(name, o.station, params)
		if err != nil {
			return nil, err
		}
		if len(samples) == 0 {
			continue
		}
		if !o.units {
			out[name] = samples
			continue
		}
		units, err := st.Units(name, o.station, params)
		if err != nil {
			return nil, err
		}
		out[name] = units
	}
	return out, nil
}

// sourceName derives a collection name from a document path, suffixing
// repeats so two files with the same base name stay apart.
func sourceName(path string, taken []string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name := base
	for i := 2; slices.Contains(taken, name); i++ {
		name = fmt.Sprintf("%s-%d", base, i)
	}
	return name
}

func parseFile(ctx context.Context, f fetch.FileFetcher, prs *parser.Parser, path string) (*parser.Result, error) {
	doc, err := f.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	result, err := prs.Parse(doc)
	if err != nil {
		return result, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

func appendSkipped(out []string, path string, result *parser.Result) []string {
	for _, rerr := range result.Skipped {
		out = append(out, fmt.Sprintf("%s: %v", path, rerr))
	}
	return out
}

// loadRules reads threshold rules from inline JSON or, with a leading @, a file.
func loadRules(arg string) ([]domain.ThresholdRule, error) {
	if strings.HasPrefix(arg, "@") {
		data, err := os.ReadFile(strings.TrimPrefix(arg, "@"))
		if err != nil {
			return nil, fmt.Errorf("read thresholds: %w", err)
		}
		arg = string(data)
	}
	return config.ParseThresholds(arg)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
