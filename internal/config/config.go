package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/aviation-weather-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const addsBaseURL = "https://aviationweather.gov/api/data/dataserver?requestType=retrieve&format=xml"

// DefaultSources is used when SOURCES is unset.
const DefaultSources = "metars=" + addsBaseURL + "&dataSource=metars&hoursBeforeNow=3" +
	";tafs=" + addsBaseURL + "&dataSource=tafs&hoursBeforeNow=6" +
	";sigmets=" + addsBaseURL + "&dataSource=airsigmets&hoursBeforeNow=3" +
	";aircraft=" + addsBaseURL + "&dataSource=aircraftreports&hoursBeforeNow=1"

// Source is a named document location.
type Source struct {
	Name     string
	Location string
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	Sources         []Source
	SiteListSource  string
	RefreshSchedule string
	Thresholds      []domain.ThresholdRule
	DefaultInterval time.Duration

	FetchTimeout   time.Duration
	FetchRetries   int
	FetchCacheSize int
	FetchCacheTTL  time.Duration

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	sources, err := ParseSources(sharedcfg.EnvOrDefault("SOURCES", DefaultSources))
	if err != nil {
		return nil, err
	}

	thresholds, err := ParseThresholds(os.Getenv("THRESHOLDS"))
	if err != nil {
		return nil, err
	}

	defaultInterval, err := parseDuration("DEFAULT_INTERVAL", domain.DefaultInterval.String())
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	fetchCacheTTL, err := parseDuration("FETCH_CACHE_TTL", "1m")
	if err != nil {
		return nil, err
	}

	fetchRetries, err := parseNonNegativeInt("FETCH_RETRIES", 2)
	if err != nil {
		return nil, err
	}
	fetchCacheSize, err := parseNonNegativeInt("FETCH_CACHE_SIZE", 32)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Sources:         sources,
		SiteListSource:  os.Getenv("SITE_LIST_SOURCE"),
		RefreshSchedule: sharedcfg.EnvOrDefault("REFRESH_SCHEDULE", "@every 5m"),
		Thresholds:      thresholds,
		DefaultInterval: defaultInterval,
		FetchTimeout:    fetchTimeout,
		FetchRetries:    fetchRetries,
		FetchCacheSize:  fetchCacheSize,
		FetchCacheTTL:   fetchCacheTTL,
		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:  sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "aviation-weather-observations"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if len(cfg.Sources) == 0 && cfg.SiteListSource == "" {
		return nil, errors.New("SOURCES is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

// ParseSources parses a semicolon-separated list of name=location pairs.
func ParseSources(s string) ([]Source, error) {
	var out []Source
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, location, ok := strings.Cut(part, "=")
		name, location = strings.TrimSpace(name), strings.TrimSpace(location)
		if !ok || name == "" || location == "" {
			return nil, fmt.Errorf("invalid SOURCES entry %q: want name=location", part)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("invalid SOURCES: duplicate source %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, Source{Name: name, Location: location})
	}
	return out, nil
}

// ParseThresholds decodes a JSON array of threshold rules. Empty input means
// no rules.
func ParseThresholds(s string) ([]domain.ThresholdRule, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var rules []domain.ThresholdRule
	if err := json.Unmarshal([]byte(s), &rules); err != nil {
		return nil, fmt.Errorf("invalid THRESHOLDS: %w", err)
	}
	if err := domain.ValidateRules(rules); err != nil {
		return nil, fmt.Errorf("invalid THRESHOLDS: %w", err)
	}
	return rules, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
