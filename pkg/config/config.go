// Package config provides configuration loading, validation, and management for the
// narrative generation orchestrator.
//
// ARCHITECTURE OVERVIEW:
//
// The package keeps a single global Config instance in memory, protected by a mutex,
// loaded once at startup from a JSON file plus environment variable overrides. All
// reads return the config BY VALUE so callers cannot mutate shared state; Load is the
// only function that installs a new Config, and it does so in one step under the mutex.
//
// Algorithm constants named directly in the specification (maxRevisions,
// beatsThreshold, wordsPerBeat, archivistCadence, ...) are exposed as config knobs
// with defaults matching the specification; unrecognized keys in the config file are
// ignored rather than rejected, per the "unknown keys are ignored" contract.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"narrator/pkg/logx"
)

// Global config instance with mutex protection.
//
//nolint:gochecknoglobals // Intentional singleton pattern for config management
var (
	current *Config
	mu      sync.RWMutex
	logger  = logx.NewLogger("config")
)

// SchemaVersion guards against loading configs written by an incompatible version.
const SchemaVersion = "1.0"

// Model describes an LLM model's capabilities and limits. Entries are loaded
// into Orchestrator.Models, but no component of this module reads them, so
// none of these limits is enforced.
type Model struct {
	Name           string  `json:"name"`
	MaxTPM         int     `json:"max_tpm"`
	MaxConnections int     `json:"max_connections"`
	CPM            float64 `json:"cpm"`          // cost per million tokens (USD)
	DailyBudget    float64 `json:"daily_budget"` // max spend per day (USD)
}

// WindowLimit is a sliding-window rate limit: max admissions per window.
type WindowLimit struct {
	WindowSec int `json:"window_sec"`
	Max       int `json:"max"`
}

// RateLimitConfig holds the two RateLimitGate configurations from spec §4.1/§6.
type RateLimitConfig struct {
	Default   WindowLimit `json:"default"`
	Expensive WindowLimit `json:"expensive"`
	// ExpensivePrefixes lists path prefixes routed to the Expensive configuration.
	ExpensivePrefixes []string `json:"expensive_prefixes"`
}

// DefaultRateLimitConfig matches spec §4.1 and §6 ("100 req/60s default, 10 req/60s expensive").
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Default:           WindowLimit{WindowSec: 60, Max: 100},
		Expensive:         WindowLimit{WindowSec: 60, Max: 10},
		ExpensivePrefixes: []string{"/generate", "/start"},
	}
}

// Orchestrator bundles the environment/config knobs enumerated in spec §6.
type Orchestrator struct {
	MaxRevisions          int             `json:"max_revisions"`
	BeatsThreshold        int             `json:"beats_threshold"`
	WordsPerBeat          int             `json:"words_per_beat"`
	ArchivistCadence      int             `json:"archivist_cadence"`
	RateLimitDefault      WindowLimit     `json:"rate_limit_default"`
	RateLimitExpensive    WindowLimit     `json:"rate_limit_expensive"`
	EvaluationConcurrency int             `json:"evaluation_concurrency"`
	PromptCacheTTLSec     int             `json:"prompt_cache_ttl_sec"`
	GracefulShutdownMs    int             `json:"graceful_shutdown_ms"`
	MaxExpansions         int             `json:"max_expansions"`
	SimilarityThreshold   float64         `json:"similarity_threshold"`
	SkipPolishScore       int             `json:"skip_polish_score"`
	Models                map[string]Model `json:"models"`
}

// DefaultOrchestrator returns the defaults named throughout spec.md §4 and §6.
func DefaultOrchestrator() Orchestrator {
	return Orchestrator{
		MaxRevisions:          2,
		BeatsThreshold:        1000,
		WordsPerBeat:          500,
		ArchivistCadence:      3,
		RateLimitDefault:      WindowLimit{WindowSec: 60, Max: 100},
		RateLimitExpensive:    WindowLimit{WindowSec: 60, Max: 10},
		EvaluationConcurrency: 3,
		PromptCacheTTLSec:     300,
		GracefulShutdownMs:    30000,
		MaxExpansions:         3,
		SimilarityThreshold:   0.5,
		SkipPolishScore:       8,
		Models:                map[string]Model{},
	}
}

// MetricsConfig controls whether AgentRunner records through Prometheus or the
// in-memory recorder (see pkg/agentrunner/metrics). No HTTP scrape surface is
// configured here; exposing /metrics is explicitly out of this core's scope.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Exporter  string `json:"exporter"` // "prometheus" or "internal"
	Namespace string `json:"namespace"`
}

// StoreConfig selects backing stores. EventLogBackend is "local" (the default,
// and what tests use) or "redis", which requires RedisAddr; a non-empty
// VectorStoreAddr selects the Redis VectorStore over the in-memory one.
// RateLimitBackend is loaded but read by nothing in this module.
type StoreConfig struct {
	EventLogBackend   string `json:"eventlog_backend"`
	RateLimitBackend  string `json:"ratelimit_backend"`
	VectorStoreAddr   string `json:"vectorstore_addr"`
	RedisAddr         string `json:"redis_addr"`
	ArtifactsDBPath   string `json:"artifacts_db_path"`
}

// Config is the top-level configuration for the orchestrator process.
type Config struct {
	SchemaVersion string        `json:"schema_version"`
	Orchestrator  Orchestrator  `json:"orchestrator"`
	Metrics       MetricsConfig `json:"metrics"`
	Store         StoreConfig   `json:"store"`
}

// Default returns a Config populated entirely with documented defaults.
func Default() Config {
	return Config{
		SchemaVersion: SchemaVersion,
		Orchestrator:  DefaultOrchestrator(),
		Metrics:       MetricsConfig{Enabled: true, Exporter: "internal", Namespace: "narrator"},
		Store: StoreConfig{
			EventLogBackend:  "local",
			RateLimitBackend: "local",
			ArtifactsDBPath:  "narrator.db",
		},
	}
}

// Load reads a JSON config file (if it exists) layered over Default(), then applies
// environment variable overrides, and installs the result as the process-wide config.
// A missing file is not an error — Default() alone is a valid configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else {
			if err := json.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	mu.Lock()
	current = &cfg
	mu.Unlock()

	logger.Info("configuration loaded (schema %s)", cfg.SchemaVersion)
	return cfg, nil
}

// Get returns a copy of the current process-wide config. Panics if Load has not
// been called, matching the teacher's fail-fast singleton convention.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		panic("config.Load must be called before config.Get")
	}
	return *current
}

// applyEnvOverrides layers NARRATOR_*-prefixed environment variables over cfg.
// Unknown/malformed env vars are ignored, consistent with the "unknown keys are
// ignored" contract from spec §6.
func applyEnvOverrides(cfg *Config) {
	if v, ok := envInt("NARRATOR_MAX_REVISIONS"); ok {
		cfg.Orchestrator.MaxRevisions = v
	}
	if v, ok := envInt("NARRATOR_BEATS_THRESHOLD"); ok {
		cfg.Orchestrator.BeatsThreshold = v
	}
	if v, ok := envInt("NARRATOR_WORDS_PER_BEAT"); ok {
		cfg.Orchestrator.WordsPerBeat = v
	}
	if v, ok := envInt("NARRATOR_ARCHIVIST_CADENCE"); ok {
		cfg.Orchestrator.ArchivistCadence = v
	}
	if v, ok := envInt("NARRATOR_EVALUATION_CONCURRENCY"); ok {
		cfg.Orchestrator.EvaluationConcurrency = v
	}
	if v := os.Getenv("NARRATOR_REDIS_ADDR"); v != "" {
		cfg.Store.RedisAddr = v
	}
	if v := os.Getenv("NARRATOR_ARTIFACTS_DB_PATH"); v != "" {
		cfg.Store.ArtifactsDBPath = v
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// GracefulShutdownTimeout returns the configured graceful-shutdown bound as a Duration.
func (c Config) GracefulShutdownTimeout() time.Duration {
	return time.Duration(c.Orchestrator.GracefulShutdownMs) * time.Millisecond
}

// PromptCacheTTL returns the configured prompt-cache TTL as a Duration.
func (c Config) PromptCacheTTL() time.Duration {
	return time.Duration(c.Orchestrator.PromptCacheTTLSec) * time.Second
}
