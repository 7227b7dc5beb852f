// Command narratived is a minimal development entrypoint that wires the
// reference adapters (pkg/llmadapter, pkg/vectoradapter, pkg/artifactstore,
// pkg/promptstore) into an internal/orchestrator.Service, starts one
// generation run, and prints its event stream to stdout as NDJSON. It is a
// local smoke-testing convenience, not a server: no HTTP/WS ingress is
// built here (that remains explicitly out of this core's scope).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"narrator/internal/ports"

	"narrator/internal/orchestrator"
	"narrator/pkg/agentrunner/metrics"
	"narrator/pkg/artifactstore"
	"narrator/pkg/config"
	"narrator/pkg/eventlog"
	localevents "narrator/pkg/eventlog/local"
	redisevents "narrator/pkg/eventlog/redisstore"
	"narrator/pkg/llmadapter"
	"narrator/pkg/logx"
	"narrator/pkg/promptstore"
	"narrator/pkg/proto"
	"narrator/pkg/vectoradapter"
)

const defaultConfigPath = "/etc/narratived/config.json"

var logger = logx.NewLogger("narratived")

// deps bundles every constructed collaborator so main can both build a
// Service from them and reach past ports.Artifacts for RunIDsWithSnapshot,
// which is not part of the interface (§4.6's "no List method by design").
type deps struct {
	service   *orchestrator.Service
	artifacts *artifactstore.Store
	cleanup   func()
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to a JSON config file (overrides CONFIG_PATH and the default)")
		projectID   = flag.String("project", "", "project id for a new run (required unless -restore-only)")
		seedIdea    = flag.String("seed", "", "seed idea for a new run (required unless -restore-only)")
		mode        = flag.String("mode", string(proto.ModeFull), "generation mode: full or branching")
		provider    = flag.String("provider", "", "LLM provider: anthropic, openai, gemini, or ollama (default from config/env)")
		model       = flag.String("model", "", "LLM model name")
		promptPack  = flag.String("prompt-pack", "", "path to a YAML prompt pack (optional; falls back to baked-in templates)")
		restoreOnly = flag.Bool("restore-only", false, "restore persisted runs and exit without starting a new one")
	)
	flag.Parse()

	cfg, err := config.Load(resolveConfigPath(*configPath))
	if err != nil {
		logger.Error("load config: %v", err)
		os.Exit(1)
	}

	d, err := build(cfg, *promptPack, *provider, *model)
	if err != nil {
		logger.Error("build service: %v", err)
		os.Exit(1)
	}
	defer d.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	restoreRestartedRuns(ctx, d)

	if *restoreOnly {
		return
	}

	if *projectID == "" || *seedIdea == "" {
		logger.Error("-project and -seed are required unless -restore-only is set")
		os.Exit(1)
	}

	runID, err := d.service.StartGeneration(ctx, orchestrator.StartGenerationRequest{
		ProjectID: *projectID,
		SeedIdea:  *seedIdea,
		Mode:      proto.Mode(*mode),
		LLMConfig: proto.LLMConfig{Provider: *provider, Model: *model},
	})
	if err != nil {
		logger.Error("start generation: %v", err)
		os.Exit(1)
	}
	logger.Info("started run %s", runID)

	events, err := d.service.StreamEvents(ctx, runID, eventlog.Latest)
	if err != nil {
		logger.Error("stream events: %v", err)
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	for event := range events {
		if err := encoder.Encode(event); err != nil {
			logger.Warn("encode event: %v", err)
		}
		if event.Type == proto.EventGenerationCompleted || event.Type == proto.EventError {
			break
		}
	}

	shutdown(cfg, d.service)
}

// resolveConfigPath implements the flag > CONFIG_PATH env var > hardcoded
// default precedence, matching the teacher's root entrypoint.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return defaultConfigPath
}

// build constructs every ports collaborator from cfg and wires them into an
// orchestrator.Service. The returned cleanup func closes whatever owns a
// live connection (the artifact database, a Redis client), innermost first.
func build(cfg config.Config, promptPackPath, provider, model string) (*deps, error) {
	var closers []func() error

	llmClient, err := llmadapter.New(proto.LLMConfig{Provider: provider, Model: model})
	if err != nil {
		return nil, fmt.Errorf("llmadapter: %w", err)
	}

	prompts, err := buildPromptStore(promptPackPath)
	if err != nil {
		return nil, err
	}

	vectors, vectorCloser, err := buildVectorStore(cfg)
	if err != nil {
		return nil, err
	}
	if vectorCloser != nil {
		closers = append(closers, vectorCloser)
	}

	artifacts, err := artifactstore.Open(cfg.Store.ArtifactsDBPath)
	if err != nil {
		return nil, fmt.Errorf("artifactstore: %w", err)
	}
	closers = append(closers, artifacts.Close)

	events, eventsCloser, err := buildEventStore(cfg)
	if err != nil {
		return nil, err
	}
	if eventsCloser != nil {
		closers = append(closers, eventsCloser)
	}

	recorder := buildRecorder(cfg)

	svc := orchestrator.New(llmClient, prompts, vectors, artifacts, events, recorder, cfg.Orchestrator)

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("cleanup: %v", err)
			}
		}
	}
	return &deps{service: svc, artifacts: artifacts, cleanup: cleanup}, nil
}

func buildPromptStore(packPath string) (*promptstore.Store, error) {
	if packPath == "" {
		return promptstore.New(), nil
	}
	pack, err := promptstore.LoadPack(packPath)
	if err != nil {
		return nil, fmt.Errorf("promptstore: load pack %s: %w", packPath, err)
	}
	store, err := promptstore.NewFromPack(pack)
	if err != nil {
		return nil, fmt.Errorf("promptstore: %w", err)
	}
	return store, nil
}

// buildVectorStore selects the Redis-backed adapter when store.vectorstore_addr
// is configured, else the in-memory adapter used by tests and single-process
// smoke runs.
func buildVectorStore(cfg config.Config) (ports.VectorStore, func() error, error) {
	if cfg.Store.VectorStoreAddr == "" {
		return vectoradapter.NewMemoryStore(), nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := vectoradapter.NewRedisStore(ctx, vectoradapter.RedisConfig{Addr: cfg.Store.VectorStoreAddr})
	if err != nil {
		return nil, nil, fmt.Errorf("vectoradapter: %w", err)
	}
	return store, nil, nil
}

// buildEventStore selects the in-process store (default) or the
// Redis Streams store when cfg.Store.EventLogBackend names "redis".
func buildEventStore(cfg config.Config) (eventlog.Store, func() error, error) {
	if cfg.Store.EventLogBackend != "redis" {
		return localevents.New(), nil, nil
	}
	if cfg.Store.RedisAddr == "" {
		return nil, nil, fmt.Errorf("eventlog: redis backend selected but store.redis_addr is empty")
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, nil, fmt.Errorf("eventlog: connect to redis at %s: %w", cfg.Store.RedisAddr, err)
	}
	return redisevents.New(client), client.Close, nil
}

func buildRecorder(cfg config.Config) metrics.Recorder {
	if !cfg.Metrics.Enabled {
		return metrics.Nop()
	}
	if cfg.Metrics.Exporter == "prometheus" {
		return metrics.NewPrometheusRecorder()
	}
	return metrics.NewInternalRecorder()
}

// restoreRestartedRuns enumerates every run holding a run_state_snapshot
// artifact and restores it, paused, so an operator can Resume it explicitly
// (§9's "restoration of interrupted snapshots with isPaused=true").
func restoreRestartedRuns(ctx context.Context, d *deps) {
	runIDs, err := d.artifacts.RunIDsWithSnapshot(ctx)
	if err != nil {
		logger.Warn("list snapshotted runs: %v", err)
		return
	}
	for _, runID := range runIDs {
		if err := d.service.RestoreRun(ctx, runID); err != nil {
			logger.Warn("restore run %s: %v", runID, err)
			continue
		}
		logger.Info("restored run %s (paused)", runID)
	}
}

func shutdown(cfg config.Config, svc *orchestrator.Service) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Orchestrator.GracefulShutdownMs)*time.Millisecond)
	defer cancel()
	svc.Shutdown(shutdownCtx)
}
