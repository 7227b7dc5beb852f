package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"narrator/internal/evallimiter"
	"narrator/internal/ports"
	"narrator/internal/wire"
	"narrator/pkg/agentrunner"
	"narrator/pkg/agentrunner/metrics"
	"narrator/pkg/config"
	"narrator/pkg/eventlog"
	"narrator/pkg/logx"
	"narrator/pkg/proto"
	"narrator/pkg/scenedrafting"
)

// historyReplayMax bounds a single StreamEvents Range call (§6's late-join
// protocol); runs with more history than this would need pagination, which
// is out of scope for this core.
const historyReplayMax = 100000

// Service is the Orchestrator's public API: StartGeneration, StreamEvents,
// GetStatus, ListRuns, Pause, Resume, Cancel (§4.8). It owns the run
// registry and wires the ports collaborators (LLMClient, VectorStore,
// Artifacts, PromptStore) into one AgentRunner and one SceneDraftingEngine
// shared across every run.
type Service struct {
	llm       ports.LLMClient
	prompts   ports.PromptStore
	vectors   ports.VectorStore
	artifacts ports.Artifacts
	events    eventlog.Store
	runner    *agentrunner.Runner
	scenes    *scenedrafting.Engine
	evalLimit *evallimiter.Limiter
	cfg       config.Orchestrator
	registry  *registry
	logger    *logx.Logger
}

// New wires the four external collaborators and the orchestrator's
// internal packages into a ready-to-use Service.
func New(llm ports.LLMClient, prompts ports.PromptStore, vectors ports.VectorStore, artifacts ports.Artifacts, events eventlog.Store, recorder metrics.Recorder, cfg config.Orchestrator) *Service {
	runner := agentrunner.New(prompts, llm, recorder)
	return &Service{
		llm:       llm,
		prompts:   prompts,
		vectors:   vectors,
		artifacts: artifacts,
		events:    events,
		runner:    runner,
		scenes:    scenedrafting.New(runner, runner, vectors, events, cfg),
		evalLimit: evallimiter.New(cfg.EvaluationConcurrency),
		cfg:       cfg,
		registry:  newRegistry(),
		logger:    logx.NewLogger("orchestrator"),
	}
}

// StartGenerationRequest is StartGeneration's typed input.
type StartGenerationRequest struct {
	ProjectID string
	SeedIdea  string
	LLMConfig proto.LLMConfig
	Mode      proto.Mode
}

// StartGeneration validates req, registers a new run, and kicks off its
// phase loop in a background goroutine; it returns as soon as the run is
// registered and generation_started has been published (§4.8).
func (s *Service) StartGeneration(ctx context.Context, req StartGenerationRequest) (string, error) {
	if req.ProjectID == "" || req.SeedIdea == "" {
		return "", &ClientError{Err: fmt.Errorf("projectId and seedIdea are required")}
	}
	if req.Mode == "" {
		req.Mode = proto.ModeFull
	}

	now := time.Now().UTC()
	run := proto.GenerationRun{
		RunID:     uuid.NewString(),
		ProjectID: req.ProjectID,
		SeedIdea:  req.SeedIdea,
		LLMConfig: req.LLMConfig,
		Mode:      req.Mode,
		Phase:     proto.PhaseGenesis,
		StartedAt: now,
		UpdatedAt: now,
	}

	rs := newRunState(run)
	s.registry.put(rs)

	s.publish(ctx, run.RunID, proto.EventGenerationStarted, map[string]any{
		"projectId": req.ProjectID,
		"seedIdea":  req.SeedIdea,
		"mode":      string(req.Mode),
	})

	go s.runLoop(context.Background(), rs)

	return run.RunID, nil
}

// StartGenerationFromMap accepts a raw, loosely-keyed request (either
// camelCase or snake_case, per §3/§6's "accepts both naming conventions at
// the persistence boundary") and maps it onto StartGenerationRequest before
// delegating to StartGeneration.
func (s *Service) StartGenerationFromMap(ctx context.Context, raw map[string]any) (string, error) {
	canon, ok := wire.KeysToCamel(raw).(map[string]any)
	if !ok {
		return "", &ClientError{Err: fmt.Errorf("request body must be a JSON object")}
	}

	req := StartGenerationRequest{
		ProjectID: stringField(canon, "projectId"),
		SeedIdea:  stringField(canon, "seedIdea"),
		Mode:      proto.Mode(stringField(canon, "mode")),
	}
	if llmCfg, ok := canon["llmConfig"].(map[string]any); ok {
		req.LLMConfig = proto.LLMConfig{
			Provider:    stringField(llmCfg, "provider"),
			Model:       stringField(llmCfg, "model"),
			APIKey:      stringField(llmCfg, "apiKey"),
			Temperature: floatField(llmCfg, "temperature"),
		}
	}
	return s.StartGeneration(ctx, req)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// GetStatus returns a snapshot of one run's status fields.
func (s *Service) GetStatus(runID string) (proto.GenerationRun, error) {
	rs, ok := s.registry.get(runID)
	if !ok {
		return proto.GenerationRun{}, &ClientError{Err: fmt.Errorf("%w: %s", ErrUnknownRun, runID)}
	}
	return rs.snapshot(), nil
}

// ListRuns returns a snapshot of every run currently tracked by the
// registry, in no particular order.
func (s *Service) ListRuns() []proto.GenerationRun {
	states := s.registry.list()
	out := make([]proto.GenerationRun, 0, len(states))
	for _, rs := range states {
		out = append(out, rs.snapshot())
	}
	return out
}

// Pause requests cooperative suspension at the run's next documented
// safepoint; the run task observes this via runState.ShouldStop and exits
// cleanly, leaving the run registered with isPaused=true (§5, §4.8).
func (s *Service) Pause(runID string) error {
	rs, ok := s.registry.get(runID)
	if !ok {
		return &ClientError{Err: fmt.Errorf("%w: %s", ErrUnknownRun, runID)}
	}
	rs.mu.Lock()
	if rs.cancelled {
		rs.mu.Unlock()
		return &ClientError{Err: fmt.Errorf("%w: run %s is cancelled", ErrInvalidTransition, runID)}
	}
	rs.pauseRequested = true
	rs.run.IsPaused = true
	rs.mu.Unlock()
	return nil
}

// Resume clears the pause flag and re-invokes the phase runner, which
// idempotently resumes at the run's current phase and scene (§4.8). It
// waits for the previous run task to have actually exited (rs.done closed)
// before starting a new one, since the owning-goroutine invariant (§5)
// would otherwise be violated by two goroutines mutating the same
// runState concurrently during the brief window between a Pause request
// and the old task noticing it.
func (s *Service) Resume(runID string) error {
	rs, ok := s.registry.get(runID)
	if !ok {
		return &ClientError{Err: fmt.Errorf("%w: %s", ErrUnknownRun, runID)}
	}

	rs.mu.Lock()
	if rs.cancelled {
		rs.mu.Unlock()
		return &ClientError{Err: fmt.Errorf("%w: run %s is cancelled", ErrInvalidTransition, runID)}
	}
	if IsTerminalPhase(rs.run.Phase) {
		rs.mu.Unlock()
		return &ClientError{Err: fmt.Errorf("%w: run %s already reached a terminal phase", ErrInvalidTransition, runID)}
	}
	if !rs.pauseRequested {
		rs.mu.Unlock()
		return nil // already running; resume is idempotent
	}
	previousDone := rs.done
	rs.mu.Unlock()

	select {
	case <-previousDone:
	default:
		return &ClientError{Err: fmt.Errorf("%w: run %s has not finished pausing yet, retry shortly", ErrInvalidTransition, runID)}
	}

	rs.mu.Lock()
	rs.pauseRequested = false
	rs.run.IsPaused = false
	rs.done = make(chan struct{})
	rs.mu.Unlock()

	go s.runLoop(context.Background(), rs)
	return nil
}

// Cancel marks the run cancelled and evicts it from the registry
// immediately; no further events are emitted for this run (§4.8). The run
// task, if still executing, observes rs.cancelled via ShouldStop at its
// next safepoint and unwinds without publishing further events.
func (s *Service) Cancel(runID string) error {
	rs, ok := s.registry.get(runID)
	if !ok {
		return &ClientError{Err: fmt.Errorf("%w: %s", ErrUnknownRun, runID)}
	}
	rs.mu.Lock()
	rs.cancelled = true
	rs.run.Error = "cancelled"
	rs.mu.Unlock()
	s.registry.evict(runID)
	return nil
}

// StreamEvents implements the documented late-join protocol: a synthetic
// "connected" frame first, then history replay via eventlog.Join, then live
// events, all interleaved with heartbeats (§4.2, §6).
func (s *Service) StreamEvents(ctx context.Context, runID string, fromID int64) (<-chan proto.Event, error) {
	joined, err := eventlog.Join(ctx, s.events, runID, historyReplayMax)
	if err != nil {
		return nil, err
	}

	connected := proto.Event{RunID: runID, Type: proto.EventConnected, Timestamp: time.Now().UTC()}

	out := make(chan proto.Event)
	go func() {
		defer close(out)
		select {
		case out <- connected:
		case <-ctx.Done():
			return
		}
		for e := range joined {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	return eventlog.Heartbeat(ctx, runID, out, 15*time.Second), nil
}

func (s *Service) publish(ctx context.Context, runID string, eventType proto.EventType, data map[string]any) {
	if _, err := s.events.Publish(ctx, runID, eventType, data); err != nil {
		s.logger.Warn("publish %s for run %s failed: %v", eventType, runID, err)
	}
}
