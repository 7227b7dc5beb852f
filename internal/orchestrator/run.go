package orchestrator

import (
	"sync"
	"time"

	"narrator/pkg/constraintstore"
	"narrator/pkg/proto"
)

// runState is the run registry's unit of ownership (§3 "Ownership"): only
// the owning run task may mutate Run/Artifacts/Constraints/World/RawFacts;
// other accessors take a read-only snapshot via Service.GetStatus.
type runState struct {
	mu sync.Mutex

	run         proto.GenerationRun
	artifacts   proto.GenerationArtifacts
	constraints *constraintstore.Store
	world       proto.WorldState
	rawFacts    []proto.RawFact

	// archivistConsumed is the index into rawFacts already handed to an
	// Archivist pass; RunArchivist always receives rawFacts[archivistConsumed:].
	archivistConsumed int

	// pauseRequested is polled by ShouldStop at every documented safepoint
	// (§5). cancelled is set by Cancel, which has already evicted the run
	// from the registry by the time the run task observes it.
	pauseRequested bool
	cancelled      bool

	// done is closed once the run task returns, for tests and for
	// graceful-shutdown snapshotting to wait on quiescence.
	done chan struct{}
}

func newRunState(run proto.GenerationRun) *runState {
	return &runState{
		run:         run,
		artifacts:   proto.NewGenerationArtifacts(),
		constraints: constraintstore.New(),
		world:       proto.NewWorldState(),
		done:        make(chan struct{}),
	}
}

// ShouldStop reports whether the run task must pause or cancel at the
// current safepoint (§5). Pause and Cancel are distinguished by the
// caller: Cancel additionally sets rs.cancelled.
func (rs *runState) ShouldStop() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.pauseRequested || rs.cancelled
}

func (rs *runState) IsCancelled() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.cancelled
}

// snapshot returns a value copy of the run's status fields for read-only
// callers (GetStatus/ListRuns), taken under the lock so it never observes a
// torn write from the owning task.
func (rs *runState) snapshot() proto.GenerationRun {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.run
}

// The setX helpers below are the owning run task's only way to mutate
// GenerationRun's status fields; each takes the lock so GetStatus/ListRuns
// (called from other goroutines) never observe a torn write.

func (rs *runState) setPhase(phase proto.Phase) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.run.Phase = phase
	rs.run.UpdatedAt = time.Now().UTC()
}

func (rs *runState) setCurrentScene(n int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.run.CurrentScene = n
	rs.run.UpdatedAt = time.Now().UTC()
}

func (rs *runState) setTotalScenes(n int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.run.TotalScenes = n
}

func (rs *runState) setCurrentSceneOutline(scene *proto.OutlineScene) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.run.CurrentSceneOutline = scene
}

func (rs *runState) setLastArchivistScene(n int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.run.LastArchivistScene = n
}

func (rs *runState) setCompleted() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.run.Phase = PhaseCompleted
	rs.run.IsCompleted = true
	rs.run.UpdatedAt = time.Now().UTC()
}

func (rs *runState) phase() proto.Phase {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.run.Phase
}

// registry is the concurrent runId -> runState map (§5, "only the owning
// run task may mutate a given run's state").
type registry struct {
	mu   sync.RWMutex
	runs map[string]*runState
}

func newRegistry() *registry {
	return &registry{runs: make(map[string]*runState)}
}

func (r *registry) put(rs *runState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[rs.run.RunID] = rs
}

func (r *registry) get(runID string) (*runState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.runs[runID]
	return rs, ok
}

func (r *registry) evict(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, runID)
}

func (r *registry) list() []*runState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*runState, 0, len(r.runs))
	for _, rs := range r.runs {
		out = append(out, rs)
	}
	return out
}
