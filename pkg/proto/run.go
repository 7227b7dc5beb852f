// Package proto defines the shared data types passed between the Orchestrator,
// EventLog, ConstraintStore, WorldStateApplier, and the reference adapters:
// GenerationRun, its Artifacts, KeyConstraint, RawFact, WorldState, and Event.
package proto

import "time"

// Phase is a node in the phase graph (see internal/orchestrator for the
// canonical transition table).
type Phase string

const (
	PhaseGenesis          Phase = "genesis"
	PhaseCharacters       Phase = "characters"
	PhaseNarratorDesign   Phase = "narrator_design"
	PhaseWorldbuilding    Phase = "worldbuilding"
	PhaseOutlining        Phase = "outlining"
	PhaseAdvancedPlanning Phase = "advanced_planning"
	PhaseDrafting         Phase = "drafting"
	PhaseCritique         Phase = "critique"
	PhaseRevision         Phase = "revision"
	PhaseOriginalityCheck Phase = "originality_check"
	PhaseImpactAssessment Phase = "impact_assessment"
	PhasePolish           Phase = "polish"
)

// Mode selects whether a run produces a single linear narrative or explores
// branches. branching is accepted by the data model but not otherwise
// implemented by this core (see spec Non-goals).
type Mode string

const (
	ModeFull      Mode = "full"
	ModeBranching Mode = "branching"
)

// LLMConfig names the provider/model a run's AgentRunner calls should use.
// apiKey is never persisted in plaintext; see pkg/config/secrets.go.
type LLMConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	APIKey      string  `json:"apiKey,omitempty"`
	Temperature float64 `json:"temperature"`
}

// GenerationRun is the Orchestrator's unit of ownership: one per generation
// request, from StartGeneration through a terminal phase or Cancel.
type GenerationRun struct {
	RunID        string    `json:"runId"`
	ProjectID    string    `json:"projectId"`
	SeedIdea     string    `json:"seedIdea"`
	LLMConfig    LLMConfig `json:"llmConfig"`
	Mode         Mode      `json:"mode"`
	Phase        Phase     `json:"phase"`
	CurrentScene int       `json:"currentScene"`
	TotalScenes  int       `json:"totalScenes"`
	IsPaused     bool      `json:"isPaused"`
	IsCompleted  bool      `json:"isCompleted"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// LastArchivistScene tracks the high-water mark consumed by the most
	// recent Archivist pass (§4.7.5); archivist cadence is every 3 scenes.
	LastArchivistScene int `json:"lastArchivistScene"`

	// CurrentSceneOutline is cleared after every scene (§4.7 step 7, "state
	// hygiene") so a restored snapshot never resumes mid-scene with stale
	// outline context.
	CurrentSceneOutline *OutlineScene `json:"currentSceneOutline,omitempty"`
}

// Narrative is the premise-level artifact produced by Genesis.
type Narrative struct {
	Premise string   `json:"premise"`
	Genre   string   `json:"genre"`
	Tone    string   `json:"tone"`
	Arc     string   `json:"arc"`
	Themes  []string `json:"themes"`
	Hook    string   `json:"hook"`
}

// Role is a normalized character role.
type Role string

const (
	RoleProtagonist Role = "protagonist"
	RoleAntagonist  Role = "antagonist"
	RoleSupporting  Role = "supporting"
)

// Character is one entry in the ordered character sequence produced by the
// Characters phase; Role is normalized by the OutputNormalizer's role
// synonym mapping.
type Character struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Psychology string `json:"psychology,omitempty"`
	Backstory  string `json:"backstory,omitempty"`
}

// WorldElement is one entry in the worldbuilding map, keyed by element type
// (e.g. "geography", "magic_system", "politics").
type WorldElement struct {
	Description string            `json:"description"`
	Details     map[string]string `json:"details,omitempty"`
}

// OutlineScene is one entry of Outline.Scenes.
type OutlineScene struct {
	SceneNumber   int      `json:"sceneNumber"`
	Title         string   `json:"title"`
	Setting       string   `json:"setting"`
	Characters    []string `json:"characters"`
	WordCount     int      `json:"wordCount"`
	Hook          string   `json:"hook,omitempty"`
	FutureEvents  []string `json:"futureEvents,omitempty"`
}

// Outline is the scene-by-scene plan produced by Outlining/AdvancedPlanning.
type Outline struct {
	Scenes []OutlineScene `json:"scenes"`
}

// DraftStatus tracks a Draft's position in the critique/revision loop.
type DraftStatus string

const (
	DraftStatusDrafting DraftStatus = "drafting"
	DraftStatusRevising DraftStatus = "revising"
	DraftStatusApproved DraftStatus = "approved"
	DraftStatusFinal    DraftStatus = "final"
)

// Draft is the content for one scene at a point in the critique/revision
// loop; keyed by sceneNumber in GenerationArtifacts.Drafts.
type Draft struct {
	Title          string      `json:"title"`
	Content        string      `json:"content"`
	WordCount      int         `json:"wordCount"`
	RevisionNumber int         `json:"revisionNumber"`
	Status         DraftStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// Critique is one Critic pass over a scene's Draft; keyed by sceneNumber in
// GenerationArtifacts.Critiques, which holds an ordered sequence per scene
// (one entry per critique/revision cycle).
type Critique struct {
	Score               int      `json:"score"`
	Approved            bool     `json:"approved"`
	RevisionNeeded       bool     `json:"revisionNeeded"`
	Issues              []string `json:"issues,omitempty"`
	RevisionRequests    []string `json:"revisionRequests,omitempty"`
	Strengths           []string `json:"strengths,omitempty"`
	WordCountCompliance *bool    `json:"wordCountCompliance,omitempty"`
	ScopeAdherence      *bool    `json:"scopeAdherence,omitempty"`
}

// GenerationArtifacts bundles every artifact attached to a run. Each field
// corresponds to one row in the Artifacts table keyed by (runId, artifactType)
// per spec §6 ("Persisted state").
type GenerationArtifacts struct {
	Narrative     Narrative               `json:"narrative"`
	Characters    []Character             `json:"characters"`
	Worldbuilding map[string]WorldElement `json:"worldbuilding"`
	Outline       Outline                 `json:"outline"`
	Drafts        map[int]Draft           `json:"drafts"`
	Critiques     map[int][]Critique      `json:"critiques"`
	RevisionCount map[int]int             `json:"revisionCount"`
}

// NewGenerationArtifacts returns an empty artifact bundle with all maps
// initialized, ready for incremental population by phase handlers.
func NewGenerationArtifacts() GenerationArtifacts {
	return GenerationArtifacts{
		Worldbuilding: make(map[string]WorldElement),
		Drafts:        make(map[int]Draft),
		Critiques:     make(map[int][]Critique),
		RevisionCount: make(map[int]int),
	}
}

// KeyConstraint is one entry in the ConstraintStore. SceneNumber 0 denotes a
// seed constraint installed at the end of Genesis.
type KeyConstraint struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	SceneNumber int       `json:"sceneNumber"`
	Timestamp   time.Time `json:"timestamp"`
	Immutable   bool      `json:"immutable"`
}

// SeedConstraintKeys are the immutable constraints installed exactly once at
// the end of Genesis (§3, §4.8).
var SeedConstraintKeys = []string{"seed_idea", "genre", "premise", "tone", "narrative_arc"}

// RawFact is one append-only observation recorded by any agent; the
// Archivist consumes the suffix since its last run (§4.7.5).
type RawFact struct {
	Fact        string    `json:"fact"`
	Source      string    `json:"source"`
	SceneNumber int       `json:"sceneNumber"`
	Timestamp   time.Time `json:"timestamp"`
}

// CharacterState is one entry of WorldState.Characters.
type CharacterState struct {
	Location      string            `json:"location"`
	Status        string            `json:"status"`
	Possessions   []string          `json:"possessions"`
	Relationships map[string]string `json:"relationships"`
}

// WorldState is the mutable world-model, updated only by WorldStateApplier
// from diffs emitted by the Archivist (§4.4).
type WorldState struct {
	Characters map[string]CharacterState `json:"characters"`
	Locations  map[string]any            `json:"locations"`
	Flags      map[string]any            `json:"flags"`
}

// NewWorldState returns an empty WorldState with all maps initialized.
func NewWorldState() WorldState {
	return WorldState{
		Characters: make(map[string]CharacterState),
		Locations:  make(map[string]any),
		Flags:      make(map[string]any),
	}
}

// EventType enumerates the event types the core MUST emit (spec §6).
type EventType string

const (
	EventGenerationStarted         EventType = "generation_started"
	EventPhaseStart                EventType = "phase_start"
	EventPhaseComplete             EventType = "phase_complete"
	EventSceneDraftStart           EventType = "scene_draft_start"
	EventSceneBeatStart            EventType = "scene_beat_start"
	EventSceneBeatComplete         EventType = "scene_beat_complete"
	EventSceneBeatError            EventType = "scene_beat_error"
	EventSceneDraftComplete        EventType = "scene_draft_complete"
	EventSceneExpandStart          EventType = "scene_expand_start"
	EventSceneExpandComplete       EventType = "scene_expand_complete"
	EventSceneCritiqueStart        EventType = "scene_critique_start"
	EventSceneCritiqueComplete     EventType = "scene_critique_complete"
	EventSceneRevisionStart        EventType = "scene_revision_start"
	EventSceneRevisionComplete     EventType = "scene_revision_complete"
	EventScenePolishStart          EventType = "scene_polish_start"
	EventScenePolishComplete       EventType = "scene_polish_complete"
	EventArchivistStart            EventType = "archivist_start"
	EventArchivistComplete         EventType = "archivist_complete"
	EventNewDevelopmentsCollected  EventType = "new_developments_collected"
	EventShutdownInitiated         EventType = "shutdown_initiated"
	EventRunRestored               EventType = "run_restored"
	EventError                     EventType = "ERROR"
	EventGenerationCompleted       EventType = "generation_completed"
	// EventHeartbeat is injected at the transport layer (§4.2); it does not
	// occupy event ids and is never produced by EventLog.Publish.
	EventHeartbeat EventType = "heartbeat"
	// EventConnected is emitted once per subscriber before history replay
	// (§6, "the server first emits a connected frame").
	EventConnected EventType = "connected"
)

// TerminalEventTypes are the event types after which a stream consumer MUST
// stop listening (§4.2, §6).
var TerminalEventTypes = map[EventType]bool{
	EventError:               true,
	EventGenerationCompleted: true,
}

// PolishStatus is the outcome recorded on scene_polish_complete (§4.7.4).
type PolishStatus string

const (
	PolishStatusPolished        PolishStatus = "polished"
	PolishStatusRejected        PolishStatus = "polish_rejected"
	PolishStatusSkippedHighScore PolishStatus = "skipped_high_score"
	PolishStatusNotApproved     PolishStatus = "not_approved"
)

// Event is one stream record; Id is monotonic within a run (§3).
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"runId"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// ArtifactType enumerates the Artifacts table's artifactType values (§6).
// Scene-numbered types are rendered with fmt.Sprintf as e.g. "draft_scene_3".
type ArtifactType string

const (
	ArtifactNarrative        ArtifactType = "narrative"
	ArtifactCharacters       ArtifactType = "characters"
	ArtifactWorldbuilding    ArtifactType = "worldbuilding"
	ArtifactOutline          ArtifactType = "outline"
	ArtifactAdvancedPlan     ArtifactType = "advanced_plan"
	ArtifactDraftScenePrefix    = "draft_scene_"
	ArtifactCritiqueScenePrefix = "critique_scene_"
	ArtifactRevisionScenePrefix = "revision_scene_"
	ArtifactExpandedScenePrefix = "expanded_scene_"
	ArtifactFinalScenePrefix    = "final_scene_"
	ArtifactRunStateSnapshot ArtifactType = "run_state_snapshot"
)
