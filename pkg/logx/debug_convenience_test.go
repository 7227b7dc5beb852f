package logx

import (
	"context"
	"testing"
)

// TestDebugConvenienceFunctions exercises the global Debug/DebugState/
// DebugMessage/DebugFlow functions end-to-end the way a phase handler or
// SceneDraftingEngine call site would use them.
func TestDebugConvenienceFunctions(t *testing.T) {
	SetDebugDomains([]string{"orchestrator", "scenedrafting", "eventlog"})
	SetDebugConfig(true, false, "")
	defer func() {
		SetDebugConfig(false, false, "")
		SetDebugDomains(nil)
	}()

	ctx := context.WithValue(context.Background(), ctxAgentIDKey{}, "run-9c12")

	DebugState(ctx, "orchestrator", "transition", "OUTLINE -> DRAFTING", "outline approved")
	DebugMessage(ctx, "eventlog", "PHASE_COMPLETE", "published for run-9c12")
	DebugFlow(ctx, "scenedrafting", "scene-draft", "complete", "3 beats generated")

	// worldstate was never added to the domain allow-list above; this call
	// must be a silent no-op rather than panicking.
	DebugFlow(ctx, "worldstate", "archivist-pass", "complete", "4 facts folded in")
}

// TestEnvironmentVariableControlDemo documents the env vars that gate debug
// tracing; it doesn't assert anything beyond "this compiles and runs",
// since the behavior itself is covered by TestEnvironmentVariableConfiguration.
func TestEnvironmentVariableControlDemo(t *testing.T) {
	t.Log("DEBUG=1 enables debug tracing for every domain")
	t.Log("DEBUG=1 DEBUG_DOMAINS=orchestrator restricts tracing to the orchestrator domain")
	t.Log("DEBUG=1 DEBUG_DOMAINS=orchestrator,scenedrafting allows a comma-separated domain list")
	t.Log("DEBUG_FILE=1 additionally mirrors debug lines to DEBUG_LOG_DIR (default: {project root}/logs)")
}
