package logx

import (
	"context"
	"os"
	"strings"
	"testing"
)

func TestContextDebugLogging(t *testing.T) {
	os.Unsetenv("DEBUG")
	os.Unsetenv("DEBUG_DOMAINS")
	os.Unsetenv("DEBUG_FILE")
	os.Unsetenv("DEBUG_DIR")
	initDebugFromEnv()

	SetDebugConfig(true, false, ".")

	ctx := context.WithValue(context.Background(), ctxAgentIDKey{}, "run-7f3a")

	// No domain filtering configured yet: any domain should pass through.
	Debug(ctx, "scenedrafting", "Test message: %s", "hello")

	SetDebugDomains([]string{"scenedrafting", "orchestrator"})

	Debug(ctx, "scenedrafting", "drafting scene 4")
	Debug(ctx, "orchestrator", "advancing to originality_check")

	// worldstate isn't in the allowed domain set, so this is a no-op.
	Debug(ctx, "worldstate", "applying archivist diff")

	DebugState(ctx, "orchestrator", "transition", "DRAFTING", "all scenes finalized")
	DebugMessage(ctx, "scenedrafting", "CRITIQUE", "revision_needed=false")
	DebugFlow(ctx, "scenedrafting", "scene-draft", "complete", "3 beats generated")
}

func TestEnvironmentVariableConfiguration(t *testing.T) {
	os.Setenv("DEBUG", "1")
	os.Setenv("DEBUG_DOMAINS", "scenedrafting,orchestrator")
	initDebugFromEnv()

	if !IsDebugEnabled() {
		t.Error("Expected debug to be enabled via DEBUG=1")
	}
	if !IsDebugEnabledForDomain("scenedrafting") {
		t.Error("Expected scenedrafting domain to be enabled")
	}
	if !IsDebugEnabledForDomain("orchestrator") {
		t.Error("Expected orchestrator domain to be enabled")
	}
	if IsDebugEnabledForDomain("worldstate") {
		t.Error("Expected worldstate domain to be disabled")
	}

	os.Unsetenv("DEBUG")
	os.Unsetenv("DEBUG_DOMAINS")
	initDebugFromEnv()
}

func TestDebugToFileFunction(t *testing.T) {
	tempDir := t.TempDir()
	SetDebugConfig(true, true, tempDir)

	ctx := context.WithValue(context.Background(), ctxAgentIDKey{}, "run-7f3a")

	DebugToFile(ctx, "scenedrafting", "test_debug.log", "Test debug message: %s", "file content")

	content, err := os.ReadFile(tempDir + "/test_debug.log")
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "Test debug message: file content") {
		t.Errorf("Expected debug message in file, got: %s", contentStr)
	}
	if !strings.Contains(contentStr, "[scenedrafting]") {
		t.Errorf("Expected domain in file, got: %s", contentStr)
	}
	if !strings.Contains(contentStr, "[run-7f3a]") {
		t.Errorf("Expected run ID in file, got: %s", contentStr)
	}
}
