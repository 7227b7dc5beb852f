package logx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDefaultLogDirectory verifies that the default log directory is set correctly.
func TestDefaultLogDirectory(t *testing.T) {
	oldDebugLogDir := os.Getenv("DEBUG_LOG_DIR")
	oldDebugDir := os.Getenv("DEBUG_DIR")
	defer func() {
		os.Setenv("DEBUG_LOG_DIR", oldDebugLogDir)
		os.Setenv("DEBUG_DIR", oldDebugDir)
	}()

	os.Unsetenv("DEBUG_LOG_DIR")
	os.Unsetenv("DEBUG_DIR")

	initDebugFromEnv()

	defaultLogDir := getDefaultLogDir()

	if !strings.HasSuffix(defaultLogDir, "logs") {
		t.Errorf("Expected default log directory to end with 'logs', got: %s", defaultLogDir)
	}
	if defaultLogDir == "." || defaultLogDir == "./" {
		t.Error("Default log directory should not be current directory")
	}

	projectRoot := getProjectRoot()
	expectedLogDir := filepath.Join(projectRoot, "logs")
	if defaultLogDir != expectedLogDir {
		t.Errorf("Expected default log dir %s, got %s", expectedLogDir, defaultLogDir)
	}
}

// TestGetProjectRoot verifies the project root detection.
func TestGetProjectRoot(t *testing.T) {
	projectRoot := getProjectRoot()

	goModPath := filepath.Join(projectRoot, "go.mod")
	if _, err := os.Stat(goModPath); err != nil {
		t.Errorf("Expected to find go.mod at %s, but got error: %v", goModPath, err)
	}
	if projectRoot == "" || projectRoot == "." {
		t.Errorf("Project root should not be empty or current directory, got: %s", projectRoot)
	}
}

// TestDebugToFileWithDefaultDir verifies file logging uses the correct directory.
func TestDebugToFileWithDefaultDir(t *testing.T) {
	tempDir := t.TempDir()

	SetDebugConfig(true, true, tempDir)

	ctx := context.WithValue(context.Background(), ctxAgentIDKey{}, "run-4de1")

	DebugToFile(ctx, "artifactstore", "test_file.log", "saved draft for scene %s", "hello")

	expectedPath := filepath.Join(tempDir, "test_file.log")
	if _, err := os.Stat(expectedPath); err != nil {
		t.Errorf("Expected debug file to be created at %s, but got error: %v", expectedPath, err)
	}

	content, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "saved draft for scene hello") {
		t.Errorf("Expected debug message in file, got: %s", contentStr)
	}
	if !strings.Contains(contentStr, "[artifactstore]") {
		t.Errorf("Expected domain in file, got: %s", contentStr)
	}
}

// TestEnvironmentVariableOverride verifies that environment variables
// override the default log directory.
func TestEnvironmentVariableOverride(t *testing.T) {
	customDir := "/tmp/narratived_custom_logs"
	os.Setenv("DEBUG_LOG_DIR", customDir)
	defer os.Unsetenv("DEBUG_LOG_DIR")

	initDebugFromEnv()

	debugMutex.RLock()
	actualLogDir := debugConfig.LogDir
	debugMutex.RUnlock()

	if actualLogDir != customDir {
		t.Errorf("Expected custom log dir %s, got %s", customDir, actualLogDir)
	}
}
