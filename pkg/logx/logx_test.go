package logx

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("orchestrator")

	if logger.GetAgentID() != "orchestrator" {
		t.Errorf("Expected domain 'orchestrator', got '%s'", logger.GetAgentID())
	}
	if logger.logger == nil {
		t.Error("Expected logger to be initialized")
	}
}

func TestLogFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("scenedrafting")
	logger.logger = log.New(&buf, "", 0)

	logger.Info("scene %d ready for critique", 4)

	output := buf.String()

	if !strings.Contains(output, "[scenedrafting]") {
		t.Errorf("Expected domain in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected log level in output, got: %s", output)
	}
	if !strings.Contains(output, "scene 4 ready for critique") {
		t.Errorf("Expected formatted message in output, got: %s", output)
	}
	if !strings.Contains(output, "T") || !strings.Contains(output, "Z") {
		t.Errorf("Expected ISO timestamp in output, got: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("orchestrator")
	logger.logger = log.New(&buf, "", 0)

	tests := []struct {
		level    Level
		logFunc  func(string, ...interface{})
		expected string
	}{
		{LevelDebug, logger.Debug, "DEBUG"},
		{LevelInfo, logger.Info, "INFO"},
		{LevelWarn, logger.Warn, "WARN"},
		{LevelError, logger.Error, "ERROR"},
	}

	SetDebugConfig(true, false, "")
	defer SetDebugConfig(false, false, "")

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message")

			output := buf.String()
			if !strings.Contains(output, tt.expected) {
				t.Errorf("Expected level '%s' in output, got: %s", tt.expected, output)
			}
		})
	}
}

func TestWithAgentID(t *testing.T) {
	original := NewLogger("orchestrator")
	derived := original.WithAgentID("run-7f3a")

	if derived.GetAgentID() != "run-7f3a" {
		t.Errorf("Expected derived domain 'run-7f3a', got '%s'", derived.GetAgentID())
	}
	if original.GetAgentID() != "orchestrator" {
		t.Errorf("Expected original domain unchanged, got '%s'", original.GetAgentID())
	}
	if derived.logger != original.logger {
		t.Error("Expected loggers to share the same underlying log.Logger")
	}
}

func TestLogFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("agentrunner")
	logger.logger = log.New(&buf, "", 0)

	logger.Info("completed agent %s with retries %d", "writer", 2)

	output := buf.String()
	if !strings.Contains(output, "completed agent writer with retries 2") {
		t.Errorf("Expected formatted message, got: %s", output)
	}
}

func TestMultipleAgents(t *testing.T) {
	var buf bytes.Buffer

	orchestrator := NewLogger("orchestrator")
	orchestrator.logger = log.New(&buf, "", 0)

	scenedrafting := NewLogger("scenedrafting")
	scenedrafting.logger = log.New(&buf, "", 0)

	orchestrator.Info("starting run")
	scenedrafting.Info("drafting scene")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")

	if len(lines) != 2 {
		t.Errorf("Expected 2 log lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "[orchestrator]") {
		t.Errorf("Expected first line to contain [orchestrator], got: %s", lines[0])
	}
	if !strings.Contains(lines[1], "[scenedrafting]") {
		t.Errorf("Expected second line to contain [scenedrafting], got: %s", lines[1])
	}
}

func TestLogLevelConstants(t *testing.T) {
	expectedLevels := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
	}

	for level, expected := range expectedLevels {
		if string(level) != expected {
			t.Errorf("Expected level constant %s to equal '%s', got '%s'", expected, expected, string(level))
		}
	}
}

func TestTimestampFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("orchestrator")
	logger.logger = log.New(&buf, "", 0)

	logger.Info("timestamp test")

	output := buf.String()

	start := strings.Index(output, "[")
	end := strings.Index(output, "]")
	if start == -1 || end == -1 || end <= start {
		t.Fatalf("Could not find timestamp in output: %s", output)
	}

	timestamp := output[start+1 : end]
	if _, err := time.Parse("2006-01-02T15:04:05.000Z", timestamp); err != nil {
		t.Errorf("Invalid timestamp format '%s': %v", timestamp, err)
	}
}

func ExampleLogger_usage() {
	orchestrator := NewLogger("orchestrator")
	scenedrafting := NewLogger("scenedrafting")

	orchestrator.Info("starting generation run")
	orchestrator.Debug("reading outline file: %s", "outlines/001.json")

	scenedrafting.Info("received scene from orchestrator")
	scenedrafting.Warn("high token usage detected: %d tokens", 950)
	scenedrafting.Error("failed to connect to provider: %v", "timeout")

	archivist := orchestrator.WithAgentID("archivist")
	archivist.Info("world-state pass completed")
}

func TestExampleUsage(t *testing.T) {
	ExampleLogger_usage()
}
