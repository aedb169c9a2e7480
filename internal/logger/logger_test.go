package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"requestinvoice/internal/models"
	"requestinvoice/internal/version"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  slog.Level
		expectErr bool
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warn", input: "warn", expected: slog.LevelWarn},
		{name: "error", input: "error", expected: slog.LevelError},
		{name: "uppercase", input: "DEBUG", expected: slog.LevelDebug},
		{name: "invalid", input: "invalid", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected error for input %q, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error for input %q: %v", tt.input, err)
				return
			}
			if level != tt.expected {
				t.Errorf("expected level %v, got %v", tt.expected, level)
			}
		})
	}
}

func TestSetupStdout(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			cfg := models.LoggingConfig{Level: "info", Format: format, Output: "stdout"}

			logger, closer, err := Setup(cfg, version.Info{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if closer != nil {
				t.Error("expected nil closer for stdout")
			}
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestSetupFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "gateway.log")

	cfg := models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}

	logger, closer, err := Setup(cfg, version.Info{Version: "1.2.3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer == nil {
		t.Fatal("expected non-nil closer for file output")
	}
	defer closer.Close()

	logger.Info("invoice server started", "port", 8809)

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "invoice server started") {
		t.Errorf("log file does not contain expected message, got: %s", content)
	}
	if !strings.Contains(content, `"version":"1.2.3"`) {
		t.Errorf("log file does not contain version attribute, got: %s", content)
	}
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.LoggingConfig
	}{
		{name: "invalid level", cfg: models.LoggingConfig{Level: "invalid", Format: "json", Output: "stdout"}},
		{name: "file without path", cfg: models.LoggingConfig{Level: "info", Format: "json", Output: "file"}},
		{name: "unwritable path", cfg: models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: "/nonexistent/directory/test.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Setup(tt.cfg, version.Info{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", slog.LevelInfo)

	logger.Info("control request", "secret", "hunter2", "Authorization", "Bearer hunter2", "port", 8809)

	output := buf.String()
	if strings.Contains(output, "hunter2") {
		t.Errorf("secret leaked into log output: %s", output)
	}
	if !strings.Contains(output, redacted) {
		t.Errorf("expected redaction marker, got: %s", output)
	}
	if !strings.Contains(output, "8809") {
		t.Errorf("non-sensitive attribute missing, got: %s", output)
	}
}

func TestNewLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", slog.LevelWarn)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("info message should have been filtered by warn level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("warn message should have appeared")
	}
}
