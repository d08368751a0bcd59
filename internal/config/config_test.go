package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envListenAddr, envDBPath, envLogLevel, envNumThreads, envNumBlockingThreads} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.NumThreads != 4 {
		t.Errorf("NumThreads = %d, want 4", cfg.NumThreads)
	}
	if cfg.NumBlockingThreads != 64 {
		t.Errorf("NumBlockingThreads = %d, want 64", cfg.NumBlockingThreads)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(envNumThreads, "8")
	t.Setenv(envNumBlockingThreads, "16")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.NumThreads != 8 {
		t.Errorf("NumThreads = %d, want 8", cfg.NumThreads)
	}
	if cfg.NumBlockingThreads != 16 {
		t.Errorf("NumBlockingThreads = %d, want 16", cfg.NumBlockingThreads)
	}
}

func TestLoadIgnoresInvalidThreadCounts(t *testing.T) {
	clearEnv(t)
	t.Setenv(envNumThreads, "zero")
	t.Setenv(envNumBlockingThreads, "-3")

	cfg := Load()

	if cfg.NumThreads != defaultNumThreads {
		t.Errorf("NumThreads = %d, want %d", cfg.NumThreads, defaultNumThreads)
	}
	if cfg.NumBlockingThreads != defaultNumBlockingThreads {
		t.Errorf("NumBlockingThreads = %d, want %d", cfg.NumBlockingThreads, defaultNumBlockingThreads)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := ParseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("program registered", "program", "prog_a")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}
	if entry["msg"] != "program registered" {
		t.Errorf("msg = %v, want %q", entry["msg"], "program registered")
	}
	if entry["program"] != "prog_a" {
		t.Errorf("program = %v, want %q", entry["program"], "prog_a")
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line written at warn level: %s", buf.String())
	}
}
