package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	defaultListenAddr         = ":8080"
	defaultDBPath             = "kiln.db"
	defaultNumThreads         = 4
	defaultNumBlockingThreads = 64

	envListenAddr         = "KILN_LISTEN_ADDR"
	envDBPath             = "KILN_DB_PATH"
	envLogLevel           = "KILN_LOG_LEVEL"
	envNumThreads         = "KILN_NUM_THREADS"
	envNumBlockingThreads = "KILN_NUM_BLOCKING_THREADS"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// NumThreads is the size of the compute worker pool.
	NumThreads int
	// NumBlockingThreads bounds how many blocking kernels may run at once.
	NumBlockingThreads int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr:         defaultListenAddr,
		DBPath:             defaultDBPath,
		LogLevel:           slog.LevelInfo,
		NumThreads:         defaultNumThreads,
		NumBlockingThreads: defaultNumBlockingThreads,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = ParseLogLevel(v)
	}
	cfg.NumThreads = parsePositiveInt(os.Getenv(envNumThreads), cfg.NumThreads)
	cfg.NumBlockingThreads = parsePositiveInt(os.Getenv(envNumBlockingThreads), cfg.NumBlockingThreads)

	return cfg
}

// ParseLogLevel maps a level name to a slog.Level, defaulting to info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
