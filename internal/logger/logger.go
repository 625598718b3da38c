// Package logger configures log/slog for the govuk-mcp server based on the
// service's LoggingConfig. It supports JSON and text output, configurable
// levels and stdout, stderr or file destinations.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"govukmcp/internal/models"
	"govukmcp/internal/version"
)

// Setup creates a structured logger from cfg carrying the build metadata on
// every record. It returns an io.Closer for file handles (nil for
// stdout/stderr) which the caller must close when done.
func Setup(cfg models.LoggingConfig, ver version.Info) (*slog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}

	writer, closer, err := openWriter(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log output: %w", err)
	}

	return newLogger(writer, cfg.Format, level, ver), closer, nil
}

// ForTransport adjusts cfg for the selected transport. The stdio transport
// owns stdout for protocol frames, so stdout logging moves to stderr.
func ForTransport(cfg models.LoggingConfig, transport string) models.LoggingConfig {
	if transport == models.TransportStdio && strings.EqualFold(cfg.Output, "stdout") {
		cfg.Output = "stderr"
	}
	return cfg
}

func newLogger(w io.Writer, format string, level slog.Level, ver version.Info) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("service", version.Name),
		slog.String("version", ver.Version),
		slog.String("git_commit", ver.GitCommit),
		slog.String("instance_id", ver.InstanceID),
	)
}

// parseLevel converts a level string to an slog.Level.
// Supported values: debug, info, warn, error (case-insensitive).
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level: %s", level)
	}
}

// openWriter returns the writer for cfg.Output. File output rotates through
// lumberjack and is also the closer; stdout and stderr have none.
func openWriter(cfg models.LoggingConfig) (io.Writer, io.Closer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr, nil, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("file path is required when output is file")
		}
		// lumberjack opens lazily, so check the directory up front.
		if _, err := os.Stat(filepath.Dir(cfg.FilePath)); err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.FilePath, err)
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		return rotator, rotator, nil
	default:
		return os.Stdout, nil, nil
	}
}
