package infra

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ewastehub/appraisal-relay/internal/config"
)

// SetupLogger builds the process logger from config. Output goes to stdout
// and, when the configured log file can be opened, to that file as well. An
// empty LogFile disables the file sink.
func SetupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	var openErr error
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			openErr = err
		} else {
			out = io.MultiWriter(os.Stdout, logFile)
		}
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if strings.ToUpper(cfg.LogFormat) == "JSON" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	logger := slog.New(handler)
	if openErr != nil {
		logger.Warn("Could not open log file, logging to stdout only",
			"path", cfg.LogFile, "error", openErr)
	}
	return logger
}
