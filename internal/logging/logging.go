// Package logging builds the process logger from flags and configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/wrtplugins/wrt/internal/config"
)

// Options are the command line overrides. Empty values defer to the
// configuration.
type Options struct {
	Level string
	File  string
}

// Logger is a configured logger and the file it writes to, if any.
type Logger struct {
	*slog.Logger
	Level slog.Level
	file  io.Closer
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s", s)
}

// New resolves each setting from opts, then cfg (and its environment
// variables), then the schema default. A verbose configuration logs at debug
// level unless opts names a level. Records go to the rotating log file as
// JSON when one is configured, and to stderr as text otherwise.
func New(opts Options, cfg *config.Config, stderr io.Writer) (*Logger, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	schema := config.DefaultSchema()

	levelStr := opts.Level
	switch {
	case levelStr != "":
	case cfg.GetBool("verbose"):
		levelStr = "debug"
	default:
		levelStr = schema.Resolve(cfg, "log.level")
	}
	level, err := ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	path := opts.File
	if path == "" {
		path = schema.Resolve(cfg, "log.file")
	}

	l := &Logger{Level: level}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if path == "" {
		l.Logger = slog.New(slog.NewTextHandler(stderr, handlerOpts))
		return l, nil
	}

	maxSize := resolveInt(schema, cfg, "log.max-size-mb", 10)
	maxFiles := resolveInt(schema, cfg, "log.max-files", 5)
	w, err := NewRotatingFileWriter(path, maxSize, maxFiles)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	l.file = w
	l.Logger = slog.New(slog.NewJSONHandler(w, handlerOpts))
	return l, nil
}

func resolveInt(schema *config.ConfigSchema, cfg *config.Config, key string, def int) int {
	n, err := strconv.Atoi(schema.Resolve(cfg, key))
	if err != nil || n < 0 {
		return def
	}
	return n
}
