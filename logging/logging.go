package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Common log attribute keys.
const (
	KeyOperation = "operation"
	KeyPath      = "path"
	KeyFileID    = "file_id"
	KeyStatus    = "status"
	KeyDuration  = "duration"
	KeyError     = "error"
)

const (
	DefaultMaxSizeMB  = 5
	DefaultMaxBackups = 5
)

type Options struct {
	Level string
	// File is the path of the rotating log file. Empty disables file output.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console receives a copy of every record; defaults to os.Stderr.
	Console io.Writer
}

// Setup builds a logger that writes to the console and to the rotating
// log file. The returned closer releases the file handle.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	out := console
	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = DefaultMaxSizeMB
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = DefaultMaxBackups
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		closer = rotating
		out = io.MultiWriter(console, rotating)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	return slog.New(handler), closer, nil
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

func Path(path string) slog.Attr {
	return slog.String(KeyPath, path)
}

func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from output.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
