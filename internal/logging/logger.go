package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB   = 20
	logMaxBackups  = 5
	logMaxAgeDays  = 14
	logFileDirMode = 0o750
)

type Options struct {
	Level string
	// File adds a rotating JSON sink when set.
	File string
	// Console overrides the stderr sink. When nil, stderr gets a console
	// writer on a terminal and JSON otherwise.
	Console io.Writer
}

// Setup builds the process logger, installs it as the zerolog global and
// returns a closer for the file sink.
func Setup(opts Options) (zerolog.Logger, func() error, error) {
	level := ParseLevel(opts.Level)
	zerolog.SetGlobalLevel(level)

	console := opts.Console
	if console == nil {
		console = selectOutput()
	}
	writers := []io.Writer{NewFilteringWriter(console)}
	closer := func() error { return nil }
	if strings.TrimSpace(opts.File) != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), logFileDirMode); err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
			Compress:   true,
		}
		writers = append(writers, NewFilteringWriter(lj))
		closer = lj.Close
	}

	var writer io.Writer = writers[0]
	if len(writers) > 1 {
		writer = zerolog.MultiLevelWriter(writers...)
	}
	logger := zerolog.New(writer).Level(level).Hook(NewSensitiveDataHook()).With().Timestamp().Logger()
	log.Logger = logger
	return logger, closer, nil
}

// ParseLevel falls back to info for unknown or empty names.
func ParseLevel(value string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func selectOutput() io.Writer {
	if IsTerminal(os.Stderr) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return os.Stderr
}
