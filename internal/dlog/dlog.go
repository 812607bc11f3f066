// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dlog builds the structured logger every component in this
// module takes through its constructor rather than reaching for a global.
package dlog

import (
	"context"
	"log/slog"

	"github.com/luxfi/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Format names a console rendering. New does not act on it: console output
// always uses log.NewLogger's own rendering, and JSON output goes only to
// the rotated file when FilePath is set.
type Format string

const (
	// FormatConsole names human-readable console lines (the default).
	FormatConsole Format = "console"
	// FormatJSON names JSON-line console output; New does not produce it.
	FormatJSON Format = "json"
)

// Config controls how New builds a component logger.
type Config struct {
	Component string
	Level     slog.Level
	Format    Format
	FilePath  string // optional; rotated via lumberjack when set
	MaxSizeMB int    // lumberjack MaxSize, default 100
	MaxAgeDay int    // lumberjack MaxAge, default 28
	MaxBackup int    // lumberjack MaxBackups, default 3
}

// Logger wraps the project's primary log.Logger with an optional mirrored
// file sink, so operators get rotated JSON logs on disk regardless of what
// the console Format is set to.
type Logger struct {
	log.Logger
	file *slog.Logger
}

// New builds a Logger per cfg. Console output always goes through
// github.com/luxfi/log; file output, when configured, is JSON lines
// through log/slog over a lumberjack-rotated writer.
func New(cfg Config) *Logger {
	base := log.NewLogger(cfg.Component)

	var file *slog.Logger
	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxAge:     orDefault(cfg.MaxAgeDay, 28),
			MaxBackups: orDefault(cfg.MaxBackup, 3),
			Compress:   true,
		}
		handler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: cfg.Level})
		file = slog.New(handler).With("component", cfg.Component)
	}

	return &Logger{Logger: base, file: file}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Info logs at info level to both the console logger and, if configured,
// the rotated file sink.
func (l *Logger) Info(msg string, ctx ...interface{}) {
	l.Logger.Info(msg, ctx...)
	l.mirror(slog.LevelInfo, msg, ctx...)
}

// Warn logs at warn level to both sinks.
func (l *Logger) Warn(msg string, ctx ...interface{}) {
	l.Logger.Warn(msg, ctx...)
	l.mirror(slog.LevelWarn, msg, ctx...)
}

// Error logs at error level to both sinks.
func (l *Logger) Error(msg string, ctx ...interface{}) {
	l.Logger.Error(msg, ctx...)
	l.mirror(slog.LevelError, msg, ctx...)
}

// Debug logs at debug level to both sinks.
func (l *Logger) Debug(msg string, ctx ...interface{}) {
	l.Logger.Debug(msg, ctx...)
	l.mirror(slog.LevelDebug, msg, ctx...)
}

func (l *Logger) mirror(level slog.Level, msg string, ctx ...interface{}) {
	if l.file == nil {
		return
	}
	l.file.Log(context.Background(), level, msg, ctx...)
}

// ParseLevel maps the NODE_LOG_LEVEL string onto a slog.Level, defaulting
// to Info on an unrecognized value.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewDefault builds a console-only Logger for tests and tools that don't
// need a full Config.
func NewDefault(component string) *Logger {
	return New(Config{Component: component, Level: slog.LevelInfo})
}
