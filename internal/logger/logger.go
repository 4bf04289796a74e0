// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logger provides the structured logger used throughout the
// saga engine. Every node body receives one tagged with its saga id
// and node name.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

func sprintf(format string, args []any) string { return fmt.Sprintf(format, args...) }

// Logger is the interface node bodies and the engine log through.
// Implementations must report the caller's source location, not
// logger.go's — slog.Handler.Handle is invoked with a PC captured at
// the call site for that reason.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// With returns a Logger with the given structured attributes attached
	// to every subsequent record, used to tag saga id / node name.
	With(args ...any) Logger
}

type slogLogger struct {
	handler slog.Handler
}

// Option configures a Logger built by NewLogger.
type Option func(*options)

type options struct {
	debug  bool
	format string
	writer io.Writer
	quiet  bool
}

func WithDebug() Option { return func(o *options) { o.debug = true } }

func WithFormat(format string) Option { return func(o *options) { o.format = format } }

func WithWriter(w io.Writer) Option { return func(o *options) { o.writer = w } }

// WithQuiet suppresses the default os.Stdout sink, leaving only
// whatever WithWriter supplied. Used by tests that assert on a buffer.
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// NewLogger builds a Logger. With no options it logs text to stdout at
// info level.
func NewLogger(opts ...Option) Logger {
	o := &options{format: "text"}
	for _, opt := range opts {
		opt(o)
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}

	var handlers []slog.Handler
	if !o.quiet {
		handlers = append(handlers, newHandler(os.Stdout, o.format, handlerOpts))
	}
	if o.writer != nil {
		handlers = append(handlers, newHandler(o.writer, o.format, handlerOpts))
	}
	if len(handlers) == 0 {
		handlers = append(handlers, newHandler(io.Discard, o.format, handlerOpts))
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = slogmulti.Fanout(handlers...)
	}

	return &slogLogger{handler: h}
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func (l *slogLogger) log(level slog.Level, msg string, args []any) {
	if !l.handler.Enabled(context.Background(), level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, callerPC())
	r.Add(args...)
	_ = l.handler.Handle(context.Background(), r)
}

// callerPC walks up the stack past every frame belonging to this
// package (the Debug/Info/...f wrappers and the context.go
// package-level helpers that forward to them) so records carry the
// line that actually asked to log, not logger internals.
func callerPC() uintptr {
	const maxDepth = 16
	var pcs [maxDepth]uintptr
	n := runtime.Callers(2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isLoggerPackageFile(frame.File) {
			return frame.PC
		}
		if !more {
			return frame.PC
		}
	}
}

func isLoggerPackageFile(file string) bool {
	return strings.HasSuffix(file, "/internal/logger/logger.go") ||
		strings.HasSuffix(file, "/internal/logger/context.go")
}

func (l *slogLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *slogLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *slogLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }

func (l *slogLogger) Debugf(format string, args ...any) { l.log(slog.LevelDebug, sprintf(format, args), nil) }
func (l *slogLogger) Infof(format string, args ...any)  { l.log(slog.LevelInfo, sprintf(format, args), nil) }
func (l *slogLogger) Warnf(format string, args ...any)  { l.log(slog.LevelWarn, sprintf(format, args), nil) }
func (l *slogLogger) Errorf(format string, args ...any) { l.log(slog.LevelError, sprintf(format, args), nil) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{handler: l.handler.WithAttrs(argsToAttrs(args))}
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, _ := args[i].(string)
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
