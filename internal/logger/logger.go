// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the process-wide structured logger used across
// sqlfs. It wraps log/slog with a severity scheme that adds TRACE below
// DEBUG and OFF above ERROR, matching the levels accepted by
// cfg.LogSeverity, and an optional rotated file backend.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/greenbender/sqlfs-go/cfg"
)

// Severity levels. TRACE and OFF extend slog's built-in four levels so
// every value cfg.LogSeverity accepts has a corresponding slog.Level.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(12)
)

var severityToLevel = map[string]slog.Level{
	string(cfg.TraceLogSeverity):   LevelTrace,
	string(cfg.DebugLogSeverity):   LevelDebug,
	string(cfg.InfoLogSeverity):    LevelInfo,
	string(cfg.WarningLogSeverity): LevelWarn,
	string(cfg.ErrorLogSeverity):   LevelError,
	string(cfg.OffLogSeverity):     LevelOff,
}

type loggerFactory struct {
	file            *os.File
	sysWriter       io.WriteCloser
	format          string
	level           string
	logRotateConfig cfg.LogRotateLoggingConfig
}

var defaultLoggerFactory = &loggerFactory{
	level:  string(cfg.InfoLogSeverity),
	format: "text",
}

var defaultLogger = slog.New(
	defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel(defaultLoggerFactory.level), ""),
)

func programLevel(level string) *slog.LevelVar {
	v := new(slog.LevelVar)
	setLoggingLevel(level, v)
	return v
}

func setLoggingLevel(level string, programLevel *slog.LevelVar) {
	l, ok := severityToLevel[strings.ToUpper(level)]
	if !ok {
		l = LevelInfo
	}
	programLevel.Set(l)
}

// levelName renders TRACE/OFF the way cfg.LogSeverity spells them, since
// slog's own String() method only knows the four built-in levels.
func levelName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return string(cfg.TraceLogSeverity)
	case l < LevelInfo:
		return string(cfg.DebugLogSeverity)
	case l < LevelWarn:
		return string(cfg.InfoLogSeverity)
	case l < LevelError:
		return string(cfg.WarningLogSeverity)
	case l < LevelOff:
		return string(cfg.ErrorLogSeverity)
	default:
		return string(cfg.OffLogSeverity)
	}
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	isJSON := f.format == "json"

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				a.Key = "severity"
				a.Value = slog.StringValue(levelName(a.Value.Any().(slog.Level)))
			case slog.TimeKey:
				if isJSON {
					t := a.Value.Time()
					return slog.Attr{
						Key: "timestamp",
						Value: slog.GroupValue(
							slog.Int64("seconds", t.Unix()),
							slog.Int64("nanos", int64(t.Nanosecond())),
						),
					}
				}
				a.Key = "time"
				a.Value = slog.StringValue(a.Value.Time().Format("02/01/2006 15:04:05.000000"))
			case slog.MessageKey:
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
			return a
		},
	}

	if isJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// InitLogFile points the default logger at the configured severity, format
// and (if set) rotated log file. An empty FilePath keeps logging on
// stderr.
func InitLogFile(c cfg.LoggingConfig) error {
	defaultLoggerFactory.level = string(c.Severity)
	defaultLoggerFactory.logRotateConfig = c.LogRotate
	if c.Format != "" {
		defaultLoggerFactory.format = c.Format
	}

	var w io.Writer = os.Stderr
	if c.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   string(c.FilePath),
			MaxSize:    c.LogRotate.MaxFileSizeMb,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
		async := NewAsyncLogger(lj, 1000)
		defaultLoggerFactory.sysWriter = async
		w = async
	}

	defaultLogger = slog.New(
		defaultLoggerFactory.createJsonOrTextHandler(w, programLevel(defaultLoggerFactory.level), ""),
	)
	return nil
}

// SetLogFormat switches the default logger's output format. An empty or
// unrecognized value falls back to "json".
func SetLogFormat(format string) {
	if format != "text" {
		format = "json"
	}
	defaultLoggerFactory.format = format

	var w io.Writer = os.Stderr
	if defaultLoggerFactory.sysWriter != nil {
		w = defaultLoggerFactory.sysWriter
	}
	defaultLogger = slog.New(
		defaultLoggerFactory.createJsonOrTextHandler(w, programLevel(defaultLoggerFactory.level), ""),
	)
}

// NewLegacyLogger adapts the default logger to the *log.Logger interface
// jacobsa/fuse's MountConfig.ErrorLogger and DebugLogger expect, tagging
// every line with prefix and fsName.
func NewLegacyLogger(level slog.Level, prefix string, fsName string) *log.Logger {
	return log.New(&legacyWriter{level: level, prefix: prefix, fsName: fsName}, "", 0)
}

type legacyWriter struct {
	level  slog.Level
	prefix string
	fsName string
}

func (w *legacyWriter) Write(p []byte) (int, error) {
	logAt(context.Background(), w.level, fmt.Sprintf("%s[%s] %s", w.prefix, w.fsName, string(p)))
	return len(p), nil
}

func logAt(ctx context.Context, level slog.Level, msg string, args ...any) {
	defaultLogger.Log(ctx, level, msg, args...)
}

func Tracef(format string, v ...interface{}) {
	logAt(context.Background(), LevelTrace, fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) {
	logAt(context.Background(), LevelDebug, fmt.Sprintf(format, v...))
}

func Infof(format string, v ...interface{}) {
	logAt(context.Background(), LevelInfo, fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...interface{}) {
	logAt(context.Background(), LevelWarn, fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	logAt(context.Background(), LevelError, fmt.Sprintf(format, v...))
}

func Trace(v ...interface{}) { logAt(context.Background(), LevelTrace, fmt.Sprint(v...)) }
func Debug(v ...interface{}) { logAt(context.Background(), LevelDebug, fmt.Sprint(v...)) }
func Info(v ...interface{})  { logAt(context.Background(), LevelInfo, fmt.Sprint(v...)) }
func Warn(v ...interface{})  { logAt(context.Background(), LevelWarn, fmt.Sprint(v...)) }
func Error(v ...interface{}) { logAt(context.Background(), LevelError, fmt.Sprint(v...)) }

// Close flushes and closes any rotated log file backend.
func Close() error {
	if defaultLoggerFactory.sysWriter != nil {
		return defaultLoggerFactory.sysWriter.Close()
	}
	return nil
}
