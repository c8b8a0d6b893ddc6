// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package logger provides the structured logging backbone for the pipeline
// runtime: a zap-based logger exposed through the teacher's familiar
// printf-style Debug/Info/Warn/Error surface, plus a go-logr bridge for
// code written against the logr.Logger interface.
package logger

import (
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Logger wraps a zap.SugaredLogger with a component prefix.
type Logger struct {
	level   LogLevel
	prefix  string
	zap     *zap.Logger
	sugared *zap.SugaredLogger
	logr    logr.Logger
}

// Global is the process-wide default logger, set by Init.
var Global *Logger

// NewLogger creates a new logger at the given level with the given
// component prefix.
func NewLogger(levelStr string, prefix string) *Logger {
	level := parseLogLevel(levelStr)
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	if prefix != "" {
		z = z.Named(prefix)
	}
	return &Logger{
		level:   level,
		prefix:  prefix,
		zap:     z,
		sugared: z.Sugar(),
		logr:    zapr.NewLogger(z),
	}
}

// Init initializes the global logger.
func Init(levelStr string) {
	Global = NewLogger(levelStr, "")
}

func parseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func toZapLevel(l LogLevel) zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logr returns the logr.Logger bridge for this logger, for passing into
// code that is written against the logr interface.
func (l *Logger) Logr() logr.Logger {
	return l.logr
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level <= DEBUG {
		l.sugared.Debugf(format, args...)
	}
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level <= INFO {
		l.sugared.Infof(format, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level <= WARN {
		l.sugared.Warnf(format, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	if l.level <= ERROR {
		l.sugared.Errorf(format, args...)
	}
}

// Success logs a positive-outcome message at info level; like Info, it is
// suppressed when the logger's level is above INFO.
func (l *Logger) Success(format string, args ...interface{}) {
	if l.level <= INFO {
		l.sugared.Infof(format, args...)
	}
}

// SetLevel changes the log level.
func (l *Logger) SetLevel(levelStr string) {
	l.level = parseLogLevel(levelStr)
	z := NewLogger(levelName(l.level), "").zap
	if name := l.zap.Name(); name != "" {
		z = z.Named(name)
	}
	l.zap = z
	l.sugared = z.Sugar()
	l.logr = zapr.NewLogger(z)
}

// WithPrefix creates a new logger scoped to the given component name,
// sharing the same zap core.
func (l *Logger) WithPrefix(prefix string) *Logger {
	z := l.zap.Named(prefix)
	return &Logger{
		level:   l.level,
		prefix:  prefix,
		zap:     z,
		sugared: z.Sugar(),
		logr:    zapr.NewLogger(z),
	}
}

// Global logging functions operating on the global logger. Each is a
// no-op until Init has been called, matching the embedding contract that
// this is a library with no mandated bootstrap.

func Debug(format string, args ...interface{}) {
	if Global != nil {
		Global.Debug(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if Global != nil {
		Global.Info(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if Global != nil {
		Global.Warn(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if Global != nil {
		Global.Error(format, args...)
	}
}

func Success(format string, args ...interface{}) {
	if Global != nil {
		Global.Success(format, args...)
	}
}

// New creates a new logger at the given level with no prefix.
func New(level LogLevel) *Logger {
	return NewLogger(levelName(level), "")
}

func levelName(l LogLevel) string {
	switch l {
	case DEBUG:
		return "debug"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "info"
	}
}

// GetLogger returns the global logger, creating an INFO-level one if Init
// has not been called yet.
func GetLogger() *Logger {
	if Global == nil {
		Global = New(INFO)
	}
	return Global
}
