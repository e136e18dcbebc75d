// Copyright 2025 The Alumet Authors. All Rights Reserved.
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

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level is the severity below which log messages are suppressed.
type Level int

const (
	// LevelDebug is the severity of debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity of informational messages.
	LevelInfo
	// LevelWarn is the severity of warnings.
	LevelWarn
	// LevelError is the severity of errors.
	LevelError
)

// Logger is the interface for producing log messages for a particular source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})
	// Fatal formats and emits an error message and os.Exit()'s with status 1.
	Fatal(format string, args ...interface{})
	// Panic formats and emits an error message, then panics with the same.
	Panic(format string, args ...interface{})

	// DebugBlock formats and emits a multiline debug message.
	DebugBlock(prefix string, format string, args ...interface{})
	// InfoBlock formats and emits a multiline informational message.
	InfoBlock(prefix string, format string, args ...interface{})
	// WarnBlock formats and emits a multiline warning message.
	WarnBlock(prefix string, format string, args ...interface{})
	// ErrorBlock formats and emits a multiline error message.
	ErrorBlock(prefix string, format string, args ...interface{})

	// EnableDebug enables or disables debug messages for this Logger.
	EnableDebug(bool) bool
	// DebugEnabled checks if debug messages are enabled for this Logger.
	DebugEnabled() bool

	// Source returns the source name of this Logger.
	Source() string
}

// logging is the shared state of all loggers.
type logging struct {
	sync.RWMutex
	level    Level              // lowest unsuppressed severity
	loggers  map[string]*logger // loggers by source
	debug    map[string]bool    // sources with debugging enabled
	debugAll bool               // debugging forced for all sources
	srcalign int                // longest source name seen, for prefix alignment
}

// logger implements Logger for a single source.
type logger struct {
	source string // source/module name
	debug  bool   // debug messages enabled
}

var log = &logging{
	level:   LevelInfo,
	loggers: make(map[string]*logger),
	debug:   make(map[string]bool),
}

// Get returns the Logger for the given source, creating it if necessary.
func Get(source string) Logger {
	log.Lock()
	defer log.Unlock()
	return log.get(source)
}

// NewLogger is an alias for Get.
func NewLogger(source string) Logger {
	return Get(source)
}

func (l *logging) get(source string) *logger {
	source = strings.Trim(source, "[] ")
	if lg, ok := l.loggers[source]; ok {
		return lg
	}

	lg := &logger{
		source: source,
		debug:  l.debugAll || l.debug[source],
	}
	l.loggers[source] = lg

	if len(source) > l.srcalign {
		l.srcalign = len(source)
	}

	return lg
}

// SetLevel sets the lowest unsuppressed severity.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// EnableDebugFor enables debug messages for the given sources. The special
// source "*" enables debugging for every source.
func EnableDebugFor(sources ...string) {
	log.Lock()
	defer log.Unlock()

	for _, source := range sources {
		if source == "*" {
			log.debugAll = true
		} else {
			log.debug[source] = true
		}
	}
	for source, lg := range log.loggers {
		lg.debug = log.debugAll || log.debug[source]
	}
}

// DisableDebug disables all per-source debugging.
func DisableDebug() {
	log.Lock()
	defer log.Unlock()

	log.debugAll = false
	log.debug = make(map[string]bool)
	for _, lg := range log.loggers {
		lg.debug = false
	}
}

func (lg *logger) formatMessage(format string, args ...interface{}) string {
	pad := log.srcalign - len(lg.source)
	if pad < 0 {
		pad = 0
	}
	pre := pad / 2
	prefix := "[" + fmt.Sprintf("%*s", pre, "") + lg.source +
		fmt.Sprintf("%*s", pad-pre, "") + "] "
	return prefix + fmt.Sprintf(format, args...)
}

func (lg *logger) emit(level Level, format string, args ...interface{}) {
	log.RLock()
	suppressed := level < log.level && !(level == LevelDebug && lg.debug)
	backend := active
	message := ""
	if !suppressed {
		message = lg.formatMessage(format, args...)
	}
	log.RUnlock()

	if suppressed {
		return
	}

	switch level {
	case LevelDebug:
		backend.Debug(message)
	case LevelInfo:
		backend.Info(message)
	case LevelWarn:
		backend.Warn(message)
	case LevelError:
		backend.Error(message)
	}
}

// Debug emits a debug message.
func (lg *logger) Debug(format string, args ...interface{}) {
	if !lg.debug {
		return
	}
	lg.emit(LevelDebug, format, args...)
}

// Info emits an informational message.
func (lg *logger) Info(format string, args ...interface{}) {
	lg.emit(LevelInfo, format, args...)
}

// Warn emits a warning message.
func (lg *logger) Warn(format string, args ...interface{}) {
	lg.emit(LevelWarn, format, args...)
}

// Error emits an error message.
func (lg *logger) Error(format string, args ...interface{}) {
	lg.emit(LevelError, format, args...)
}

// Fatal emits an error message and exits with status 1.
func (lg *logger) Fatal(format string, args ...interface{}) {
	lg.emit(LevelError, format, args...)
	Flush()
	os.Exit(1)
}

// Panic emits an error message and panics with the same.
func (lg *logger) Panic(format string, args ...interface{}) {
	lg.emit(LevelError, format, args...)
	Flush()
	panic(fmt.Sprintf(format, args...))
}

// block emits a multiline message using the given emitter.
func (lg *logger) block(fn func(string, ...interface{}), prefix, format string, args ...interface{}) {
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		fn("%s%s", prefix, line)
	}
}

// DebugBlock emits a multiline debug message.
func (lg *logger) DebugBlock(prefix string, format string, args ...interface{}) {
	if !lg.debug {
		return
	}
	lg.block(lg.Debug, prefix, format, args...)
}

// InfoBlock emits a multiline informational message.
func (lg *logger) InfoBlock(prefix string, format string, args ...interface{}) {
	lg.block(lg.Info, prefix, format, args...)
}

// WarnBlock emits a multiline warning message.
func (lg *logger) WarnBlock(prefix string, format string, args ...interface{}) {
	lg.block(lg.Warn, prefix, format, args...)
}

// ErrorBlock emits a multiline error message.
func (lg *logger) ErrorBlock(prefix string, format string, args ...interface{}) {
	lg.block(lg.Error, prefix, format, args...)
}

// EnableDebug enables or disables debugging for this logger.
func (lg *logger) EnableDebug(state bool) bool {
	log.Lock()
	defer log.Unlock()

	old := lg.debug
	lg.debug = state
	log.debug[lg.source] = state

	return old
}

// DebugEnabled checks if debugging is enabled for this logger.
func (lg *logger) DebugEnabled() bool {
	return lg.debug
}

// Source returns the source name of this logger.
func (lg *logger) Source() string {
	return lg.source
}

// Default logger, named after the running binary.
var defLogger Logger

// Default returns the default logger.
func Default() Logger {
	return defLogger
}

// Debug emits a debug message with the default source.
func Debug(format string, args ...interface{}) { defLogger.Debug(format, args...) }

// Info emits an informational message with the default source.
func Info(format string, args ...interface{}) { defLogger.Info(format, args...) }

// Warn emits a warning message with the default source.
func Warn(format string, args ...interface{}) { defLogger.Warn(format, args...) }

// Error emits an error message with the default source.
func Error(format string, args ...interface{}) { defLogger.Error(format, args...) }

// Fatal emits an error message with the default source and exits.
func Fatal(format string, args ...interface{}) { defLogger.Fatal(format, args...) }

// Panic emits an error message with the default source and panics.
func Panic(format string, args ...interface{}) { defLogger.Panic(format, args...) }

func init() {
	defLogger = Get(filepath.Base(filepath.Clean(os.Args[0])))
}
