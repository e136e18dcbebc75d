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
	"strings"

	"github.com/alumet-dev/alumet-go/pkg/config"
)

// levelNames maps severity levels to names.
var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// namedLevels maps severity names to levels.
var namedLevels = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// options captures our configurable state.
type options struct {
	level   levelValue
	debug   sourceValue
	backend backendValue
}

var opt = options{level: levelValue(LevelInfo)}

// levelValue implements flag.Value for a severity level.
type levelValue Level

func (v *levelValue) String() string {
	return levelNames[Level(*v)]
}

func (v *levelValue) Set(value string) error {
	level, ok := namedLevels[strings.ToLower(value)]
	if !ok {
		return loggerError("invalid log level '%s'", value)
	}
	*v = levelValue(level)
	SetLevel(level)
	return nil
}

// sourceValue implements flag.Value for a list of debug-enabled sources.
type sourceValue []string

func (v *sourceValue) String() string {
	return strings.Join(*v, ",")
}

func (v *sourceValue) Set(value string) error {
	DisableDebug()
	*v = nil
	if value == "" || strings.ToLower(value) == "off" {
		return nil
	}
	for _, source := range strings.Split(value, ",") {
		source = strings.TrimSpace(source)
		if source == "" {
			continue
		}
		*v = append(*v, source)
	}
	EnableDebugFor(*v...)
	return nil
}

// backendValue implements flag.Value for backend selection.
type backendValue string

func (v *backendValue) String() string {
	return string(*v)
}

func (v *backendValue) Set(value string) error {
	if err := SelectBackend(value); err != nil {
		return err
	}
	*v = backendValue(value)
	return nil
}

func init() {
	m := config.Register("logger", "logging control")
	m.Var(&opt.level, "level", "lowest unsuppressed message severity (debug, info, warn, error)")
	m.Var(&opt.debug, "debug", "comma-separated list of sources to enable debug messages for, or '*'")
	m.Var(&opt.backend, "backend", "logger backend to use (klog, fmt)")

	config.SetLogger(config.Logger{
		Debugf: Get("config").Debug,
		Infof:  Get("config").Info,
		Warnf:  Get("config").Warn,
		Errorf: Get("config").Error,
		Panicf: Get("config").Panic,
	})
}
