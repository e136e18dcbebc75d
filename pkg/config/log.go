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

package config

import (
	"fmt"
	"os"
)

// pkg/log implements its runtime configurability on top of this package, so
// importing it here would be an import cycle. Our logger is set externally,
// from pkg/log, once both packages are up.

// Logger is the set of logging functions this package needs.
type Logger struct {
	Debugf func(string, ...interface{})
	Infof  func(string, ...interface{})
	Warnf  func(string, ...interface{})
	Errorf func(string, ...interface{})
	Panicf func(string, ...interface{})
}

// log is our Logger.
var log = defaultLogger()

// SetLogger replaces the functions our logger uses.
func SetLogger(logger Logger) {
	if logger.Debugf != nil {
		log.Debugf = logger.Debugf
	}
	if logger.Infof != nil {
		log.Infof = logger.Infof
	}
	if logger.Warnf != nil {
		log.Warnf = logger.Warnf
	}
	if logger.Errorf != nil {
		log.Errorf = logger.Errorf
	}
	if logger.Panicf != nil {
		log.Panicf = logger.Panicf
	}
}

func defaultLogger() Logger {
	return Logger{
		Debugf: func(format string, args ...interface{}) {},
		Infof: func(format string, args ...interface{}) {
			fmt.Printf("I: [config] "+format+"\n", args...)
		},
		Warnf: func(format string, args ...interface{}) {
			fmt.Printf("W: [config] "+format+"\n", args...)
		},
		Errorf: func(format string, args ...interface{}) {
			fmt.Printf("E: [config] "+format+"\n", args...)
		},
		Panicf: func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, "E: [config] "+format+"\n", args...)
			panic(fmt.Sprintf(format, args...))
		},
	}
}
