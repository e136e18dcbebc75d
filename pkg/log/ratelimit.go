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
	"time"

	"golang.org/x/time/rate"
)

// Rate specifies the maximum rate of messages let through by a rate-limited
// logger. Messages over the limit are suppressed.
type Rate struct {
	Limit rate.Limit
	Burst int
}

// Every returns the rate corresponding to one message per interval.
func Every(interval time.Duration) rate.Limit {
	return rate.Every(interval)
}

// ratelimited is a Logger which suppresses messages over its rate limit.
type ratelimited struct {
	Logger
	limiter *rate.Limiter
}

// RateLimit returns a rate-limited version of the given logger.
func RateLimit(lg Logger, r Rate) Logger {
	burst := r.Burst
	if burst < 1 {
		burst = 1
	}
	return &ratelimited{
		Logger:  lg,
		limiter: rate.NewLimiter(r.Limit, burst),
	}
}

func (rl *ratelimited) Debug(format string, args ...interface{}) {
	if !rl.limiter.Allow() {
		return
	}
	rl.Logger.Debug(format, args...)
}

func (rl *ratelimited) Info(format string, args ...interface{}) {
	if !rl.limiter.Allow() {
		return
	}
	rl.Logger.Info(format, args...)
}

func (rl *ratelimited) Warn(format string, args ...interface{}) {
	if !rl.limiter.Allow() {
		return
	}
	rl.Logger.Warn(format, args...)
}

func (rl *ratelimited) Error(format string, args ...interface{}) {
	if !rl.limiter.Allow() {
		return
	}
	rl.Logger.Error(format, args...)
}
