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

package pipeline

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	b := newBackoff(DefaultRetryPolicy)

	expect := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
		6400 * time.Millisecond,
		12800 * time.Millisecond,
	}
	for i, want := range expect {
		delay, ok := b.next()
		if !ok {
			t.Fatalf("retry budget exhausted at attempt %d", i)
		}
		if delay != want {
			t.Fatalf("attempt %d: delay %s, expected %s", i, delay, want)
		}
	}

	if _, ok := b.next(); ok {
		t.Fatalf("retry budget not exhausted after %d attempts", DefaultRetryPolicy.MaxRetries)
	}
}

func TestBackoffCap(t *testing.T) {
	b := newBackoff(RetryPolicy{Initial: 10 * time.Second, Cap: 15 * time.Second, MaxRetries: 3})

	first, _ := b.next()
	second, _ := b.next()
	third, _ := b.next()

	if first != 10*time.Second {
		t.Fatalf("first delay %s", first)
	}
	if second != 15*time.Second || third != 15*time.Second {
		t.Fatalf("cap not applied: %s, %s", second, third)
	}
}
