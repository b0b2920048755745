// Copyright 2025 Google LLC
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

package clock

import (
	"sync"
	"time"
)

// pendingWait is one outstanding After() call waiting for the simulated
// clock to reach or pass targetTime.
type pendingWait struct {
	targetTime time.Time
	ch         chan time.Time
}

// SimulatedClock lets a test pin mtime_ns/atime_ns/ctime_ns stamps to exact,
// reproducible values instead of wall-clock time: the time it reports only
// moves when SetTime or AdvanceTime is called. The zero value starts at the
// zero time; use NewSimulatedClock to start somewhere specific.
type SimulatedClock struct {
	mu      sync.RWMutex
	t       time.Time // guarded by mu
	pending []*pendingWait
}

func NewSimulatedClock(startTime time.Time) *SimulatedClock {
	return &SimulatedClock{t: startTime}
}

func (sc *SimulatedClock) Now() time.Time {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	return sc.t
}

// SetTime pins the clock to t and fires any pending After waits it reaches.
func (sc *SimulatedClock) SetTime(t time.Time) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.t = t
	sc.wakePending()
}

// AdvanceTime moves the clock forward by d and fires any pending After
// waits it reaches.
func (sc *SimulatedClock) AdvanceTime(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.t = sc.t.Add(d)
	sc.wakePending()
}

// After mirrors time.After against the simulated clock: the channel fires
// once the clock reaches t.Now()+d, which only happens via SetTime or
// AdvanceTime. A non-positive d fires immediately with the current time.
func (sc *SimulatedClock) After(d time.Duration) <-chan time.Time {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	ch := make(chan time.Time, 1)
	target := sc.t.Add(d)

	if !target.After(sc.t) {
		ch <- sc.t
		return ch
	}

	sc.pending = append(sc.pending, &pendingWait{targetTime: target, ch: ch})
	return ch
}

// wakePending fires every pending wait whose target time the clock has
// reached or passed. Callers must hold sc.mu.
func (sc *SimulatedClock) wakePending() {
	var stillPending []*pendingWait

	for _, w := range sc.pending {
		if !sc.t.Before(w.targetTime) {
			w.ch <- w.targetTime // not closed, matching time.After's contract
		} else {
			stillPending = append(stillPending, w)
		}
	}

	sc.pending = stillPending
}
