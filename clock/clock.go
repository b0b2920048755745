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

import "time"

// Clock is an injectable source of the current time, so that code which
// stamps timestamps (mtime_ns/atime_ns/ctime_ns) can be tested against a
// deterministic clock instead of wall time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the time after the given
	// duration elapses, mirroring time.After.
	After(d time.Duration) <-chan time.Time
}

var (
	_ Clock = RealClock{}
	_ Clock = &SimulatedClock{}
)
