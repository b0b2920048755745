// Copyright 2024 Google Inc. All Rights Reserved.
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

// Package mount assembles the fuse.MountConfig.Options map from the
// repeated command-line "-o" flag.
package mount

import "strings"

// ParseOptions splits a single "-o" value — one or more comma-separated
// "key" or "key=value" options — and merges the result into dst. A bare
// key with no "=" is recorded with an empty value, matching what the
// kernel mount(8) option grammar accepts.
func ParseOptions(dst map[string]string, s string) {
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		if i := strings.IndexByte(part, '='); i >= 0 {
			dst[part[:i]] = part[i+1:]
		} else {
			dst[part] = ""
		}
	}
}
