// Copyright 2024 Google LLC
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

package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/greenbender/sqlfs-go/cmd"
)

func main() {
	defer recoverCrash()
	cmd.Execute()
}

// recoverCrash catches a panic that would otherwise just vanish once this
// process has daemonized and its stderr is no longer attached to a
// terminal, recording the stack trace to a fixed path under the user's
// home directory before re-panicking.
func recoverCrash() {
	r := recover()
	if r == nil {
		return
	}

	home, err := os.UserHomeDir()
	if err == nil {
		w := cmd.NewCrashWriter(home + "/.sqlfs-crash.log")
		fmt.Fprintf(w, "panic: %v\n%s\n", r, debug.Stack())
	}
	panic(r)
}
