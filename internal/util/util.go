// Copyright 2023 Google Inc. All Rights Reserved.
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

// Package util holds small helpers shared across the cfg and cmd packages.
package util

import (
	"os"
	"path/filepath"
	"strings"
)

// SQLFSParentProcessDir is the environment variable a daemonized child
// process inherits from its parent, naming the directory relative paths on
// the command line should be resolved against. Without it, relative paths
// resolve against the current working directory.
const SQLFSParentProcessDir = "SQLFS_PARENT_PROCESS_DIR"

// GetResolvedPath returns an absolute form of filePath. A leading "~" is
// expanded against the user's home directory. A relative path is joined
// against the directory named by SQLFSParentProcessDir when set, or the
// process's current working directory otherwise. An empty filePath resolves
// to the empty string.
func GetResolvedPath(filePath string) (resolvedPath string, err error) {
	if filePath == "" {
		return "", nil
	}

	if strings.HasPrefix(filePath, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(homeDir, filePath[2:]), nil
	}

	if filepath.IsAbs(filePath) {
		return filePath, nil
	}

	baseDir := os.Getenv(SQLFSParentProcessDir)
	if baseDir == "" {
		baseDir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	return filepath.Join(baseDir, filePath), nil
}
