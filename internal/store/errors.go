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

package store

import "errors"

// Sentinel domain errors returned by Store methods. The fs package maps
// these to errno-style codes; nothing above the store layer should ever
// inspect a raw *sql.Error or sql.ErrNoRows directly.
var (
	// ErrNotFound is returned when an inode or link lookup misses.
	ErrNotFound = errors.New("store: not found")

	// ErrExists is returned on a unique-name collision (create/link/rename
	// with RENAME_NOREPLACE).
	ErrExists = errors.New("store: already exists")

	// ErrNotDir is returned when an operation that requires a directory
	// inode is given something else.
	ErrNotDir = errors.New("store: not a directory")

	// ErrIsDir is returned when an operation that forbids a directory
	// inode (unlink, hardlinking beyond ./..) is given one.
	ErrIsDir = errors.New("store: is a directory")

	// ErrNotEmpty is returned by rmdir and rename-replace when the target
	// directory still has children beyond "." and "..".
	ErrNotEmpty = errors.New("store: directory not empty")

	// ErrInvalid is returned for malformed or out-of-range arguments that
	// the caller should have validated (e.g. readlink on a non-symlink).
	ErrInvalid = errors.New("store: invalid argument")
)
