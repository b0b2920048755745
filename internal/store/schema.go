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

import (
	"context"
	"database/sql"
	"fmt"
	"syscall"
)

// schema creates the three tables of the on-disk contract: inode, link and
// block, with the foreign-key relations a cascading delete requires (link.inode
// cascades, link.parent_inode restricts).
const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS inode (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	uid      INTEGER NOT NULL,
	gid      INTEGER NOT NULL,
	mode     INTEGER NOT NULL,
	mtime_ns INTEGER NOT NULL,
	atime_ns INTEGER NOT NULL,
	ctime_ns INTEGER NOT NULL,
	size     INTEGER NOT NULL DEFAULT 0,
	rdev     INTEGER NOT NULL DEFAULT 0,
	target   BLOB
);

CREATE TABLE IF NOT EXISTS link (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	inode        INTEGER NOT NULL REFERENCES inode(id) ON DELETE CASCADE,
	parent_inode INTEGER NOT NULL REFERENCES inode(id) ON DELETE RESTRICT,
	name         BLOB NOT NULL,
	UNIQUE(parent_inode, name)
);

CREATE INDEX IF NOT EXISTS idx_link_inode ON link(inode);
CREATE INDEX IF NOT EXISTS idx_link_parent ON link(parent_inode);

CREATE TABLE IF NOT EXISTS block (
	inode INTEGER NOT NULL REFERENCES inode(id) ON DELETE CASCADE,
	idx   INTEGER NOT NULL,
	data  BLOB NOT NULL,
	PRIMARY KEY (inode, idx)
);
`

// rootMode is S_IFDIR|0755: a directory owned by root with rwxr-xr-x
// permissions.
const rootMode = syscall.S_IFDIR | 0o755

// initSchema creates the schema if absent and ensures the root inode and
// its "." and ".." self-links exist.
func initSchema(ctx context.Context, db *sql.DB, nowNs int64) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	_, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO inode (id, uid, gid, mode, mtime_ns, atime_ns, ctime_ns, size, rdev, target)
		VALUES (?, 0, 0, ?, ?, ?, ?, 0, 0, NULL)`,
		RootID, rootMode, nowNs, nowNs, nowNs)
	if err != nil {
		return fmt.Errorf("bootstrap root inode: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO link (inode, parent_inode, name) VALUES (?, ?, '.')`,
		RootID, RootID)
	if err != nil {
		return fmt.Errorf("bootstrap root self-link: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO link (inode, parent_inode, name) VALUES (?, ?, '..')`,
		RootID, RootID)
	if err != nil {
		return fmt.Errorf("bootstrap root parent-link: %w", err)
	}

	return nil
}
