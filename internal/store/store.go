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

// Package store owns the on-disk schema, every SQL statement and the
// transaction boundaries of sqlfs: three tables (inode, link, block) plus
// the derived counts nlink/nchild/nblock, computed per request rather than
// stored. It knows nothing about FUSE; the fs package translates requests
// into calls against a *Tx obtained from a *Store.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/greenbender/sqlfs-go/clock"
	_ "modernc.org/sqlite"
)

// Store owns the single database handle for a mounted filesystem. Per
// design, it is process-wide state for the duration of a mount: one
// handle, scoped acquisition at Open, guaranteed release on Close.
type Store struct {
	db    *sql.DB
	clock clock.Clock
	path  string // "" or ":memory:" for ephemeral stores
}

// Open creates the schema if absent, ensures the root inode exists, and
// enables page-level encryption first when password is non-empty, before
// any other table access happens. path may be ":memory:" (or "") for an
// ephemeral store.
func Open(ctx context.Context, path string, password string, clk clock.Clock) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// The in-process schema/metadata mutations below and every subsequent
	// operation run one at a time against a single *sql.Tx, so a single
	// physical connection avoids sqlite's notoriously poor concurrent-
	// writer behavior under database/sql's pool.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, clock: clk, path: path}

	if password != "" {
		if err := s.applyKey(ctx, password); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable encryption: %w", err)
		}
	}

	if err := initSchema(ctx, db, clk.Now().UnixNano()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// applyKey derives a fixed-width key from password and feeds it to the
// store's page-cipher PRAGMA. Hex-encoding confines the value to
// [0-9a-f], which is what makes it safe to place inside the quoted PRAGMA
// literal below — the original's MD5 pre-hash existed for the same
// reason. modernc.org/sqlite (this build's driver) carries no page-cipher
// extension of its own; this call is the seam a cipher-capable sqlite
// build (e.g. one linked against SQLCipher) would hook into, matching
// the idea that the encrypted store is an implementation detail
// of how the database is obtained, not part of the on-disk format.
func (s *Store) applyKey(ctx context.Context, password string) error {
	key, err := deriveKey(password)
	if err != nil {
		return err
	}
	hexKey := hex.EncodeToString(key)
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA key = "x'%s'"`, hexKey))
	return err
}

// Close runs cleanup_inodes, compacts file-backed storage with VACUUM (a
// no-op worth skipping for :memory:, and releases the handle.
// features), and releases the handle.
func (s *Store) Close(ctx context.Context) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.CleanupInodes(); err != nil {
		tx.Rollback()
		return fmt.Errorf("cleanup_inodes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if s.path != ":memory:" {
		if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}

	return s.db.Close()
}

// Stats is the subset of StatVFS fields sourced directly from the store;
// the fs layer fills in the rest from the host filesystem.
type Stats struct {
	Blocks int64 // total block rows (f_blocks)
	Files  int64 // total inode rows (f_files)
}

// Stats reports aggregate counts for statfs().
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM block`).Scan(&st.Blocks); err != nil {
		return Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inode`).Scan(&st.Files); err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Tx is one externally visible operation's transaction scope: opened on
// first mutating statement conceptually, but in practice opened eagerly
// by Begin so that read-only operations (get_inode, lookup, children,
// blocks) also observe a single consistent snapshot. Commit on success,
// Rollback on any error — the caller (fs) owns exactly one of the two.
type Tx struct {
	tx    *sql.Tx
	clock clock.Clock
	ctx   context.Context
}

// Begin opens the transaction scope for one filesystem operation.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{tx: tx, clock: s.clock, ctx: ctx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction. Safe to call after Commit (no-op).
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// now returns the current time in nanoseconds, for mtime_ns/atime_ns/
// ctime_ns stamps.
func (t *Tx) now() int64 {
	return t.clock.Now().UnixNano()
}
