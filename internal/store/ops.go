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
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const inodeColumns = `
	i.id, i.uid, i.gid, i.mode, i.mtime_ns, i.atime_ns, i.ctime_ns, i.size, i.rdev, i.target,
	(SELECT COUNT(*) FROM link WHERE inode = i.id) AS nlink,
	(SELECT COUNT(*) FROM link WHERE parent_inode = i.id) AS nchild,
	(SELECT COUNT(*) FROM block WHERE inode = i.id) AS nblock`

func scanInode(row interface {
	Scan(dest ...any) error
}) (Inode, error) {
	var in Inode
	var target sql.NullString
	err := row.Scan(&in.ID, &in.UID, &in.GID, &in.Mode, &in.MtimeNs, &in.AtimeNs, &in.CtimeNs,
		&in.Size, &in.Rdev, &target, &in.Nlink, &in.Nchild, &in.Nblock)
	if err != nil {
		return Inode{}, err
	}
	if target.Valid {
		in.Target = []byte(target.String)
	}
	return in, nil
}

// GetInode returns the full row for id, or ErrNotFound if it does not
// exist.
func (t *Tx) GetInode(id int64) (Inode, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+inodeColumns+` FROM inode i WHERE i.id = ?`, id)
	in, err := scanInode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Inode{}, ErrNotFound
	}
	if err != nil {
		return Inode{}, err
	}
	return in, nil
}

// Lookup resolves (parent, name) to the child inode plus the link row id,
// or ErrNotFound if no such entry exists.
func (t *Tx) Lookup(parent int64, name []byte) (Inode, int64, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT `+inodeColumns+`, l.id
		FROM link l JOIN inode i ON i.id = l.inode
		WHERE l.parent_inode = ? AND l.name = ?`, parent, name)

	var in Inode
	var target sql.NullString
	var linkID int64
	err := row.Scan(&in.ID, &in.UID, &in.GID, &in.Mode, &in.MtimeNs, &in.AtimeNs, &in.CtimeNs,
		&in.Size, &in.Rdev, &target, &in.Nlink, &in.Nchild, &in.Nblock, &linkID)
	if errors.Is(err, sql.ErrNoRows) {
		return Inode{}, 0, ErrNotFound
	}
	if err != nil {
		return Inode{}, 0, err
	}
	if target.Valid {
		in.Target = []byte(target.String)
	}
	return in, linkID, nil
}

// Children returns, ordered by link id ascending, every entry of parent
// whose link id is greater than after. Pass after=0 to start from the
// beginning; the returned LinkID of the last entry is the cursor to pass
// as after on the next call.
func (t *Tx) Children(parent int64, after int64) ([]Child, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT `+inodeColumns+`, l.name, l.id
		FROM link l JOIN inode i ON i.id = l.inode
		WHERE l.parent_inode = ? AND l.id > ?
		ORDER BY l.id ASC`, parent, after)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Child
	for rows.Next() {
		var c Child
		var target sql.NullString
		err := rows.Scan(&c.Inode.ID, &c.Inode.UID, &c.Inode.GID, &c.Inode.Mode,
			&c.Inode.MtimeNs, &c.Inode.AtimeNs, &c.Inode.CtimeNs, &c.Inode.Size,
			&c.Inode.Rdev, &target, &c.Inode.Nlink, &c.Inode.Nchild, &c.Inode.Nblock,
			&c.Name, &c.LinkID)
		if err != nil {
			return nil, err
		}
		if target.Valid {
			c.Inode.Target = []byte(target.String)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Blocks returns every present block row for inode with idx in [lo, hi].
func (t *Tx) Blocks(inode int64, lo, hi int64) ([]Block, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT idx, data FROM block WHERE inode = ? AND idx >= ? AND idx <= ?
		ORDER BY idx ASC`, inode, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Block
	for rows.Next() {
		var b Block
		if err := rows.Scan(&b.Idx, &b.Data); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateInode inserts a new inode with now-timestamps and the caller's
// extras, inserts the primary (parent, name) link, and — when mode
// carries the directory bit — seeds "." and ".." the way a real
// invariant that every directory has both at creation time. Returns the
// new inode id.
func (t *Tx) CreateInode(parent int64, name []byte, uid, gid uint32, mode uint32, extra InodeExtra) (int64, error) {
	now := t.now()

	var target any
	if extra.Target != nil {
		target = extra.Target
	}

	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO inode (uid, gid, mode, mtime_ns, atime_ns, ctime_ns, size, rdev, target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uid, gid, mode, now, now, now, extra.Size, extra.Rdev, target)
	if err != nil {
		return 0, fmt.Errorf("insert inode: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if err := t.CreateLink(id, parent, name); err != nil {
		return 0, err
	}

	const isDir = 0o040000
	if mode&isDir == isDir {
		if err := t.CreateLink(id, id, []byte(".")); err != nil {
			return 0, err
		}
		if err := t.CreateLink(parent, id, []byte("..")); err != nil {
			return 0, err
		}
	}

	return id, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure,
// the signal for ErrExists on link creation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateLink inserts a (inode, parent, name) link row, failing with
// ErrExists on a (parent_inode, name) uniqueness violation.
func (t *Tx) CreateLink(inode, parent int64, name []byte) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO link (inode, parent_inode, name) VALUES (?, ?, ?)`, inode, parent, name)
	if isUniqueViolation(err) {
		return ErrExists
	}
	return err
}

// UpdateInode applies the given sparse field set. A no-op when fields is
// empty. Only the fields enumerated in InodeFields are ever assigned —
// Dynamic column-list assembly from caller input would be a
// hazard to avoid.
func (t *Tx) UpdateInode(id int64, fields InodeFields) error {
	if fields.Empty() {
		return nil
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if fields.Size != nil {
		add("size", *fields.Size)
	}
	if fields.Mode != nil {
		add("mode", *fields.Mode)
	}
	if fields.UID != nil {
		add("uid", *fields.UID)
	}
	if fields.GID != nil {
		add("gid", *fields.GID)
	}
	if fields.MtimeNs != nil {
		add("mtime_ns", *fields.MtimeNs)
	}
	if fields.AtimeNs != nil {
		add("atime_ns", *fields.AtimeNs)
	}
	if fields.CtimeNs != nil {
		add("ctime_ns", *fields.CtimeNs)
	}
	if fields.Target != nil {
		add("target", *fields.Target)
	}
	if fields.Rdev != nil {
		add("rdev", *fields.Rdev)
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE inode SET %s WHERE id = ?`, strings.Join(sets, ", "))
	_, err := t.tx.ExecContext(t.ctx, q, args...)
	return err
}

// UpdateLink changes the inode, parent directory or name of an existing
// link row.
func (t *Tx) UpdateLink(id int64, fields LinkFields) error {
	var sets []string
	var args []any
	if fields.Inode != nil {
		sets = append(sets, "inode = ?")
		args = append(args, *fields.Inode)
	}
	if fields.ParentInode != nil {
		sets = append(sets, "parent_inode = ?")
		args = append(args, *fields.ParentInode)
	}
	if fields.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *fields.Name)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE link SET %s WHERE id = ?`, strings.Join(sets, ", "))
	_, err := t.tx.ExecContext(t.ctx, q, args...)
	return err
}

// UpdateBlocks upserts each row by (inode, idx).
func (t *Tx) UpdateBlocks(rows []BlockRow) error {
	for _, r := range rows {
		_, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO block (inode, idx, data) VALUES (?, ?, ?)
			ON CONFLICT (inode, idx) DO UPDATE SET data = excluded.data`,
			r.Inode, r.Idx, r.Data)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteLink removes one link row by id.
func (t *Tx) DeleteLink(id int64) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM link WHERE id = ?`, id)
	return err
}

// DeleteBlock removes a single block row, used by write() when a
// trailing-zero trim empties a previously-stored block.
func (t *Tx) DeleteBlock(inode, idx int64) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM block WHERE inode = ? AND idx = ?`, inode, idx)
	return err
}

// TruncateBlocks removes every block row for inode with idx strictly
// greater than the given index.
func (t *Tx) TruncateBlocks(inode int64, idx int64) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM block WHERE inode = ? AND idx > ?`, inode, idx)
	return err
}

// CleanupInodes removes every inode row with neither inbound links nor
// children — the shutdown sweep. Most deletions should already have
// happened eagerly (see MaybeReclaim); this is the defensive backstop
// a clean shutdown requires.
func (t *Tx) CleanupInodes() error {
	_, err := t.tx.ExecContext(t.ctx, `
		DELETE FROM inode
		WHERE id NOT IN (SELECT inode FROM link)
		  AND id NOT IN (SELECT parent_inode FROM link)`)
	return err
}

// MaybeReclaim deletes inode's row immediately if it now has zero inbound
// links and zero children. Eager reclamation is preferred over
// deferring every orphan to the shutdown sweep, provided it happens
// atomically in the same transaction as the final link removal — this is
// that atomic check, called by unlink/rmdir/rename after removing a link.
func (t *Tx) MaybeReclaim(id int64) error {
	if id == RootID {
		return nil
	}
	var nlink, nchild int64
	row := t.tx.QueryRowContext(t.ctx, `SELECT
		(SELECT COUNT(*) FROM link WHERE inode = ?),
		(SELECT COUNT(*) FROM link WHERE parent_inode = ?)`, id, id)
	if err := row.Scan(&nlink, &nchild); err != nil {
		return err
	}
	if nlink != 0 || nchild != 0 {
		return nil
	}
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM inode WHERE id = ?`, id)
	return err
}
