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

// Package fs is the Operations Layer: it implements fuseutil.FileSystem
// against an *internal/store.Store, translating each FUSE request into a
// handful of store calls run inside a single transaction. It owns no
// filesystem state of its own — every inode, link and block lives in the
// store, so there is nothing here to keep consistent across requests
// beyond what the store's transaction boundary already guarantees.
package fs

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/greenbender/sqlfs-go/clock"
	"github.com/greenbender/sqlfs-go/internal/store"
)

// ServerConfig collects what NewServer needs to stand up the Operations
// Layer over an already-opened store.
type ServerConfig struct {
	// Store is the already-initialised handle this filesystem serves from.
	// Its lifetime is owned by the caller; NewServer never closes it.
	Store *store.Store

	// Clock supplies mtime/ctime stamps for operations the store itself
	// doesn't timestamp (SetInodeAttributes, WriteFile).
	Clock clock.Clock

	// Uid and Gid own every inode created through this filesystem.
	Uid uint32
	Gid uint32
}

// NewServer wraps a fileSystem in fuseutil's op-dispatching adapter so it
// can be handed to fuse.Mount.
func NewServer(cfg *ServerConfig) (fuse.Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("fs: ServerConfig.Store is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("fs: ServerConfig.Clock is required")
	}

	fs := &fileSystem{
		store: cfg.Store,
		clock: cfg.Clock,
		uid:   cfg.Uid,
		gid:   cfg.Gid,
	}

	return fuseutil.NewFileSystemServer(fs), nil
}

// fileSystem implements fuseutil.FileSystem. It carries no mutable state
// of its own: every method opens a transaction, runs its store calls, and
// commits or rolls back before returning. The store's single underlying
// connection (see store.Open) already serialises concurrent requests at
// the database/sql pool level, so unlike a cache-backed filesystem there
// is no fs-wide lock to take here.
type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	store *store.Store
	clock clock.Clock
	uid   uint32
	gid   uint32
}

func (fs *fileSystem) Init(op *fuseops.InitOp) (err error) {
	return nil
}

// LookUpInode fails with ENOENT (via mapErr) if no link named op.Name
// exists under op.Parent.
func (fs *fileSystem) LookUpInode(op *fuseops.LookUpInodeOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		child, _, err := tx.Lookup(int64(op.Parent), []byte(op.Name))
		if err != nil {
			return err
		}
		op.Entry = childEntry(child)
		return nil
	})
}

// GetInodeAttributes fails with EINVAL, not ENOENT, when the inode is
// missing — the one place this filesystem's error table departs from the
// store's own ErrNotFound mapping.
func (fs *fileSystem) GetInodeAttributes(op *fuseops.GetInodeAttributesOp) (err error) {
	err = fs.runTx(op.Context(), func(tx *store.Tx) error {
		in, err := tx.GetInode(int64(op.Inode))
		if err != nil {
			return err
		}
		op.Attributes = attrFromInode(in)
		return nil
	})
	if errors.Is(err, syscall.ENOENT) {
		return syscall.EINVAL
	}
	return err
}

// SetInodeAttributes applies whichever of size, mode, atime and mtime the
// kernel supplied, truncating block rows past the new size when it
// shrinks, and always restamps ctime to now.
func (fs *fileSystem) SetInodeAttributes(op *fuseops.SetInodeAttributesOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		cur, err := tx.GetInode(int64(op.Inode))
		if err != nil {
			return err
		}

		var fields store.InodeFields
		if op.Size != nil {
			size := int64(*op.Size)
			fields.Size = &size
			if size < cur.Size {
				if err := tx.TruncateBlocks(int64(op.Inode), size>>blkShift); err != nil {
					return err
				}
			}
		}
		if op.Mode != nil {
			mode := (cur.Mode &^ 0o7777) | (fileModeToPosix(*op.Mode) & 0o7777)
			fields.Mode = &mode
		}
		if op.Atime != nil {
			ns := op.Atime.UnixNano()
			fields.AtimeNs = &ns
		}
		if op.Mtime != nil {
			ns := op.Mtime.UnixNano()
			fields.MtimeNs = &ns
		}
		ctimeNs := fs.clock.Now().UnixNano()
		fields.CtimeNs = &ctimeNs

		if err := tx.UpdateInode(int64(op.Inode), fields); err != nil {
			return err
		}

		in, err := tx.GetInode(int64(op.Inode))
		if err != nil {
			return err
		}
		op.Attributes = attrFromInode(in)
		return nil
	})
}

// ForgetInode is a no-op: this filesystem keeps no in-memory lookup
// counts to decrement, the store is the only copy of an inode's state.
func (fs *fileSystem) ForgetInode(op *fuseops.ForgetInodeOp) (err error) {
	return nil
}

func (fs *fileSystem) MkDir(op *fuseops.MkDirOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		mode := fileModeToPosix(op.Mode)
		id, err := tx.CreateInode(int64(op.Parent), []byte(op.Name), fs.uid, fs.gid, mode, store.InodeExtra{})
		if err != nil {
			return err
		}
		child, err := tx.GetInode(id)
		if err != nil {
			return err
		}
		op.Entry = childEntry(child)
		return nil
	})
}

func (fs *fileSystem) CreateFile(op *fuseops.CreateFileOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		mode := fileModeToPosix(op.Mode)
		id, err := tx.CreateInode(int64(op.Parent), []byte(op.Name), fs.uid, fs.gid, mode, store.InodeExtra{})
		if err != nil {
			return err
		}
		child, err := tx.GetInode(id)
		if err != nil {
			return err
		}
		op.Entry = childEntry(child)
		op.Handle = fuseops.HandleID(child.ID)
		return nil
	})
}

// CreateSymlink stores size as len(target). An earlier revision of this
// store computed it from len(name) instead, which left st_size
// disagreeing with the length of whatever readlink() returned; target is
// the only value a reader of the symlink's attributes should see.
func (fs *fileSystem) CreateSymlink(op *fuseops.CreateSymlinkOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		extra := store.InodeExtra{
			Size:   int64(len(op.Target)),
			Target: []byte(op.Target),
		}
		id, err := tx.CreateInode(int64(op.Parent), []byte(op.Name), fs.uid, fs.gid, modeLnk|0o777, extra)
		if err != nil {
			return err
		}
		child, err := tx.GetInode(id)
		if err != nil {
			return err
		}
		op.Entry = childEntry(child)
		return nil
	})
}

// CreateLink inserts a second link to an existing inode. Directories may
// only ever be referenced by their own "." and ".." links, so linking one
// in as a new name fails with EINVAL.
func (fs *fileSystem) CreateLink(op *fuseops.CreateLinkOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		target, err := tx.GetInode(int64(op.Target))
		if err != nil {
			return err
		}
		if target.Mode&modeFmt == modeDir {
			return store.ErrInvalid
		}
		if err := tx.CreateLink(int64(op.Target), int64(op.Parent), []byte(op.Name)); err != nil {
			return err
		}
		child, err := tx.GetInode(int64(op.Target))
		if err != nil {
			return err
		}
		op.Entry = childEntry(child)
		return nil
	})
}

func (fs *fileSystem) MkNode(op *fuseops.MkNodeOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		mode := fileModeToPosix(op.Mode)
		extra := store.InodeExtra{Rdev: op.Rdev}
		id, err := tx.CreateInode(int64(op.Parent), []byte(op.Name), fs.uid, fs.gid, mode, extra)
		if err != nil {
			return err
		}
		child, err := tx.GetInode(id)
		if err != nil {
			return err
		}
		op.Entry = childEntry(child)
		return nil
	})
}

// RmDir fails with ENOTDIR if the target isn't a directory and ENOTEMPTY
// if it has more than its own "." and ".." links. The inode row itself is
// reclaimed in the same transaction as the link removal rather than left
// for a shutdown sweep.
func (fs *fileSystem) RmDir(op *fuseops.RmDirOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		child, linkID, err := tx.Lookup(int64(op.Parent), []byte(op.Name))
		if err != nil {
			return err
		}
		if child.Mode&modeFmt != modeDir {
			return store.ErrNotDir
		}
		if child.Nchild > 2 {
			return store.ErrNotEmpty
		}
		if err := tx.DeleteLink(linkID); err != nil {
			return err
		}
		return tx.MaybeReclaim(child.ID)
	})
}

// Unlink fails with EISDIR on a directory, and ENOTEMPTY if the target
// has children (ordinary files never do).
func (fs *fileSystem) Unlink(op *fuseops.UnlinkOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		child, linkID, err := tx.Lookup(int64(op.Parent), []byte(op.Name))
		if err != nil {
			return err
		}
		if child.Mode&modeFmt == modeDir {
			return store.ErrIsDir
		}
		if child.Nchild > 0 {
			return store.ErrNotEmpty
		}
		if err := tx.DeleteLink(linkID); err != nil {
			return err
		}
		return tx.MaybeReclaim(child.ID)
	})
}

// Rename delegates every NOREPLACE/EXCHANGE/plain-replace branch to
// store.Tx.Rename, which implements them atomically within this
// transaction.
func (fs *fileSystem) Rename(op *fuseops.RenameOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		return tx.Rename(
			int64(op.OldParent), []byte(op.OldName),
			int64(op.NewParent), []byte(op.NewName),
			store.RenameFlags(op.Flags))
	})
}

// OpenDir only verifies the target is a directory; readdir needs no
// handle-side state since the cursor it resumes from travels in the
// request itself (see ReadDir).
func (fs *fileSystem) OpenDir(op *fuseops.OpenDirOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		in, err := tx.GetInode(int64(op.Inode))
		if err != nil {
			return err
		}
		if in.Mode&modeFmt != modeDir {
			return store.ErrNotDir
		}
		return nil
	})
}

// ReadDir walks children in link-id order starting after op.Offset,
// writing dirents until one doesn't fit. Each dirent's Offset is its own
// link id, so handing that value back as the next request's Offset
// resumes exactly where this call left off, even if entries were added
// or removed in between.
func (fs *fileSystem) ReadDir(op *fuseops.ReadDirOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		children, err := tx.Children(int64(op.Inode), int64(op.Offset))
		if err != nil {
			return err
		}

		n := 0
		for _, c := range children {
			de := fuseops.Dirent{
				Offset: fuseops.DirOffset(c.LinkID),
				Inode:  fuseops.InodeID(c.Inode.ID),
				Name:   string(c.Name),
				Type:   direntType(c.Inode.Mode),
			}
			written := fuseutil.WriteDirent(op.Dst[n:], de)
			if written == 0 {
				break
			}
			n += written
		}
		op.BytesRead = n
		return nil
	})
}

func (fs *fileSystem) ReleaseDirHandle(op *fuseops.ReleaseDirHandleOp) (err error) {
	return nil
}

func (fs *fileSystem) OpenFile(op *fuseops.OpenFileOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		in, err := tx.GetInode(int64(op.Inode))
		if err != nil {
			return err
		}
		if in.Mode&modeFmt == modeDir {
			return store.ErrIsDir
		}
		return nil
	})
}

// ReadFile clamps size to the inode's recorded length and leaves the rest
// of the block arithmetic to readRange.
func (fs *fileSystem) ReadFile(op *fuseops.ReadFileOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		in, err := tx.GetInode(int64(op.Inode))
		if err != nil {
			return err
		}

		size := int64(op.Size)
		if size == 0 || op.Offset >= in.Size {
			op.Data = nil
			return nil
		}
		if op.Offset+size > in.Size {
			size = in.Size - op.Offset
		}

		op.Data, err = readRange(tx, int64(op.Inode), op.Offset, size)
		return err
	})
}

func (fs *fileSystem) ReadSymlink(op *fuseops.ReadSymlinkOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		in, err := tx.GetInode(int64(op.Inode))
		if err != nil {
			return err
		}
		if in.Mode&modeFmt != modeLnk {
			return store.ErrInvalid
		}
		op.Target = string(in.Target)
		return nil
	})
}

// WriteFile splices op.Data into the inode's blocks via writeRange, then
// grows size (and stamps mtime/ctime) only if the write extended past the
// current end of file.
func (fs *fileSystem) WriteFile(op *fuseops.WriteFileOp) (err error) {
	return fs.runTx(op.Context(), func(tx *store.Tx) error {
		in, err := tx.GetInode(int64(op.Inode))
		if err != nil {
			return err
		}
		if len(op.Data) == 0 {
			return nil
		}

		end, err := writeRange(tx, int64(op.Inode), op.Offset, op.Data)
		if err != nil {
			return err
		}

		if end > in.Size {
			now := fs.clock.Now().UnixNano()
			return tx.UpdateInode(int64(op.Inode), store.InodeFields{
				Size:    &end,
				MtimeNs: &now,
				CtimeNs: &now,
			})
		}
		return nil
	})
}

// SyncFile and FlushFile are no-ops: every write already committed its own
// transaction by the time WriteFile returned, so there is nothing left to
// flush.
func (fs *fileSystem) SyncFile(op *fuseops.SyncFileOp) (err error)   { return nil }
func (fs *fileSystem) FlushFile(op *fuseops.FlushFileOp) (err error) { return nil }

func (fs *fileSystem) ReleaseFileHandle(op *fuseops.ReleaseFileHandleOp) (err error) {
	return nil
}

// StatFS reports block and inode counts straight from the store; free
// space has no meaning for this filesystem (an in-memory store has no
// disk to run out of, and a file-backed one grows unbounded) so a large
// synthetic value is reported in both cases.
func (fs *fileSystem) StatFS(op *fuseops.StatFSOp) (err error) {
	stats, err := fs.store.Stats(op.Context())
	if err != nil {
		return mapErr(err)
	}

	const syntheticFree = 1 << 30

	op.BlockSize = blkSize
	op.IoSize = blkSize
	op.Blocks = uint64(stats.Blocks)
	op.BlocksFree = syntheticFree
	op.BlocksAvailable = syntheticFree
	op.Inodes = uint64(stats.Files)
	op.InodesFree = syntheticFree
	return nil
}

// runTx opens a transaction, runs f, and commits or rolls back before
// translating any error through mapErr. Every exported method above calls
// this exactly once.
func (fs *fileSystem) runTx(ctx context.Context, f func(tx *store.Tx) error) error {
	tx, err := fs.store.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}
