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

// RootID is the inode id of the filesystem root. It is created once, at
// store initialisation, and persists for the lifetime of the database.
const RootID int64 = 1

// Inode is the full row for one inode plus the three derived counts, as
// returned by GetInode, Lookup and Children.
type Inode struct {
	ID      int64
	UID     uint32
	GID     uint32
	Mode    uint32
	MtimeNs int64
	AtimeNs int64
	CtimeNs int64
	Size    int64
	Rdev    uint32
	Target  []byte

	Nlink  int64
	Nchild int64
	Nblock int64
}

// Child is one entry yielded by Children: the child's full inode row, its
// name within the parent, and the link row id (the readdir cursor).
type Child struct {
	Inode  Inode
	Name   []byte
	LinkID int64
}

// Block is one present block row.
type Block struct {
	Idx  int64
	Data []byte
}

// BlockRow is one block to upsert via UpdateBlocks.
type BlockRow struct {
	Inode int64
	Idx   int64
	Data  []byte
}

// InodeExtra carries the caller-supplied fields CreateInode accepts beyond
// (parent, name, uid, gid, mode): size, target and rdev. Zero values are
// the correct defaults for ordinary files and directories.
type InodeExtra struct {
	Size   int64
	Target []byte
	Rdev   uint32
}

// InodeFields is a sparse update set for UpdateInode. Only the named,
// recognized fields may be updated; this list
// is enumerated explicitly rather than assembled from caller-provided
// column names.
type InodeFields struct {
	Size    *int64
	Mode    *uint32
	UID     *uint32
	GID     *uint32
	MtimeNs *int64
	AtimeNs *int64
	CtimeNs *int64
	Target  *[]byte
	Rdev    *uint32
}

// Empty reports whether no field is set, in which case UpdateInode is a
// no-op.
func (f InodeFields) Empty() bool {
	return f.Size == nil && f.Mode == nil && f.UID == nil && f.GID == nil &&
		f.MtimeNs == nil && f.AtimeNs == nil && f.CtimeNs == nil &&
		f.Target == nil && f.Rdev == nil
}

// LinkFields is a sparse update set for UpdateLink: changing the inode a
// link points at, which directory contains it, or its name.
type LinkFields struct {
	Inode       *int64
	ParentInode *int64
	Name        *[]byte
}
