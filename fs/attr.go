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

package fs

import (
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"

	"github.com/greenbender/sqlfs-go/internal/store"
)

// Posix type bits, as stored verbatim in inode.mode.
const (
	modeFmt    = 0o170000
	modeDir    = 0o040000
	modeChr    = 0o020000
	modeBlk    = 0o060000
	modeReg    = 0o100000
	modeFifo   = 0o010000
	modeLnk    = 0o120000
	modeSocket = 0o140000
)

// posixToFileMode turns a raw inode.mode column into the os.FileMode
// fuseops.InodeAttributes expects: permission bits are shared, but the
// type bits live in different positions in the two encodings.
func posixToFileMode(mode uint32) os.FileMode {
	fm := os.FileMode(mode & 0o7777)
	switch mode & modeFmt {
	case modeDir:
		fm |= os.ModeDir
	case modeChr:
		fm |= os.ModeDevice | os.ModeCharDevice
	case modeBlk:
		fm |= os.ModeDevice
	case modeFifo:
		fm |= os.ModeNamedPipe
	case modeLnk:
		fm |= os.ModeSymlink
	case modeSocket:
		fm |= os.ModeSocket
	}
	return fm
}

// fileModeToPosix is posixToFileMode's inverse, used when a create/mkdir/
// mknod/symlink request supplies an os.FileMode that must be stored as a
// raw mode_t.
func fileModeToPosix(fm os.FileMode) uint32 {
	mode := uint32(fm.Perm())
	switch {
	case fm&os.ModeDir != 0:
		mode |= modeDir
	case fm&os.ModeSymlink != 0:
		mode |= modeLnk
	case fm&os.ModeNamedPipe != 0:
		mode |= modeFifo
	case fm&os.ModeSocket != 0:
		mode |= modeSocket
	case fm&os.ModeCharDevice != 0:
		mode |= modeChr
	case fm&os.ModeDevice != 0:
		mode |= modeBlk
	default:
		mode |= modeReg
	}
	return mode
}

// attrFromInode assembles the fuseops attribute reply the Operations
// Layer describes: st_ino, st_mode, st_nlink, st_uid, st_gid, st_rdev,
// st_size, st_blksize and the three nanosecond timestamps (st_blksize and
// st_blocks are carried by the kernel protocol layer beneath fuseops, not
// by InodeAttributes itself).
func attrFromInode(in store.Inode) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(in.Size),
		Nlink: uint32(in.Nlink),
		Mode:  posixToFileMode(in.Mode),
		Rdev:  in.Rdev,
		Uid:   in.UID,
		Gid:   in.GID,
		Atime: time.Unix(0, in.AtimeNs),
		Mtime: time.Unix(0, in.MtimeNs),
		Ctime: time.Unix(0, in.CtimeNs),
	}
}

// childEntry wraps an inode row as a fuseops.ChildInodeEntry for the
// lookup-family operations (LookUpInode, MkDir, CreateFile, CreateSymlink,
// CreateLink, MkNode). Generation is always zero: inode ids are never
// reused for the AUTOINCREMENT reason entry.go documents, so the kernel
// never needs to distinguish two generations of the same id.
func childEntry(in store.Inode) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:      fuseops.InodeID(in.ID),
		Attributes: attrFromInode(in),
	}
}

// direntType maps an inode's stored mode to the fuseops.DirentType
// readdir() replies carry.
func direntType(mode uint32) fuseops.DirentType {
	switch mode & modeFmt {
	case modeDir:
		return fuseops.DT_Directory
	case modeLnk:
		return fuseops.DT_Link
	case modeChr:
		return fuseops.DT_Char
	case modeBlk:
		return fuseops.DT_Block
	case modeFifo:
		return fuseops.DT_FIFO
	case modeSocket:
		return fuseops.DT_Socket
	default:
		return fuseops.DT_File
	}
}
