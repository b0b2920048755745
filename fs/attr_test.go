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
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"

	"github.com/greenbender/sqlfs-go/internal/store"
)

func TestPosixToFileModeTypeBits(t *testing.T) {
	cases := []struct {
		mode uint32
		want os.FileMode
	}{
		{modeDir | 0o755, os.ModeDir | 0o755},
		{modeLnk | 0o777, os.ModeSymlink | 0o777},
		{modeFifo | 0o644, os.ModeNamedPipe | 0o644},
		{modeSocket | 0o600, os.ModeSocket | 0o600},
		{modeChr | 0o600, os.ModeDevice | os.ModeCharDevice | 0o600},
		{modeBlk | 0o600, os.ModeDevice | 0o600},
		{modeReg | 0o644, 0o644},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, posixToFileMode(c.mode))
	}
}

func TestFileModeToPosixIsInverseOfPosixToFileMode(t *testing.T) {
	modes := []uint32{
		modeDir | 0o755,
		modeLnk | 0o777,
		modeFifo | 0o644,
		modeSocket | 0o600,
		modeChr | 0o600,
		modeBlk | 0o600,
		modeReg | 0o644,
	}
	for _, m := range modes {
		fm := posixToFileMode(m)
		assert.Equal(t, m, fileModeToPosix(fm), "round trip of mode %o", m)
	}
}

func TestAttrFromInode(t *testing.T) {
	in := store.Inode{
		ID:      42,
		UID:     1000,
		GID:     1000,
		Mode:    modeReg | 0o644,
		Size:    4096,
		Rdev:    0,
		MtimeNs: 1000,
		AtimeNs: 2000,
		CtimeNs: 3000,
		Nlink:   1,
	}
	attr := attrFromInode(in)
	assert.EqualValues(t, 4096, attr.Size)
	assert.EqualValues(t, 1, attr.Nlink)
	assert.Equal(t, os.FileMode(0o644), attr.Mode)
	assert.EqualValues(t, 1000, attr.Uid)
	assert.EqualValues(t, 1000, attr.Gid)
	assert.EqualValues(t, 1000, attr.Atime.UnixNano())
	assert.EqualValues(t, 1000, attr.Mtime.UnixNano())
	assert.EqualValues(t, 3000, attr.Ctime.UnixNano())
}

func TestChildEntryGenerationAlwaysZero(t *testing.T) {
	entry := childEntry(store.Inode{ID: 7, Mode: modeReg | 0o644})
	assert.EqualValues(t, 7, entry.Child)
	assert.Zero(t, entry.Generation)
}

func TestDirentType(t *testing.T) {
	cases := []struct {
		mode uint32
		want fuseops.DirentType
	}{
		{modeDir, fuseops.DT_Directory},
		{modeLnk, fuseops.DT_Link},
		{modeChr, fuseops.DT_Char},
		{modeBlk, fuseops.DT_Block},
		{modeFifo, fuseops.DT_FIFO},
		{modeSocket, fuseops.DT_Socket},
		{modeReg, fuseops.DT_File},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, direntType(c.mode))
	}
}
