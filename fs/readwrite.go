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
	"bytes"

	"github.com/greenbender/sqlfs-go/internal/store"
)

const (
	blkSize  = 4096
	blkMask  = blkSize - 1
	blkShift = 12
)

// readRange assembles the byte range [off, off+size) of inode's content
// from whatever block rows are present, zero-filling any gap (sparse
// reads). Callers have already clamped size to the inode's recorded
// length.
func readRange(t *store.Tx, inode int64, off, size int64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	b0 := off >> blkShift
	bn := (off + size - 1) >> blkShift

	rows, err := t.Blocks(inode, b0, bn)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, (bn-b0+1)*blkSize)
	for _, b := range rows {
		copy(buf[(b.Idx-b0)*blkSize:], b.Data)
	}

	lo := off & blkMask
	return buf[lo : lo+size], nil
}

// writeRange applies buf at offset off against inode's block rows: it
// reads whichever boundary blocks are partially overwritten so their
// untouched portion survives, splices buf into a scratch buffer spanning
// the full affected block range, then re-upserts (or, if a block trims
// down to nothing, deletes) each 4096-byte slice. Returns the new end
// offset (off+len(buf)), for the caller to compare against the inode's
// current size.
func writeRange(t *store.Tx, inode int64, off int64, buf []byte) (int64, error) {
	if len(buf) == 0 {
		return off, nil
	}

	end := off + int64(len(buf))
	b0 := off >> blkShift
	bn := (end - 1) >> blkShift

	scratch := make([]byte, (bn-b0+1)*blkSize)

	headUnaligned := off&blkMask != 0
	tailUnaligned := end&blkMask != 0

	if headUnaligned {
		rows, err := t.Blocks(inode, b0, b0)
		if err != nil {
			return 0, err
		}
		if len(rows) == 1 {
			copy(scratch, rows[0].Data)
		}
	}
	if tailUnaligned {
		rows, err := t.Blocks(inode, bn, bn)
		if err != nil {
			return 0, err
		}
		if len(rows) == 1 {
			copy(scratch[(bn-b0)*blkSize:], rows[0].Data)
		}
	}

	copy(scratch[off&blkMask:], buf)

	var upserts []store.BlockRow
	var deletes []int64
	for i := int64(0); i*blkSize < int64(len(scratch)); i++ {
		idx := b0 + i
		chunk := bytes.TrimRight(scratch[i*blkSize:(i+1)*blkSize], "\x00")
		if len(chunk) == 0 {
			deletes = append(deletes, idx)
			continue
		}
		upserts = append(upserts, store.BlockRow{Inode: inode, Idx: idx, Data: chunk})
	}

	if len(upserts) > 0 {
		if err := t.UpdateBlocks(upserts); err != nil {
			return 0, err
		}
	}
	for _, idx := range deletes {
		if err := t.DeleteBlock(inode, idx); err != nil {
			return 0, err
		}
	}

	return end, nil
}
