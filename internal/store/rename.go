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

// RenameFlags mirrors the Linux renameat2(2) flag vocabulary the
// rename() contract requires. The pinned jacobsa/fuse snapshot this
// module's fs package is built against predates RenameOp.Flags, so this
// flag-aware semantics lives here on Store instead of on a literal FUSE
// op field.
type RenameFlags uint32

const (
	// RenameNoReplace fails the rename with ErrExists if the destination
	// already exists, instead of replacing it.
	RenameNoReplace RenameFlags = 1 << iota
	// RenameExchange atomically swaps the two paths' inodes instead of
	// moving source onto destination.
	RenameExchange
)

// Rename resolves (pOld, nOld) and, per flags, either relinks it to
// (pNew, nNew), fails on a colliding destination, exchanges the two
// links' inodes, or replaces an empty destination — the four branches a
// rename can take. All branches commit as part of the caller's single
// transaction (the caller still owns Commit/Rollback on t).
func (t *Tx) Rename(pOld int64, nOld []byte, pNew int64, nNew []byte, flags RenameFlags) error {
	_, srcLinkID, err := t.Lookup(pOld, nOld)
	if err != nil {
		if err == ErrNotFound {
			return ErrInvalid
		}
		return err
	}

	dst, dstLinkID, err := t.Lookup(pNew, nNew)
	noDst := err == ErrNotFound
	if err != nil && !noDst {
		return err
	}

	switch {
	case noDst:
		srcID := srcLinkID
		newParent := pNew
		newName := nNew
		return t.UpdateLink(srcID, LinkFields{ParentInode: &newParent, Name: &newName})

	case flags&RenameNoReplace != 0:
		return ErrExists

	case flags&RenameExchange != 0:
		src, _, err := t.Lookup(pOld, nOld)
		if err != nil {
			return err
		}
		srcInode, dstInode := src.ID, dst.ID
		if err := t.UpdateLink(srcLinkID, LinkFields{Inode: &dstInode}); err != nil {
			return err
		}
		return t.UpdateLink(dstLinkID, LinkFields{Inode: &srcInode})

	default: // plain replace
		if dst.Nchild > 0 {
			return ErrNotEmpty
		}
		src, _, err := t.Lookup(pOld, nOld)
		if err != nil {
			return err
		}
		srcInode := src.ID
		if err := t.UpdateLink(dstLinkID, LinkFields{Inode: &srcInode}); err != nil {
			return err
		}
		if err := t.DeleteLink(srcLinkID); err != nil {
			return err
		}
		return t.MaybeReclaim(dst.ID)
	}
}
