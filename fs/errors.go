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
	"errors"
	"syscall"

	"github.com/greenbender/sqlfs-go/internal/store"
)

// mapErr translates a store sentinel error into the syscall.Errno the
// kernel expects back from a fuseops operation, per the error table this
// filesystem's contract describes. A syscall.Errno already satisfies
// error, so fuseops methods can return it directly. Unrecognized errors
// (store plumbing failures: a closed handle, a malformed row, sqlite
// returning something other than a constraint violation) surface as EIO,
// since they indicate the store itself rather than the request is at
// fault.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, store.ErrExists):
		return syscall.EEXIST
	case errors.Is(err, store.ErrNotDir):
		return syscall.ENOTDIR
	case errors.Is(err, store.ErrIsDir):
		return syscall.EISDIR
	case errors.Is(err, store.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, store.ErrInvalid):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}
