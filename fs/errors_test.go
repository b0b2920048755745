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
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/greenbender/sqlfs-go/internal/store"
)

func TestMapErrNil(t *testing.T) {
	assert.Nil(t, mapErr(nil))
}

func TestMapErrTable(t *testing.T) {
	cases := []struct {
		in   error
		want syscall.Errno
	}{
		{store.ErrNotFound, syscall.ENOENT},
		{store.ErrExists, syscall.EEXIST},
		{store.ErrNotDir, syscall.ENOTDIR},
		{store.ErrIsDir, syscall.EISDIR},
		{store.ErrNotEmpty, syscall.ENOTEMPTY},
		{store.ErrInvalid, syscall.EINVAL},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, mapErr(c.in))
	}
}

func TestMapErrWrapped(t *testing.T) {
	wrapped := fmt.Errorf("lookup failed: %w", store.ErrNotFound)
	assert.Equal(t, syscall.ENOENT, mapErr(wrapped))
}

func TestMapErrUnrecognizedIsEIO(t *testing.T) {
	assert.Equal(t, syscall.EIO, mapErr(errors.New("some sqlite plumbing failure")))
}
