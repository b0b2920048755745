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
	"crypto/sha256"

	"golang.org/x/crypto/hkdf"
)

// keySalt is a fixed, public domain-separation salt for the HKDF used to
// turn a user password into a fixed-width encryption key. It need not be
// secret; its only job is to keep this derivation distinct from any other
// use of HKDF-SHA256 sharing the same input key material.
var keySalt = []byte("sqlfs-go/store/page-key/v1")

// deriveKey turns a user-supplied password into a 32-byte key suitable for
// page-level encryption, via HKDF-SHA256 rather than a bare password hash.
func deriveKey(password string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(password), keySalt, []byte("sqlfs page key"))
	if _, err := r.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}
