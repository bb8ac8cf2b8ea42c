/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// digestHeadLen bounds how much of the file feeds the digest; enough to tell
// documents apart without reading a whole archive.
const digestHeadLen = 64 << 10

// DocumentDigest derives a stable identity for a document file: sha256 over
// the first 64 KiB plus the file size. A moved or renamed file keeps its
// progress and cache entries.
func DocumentDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	h := sha256.New()
	if _, err := io.CopyN(h, f, digestHeadLen); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(h, "|%d", st.Size())
	return hex.EncodeToString(h.Sum(nil)), nil
}
