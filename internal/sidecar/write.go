/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopanelreader/internal/domain"
)

// Normalize converts a decoded sidecar into canonical form: legacy map pages
// become a flat pages array, pages are sorted by number, the direction string
// is reduced to ltr/rtl, and the page total is recomputed from the listing
// when absent. Sharded index documents pass through with only the direction
// and totals normalized.
func Normalize(doc domain.PanelDocument, mapPages map[string]domain.PanelList) domain.PanelDocument {
	out := doc
	out.ReadingDirection = string(doc.Direction())

	if len(mapPages) > 0 {
		seen := make(map[int]bool, len(mapPages))
		for _, k := range sortedKeys(mapPages) {
			n, ok := pageNumberFromKey(k)
			if !ok || seen[n] {
				continue
			}
			seen[n] = true
			out.Pages = append(out.Pages, domain.PageEntry{Page: n, Panels: mapPages[k]})
		}
	}
	sort.Slice(out.Pages, func(i, j int) bool { return out.Pages[i].Page < out.Pages[j].Page })

	if out.Sharded() {
		out.TotalChapters = len(out.Chapters)
		sum := 0
		for _, ch := range out.Chapters {
			sum += ch.TotalPages
		}
		if sum > 0 {
			out.TotalPages = sum
		}
	} else if out.TotalPages == 0 {
		out.TotalPages = len(out.Pages)
	}
	return out
}

// pageNumberFromKey resolves a legacy map key to a page number: filenames by
// their base name ("0012.jpg" is page 12), everything else by numeric parse.
func pageNumberFromKey(k string) (int, bool) {
	base := filepath.Base(k)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	n, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// NormalizeFile rewrites a sidecar in place in canonical form. The previous
// file is kept as a timestamped sibling backup.
func NormalizeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read sidecar: %w", err)
	}
	doc, mapPages, _, err := decodeDocument(b)
	if err != nil {
		return fmt.Errorf("decode sidecar: %w", err)
	}
	return WriteDocument(path, Normalize(doc, mapPages))
}

// WriteDocument writes a sidecar to disk with transactional semantics and a
// timestamped backup of the previous file (if present).
func WriteDocument(path string, doc domain.PanelDocument) error {
	if path == "" {
		return errors.New("empty sidecar path")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	data = append(data, '\n')

	// If a current sidecar exists, copy it to a timestamped backup before replacing
	if _, statErr := os.Stat(path); statErr == nil {
		stamp := time.Now().Format("20060102-150405")
		bpath := fmt.Sprintf("%s.%s.bak", path, stamp)
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current sidecar: %w", cerr)
		}
	}

	// Transactional write: to temp file in same directory, then rename over target
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp sidecar: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		// attempt cleanup temp
		_ = os.Remove(temp)
		return fmt.Errorf("replace sidecar: %w", rerr)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return nil
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	if err := df.Sync(); err != nil {
		return err
	}
	return nil
}
