/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sidecar

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopanelreader/internal/domain"
	applog "gopanelreader/internal/log"
)

// Store resolves panel layouts from sidecar JSON files and caches them per
// document. One Store belongs to one reading session; there is no package
// global. A document entry, once loaded, is never refreshed behind the
// caller's back; sidecars are treated as static while the document is open.
// Invalidate exists for tooling that rewrites sidecars.
type Store struct {
	mu   sync.Mutex
	docs map[string]*document
	log  *slog.Logger
}

// document is one cached sidecar. A load failure caches an empty entry so the
// disk is not probed again on every page.
type document struct {
	dir      string
	doc      domain.PanelDocument
	mapPages map[string]domain.PanelList
	mapKeys  []string // sorted for deterministic probing
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		docs: make(map[string]*document),
		log:  applog.WithComponent("sidecar"),
	}
}

// SidecarPath derives the sidecar location: the document path with its
// extension replaced by .json, in the same directory.
func SidecarPath(docPath string) string {
	return strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".json"
}

// Resolve returns the panel list for a page, or an empty list. Missing or
// malformed sidecars, unknown pages and unreadable chapter shards all resolve
// to "no panels"; Resolve never fails.
func (s *Store) Resolve(docPath string, page int) domain.PanelList {
	d := s.load(docPath)
	if d == nil || page < 1 {
		return nil
	}
	if d.doc.Sharded() {
		ch, local, ok := d.doc.ChapterFor(page)
		if !ok {
			return nil
		}
		// Chapter shards are read per lookup; only the master index is cached.
		shard := s.loadShard(filepath.Join(d.dir, ch.JSONFile))
		if shard == nil {
			return nil
		}
		return shard.panelsFor(local)
	}
	return d.panelsFor(page)
}

// Direction returns the document's reading direction, rtl when unset or when
// no sidecar could be loaded.
func (s *Store) Direction(docPath string) domain.ReadingDirection {
	d := s.load(docPath)
	if d == nil {
		return domain.DirectionRTL
	}
	return d.doc.Direction()
}

// PageCount reports the page total declared by the sidecar: the sum of
// chapter totals for sharded archives, else the document total, else the
// number of listed pages. Zero when nothing is declared.
func (s *Store) PageCount(docPath string) int {
	d := s.load(docPath)
	if d == nil {
		return 0
	}
	if d.doc.Sharded() {
		sum := 0
		for _, ch := range d.doc.Chapters {
			sum += ch.TotalPages
		}
		return sum
	}
	if d.doc.TotalPages > 0 {
		return d.doc.TotalPages
	}
	return len(d.doc.Pages)
}

// Document returns a copy of the cached canonical document and whether a
// sidecar was actually loaded (as opposed to the cached-empty placeholder).
func (s *Store) Document(docPath string) (domain.PanelDocument, bool) {
	d := s.load(docPath)
	if d == nil {
		return domain.PanelDocument{}, false
	}
	loaded := len(d.doc.Pages) > 0 || len(d.doc.Chapters) > 0 || len(d.doc.Panels) > 0 || len(d.mapPages) > 0
	return d.doc, loaded
}

// Invalidate drops the cache entry for a document. The next Resolve reloads
// from disk.
func (s *Store) Invalidate(docPath string) {
	s.mu.Lock()
	delete(s.docs, docPath)
	s.mu.Unlock()
}

// load returns the cached entry for a document, reading the sidecar on first
// use. The result is never nil for a valid path; failures cache as empty.
func (s *Store) load(docPath string) *document {
	if docPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.docs[docPath]; ok {
		return d
	}

	path := SidecarPath(docPath)
	d := &document{dir: filepath.Dir(path)}
	b, err := os.ReadFile(path)
	if err != nil {
		// No sidecar is the normal case for plain documents; stay quiet.
		s.log.Debug("no sidecar", "path", path)
		s.docs[docPath] = d
		return d
	}
	doc, mapPages, dropped, derr := decodeDocument(b)
	if derr != nil {
		s.log.Warn("malformed sidecar, treating as absent", "path", path, "err", derr)
		s.docs[docPath] = d
		return d
	}
	if dropped > 0 {
		s.log.Warn("dropped invalid panel rects", "path", path, "count", dropped)
	}
	d.doc = doc
	d.mapPages = mapPages
	d.mapKeys = sortedKeys(mapPages)
	s.log.Debug("sidecar loaded", "path", path,
		"pages", len(doc.Pages), "chapters", len(doc.Chapters), "direction", doc.Direction())
	s.docs[docPath] = d
	return d
}

// loadShard reads one chapter file. Shards are flat-form documents; they are
// intentionally not cached.
func (s *Store) loadShard(path string) *document {
	b, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("chapter file missing", "path", path, "err", err)
		return nil
	}
	doc, mapPages, dropped, derr := decodeDocument(b)
	if derr != nil {
		s.log.Warn("malformed chapter file", "path", path, "err", derr)
		return nil
	}
	if dropped > 0 {
		s.log.Warn("dropped invalid panel rects", "path", path, "count", dropped)
	}
	return &document{
		dir:      filepath.Dir(path),
		doc:      doc,
		mapPages: mapPages,
		mapKeys:  sortedKeys(mapPages),
	}
}

// panelsFor resolves a page inside a flat document: exact page-number match
// in the pages array first, then the legacy map keyed by filename, by the
// stringified page number, and by numeric key parse, first hit winning. The
// top-level panels array is the last resort and applies to every page.
func (d *document) panelsFor(page int) domain.PanelList {
	if pe, ok := d.doc.PageByNumber(page); ok {
		return pe.Panels
	}
	if len(d.mapPages) > 0 {
		// Filename keys: "0012.jpg" style, base name parsed as the page number.
		for _, k := range d.mapKeys {
			base := filepath.Base(k)
			ext := filepath.Ext(base)
			if ext == "" {
				continue
			}
			if n, err := strconv.Atoi(strings.TrimSuffix(base, ext)); err == nil && n == page {
				return d.mapPages[k]
			}
		}
		if pl, ok := d.mapPages[strconv.Itoa(page)]; ok {
			return pl
		}
		for _, k := range d.mapKeys {
			if n, err := strconv.Atoi(strings.TrimSpace(k)); err == nil && n == page {
				return d.mapPages[k]
			}
		}
	}
	if len(d.doc.Panels) > 0 {
		return d.doc.Panels
	}
	return nil
}

func sortedKeys(m map[string]domain.PanelList) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
