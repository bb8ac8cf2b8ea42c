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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopanelreader/internal/domain"
)

func TestNormalizeLegacyMap(t *testing.T) {
	mapPages := map[string]domain.PanelList{
		"0003.jpg": {{X: 0.3, Y: 0.3, W: 0.3, H: 0.3}},
		"1":        {{X: 0.1, Y: 0.1, W: 0.1, H: 0.1}},
		"002.png":  {{X: 0.2, Y: 0.2, W: 0.2, H: 0.2}},
		"cover":    {{X: 0, Y: 0, W: 1, H: 1}},
	}
	out := Normalize(domain.PanelDocument{ReadingDirection: "vertical"}, mapPages)

	if out.ReadingDirection != "rtl" {
		t.Fatalf("direction = %q", out.ReadingDirection)
	}
	if len(out.Pages) != 3 {
		t.Fatalf("pages = %+v", out.Pages)
	}
	for i, want := range []int{1, 2, 3} {
		if out.Pages[i].Page != want {
			t.Fatalf("page order = %+v", out.Pages)
		}
	}
	if out.Pages[2].Panels[0].X != 0.3 {
		t.Fatalf("page 3 panels = %+v", out.Pages[2].Panels)
	}
	if out.TotalPages != 3 {
		t.Fatalf("total pages = %d", out.TotalPages)
	}
}

func TestNormalizeShardedIndex(t *testing.T) {
	in := domain.PanelDocument{
		ReadingDirection: "ltr",
		Chapters: []domain.ChapterRef{
			{Name: "a", JSONFile: "a.json", TotalPages: 10},
			{Name: "b", JSONFile: "b.json", TotalPages: 5},
		},
	}
	out := Normalize(in, nil)
	if out.TotalChapters != 2 || out.TotalPages != 15 {
		t.Fatalf("totals = %d chapters, %d pages", out.TotalChapters, out.TotalPages)
	}
	if out.ReadingDirection != "ltr" {
		t.Fatalf("direction = %q", out.ReadingDirection)
	}
}

func TestWriteDocumentTransactional(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.json")
	doc := domain.PanelDocument{
		ReadingDirection: "rtl",
		TotalPages:       1,
		Pages: []domain.PageEntry{
			{Page: 1, Panels: domain.PanelList{{X: 0.1, Y: 0.1, W: 0.5, H: 0.5}}},
		},
	}

	if err := WriteDocument(path, doc); err != nil {
		t.Fatalf("first write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var round domain.PanelDocument
	if err := json.Unmarshal(b, &round); err != nil {
		t.Fatalf("unmarshal written sidecar: %v", err)
	}
	if len(round.Pages) != 1 || round.Pages[0].Panels[0].W != 0.5 {
		t.Fatalf("round trip = %+v", round)
	}

	// A second write keeps a timestamped backup of the first.
	doc.Pages[0].Panels[0].W = 0.6
	if err := WriteDocument(path, doc); err != nil {
		t.Fatalf("second write: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	backups := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "vol.json.") && strings.HasSuffix(e.Name(), ".bak") {
			backups++
		}
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
	if backups != 1 {
		t.Fatalf("backup count = %d", backups)
	}
}

func TestNormalizeFileRewritesLegacy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.json")
	writeFile(t, path, `{
		"pages": {
			"002.png": [[0.2, 0.2, 0.2, 0.2]],
			"1":       [{"x":0.1,"y":0.1,"w":0.1,"h":0.1}]
		}
	}`)

	if err := NormalizeFile(path); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var round domain.PanelDocument
	if err := json.Unmarshal(b, &round); err != nil {
		t.Fatalf("canonical form should unmarshal directly: %v", err)
	}
	if len(round.Pages) != 2 || round.Pages[0].Page != 1 || round.Pages[1].Page != 2 {
		t.Fatalf("pages = %+v", round.Pages)
	}
	if round.Pages[1].Panels[0].X != 0.2 {
		t.Fatalf("array rects should become objects, got %+v", round.Pages[1].Panels)
	}
	if round.TotalPages != 2 || round.ReadingDirection != "rtl" {
		t.Fatalf("totals/direction = %d %q", round.TotalPages, round.ReadingDirection)
	}
}

func TestNormalizeFileErrors(t *testing.T) {
	dir := t.TempDir()
	if err := NormalizeFile(filepath.Join(dir, "absent.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"pages": [`)
	if err := NormalizeFile(bad); err == nil {
		t.Fatalf("expected error for malformed file")
	}
}
