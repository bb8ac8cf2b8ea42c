/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"gopanelreader/internal/domain"
	"gopanelreader/internal/pixbuf"
	"gopanelreader/internal/render"
)

// stubSource serves a fixed number of uniform light-gray pages.
type stubSource struct {
	pages int
	dims  domain.PageDimensions
}

func (s *stubSource) PageDimensions(_ context.Context, page int) (domain.PageDimensions, error) {
	if page < 1 || page > s.pages {
		return domain.PageDimensions{}, fmt.Errorf("page %d out of range", page)
	}
	return s.dims, nil
}

func (s *stubSource) RenderRegion(_ context.Context, req render.RegionRequest) (*pixbuf.Buffer, error) {
	w := int(req.Rect.W*req.Scale + 0.5)
	h := int(req.Rect.H*req.Scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	format := pixbuf.FormatRGB32
	if req.Grayscale {
		format = pixbuf.FormatGray8
	}
	b := pixbuf.New(format, w, h)
	for i := range b.Pix {
		b.Pix[i] = 200
	}
	return b, nil
}

func (s *stubSource) PageCount() int { return s.pages }

func sampleDoc(pages int) domain.PanelDocument {
	doc := domain.PanelDocument{
		ArchiveName:      "sample.cbz",
		ReadingDirection: "rtl",
		TotalPages:       pages,
	}
	for p := 1; p <= pages; p++ {
		doc.Pages = append(doc.Pages, domain.PageEntry{
			Page: p,
			Panels: domain.PanelList{
				{X: 0.05, Y: 0.05, W: 0.9, H: 0.4},
				{X: 0.05, Y: 0.5, W: 0.9, H: 0.45},
			},
		})
	}
	return doc
}

func readZipEntry(t *testing.T, rd *zip.ReadCloser, name string) string {
	t.Helper()
	for _, f := range rd.File {
		if f.Name != name {
			continue
		}
		r, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		data, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestExportCBZ(t *testing.T) {
	ras := &stubSource{pages: 3, dims: domain.PageDimensions{W: 200, H: 300}}
	doc := sampleDoc(2)
	doc.TotalPages = 3 // page 3 has no panels and falls back to a whole-page frame

	out := filepath.Join(t.TempDir(), "sample.cbz")
	opt := CBZOptions{Screen: domain.ScreenDimensions{W: 100, H: 140}}
	if err := ExportCBZ(context.Background(), ras, doc, out, opt); err != nil {
		t.Fatalf("export cbz: %v", err)
	}

	rd, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = rd.Close() }()

	names := make(map[string]bool, len(rd.File))
	for _, f := range rd.File {
		names[f.Name] = true
	}
	for _, want := range []string{"1.png", "2.png", "3.png", "4.png", "5.png", "ComicInfo.xml"} {
		if !names[want] {
			t.Fatalf("entry %s missing, have %v", want, names)
		}
	}
	if len(rd.File) != 6 {
		t.Fatalf("entry count = %d, want 6", len(rd.File))
	}

	text := readZipEntry(t, rd, "ComicInfo.xml")
	for _, want := range []string{
		"<Series>sample</Series>",
		"<PageCount>5</PageCount>",
		"<ReadingDirection>RightToLeft</ReadingDirection>",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("manifest missing %s:\n%s", want, text)
		}
	}
}

func TestExportCBZLtrAndEnforcedExtension(t *testing.T) {
	ras := &stubSource{pages: 1, dims: domain.PageDimensions{W: 100, H: 100}}
	doc := sampleDoc(1)
	doc.ReadingDirection = "ltr"

	out := filepath.Join(t.TempDir(), "sample")
	opt := CBZOptions{
		Screen: domain.ScreenDimensions{W: 80, H: 80},
		Series: "My Series",
		Title:  "Vol. 1",
	}
	if err := ExportCBZ(context.Background(), ras, doc, out, opt); err != nil {
		t.Fatalf("export cbz: %v", err)
	}
	rd, err := zip.OpenReader(out + ".cbz")
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = rd.Close() }()

	text := readZipEntry(t, rd, "ComicInfo.xml")
	if !strings.Contains(text, "<Series>My Series</Series>") || !strings.Contains(text, "<Title>Vol. 1</Title>") {
		t.Fatalf("manifest fields: %s", text)
	}
	if !strings.Contains(text, "<ReadingDirection>LeftToRight</ReadingDirection>") {
		t.Fatalf("ltr not mapped: %s", text)
	}
}

func TestExportCBZNoPages(t *testing.T) {
	ras := &stubSource{pages: 0, dims: domain.PageDimensions{W: 10, H: 10}}
	out := filepath.Join(t.TempDir(), "empty.cbz")
	if err := ExportCBZ(context.Background(), ras, domain.PanelDocument{}, out, CBZOptions{}); err == nil {
		t.Fatalf("expected error for empty document")
	}
}
