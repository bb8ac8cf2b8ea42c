/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package pageimage

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gopanelreader/internal/domain"
	"gopanelreader/internal/pixbuf"
	"gopanelreader/internal/render"
)

func grayPage(w, h int, fill uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func near(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestOpenDirNaturalOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page10.png", "page2.png", "cover.png", "page1.png"} {
		writePNG(t, filepath.Join(dir, name), grayPage(4, 4, 128))
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write notes: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden.png"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write hidden: %v", err)
	}

	s, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	defer s.Close()
	if s.PageCount() != 4 {
		t.Fatalf("page count = %d", s.PageCount())
	}
	want := []string{"cover.png", "page1.png", "page2.png", "page10.png"}
	for i, name := range want {
		if got := s.PageName(i + 1); got != name {
			t.Fatalf("page %d = %q, want %q", i+1, got, name)
		}
	}
	if s.PageName(0) != "" || s.PageName(5) != "" {
		t.Fatalf("out-of-range PageName should be empty")
	}
}

func TestOpenDispatchAndErrors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "only.png"), grayPage(3, 2, 50))

	s, err := Open(filepath.Join(dir, "only.png"))
	if err != nil {
		t.Fatalf("Open single image: %v", err)
	}
	if s.PageCount() != 1 || s.PageName(1) != "only.png" {
		t.Fatalf("single image source = %d pages, %q", s.PageCount(), s.PageName(1))
	}

	if s, err = Open(dir); err != nil || s.PageCount() != 1 {
		t.Fatalf("Open dir: %v", err)
	}

	if _, err = Open(filepath.Join(dir, "absent.png")); err == nil {
		t.Fatalf("expected error for missing path")
	}
	if err := os.WriteFile(filepath.Join(dir, "doc.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}
	if _, err = Open(filepath.Join(dir, "doc.txt")); err == nil {
		t.Fatalf("expected error for unsupported file")
	}
	if _, err = OpenDir(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestPageDimensionsAndRotation(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "p.png"), grayPage(30, 20, 128))
	s, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	ctx := context.Background()

	dims, err := s.PageDimensions(ctx, 1)
	if err != nil || dims != (domain.PageDimensions{W: 30, H: 20}) {
		t.Fatalf("dims = %+v, %v", dims, err)
	}
	s.SetRotation(90)
	if dims, _ = s.PageDimensions(ctx, 1); dims != (domain.PageDimensions{W: 20, H: 30}) {
		t.Fatalf("rotated dims = %+v", dims)
	}
	s.SetRotation(0)
	if _, err = s.PageDimensions(ctx, 2); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestRenderRegionSolidAndFormats(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "p.png"), grayPage(10, 10, 99))
	s, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	ctx := context.Background()

	req := render.RegionRequest{
		Page:      1,
		Rect:      domain.CropRect{X: 0, Y: 0, W: 10, H: 10},
		Scale:     2,
		Grayscale: true,
	}
	buf, err := s.RenderRegion(ctx, req)
	if err != nil {
		t.Fatalf("RenderRegion: %v", err)
	}
	if buf.W != 20 || buf.H != 20 || buf.Format != pixbuf.FormatGray8 {
		t.Fatalf("buffer = %dx%d %v", buf.W, buf.H, buf.Format)
	}
	for i, v := range buf.Pix {
		if !near(v, 99, 1) {
			t.Fatalf("pix[%d] = %d on solid page", i, v)
		}
	}

	req.Grayscale = false
	req.Scale = 1
	buf, err = s.RenderRegion(ctx, req)
	if err != nil {
		t.Fatalf("RenderRegion rgb: %v", err)
	}
	if buf.Format != pixbuf.FormatRGB32 || buf.W != 10 {
		t.Fatalf("rgb buffer = %dx%d %v", buf.W, buf.H, buf.Format)
	}
	r, g, b := buf.RGB(0, 0)
	if !near(r, 99, 1) || !near(g, 99, 1) || !near(b, 99, 1) {
		t.Fatalf("rgb pixel = %d %d %d", r, g, b)
	}
}

func TestRenderRegionCropsQuadrant(t *testing.T) {
	// 4x4 page split into 2x2 quadrants with distinct gray values.
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	vals := [2][2]uint8{{40, 120}, {180, 220}}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetGray(x, y, color.Gray{Y: vals[y/2][x/2]})
		}
	}
	writePNG(t, filepath.Join(dir, "p.png"), img)
	s, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	ctx := context.Background()

	crop := func(rect domain.CropRect) uint8 {
		t.Helper()
		buf, err := s.RenderRegion(ctx, render.RegionRequest{Page: 1, Rect: rect, Scale: 1, Grayscale: true})
		if err != nil {
			t.Fatalf("RenderRegion %+v: %v", rect, err)
		}
		if buf.W != 2 || buf.H != 2 {
			t.Fatalf("crop size = %dx%d", buf.W, buf.H)
		}
		return buf.Gray(0, 0)
	}

	if v := crop(domain.CropRect{X: 0, Y: 0, W: 2, H: 2}); !near(v, 40, 1) {
		t.Fatalf("top-left quadrant = %d", v)
	}
	if v := crop(domain.CropRect{X: 2, Y: 0, W: 2, H: 2}); !near(v, 120, 1) {
		t.Fatalf("top-right quadrant = %d", v)
	}
	if v := crop(domain.CropRect{X: 0, Y: 2, W: 2, H: 2}); !near(v, 180, 1) {
		t.Fatalf("bottom-left quadrant = %d", v)
	}
	if v := crop(domain.CropRect{X: 2, Y: 2, W: 2, H: 2}); !near(v, 220, 1) {
		t.Fatalf("bottom-right quadrant = %d", v)
	}
}

func TestRenderRegionErrors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "p.png"), grayPage(10, 10, 99))
	s, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	ctx := context.Background()
	rect := domain.CropRect{X: 0, Y: 0, W: 10, H: 10}

	if _, err = s.RenderRegion(ctx, render.RegionRequest{Page: 9, Rect: rect, Scale: 1}); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	if _, err = s.RenderRegion(ctx, render.RegionRequest{Page: 1, Rect: rect, Scale: 0}); err == nil {
		t.Fatalf("expected bad-scale error")
	}
	off := domain.CropRect{X: 50, Y: 50, W: 5, H: 5}
	if _, err = s.RenderRegion(ctx, render.RegionRequest{Page: 1, Rect: off, Scale: 1}); err == nil {
		t.Fatalf("expected outside-page error")
	}
}

func TestDecodeMemo(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), grayPage(8, 8, 10))
	writePNG(t, filepath.Join(dir, "b.png"), grayPage(8, 8, 20))
	s, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	ctx := context.Background()
	rect := domain.CropRect{X: 0, Y: 0, W: 8, H: 8}

	for i := 0; i < 3; i++ {
		if _, err := s.RenderRegion(ctx, render.RegionRequest{Page: 1, Rect: rect, Scale: 1}); err != nil {
			t.Fatalf("render: %v", err)
		}
	}
	if s.decodes != 1 {
		t.Fatalf("decodes = %d after repeated same-page renders", s.decodes)
	}
	if _, err := s.RenderRegion(ctx, render.RegionRequest{Page: 2, Rect: rect, Scale: 1}); err != nil {
		t.Fatalf("render page 2: %v", err)
	}
	if s.decodes != 2 {
		t.Fatalf("decodes = %d after page change", s.decodes)
	}
	s.SetRotation(180)
	if _, err := s.RenderRegion(ctx, render.RegionRequest{Page: 2, Rect: rect, Scale: 1}); err != nil {
		t.Fatalf("render rotated: %v", err)
	}
	if s.decodes != 3 {
		t.Fatalf("decodes = %d after rotation change", s.decodes)
	}
}

func TestRotation180FlipsContent(t *testing.T) {
	dir := t.TempDir()
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.Pix[0], img.Pix[1] = 10, 200
	writePNG(t, filepath.Join(dir, "p.png"), img)

	s, err := OpenDir(dir)
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	s.SetRotation(180)
	buf, err := s.RenderRegion(context.Background(), render.RegionRequest{
		Page:      1,
		Rect:      domain.CropRect{X: 0, Y: 0, W: 2, H: 1},
		Scale:     1,
		Grayscale: true,
	})
	if err != nil {
		t.Fatalf("RenderRegion: %v", err)
	}
	if !near(buf.Gray(0, 0), 200, 2) || !near(buf.Gray(1, 0), 10, 2) {
		t.Fatalf("rotated pixels = %d %d", buf.Gray(0, 0), buf.Gray(1, 0))
	}
}

func TestOpenCBZ(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.cbz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create cbz: %v", err)
	}
	zw := zip.NewWriter(f)
	entries := map[string][]byte{
		"10.png":         pngBytes(t, grayPage(4, 4, 30)),
		"1.png":          pngBytes(t, grayPage(4, 4, 10)),
		"02.png":         pngBytes(t, grayPage(4, 4, 20)),
		"ComicInfo.xml":  []byte("<ComicInfo/>"),
		"__MACOSX/1.png": []byte("junk"),
	}
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}

	s, err := OpenCBZ(path)
	if err != nil {
		t.Fatalf("OpenCBZ: %v", err)
	}
	if s.PageCount() != 3 {
		t.Fatalf("page count = %d", s.PageCount())
	}
	want := []string{"1.png", "02.png", "10.png"}
	for i, name := range want {
		if got := s.PageName(i + 1); got != name {
			t.Fatalf("page %d = %q, want %q", i+1, got, name)
		}
	}
	buf, err := s.RenderRegion(context.Background(), render.RegionRequest{
		Page:      2,
		Rect:      domain.CropRect{X: 0, Y: 0, W: 4, H: 4},
		Scale:     1,
		Grayscale: true,
	})
	if err != nil {
		t.Fatalf("RenderRegion: %v", err)
	}
	if !near(buf.Gray(0, 0), 20, 1) {
		t.Fatalf("page 2 pixel = %d", buf.Gray(0, 0))
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := s.RenderRegion(context.Background(), render.RegionRequest{
		Page: 1, Rect: domain.CropRect{X: 0, Y: 0, W: 4, H: 4}, Scale: 1,
	}); err == nil {
		t.Fatalf("expected error after close")
	}
}

func TestNaturalLess(t *testing.T) {
	ordered := [][2]string{
		{"1.png", "2.png"},
		{"2.png", "10.png"},
		{"page2.png", "page10.png"},
		{"ch1/5.png", "ch1/40.png"},
		{"a.png", "b.png"},
		{"page", "page1"},
		{"9.png", "0010.png"},
	}
	for _, c := range ordered {
		if !naturalLess(c[0], c[1]) {
			t.Fatalf("naturalLess(%q, %q) = false", c[0], c[1])
		}
		if naturalLess(c[1], c[0]) {
			t.Fatalf("naturalLess(%q, %q) = true", c[1], c[0])
		}
	}
	if naturalLess("same.png", "same.png") {
		t.Fatalf("naturalLess should be irreflexive")
	}
}
