/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package pageimage rasterizes comic pages from image directories, CBZ
// archives and single image files.
package pageimage

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"gopanelreader/internal/domain"
	applog "gopanelreader/internal/log"
	"gopanelreader/internal/pixbuf"
	"gopanelreader/internal/render"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// pageRef is one page entry: a display name and a way to open its bytes.
type pageRef struct {
	name string
	open func() (io.ReadCloser, error)
	dims domain.PageDimensions
	seen bool
}

// Source decodes pages on demand and serves cropped, scaled regions. It
// implements the render Rasterizer. The most recently decoded page is kept so
// consecutive region requests against one page decode it once.
type Source struct {
	path   string
	pages  []pageRef
	closer io.Closer

	mu       sync.Mutex
	rotation int
	lastPage int
	lastRot  int
	lastImg  image.Image
	decodes  int

	log *slog.Logger
}

var _ render.Rasterizer = (*Source)(nil)

// imageExts lists the page formats the decoder accepts.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Open dispatches on the path: directories list their images, .cbz/.zip
// archives are opened as CBZ, and a single image file becomes a one-page
// source.
func Open(path string) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if info.IsDir() {
		return OpenDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbz", ".zip":
		return OpenCBZ(path)
	}
	if !imageExts[strings.ToLower(filepath.Ext(path))] {
		return nil, fmt.Errorf("open document: unsupported file %s", filepath.Base(path))
	}
	s := newSource(path, nil)
	s.pages = []pageRef{{
		name: filepath.Base(path),
		open: func() (io.ReadCloser, error) { return os.Open(path) },
	}}
	return s, nil
}

// OpenDir lists a directory's image files as pages in natural name order.
func OpenDir(dir string) (*Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read page dir: %w", err)
	}
	s := newSource(dir, nil)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") || !imageExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		path := filepath.Join(dir, name)
		s.pages = append(s.pages, pageRef{
			name: name,
			open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	if len(s.pages) == 0 {
		return nil, fmt.Errorf("read page dir: no images in %s", dir)
	}
	sortPages(s.pages)
	return s, nil
}

// OpenCBZ opens a zip comic archive. Non-image entries (ComicInfo.xml,
// macOS resource forks) are skipped.
func OpenCBZ(path string) (*Source, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open cbz: %w", err)
	}
	s := newSource(path, r)
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := f.Name
		if strings.HasPrefix(name, "__MACOSX/") || !imageExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		entry := f
		s.pages = append(s.pages, pageRef{
			name: name,
			open: func() (io.ReadCloser, error) { return entry.Open() },
		})
	}
	if len(s.pages) == 0 {
		_ = r.Close()
		return nil, fmt.Errorf("open cbz: no images in %s", filepath.Base(path))
	}
	sortPages(s.pages)
	return s, nil
}

func newSource(path string, closer io.Closer) *Source {
	return &Source{
		path:   path,
		closer: closer,
		log:    applog.WithComponent("pageimage").With(slog.String("doc", path)),
	}
}

func sortPages(pages []pageRef) {
	sort.Slice(pages, func(i, j int) bool { return naturalLess(pages[i].name, pages[j].name) })
}

// Close releases the underlying archive, if any. Safe to call twice.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastImg = nil
	s.lastPage = 0
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}

// PageCount reports the number of pages.
func (s *Source) PageCount() int { return len(s.pages) }

// PageName reports the file name of a page, empty when out of range.
func (s *Source) PageName(page int) string {
	if page < 1 || page > len(s.pages) {
		return ""
	}
	return s.pages[page-1].name
}

// SetRotation sets the document orientation in degrees (0, 90, 180, 270).
// Page dimensions and regions are served in the rotated space.
func (s *Source) SetRotation(deg int) {
	s.mu.Lock()
	s.rotation = normRotation(deg)
	s.lastImg = nil
	s.lastPage = 0
	s.mu.Unlock()
}

// PageDimensions reports the decoded size of a page, swapped for 90/270
// rotation. Sizes come from the image header and are memoized.
func (s *Source) PageDimensions(_ context.Context, page int) (domain.PageDimensions, error) {
	if page < 1 || page > len(s.pages) {
		return domain.PageDimensions{}, fmt.Errorf("page %d out of range [1,%d]", page, len(s.pages))
	}
	ref := &s.pages[page-1]
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ref.seen {
		rc, err := ref.open()
		if err != nil {
			return domain.PageDimensions{}, fmt.Errorf("open page %d: %w", page, err)
		}
		cfg, _, err := image.DecodeConfig(rc)
		_ = rc.Close()
		if err != nil {
			return domain.PageDimensions{}, fmt.Errorf("decode page %d header: %w", page, err)
		}
		ref.dims = domain.PageDimensions{W: cfg.Width, H: cfg.Height}
		ref.seen = true
	}
	dims := ref.dims
	if s.rotation == 90 || s.rotation == 270 {
		dims.W, dims.H = dims.H, dims.W
	}
	return dims, nil
}

// RenderRegion decodes the page (memoized for consecutive requests), crops
// the requested rect and scales it with Catmull-Rom resampling into a fresh
// buffer. Grayscale requests produce Gray8, everything else RGB32.
func (s *Source) RenderRegion(ctx context.Context, req render.RegionRequest) (*pixbuf.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Page < 1 || req.Page > len(s.pages) {
		return nil, fmt.Errorf("page %d out of range [1,%d]", req.Page, len(s.pages))
	}
	if req.Scale <= 0 {
		return nil, fmt.Errorf("page %d: scale %v out of range", req.Page, req.Scale)
	}

	img, err := s.decodePage(req.Page, normRotation(req.Rotation))
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()

	// Source rect in page pixels, clamped to the image.
	sr := image.Rect(
		bounds.Min.X+roundInt(req.Rect.X),
		bounds.Min.Y+roundInt(req.Rect.Y),
		bounds.Min.X+roundInt(req.Rect.X+req.Rect.W),
		bounds.Min.Y+roundInt(req.Rect.Y+req.Rect.H),
	).Intersect(bounds)
	if sr.Empty() {
		return nil, fmt.Errorf("page %d: region %+v outside page", req.Page, req.Rect)
	}

	outW := roundInt(req.Rect.W * req.Scale)
	outH := roundInt(req.Rect.H * req.Scale)
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	format := pixbuf.FormatRGB32
	if req.Grayscale {
		format = pixbuf.FormatGray8
	}
	dst := pixbuf.New(format, outW, outH)
	draw.CatmullRom.Scale(dst.Drawable(), image.Rect(0, 0, outW, outH), img, sr, draw.Src, nil)
	return dst, nil
}

// decodePage returns the full decoded page in the requested orientation,
// reusing the previous decode when page and rotation match.
func (s *Source) decodePage(page, reqRot int) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rot := s.rotation
	if reqRot != 0 {
		rot = reqRot
	}
	if s.lastImg != nil && s.lastPage == page && s.lastRot == rot {
		return s.lastImg, nil
	}

	ref := &s.pages[page-1]
	rc, err := ref.open()
	if err != nil {
		return nil, fmt.Errorf("open page %d: %w", page, err)
	}
	img, _, err := image.Decode(rc)
	_ = rc.Close()
	if err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	s.decodes++
	if rot != 0 {
		img = rotate(img, rot)
	}
	s.lastPage = page
	s.lastRot = rot
	s.lastImg = img
	s.log.Debug("page decoded", slog.Int("page", page), slog.Int("rotation", rot))
	return img, nil
}

// rotate returns a copy of img turned clockwise by 90, 180 or 270 degrees.
func rotate(img image.Image, deg int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var out *image.RGBA
	switch deg {
	case 90:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < w; y++ {
			for x := 0; x < h; x++ {
				out.Set(x, y, img.At(b.Min.X+y, b.Min.Y+h-1-x))
			}
		}
	case 180:
		out = image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(x, y, img.At(b.Min.X+w-1-x, b.Min.Y+h-1-y))
			}
		}
	case 270:
		out = image.NewRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < w; y++ {
			for x := 0; x < h; x++ {
				out.Set(x, y, img.At(b.Min.X+w-1-y, b.Min.Y+x))
			}
		}
	default:
		return img
	}
	return out
}

func normRotation(deg int) int {
	d := ((deg % 360) + 360) % 360
	switch d {
	case 90, 180, 270:
		return d
	}
	return 0
}

func roundInt(v float64) int {
	if v >= 0 {
		return int(v + 0.5)
	}
	return -int(-v + 0.5)
}
