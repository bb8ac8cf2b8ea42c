/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes panel-per-page renditions of a document: PDF and CBZ
// for devices, overlay PNGs for checking the computed crops.
package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"gopanelreader/internal/domain"
	"gopanelreader/internal/render"
)

// PDFOptions controls PDF export behavior.
// Units are points (pt); one screen pixel maps to one point, so every PDF
// page has the exact proportions of the target device.
//
// Each panel becomes one PDF page: the panel frame is rendered at the screen
// scale and placed at its on-screen position, white device background around
// it. Pages without panels fall back to a single whole-page frame.
type PDFOptions struct {
	Screen  domain.ScreenDimensions // page size; zero value means the default preset screen
	OffsetX int
	Render  render.Options
	Title   string
	Pages   []int // 1-based page numbers; if empty, export all pages
}

// ExportPDF writes the document's panels as a multi-page PDF at outPath.
func ExportPDF(ctx context.Context, ras render.Rasterizer, doc domain.PanelDocument, outPath string, opt PDFOptions) error {
	if ras == nil {
		return fmt.Errorf("rasterizer is nil")
	}
	screen := opt.Screen
	if screen.W <= 0 || screen.H <= 0 {
		screen = PresetScreen(DefaultPreset)
	}
	title := opt.Title
	if title == "" {
		title = doc.ArchiveName
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath))
	}

	// Points for 1:1 mapping from screen pixels to PDF
	size := gofpdf.SizeType{Wd: float64(screen.W), Ht: float64(screen.H)}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           size,
		OrientationStr: "",
	})
	pdf.SetTitle(title, true)
	pdf.SetAuthor("GoPanelReader", false)

	pngOpt := gofpdf.ImageOptions{ImageType: "PNG"}
	pipe := render.NewPipeline(ras)
	total := pageCount(doc, ras)

	frame := 0
	imgBuf := &bytes.Buffer{}
	for _, page := range pageNumbers(total, opt.Pages) {
		if page < 1 || (total > 0 && page > total) {
			continue
		}
		frames, err := renderPageFrames(ctx, pipe, doc, page, screen, opt.OffsetX, opt.Render)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		for i, fr := range frames {
			frame++
			imgBuf.Reset()
			encErr := png.Encode(imgBuf, fr.Buffer)
			fr.Buffer.Release()
			if encErr != nil {
				releaseFrames(frames[i+1:])
				return fmt.Errorf("encode page %d frame: %w", page, encErr)
			}
			name := fmt.Sprintf("frame-%d", frame)
			pdf.RegisterImageOptionsReader(name, pngOpt, imgBuf)
			pdf.AddPageFormat("", size)
			pl := fr.Placement
			pdf.ImageOptions(name, float64(pl.X), float64(pl.Y), float64(pl.W), float64(pl.H), false, pngOpt, 0, "")
		}
	}
	if frame == 0 {
		return fmt.Errorf("no pages to export")
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// renderPageFrames renders every panel of a page as its own frame, in the
// stored reading order. Pages the document does not list, or lists without
// panels, produce one whole-page frame instead.
func renderPageFrames(ctx context.Context, pipe *render.Pipeline, doc domain.PanelDocument, page int, screen domain.ScreenDimensions, offsetX int, opts render.Options) ([]*render.Rendered, error) {
	entry, ok := doc.PageByNumber(page)
	if !ok || len(entry.Panels) == 0 {
		out, err := pipe.RenderPage(ctx, page, screen, opts)
		if err != nil {
			return nil, err
		}
		return []*render.Rendered{out}, nil
	}
	frames := make([]*render.Rendered, 0, len(entry.Panels))
	for _, panel := range entry.Panels {
		out, err := pipe.RenderPanel(ctx, page, panel, screen, offsetX, opts)
		if err != nil {
			releaseFrames(frames)
			return nil, err
		}
		frames = append(frames, out)
	}
	return frames, nil
}

func releaseFrames(frames []*render.Rendered) {
	for _, f := range frames {
		f.Buffer.Release()
	}
}

// pageNumbers expands the page selection: all pages 1..total, or the explicit
// list as given. Callers still guard against out-of-range numbers.
func pageNumbers(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}
	return specific
}

// pageCount prefers the sidecar total and falls back to asking the
// rasterizer, which knows for directory and archive sources.
func pageCount(doc domain.PanelDocument, ras render.Rasterizer) int {
	if doc.TotalPages > 0 {
		return doc.TotalPages
	}
	if pc, ok := ras.(interface{ PageCount() int }); ok {
		return pc.PageCount()
	}
	return 0
}
