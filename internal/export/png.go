/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gopanelreader/internal/domain"
	"gopanelreader/internal/geom"
	"gopanelreader/internal/render"
)

// OverlayOptions controls overlay PNG export behavior.
// Overlays are a geometry check: the full page with the computed crop
// rectangle of each panel outlined and its semantic center marked. What is
// outlined is the padded, clamped crop handed to the rasterizer, not the raw
// sidecar rect, so the picture shows exactly what a device will be served.
type OverlayOptions struct {
	Scale   float64    // page-to-output scale; <= 0 means 1:1
	Outline color.RGBA // crop outline and center marker color; zero value means red
	Pages   []int      // 1-based page numbers; if empty, export all pages
}

// ExportOverlayPNGs writes one overlay PNG per page into outDir, named
// page-<n>-overlay.png.
func ExportOverlayPNGs(ctx context.Context, ras render.Rasterizer, doc domain.PanelDocument, outDir string, opt OverlayOptions) error {
	if ras == nil {
		return fmt.Errorf("rasterizer is nil")
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	outline := opt.Outline
	if outline == (color.RGBA{}) {
		outline = color.RGBA{R: 255, A: 255}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}

	total := pageCount(doc, ras)
	exported := 0
	for _, page := range pageNumbers(total, opt.Pages) {
		if page < 1 || (total > 0 && page > total) {
			continue
		}
		dims, err := ras.PageDimensions(ctx, page)
		if err != nil {
			return fmt.Errorf("page %d dimensions: %w", page, err)
		}
		buf, err := ras.RenderRegion(ctx, render.RegionRequest{
			Page:  page,
			Rect:  domain.CropRect{X: 0, Y: 0, W: float64(dims.W), H: float64(dims.H)},
			Scale: scale,
		})
		if err != nil {
			return fmt.Errorf("render page %d: %w", page, err)
		}
		img := image.NewRGBA(image.Rect(0, 0, buf.W, buf.H))
		draw.Draw(img, img.Bounds(), buf, image.Point{}, draw.Src)
		buf.Release()

		if entry, ok := doc.PageByNumber(page); ok {
			for _, panel := range entry.Panels {
				crop := geom.CropForPanel(panel, dims)
				x0 := int(math.Round(crop.X * scale))
				y0 := int(math.Round(crop.Y * scale))
				x1 := int(math.Round((crop.X+crop.W)*scale)) - 1
				y1 := int(math.Round((crop.Y+crop.H)*scale)) - 1
				strokeRect(img, x0, y0, x1, y1, outline)

				cx := int(math.Round(crop.CX * scale))
				cy := int(math.Round(crop.CY * scale))
				fillRect(img, cx-2, cy-2, cx+2, cy+2, outline)
			}
		}

		name := filepath.Join(outDir, fmt.Sprintf("page-%d-overlay.png", page))
		f, err := os.Create(name)
		if err != nil {
			return fmt.Errorf("create png: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return fmt.Errorf("encode png: %w", err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close png: %w", err)
		}
		exported++
	}
	if exported == 0 {
		return fmt.Errorf("no pages to export")
	}
	return nil
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of
// endpoints. Out-of-bounds pixels are dropped by the image Set methods.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}
