/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns a panel rect into a screen-ready pixel buffer: page
// geometry, delegated rasterization, then the post-processing chain.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopanelreader/internal/dither"
	"gopanelreader/internal/domain"
	"gopanelreader/internal/geom"
	applog "gopanelreader/internal/log"
	"gopanelreader/internal/pixbuf"
)

// RegionRequest asks a Rasterizer for one page region at a fixed scale. Rect
// is in page pixel space. Gamma is a hint; rasterizers that honor it report so
// via GammaApplier and the pipeline then skips its own gamma pass.
type RegionRequest struct {
	Page      int
	Rect      domain.CropRect
	Scale     float64
	Rotation  int
	Gamma     float64
	Grayscale bool
}

// Rasterizer produces pixel data for page regions. Implementations decode
// from image directories, CBZ archives or a render cache.
type Rasterizer interface {
	PageDimensions(ctx context.Context, page int) (domain.PageDimensions, error)
	RenderRegion(ctx context.Context, req RegionRequest) (*pixbuf.Buffer, error)
}

// GammaApplier is an optional Rasterizer upgrade. Returning true means the
// rasterizer already applied the requested gamma and the pipeline must not
// apply it again.
type GammaApplier interface {
	AppliesGamma() bool
}

// Options selects the post-processing steps. The zero value renders the panel
// untouched: for Contrast and Gamma both 0 and 1 mean unchanged.
type Options struct {
	Contrast  float64
	Invert    bool
	Gamma     float64
	Rotation  int
	Grayscale bool
	Dither    bool
}

// Rendered is one finished panel frame. Buffer ownership transfers to the
// caller, who must Release it when superseded.
type Rendered struct {
	Buffer    *pixbuf.Buffer
	Placement domain.ScreenPlacement
	Crop      domain.CropRect
}

// ErrNoBuffer reports a rasterizer that returned neither buffer nor error.
var ErrNoBuffer = errors.New("rasterizer returned no buffer")

// Pipeline binds a rasterizer to the geometry and post-processing stages. One
// pipeline serves one open document.
type Pipeline struct {
	ras Rasterizer
	log *slog.Logger
}

// NewPipeline returns a pipeline over the given rasterizer.
func NewPipeline(ras Rasterizer) *Pipeline {
	return &Pipeline{ras: ras, log: applog.WithComponent("render")}
}

// RenderPanel renders one panel of a page for the given screen. The crop is
// derived in page space, placed on screen with the horizontal offset, and the
// region is rasterized at the placement scale. A rasterizer failure aborts
// the attempt; the caller keeps whatever it was showing.
func (p *Pipeline) RenderPanel(ctx context.Context, page int, panel domain.PanelRect, screen domain.ScreenDimensions, offsetX int, opts Options) (*Rendered, error) {
	dims, err := p.ras.PageDimensions(ctx, page)
	if err != nil {
		p.log.Warn("page dimensions unavailable", "page", page, "err", err)
		return nil, fmt.Errorf("page %d dimensions: %w", page, err)
	}
	crop := geom.CropForPanel(panel, dims)
	placement, scale := geom.PlaceOnScreen(crop, screen, offsetX)

	buf, err := p.rasterize(ctx, RegionRequest{
		Page:      page,
		Rect:      crop,
		Scale:     scale,
		Rotation:  opts.Rotation,
		Gamma:     opts.Gamma,
		Grayscale: opts.Grayscale,
	})
	if err != nil {
		p.log.Warn("panel render failed", "page", page, "err", err)
		return nil, err
	}
	p.postprocess(buf, opts)
	return &Rendered{Buffer: buf, Placement: placement, Crop: crop}, nil
}

// RenderPage renders a whole page centered on screen. This is the fallback
// view for pages without panels; it fits without margin, offset or clamping.
func (p *Pipeline) RenderPage(ctx context.Context, page int, screen domain.ScreenDimensions, opts Options) (*Rendered, error) {
	dims, err := p.ras.PageDimensions(ctx, page)
	if err != nil {
		p.log.Warn("page dimensions unavailable", "page", page, "err", err)
		return nil, fmt.Errorf("page %d dimensions: %w", page, err)
	}
	crop := domain.CropRect{
		X: 0, Y: 0,
		W:  float64(dims.W),
		H:  float64(dims.H),
		CX: float64(dims.W) / 2,
		CY: float64(dims.H) / 2,
	}
	placement := geom.FitWhole(dims.W, dims.H, screen)
	scale := 1.0
	if dims.W > 0 {
		scale = float64(placement.W) / float64(dims.W)
	}

	buf, err := p.rasterize(ctx, RegionRequest{
		Page:      page,
		Rect:      crop,
		Scale:     scale,
		Rotation:  opts.Rotation,
		Gamma:     opts.Gamma,
		Grayscale: opts.Grayscale,
	})
	if err != nil {
		p.log.Warn("page render failed", "page", page, "err", err)
		return nil, err
	}
	p.postprocess(buf, opts)
	return &Rendered{Buffer: buf, Placement: placement, Crop: crop}, nil
}

func (p *Pipeline) rasterize(ctx context.Context, req RegionRequest) (*pixbuf.Buffer, error) {
	buf, err := p.ras.RenderRegion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("render page %d region: %w", req.Page, err)
	}
	if buf == nil || buf.Released() {
		return nil, fmt.Errorf("render page %d region: %w", req.Page, ErrNoBuffer)
	}
	return buf, nil
}

// postprocess runs the in-place chain: contrast, inversion, gamma (only when
// the rasterizer did not apply it), dither last.
func (p *Pipeline) postprocess(buf *pixbuf.Buffer, opts Options) {
	if opts.Contrast != 0 && opts.Contrast != 1 {
		applyContrast(buf, opts.Contrast)
	}
	if opts.Invert {
		applyInvert(buf)
	}
	if opts.Gamma != 0 && opts.Gamma != 1 && !rasterizerAppliesGamma(p.ras) {
		applyGamma(buf, opts.Gamma)
	}
	if opts.Dither {
		dither.Apply(buf)
	}
}

func rasterizerAppliesGamma(r Rasterizer) bool {
	ga, ok := r.(GammaApplier)
	return ok && ga.AppliesGamma()
}
