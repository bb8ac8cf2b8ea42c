/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package geom holds the pure two-stage panel geometry: normalized panel rect
// to padded page-pixel crop (stage A), crop to scaled screen placement
// (stage B). Everything here is stateless and deterministic; preloaded and
// on-demand renders of the same panel must be bit-identical.
package geom

import (
	"math"

	"gopanelreader/internal/domain"
)

// Aspect classes. A panel's pixel width/height ratio selects its padding set.
const (
	aspectWide = 1.5
	aspectTall = 0.67
)

// Relative padding, as a fraction of the page dimension on that axis.
// Wide panels get generous horizontal breathing room, tall panels almost none
// vertically; the defaults sit in between. Left/right and top/bottom are
// intentionally asymmetric.
const (
	padWideLeft   = 0.007
	padWideRight  = 0.006
	padWideTop    = 0.004
	padWideBottom = 0.004

	padTallLeft   = 0.004
	padTallRight  = 0.004
	padTallTop    = 0.001
	padTallBottom = 0.002

	padMidLeft   = 0.005
	padMidRight  = 0.005
	padMidTop    = 0.0015
	padMidBottom = 0.003
)

// Fixed pixel extension applied after relative padding, every aspect class.
const (
	extLeft   = 2.0
	extRight  = 2.0
	extTop    = 0.5
	extBottom = 2.5
)

// Stage B placement constants. OffsetDefault and the 1 px nudge are tuned
// visual corrections, not derived geometry; keep the exact values.
const (
	// ScreenMargin is the safety margin kept around a placed panel.
	ScreenMargin = 5
	// OffsetDefault is the default horizontal offset applied after clamping.
	OffsetDefault = -2
	// nudgeAspect: placements at or above this crop aspect shift 1 px left.
	nudgeAspect = 0.67
)

// CropForPanel converts a normalized panel rect into the page-pixel crop
// rectangle handed to the rasterizer: scale to pixels, pad by aspect class,
// extend by the fixed border, clamp into the page. The semantic center is
// taken from the unpadded panel and carried through untouched.
func CropForPanel(p domain.PanelRect, page domain.PageDimensions) domain.CropRect {
	pw := float64(page.W)
	ph := float64(page.H)

	x := p.X * pw
	y := p.Y * ph
	w := p.W * pw
	h := p.H * ph

	cx := x + w/2
	cy := y + h/2

	ratio := 0.0
	if h != 0 {
		ratio = w / h
	}

	var padL, padR, padT, padB float64
	switch {
	case ratio > aspectWide:
		padL = padWideLeft * pw
		padR = padWideRight * pw
		padT = padWideTop * ph
		padB = padWideBottom * ph
	case ratio < aspectTall:
		padL = padTallLeft * pw
		padR = padTallRight * pw
		padT = padTallTop * ph
		padB = padTallBottom * ph
	default:
		padL = padMidLeft * pw
		padR = padMidRight * pw
		padT = padMidTop * ph
		padB = padMidBottom * ph
	}

	x -= padL + extLeft
	y -= padT + extTop
	w += padL + padR + extLeft + extRight
	h += padT + padB + extTop + extBottom

	if w > pw {
		w = pw
	}
	if h > ph {
		h = ph
	}
	x = clamp(x, 0, pw-w)
	y = clamp(y, 0, ph-h)

	return domain.CropRect{X: x, Y: y, W: w, H: h, CX: cx, CY: cy}
}

// PlaceOnScreen fits a crop onto the screen: scale to fit inside the margin,
// round, center, clamp the top-left into [margin, screen-display-margin],
// then apply the horizontal offset WITHOUT reclamping and the cosmetic nudge.
// Returns the placement and the scale the rasterizer must render at.
func PlaceOnScreen(crop domain.CropRect, screen domain.ScreenDimensions, offsetX int) (domain.ScreenPlacement, float64) {
	availW := float64(screen.W) - 2*ScreenMargin
	availH := float64(screen.H) - 2*ScreenMargin
	if crop.W <= 0 || crop.H <= 0 || availW <= 0 || availH <= 0 {
		return domain.ScreenPlacement{}, 0
	}

	scale := math.Min(availW/crop.W, availH/crop.H)
	w := int(math.Round(crop.W * scale))
	h := int(math.Round(crop.H * scale))

	x := int(math.Round((float64(screen.W) - float64(w)) / 2))
	y := int(math.Round((float64(screen.H) - float64(h)) / 2))
	x = clampInt(x, ScreenMargin, screen.W-w-ScreenMargin)
	y = clampInt(y, ScreenMargin, screen.H-h-ScreenMargin)

	x += offsetX
	if crop.Aspect() >= nudgeAspect {
		x--
	}

	return domain.ScreenPlacement{X: x, Y: y, W: w, H: h}, scale
}

// FitWhole computes the plain centered fit used for whole-image display. No
// margin, no clamp, no offset: this path is deliberately independent of
// PlaceOnScreen.
func FitWhole(w, h int, screen domain.ScreenDimensions) domain.ScreenPlacement {
	if w <= 0 || h <= 0 || screen.W <= 0 || screen.H <= 0 {
		return domain.ScreenPlacement{}
	}
	scale := math.Min(float64(screen.W)/float64(w), float64(screen.H)/float64(h))
	dw := int(math.Round(float64(w) * scale))
	dh := int(math.Round(float64(h) * scale))
	return domain.ScreenPlacement{
		X: (screen.W - dw) / 2,
		Y: (screen.H - dh) / 2,
		W: dw,
		H: dh,
	}
}

// PanelAt returns the 1-based index of the hit panel for a normalized page
// point, testing in reverse reading order so later (top-most) panels win.
// Returns 0 when no panel contains the point.
func PanelAt(panels domain.PanelList, nx, ny float64) int {
	for i := len(panels) - 1; i >= 0; i-- {
		p := panels[i]
		if nx >= p.X && ny >= p.Y && nx <= p.X+p.W && ny <= p.Y+p.H {
			return i + 1
		}
	}
	return 0
}

// RoundPlaces rounds v to n decimal places deterministically. Sidecar
// producers emit three decimals; the normalizer matches them.
func RoundPlaces(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
