/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package viewer owns the displayed panel frame: it paints frames onto a
// surface, skips repaints of perceptually identical frames and routes taps
// into navigation.
package viewer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"

	"gopanelreader/internal/domain"
	applog "gopanelreader/internal/log"
	"gopanelreader/internal/pixbuf"
	"gopanelreader/internal/render"
)

// Surface is the output device. Paint must finish (or copy) before
// returning; the viewer may release the image afterwards.
type Surface interface {
	Paint(img *pixbuf.Buffer, pl domain.ScreenPlacement)
	Clear()
	Notify(msg string)
}

// Navigator receives tap-routed navigation. Satisfied by nav.Session.
type Navigator interface {
	Next(ctx context.Context)
	Prev(ctx context.Context)
	Shutdown()
}

// Tap band geometry: the outer 30% of the width navigates, the middle 40%
// closes the viewer.
const (
	tapBandNum   = 3
	tapBandDenom = 10
)

// Viewer displays one frame at a time. It owns the buffer it shows and
// releases it on supersession or Close.
type Viewer struct {
	mu        sync.Mutex
	surface   Surface
	navr      Navigator
	onClose   func()
	screen    domain.ScreenDimensions
	direction domain.ReadingDirection
	open      bool
	current   *render.Rendered
	lastHash  *goimagehash.ImageHash
	lastPl    domain.ScreenPlacement
	paints    int
	skips     int
	log       *slog.Logger
}

// New creates a closed viewer painting onto surface.
func New(surface Surface, screen domain.ScreenDimensions) *Viewer {
	return &Viewer{
		surface:   surface,
		screen:    screen,
		direction: domain.DirectionRTL,
		log:       applog.WithComponent("viewer"),
	}
}

// SetNavigator wires the tap target.
func (v *Viewer) SetNavigator(n Navigator) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.navr = n
}

// SetDirection sets the reading direction used for tap band mapping.
func (v *Viewer) SetDirection(d domain.ReadingDirection) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.direction = d
}

// SetOnClose registers a chrome callback fired after the viewer closes. It
// runs outside the viewer lock and must not call back into the navigation
// session, which may be mid-transition.
func (v *Viewer) SetOnClose(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onClose = fn
}

// IsOpen reports whether a frame is on display.
func (v *Viewer) IsOpen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.open
}

// ShowPanel adopts the frame (taking buffer ownership), releases the one it
// replaces and paints unless the incoming frame is perceptually identical at
// the same placement.
func (v *Viewer) ShowPanel(r *render.Rendered) {
	if r == nil || r.Buffer.Released() {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current != nil {
		v.current.Buffer.Release()
	}
	v.current = r
	v.open = true
	v.paintLocked(false)
}

// Show satisfies the session's display contract.
func (v *Viewer) Show(r *render.Rendered) { v.ShowPanel(r) }

// UpdateImage swaps the pixel buffer under the current placement, e.g. after
// a re-render with changed processing options. Ownership of b transfers.
func (v *Viewer) UpdateImage(b *pixbuf.Buffer) {
	if b == nil || b.Released() {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open || v.current == nil {
		b.Release()
		return
	}
	v.current.Buffer.Release()
	v.current.Buffer = b
	v.paintLocked(false)
}

// UpdatePlacement moves the current frame without re-rendering, e.g. for an
// offset nudge.
func (v *Viewer) UpdatePlacement(pl domain.ScreenPlacement) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open || v.current == nil {
		return
	}
	v.current.Placement = pl
	v.paintLocked(false)
}

// Repaint forces a paint of the current frame, bypassing the skip check.
func (v *Viewer) Repaint() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.open {
		return
	}
	v.paintLocked(true)
}

// Close releases the displayed frame and clears the surface. Closing a
// closed viewer is a no-op.
func (v *Viewer) Close() {
	v.mu.Lock()
	if !v.open {
		v.mu.Unlock()
		return
	}
	v.open = false
	if v.current != nil {
		v.current.Buffer.Release()
		v.current = nil
	}
	v.lastHash = nil
	v.lastPl = domain.ScreenPlacement{}
	v.surface.Clear()
	onClose := v.onClose
	v.mu.Unlock()
	v.log.Debug("viewer closed")
	if onClose != nil {
		onClose()
	}
}

// Notify forwards a transient notice to the surface.
func (v *Viewer) Notify(msg string) {
	v.surface.Notify(msg)
}

// Stats reports paint and skip counts.
func (v *Viewer) Stats() (paints, skips int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.paints, v.skips
}

// Tap routes a touch at x,y. The navigator is invoked outside the viewer
// lock so it may call back into the viewer.
func (v *Viewer) Tap(ctx context.Context, x, y int) {
	v.mu.Lock()
	if !v.open || v.navr == nil {
		v.mu.Unlock()
		return
	}
	w := v.screen.W
	dir := v.direction
	navr := v.navr
	v.mu.Unlock()

	left := x*tapBandDenom < w*tapBandNum
	right := x*tapBandDenom > w*(tapBandDenom-tapBandNum)
	switch {
	case left && dir == domain.DirectionRTL, right && dir != domain.DirectionRTL:
		navr.Next(ctx)
	case left, right:
		navr.Prev(ctx)
	default:
		navr.Shutdown()
		v.Close()
	}
}

// paintLocked paints the current frame. Identical perceptual hash at an
// unchanged placement skips the paint; hashing errors paint anyway.
func (v *Viewer) paintLocked(force bool) {
	if v.current == nil || v.current.Buffer.Released() {
		return
	}
	pl := v.current.Placement
	hash, err := goimagehash.PerceptionHash(v.current.Buffer)
	if err == nil && !force && v.lastHash != nil && pl == v.lastPl {
		if dist, derr := hash.Distance(v.lastHash); derr == nil && dist == 0 {
			v.skips++
			v.log.Debug("repaint skipped", slog.Int("skips", v.skips))
			return
		}
	}
	if err == nil {
		v.lastHash = hash
	} else {
		v.lastHash = nil
	}
	v.lastPl = pl
	v.surface.Paint(v.current.Buffer, pl)
	v.paints++
}
