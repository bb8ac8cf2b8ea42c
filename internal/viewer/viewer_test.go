/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewer

import (
	"context"
	"sync"
	"testing"

	"gopanelreader/internal/domain"
	"gopanelreader/internal/pixbuf"
	"gopanelreader/internal/render"
)

type paintCall struct {
	buf *pixbuf.Buffer
	pl  domain.ScreenPlacement
}

type fakeSurface struct {
	mu      sync.Mutex
	paints  []paintCall
	clears  int
	notices []string
}

func (s *fakeSurface) Paint(img *pixbuf.Buffer, pl domain.ScreenPlacement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paints = append(s.paints, paintCall{buf: img, pl: pl})
}

func (s *fakeSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
}

func (s *fakeSurface) Notify(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, msg)
}

func (s *fakeSurface) paintCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paints)
}

type fakeNav struct {
	mu        sync.Mutex
	nexts     int
	prevs     int
	shutdowns int
}

func (n *fakeNav) Next(_ context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nexts++
}

func (n *fakeNav) Prev(_ context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prevs++
}

func (n *fakeNav) Shutdown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shutdowns++
}

// patternFrame builds a frame with a strong structural pattern so perceptual
// hashes of different kinds reliably differ.
func patternFrame(kind string, pl domain.ScreenPlacement) *render.Rendered {
	b := pixbuf.New(pixbuf.FormatGray8, 32, 32)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			var val uint8
			switch kind {
			case "hsplit":
				if x >= 16 {
					val = 255
				}
			case "vsplit":
				if y >= 16 {
					val = 255
				}
			}
			b.SetGray(x, y, val)
		}
	}
	return &render.Rendered{Buffer: b, Placement: pl}
}

func TestShowPanelPaintsAndReleasesPrevious(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	a := patternFrame("hsplit", domain.ScreenPlacement{X: 10, Y: 10, W: 100, H: 100})
	v.ShowPanel(a)
	if !v.IsOpen() || surf.paintCount() != 1 {
		t.Fatalf("open=%v paints=%d, want true/1", v.IsOpen(), surf.paintCount())
	}
	b := patternFrame("vsplit", domain.ScreenPlacement{X: 10, Y: 10, W: 100, H: 100})
	v.ShowPanel(b)
	if surf.paintCount() != 2 {
		t.Fatalf("paints = %d, want 2", surf.paintCount())
	}
	if !a.Buffer.Released() {
		t.Fatalf("superseded buffer not released")
	}
	if b.Buffer.Released() {
		t.Fatalf("current buffer released early")
	}
}

func TestIdenticalFrameSkipsRepaint(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	pl := domain.ScreenPlacement{X: 0, Y: 0, W: 200, H: 200}
	a := patternFrame("hsplit", pl)
	v.ShowPanel(a)
	dup := patternFrame("hsplit", pl)
	v.ShowPanel(dup)
	if surf.paintCount() != 1 {
		t.Fatalf("paints = %d, want 1 with skip", surf.paintCount())
	}
	paints, skips := v.Stats()
	if paints != 1 || skips != 1 {
		t.Fatalf("stats = %d/%d, want 1/1", paints, skips)
	}
	// The duplicate still superseded the old buffer.
	if !a.Buffer.Released() || dup.Buffer.Released() {
		t.Fatalf("ownership not transferred on skipped paint")
	}
}

func TestSameImageNewPlacementRepaints(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	v.ShowPanel(patternFrame("hsplit", domain.ScreenPlacement{X: 0, Y: 0, W: 200, H: 200}))
	moved := domain.ScreenPlacement{X: 50, Y: 0, W: 200, H: 200}
	v.ShowPanel(patternFrame("hsplit", moved))
	if surf.paintCount() != 2 {
		t.Fatalf("paints = %d, want 2 after placement change", surf.paintCount())
	}
	if surf.paints[1].pl != moved {
		t.Fatalf("painted placement = %+v, want %+v", surf.paints[1].pl, moved)
	}
}

func TestUpdatePlacementMovesWithoutRerender(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	a := patternFrame("hsplit", domain.ScreenPlacement{X: 0, Y: 0, W: 200, H: 200})
	v.ShowPanel(a)
	nudged := domain.ScreenPlacement{X: 4, Y: 0, W: 200, H: 200}
	v.UpdatePlacement(nudged)
	if surf.paintCount() != 2 {
		t.Fatalf("paints = %d, want 2", surf.paintCount())
	}
	if surf.paints[1].pl != nudged || surf.paints[1].buf != a.Buffer {
		t.Fatalf("nudge painted wrong frame or placement")
	}
}

func TestUpdateImageKeepsPlacement(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	pl := domain.ScreenPlacement{X: 30, Y: 40, W: 200, H: 200}
	a := patternFrame("hsplit", pl)
	old := a.Buffer
	v.ShowPanel(a)
	repl := patternFrame("vsplit", domain.ScreenPlacement{}).Buffer
	v.UpdateImage(repl)
	if surf.paintCount() != 2 {
		t.Fatalf("paints = %d, want 2", surf.paintCount())
	}
	if surf.paints[1].pl != pl {
		t.Fatalf("placement = %+v, want preserved %+v", surf.paints[1].pl, pl)
	}
	if !old.Released() || repl.Released() {
		t.Fatalf("buffer swap ownership wrong")
	}
}

func TestUpdateImageOnClosedViewerReleasesInput(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	b := patternFrame("hsplit", domain.ScreenPlacement{}).Buffer
	v.UpdateImage(b)
	if !b.Released() {
		t.Fatalf("orphan buffer not released")
	}
	if surf.paintCount() != 0 {
		t.Fatalf("closed viewer painted")
	}
}

func TestRepaintBypassesSkip(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	v.ShowPanel(patternFrame("hsplit", domain.ScreenPlacement{W: 100, H: 100}))
	v.Repaint()
	if surf.paintCount() != 2 {
		t.Fatalf("paints = %d, want 2 after forced repaint", surf.paintCount())
	}
}

func TestCloseReleasesAndFiresCallback(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	closed := 0
	v.SetOnClose(func() { closed++ })
	a := patternFrame("hsplit", domain.ScreenPlacement{W: 100, H: 100})
	v.ShowPanel(a)
	v.Close()
	if v.IsOpen() || surf.clears != 1 || closed != 1 {
		t.Fatalf("open=%v clears=%d closed=%d, want false/1/1", v.IsOpen(), surf.clears, closed)
	}
	if !a.Buffer.Released() {
		t.Fatalf("displayed buffer not released on close")
	}
	v.Close()
	if surf.clears != 1 || closed != 1 {
		t.Fatalf("second close not a no-op")
	}
}

func TestTapRouting(t *testing.T) {
	cases := []struct {
		name string
		dir  domain.ReadingDirection
		x    int
		want string
	}{
		{"ltr right forward", domain.DirectionLTR, 700, "next"},
		{"ltr left backward", domain.DirectionLTR, 100, "prev"},
		{"rtl left forward", domain.DirectionRTL, 100, "next"},
		{"rtl right backward", domain.DirectionRTL, 700, "prev"},
		{"middle closes", domain.DirectionLTR, 400, "close"},
		{"left edge of middle", domain.DirectionLTR, 240, "close"},
		{"right edge of middle", domain.DirectionLTR, 560, "close"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			surf := &fakeSurface{}
			navr := &fakeNav{}
			v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
			v.SetNavigator(navr)
			v.SetDirection(tc.dir)
			v.ShowPanel(patternFrame("hsplit", domain.ScreenPlacement{W: 100, H: 100}))
			v.Tap(context.Background(), tc.x, 300)
			got := "none"
			switch {
			case navr.nexts == 1:
				got = "next"
			case navr.prevs == 1:
				got = "prev"
			case navr.shutdowns == 1:
				got = "close"
			}
			if got != tc.want {
				t.Fatalf("tap at x=%d routed to %s, want %s", tc.x, got, tc.want)
			}
			if tc.want == "close" && v.IsOpen() {
				t.Fatalf("middle tap left the viewer open")
			}
		})
	}
}

func TestTapOnClosedViewerIgnored(t *testing.T) {
	surf := &fakeSurface{}
	navr := &fakeNav{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	v.SetNavigator(navr)
	v.Tap(context.Background(), 700, 300)
	if navr.nexts != 0 || navr.prevs != 0 || navr.shutdowns != 0 {
		t.Fatalf("closed viewer routed a tap")
	}
}

func TestShowPanelIgnoresReleasedBuffer(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	a := patternFrame("hsplit", domain.ScreenPlacement{W: 100, H: 100})
	a.Buffer.Release()
	v.ShowPanel(a)
	if v.IsOpen() || surf.paintCount() != 0 {
		t.Fatalf("released buffer was displayed")
	}
}

func TestNotifyForwards(t *testing.T) {
	surf := &fakeSurface{}
	v := New(surf, domain.ScreenDimensions{W: 800, H: 600})
	v.Notify("no panels on this page")
	if len(surf.notices) != 1 || surf.notices[0] != "no panels on this page" {
		t.Fatalf("notices = %v", surf.notices)
	}
}
