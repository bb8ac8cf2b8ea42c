//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests validate the Fyne-based UI components. They are gated behind the
// "fyne" build tag so CI (which is headless) does not need Fyne or a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
//
// Ensure you have the Fyne dependencies installed and a working OS driver.
package ui

import (
	"image"
	"testing"

	"fyne.io/fyne/v2"

	"gopanelreader/internal/domain"
)

func almostEqual(a, b, eps float32) bool {
	if a > b {
		return a-b <= eps
	}
	return b-a <= eps
}

func TestPanelCanvas_Defaults(t *testing.T) {
	pc := NewPanelCanvas(domain.ScreenDimensions{W: 1000, H: 1500})
	if pc.frame != nil {
		t.Fatal("expected no frame on a fresh canvas")
	}
	sz := pc.PreferredSize()
	if sz.Width != 500 || sz.Height != 750 {
		t.Fatalf("unexpected PreferredSize: %v", sz)
	}
}

func TestPanelCanvas_LayoutGeometry(t *testing.T) {
	pc := NewPanelCanvas(domain.ScreenDimensions{W: 1000, H: 1500})
	r, ok := pc.CreateRenderer().(*panelCanvasRenderer)
	if !ok {
		t.Fatalf("expected panelCanvasRenderer, got %T", pc.CreateRenderer())
	}

	// Layout within a known container size. The height constrains the scale
	// to 0.6, so the screen area is 600x900 centered at x=100.
	containerSize := fyne.NewSize(800, 900)
	r.Layout(containerSize)

	if !r.img.Hidden {
		t.Fatal("expected the frame image hidden while no frame is set")
	}
	dev := r.device
	if !almostEqual(dev.Size().Width, 600, 0.2) || !almostEqual(dev.Size().Height, 900, 0.2) {
		t.Fatalf("unexpected screen area size: got %v, want approx (600 x 900)", dev.Size())
	}
	if !almostEqual(dev.Position().X, 100, 0.2) || !almostEqual(dev.Position().Y, 0, 0.2) {
		t.Fatalf("unexpected screen area position: got %v, want approx (100, 0)", dev.Position())
	}

	// A placed frame scales with the screen area.
	pc.frame = image.NewGray(image.Rect(0, 0, 400, 600))
	pc.placement = domain.ScreenPlacement{X: 100, Y: 200, W: 400, H: 600}
	r.Layout(containerSize)

	if r.img.Hidden {
		t.Fatal("expected the frame image visible after a frame was set")
	}
	if !almostEqual(r.img.Size().Width, 240, 0.2) || !almostEqual(r.img.Size().Height, 360, 0.2) {
		t.Fatalf("unexpected frame size: got %v, want approx (240 x 360)", r.img.Size())
	}
	if !almostEqual(r.img.Position().X, 160, 0.2) || !almostEqual(r.img.Position().Y, 120, 0.2) {
		t.Fatalf("unexpected frame position: got %v, want approx (160, 120)", r.img.Position())
	}
}

func TestPanelCanvas_ToScreenSpace(t *testing.T) {
	pc := NewPanelCanvas(domain.ScreenDimensions{W: 1000, H: 1500})
	// Width would allow scale 0.6, height caps it at 0.5; the screen area is
	// 500x750 wide with a 50px letterbox bar on each side.
	pc.Resize(fyne.NewSize(600, 750))

	x, y, ok := pc.toScreenSpace(fyne.NewPos(50, 0))
	if !ok || x != 0 || y != 0 {
		t.Fatalf("expected top-left corner (0, 0), got (%d, %d, %v)", x, y, ok)
	}
	x, y, ok = pc.toScreenSpace(fyne.NewPos(300, 375))
	if !ok || x != 500 || y != 750 {
		t.Fatalf("expected screen center (500, 750), got (%d, %d, %v)", x, y, ok)
	}
	if _, _, ok = pc.toScreenSpace(fyne.NewPos(40, 10)); ok {
		t.Fatal("expected a position on the left letterbox bar to not map")
	}
	if _, _, ok = pc.toScreenSpace(fyne.NewPos(560, 10)); ok {
		t.Fatal("expected a position on the right letterbox bar to not map")
	}
}

func TestPanelCanvas_TappedForwardsScreenCoords(t *testing.T) {
	pc := NewPanelCanvas(domain.ScreenDimensions{W: 1000, H: 1500})
	pc.Resize(fyne.NewSize(600, 750))

	var gotX, gotY, calls int
	pc.SetOnTap(func(x, y int) {
		gotX, gotY = x, y
		calls++
	})

	pc.Tapped(&fyne.PointEvent{Position: fyne.NewPos(300, 375)})
	if calls != 1 {
		t.Fatalf("expected one tap callback, got %d", calls)
	}
	if gotX != 500 || gotY != 750 {
		t.Fatalf("expected tap at (500, 750), got (%d, %d)", gotX, gotY)
	}

	// Letterbox taps are swallowed.
	pc.Tapped(&fyne.PointEvent{Position: fyne.NewPos(10, 10)})
	if calls != 1 {
		t.Fatalf("expected letterbox tap to be ignored, got %d callbacks", calls)
	}
}
