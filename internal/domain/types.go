/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany..
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for panel-by-panel reading: the sidecar
// document shapes produced by panel-detection tooling, and the runtime geometry
// types flowing through the crop/placement pipeline.

// ReadingDirection determines panel order semantics and tap-zone mapping.
type ReadingDirection string

const (
	DirectionLTR ReadingDirection = "ltr"
	DirectionRTL ReadingDirection = "rtl"
)

// ParseDirection normalizes a sidecar direction value. Detection tools emit
// manga by default, so anything unrecognized resolves to rtl.
func ParseDirection(s string) ReadingDirection {
	if s == string(DirectionLTR) {
		return DirectionLTR
	}
	return DirectionRTL
}

// PanelRect is a normalized panel bounding box, origin top-left, all
// coordinates in [0,1] relative to the page. Read-only once loaded.
type PanelRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Valid reports whether the rect has positive size and stays inside the unit square.
func (p PanelRect) Valid() bool {
	if p.W <= 0 || p.H <= 0 {
		return false
	}
	if p.X < 0 || p.Y < 0 || p.X > 1 || p.Y > 1 {
		return false
	}
	return p.X+p.W <= 1.0000001 && p.Y+p.H <= 1.0000001
}

// PanelList is an ordered panel sequence; order is the authored reading order.
type PanelList []PanelRect

// PageEntry is one page of a flat sidecar file.
type PageEntry struct {
	Page   int       `json:"page"`
	Image  string    `json:"image,omitempty"`
	Panels PanelList `json:"panels"`
}

// ChapterRef points at one chapter shard of a sharded archive sidecar.
type ChapterRef struct {
	Name       string `json:"name"`
	JSONFile   string `json:"json_file"`
	TotalPages int    `json:"total_pages"`
}

// PanelDocument is the canonical in-memory form of a sidecar, covering both
// the flat and the chapter-sharded shapes. Exactly one of Pages or Chapters is
// populated for well-formed input; Panels is the last-resort single-list form.
type PanelDocument struct {
	ArchiveName      string       `json:"archive_name,omitempty"`
	ReadingDirection string       `json:"reading_direction,omitempty"`
	TotalChapters    int          `json:"total_chapters,omitempty"`
	TotalPages       int          `json:"total_pages,omitempty"`
	Chapters         []ChapterRef `json:"chapters,omitempty"`
	Pages            []PageEntry  `json:"pages,omitempty"`
	Panels           PanelList    `json:"panels,omitempty"`
}

// Sharded reports whether page lookups must go through chapter shards.
func (d *PanelDocument) Sharded() bool { return len(d.Chapters) > 0 }

// Direction returns the document direction, defaulting to rtl.
func (d *PanelDocument) Direction() ReadingDirection {
	return ParseDirection(d.ReadingDirection)
}

// PageByNumber finds the flat page entry with an exactly matching page number.
func (d *PanelDocument) PageByNumber(page int) (PageEntry, bool) {
	for _, pe := range d.Pages {
		if pe.Page == page {
			return pe, true
		}
	}
	return PageEntry{}, false
}

// ChapterFor maps a global page number onto a chapter shard and the local page
// inside it. Chapters are walked in order, subtracting total_pages until the
// remaining number fits; the first chapter that covers it wins.
func (d *PanelDocument) ChapterFor(page int) (ChapterRef, int, bool) {
	rem := page
	for _, ch := range d.Chapters {
		if ch.TotalPages <= 0 {
			continue
		}
		if rem <= ch.TotalPages {
			return ch, rem, true
		}
		rem -= ch.TotalPages
	}
	return ChapterRef{}, 0, false
}

// PageDimensions is the native pixel size of a page as reported by the
// rasterizer. Immutable.
type PageDimensions struct {
	W int
	H int
}

// ScreenDimensions is the target display size in pixels.
type ScreenDimensions struct {
	W int
	H int
}

// CropRect is the page-pixel-space rectangle submitted to the rasterizer.
// It is larger than the panel due to padding. CX/CY carry the semantic center
// of the unpadded panel; they are computed once and never re-derived from the
// padded rect.
type CropRect struct {
	X float64
	Y float64
	W float64
	H float64

	CX float64
	CY float64
}

// Aspect returns width over height, 0 for degenerate rects.
func (c CropRect) Aspect() float64 {
	if c.H == 0 {
		return 0
	}
	return c.W / c.H
}

// ScreenPlacement is the final on-screen rectangle after scale-to-fit,
// centering, clamping and offset.
type ScreenPlacement struct {
	X int
	Y int
	W int
	H int
}
