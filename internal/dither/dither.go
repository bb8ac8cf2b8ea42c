/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dither applies ordered Bayer dithering to pixel buffers, producing
// the high-contrast bilevel output low-refresh displays want. The transform is
// per pixel with no state beyond (row%8, col%8) indexing, so it is safe to
// split by row or tile.
package dither

import (
	applog "gopanelreader/internal/log"
	"gopanelreader/internal/pixbuf"
)

// bayer8 is the classic 8x8 Bayer index matrix, raw values 0..63.
var bayer8 = [8][8]uint8{
	{0, 32, 8, 40, 2, 34, 10, 42},
	{48, 16, 56, 24, 50, 18, 58, 26},
	{12, 44, 4, 36, 14, 46, 6, 38},
	{60, 28, 52, 20, 62, 30, 54, 22},
	{3, 35, 11, 43, 1, 33, 9, 41},
	{51, 19, 59, 27, 49, 17, 57, 25},
	{15, 47, 7, 39, 13, 45, 5, 37},
	{63, 31, 55, 23, 61, 29, 53, 21},
}

// whitePoint: luminance at or above this always comes out white, bypassing the
// matrix. Keeps page background clean instead of speckled.
const whitePoint = 235

// thresholds holds the matrix rescaled to min(255, raw*4+20). The +20 bias
// shifts the whole matrix toward preserving pure white.
var thresholds [8][8]uint8

func init() {
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			t := int(bayer8[y][x])*4 + 20
			if t > 255 {
				t = 255
			}
			thresholds[y][x] = uint8(t)
		}
	}
}

// Threshold returns the effective threshold for pixel (x,y).
func Threshold(x, y int) uint8 {
	return thresholds[y&7][x&7]
}

// Luminance computes round(0.299 R + 0.587 G + 0.114 B) in integer math.
func Luminance(r, g, b uint8) uint8 {
	return uint8((299*uint32(r) + 587*uint32(g) + 114*uint32(b) + 500) / 1000)
}

// binary resolves a luminance at (x,y) to 0 or 255.
func binary(x, y int, lum uint8) uint8 {
	if lum >= whitePoint {
		return 255
	}
	if lum >= thresholds[y&7][x&7] {
		return 255
	}
	return 0
}

// Apply dithers the buffer in place and returns it. The pre-dither contents
// must not be reused by the caller. Unsupported formats pass through untouched
// with a log line; Apply never fails.
func Apply(b *pixbuf.Buffer) *pixbuf.Buffer {
	if b.Released() {
		return b
	}
	switch b.Format {
	case pixbuf.FormatGray8:
		applyGray(b)
	case pixbuf.FormatRGB24:
		applyRGB(b, 3)
	case pixbuf.FormatRGB32:
		applyRGB(b, 4)
	default:
		applog.WithComponent("dither").Warn("unsupported pixel format, passing through", "format", b.Format.String())
	}
	return b
}

func applyGray(b *pixbuf.Buffer) {
	for y := 0; y < b.H; y++ {
		row := b.Pix[y*b.Stride : y*b.Stride+b.W]
		trow := &thresholds[y&7]
		for x, v := range row {
			if v >= whitePoint || v >= trow[x&7] {
				row[x] = 255
			} else {
				row[x] = 0
			}
		}
	}
}

func applyRGB(b *pixbuf.Buffer, bpp int) {
	for y := 0; y < b.H; y++ {
		i := y * b.Stride
		for x := 0; x < b.W; x++ {
			v := binary(x, y, Luminance(b.Pix[i], b.Pix[i+1], b.Pix[i+2]))
			b.Pix[i] = v
			b.Pix[i+1] = v
			b.Pix[i+2] = v
			i += bpp
		}
	}
}
