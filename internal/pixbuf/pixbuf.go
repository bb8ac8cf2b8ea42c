/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package pixbuf provides the raw pixel buffer flowing through the render and
// dither pipeline. A Buffer is exclusively owned by whoever last produced it
// and must be released when superseded.
package pixbuf

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Format enumerates the supported raw pixel layouts.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatGray8          // 1 byte per pixel, luminance
	FormatRGB24          // 3 bytes per pixel, R G B
	FormatRGB32          // 4 bytes per pixel, R G B X (X ignored)
)

// BytesPerPixel returns the per-pixel byte width, 0 for unknown formats.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatGray8:
		return 1
	case FormatRGB24:
		return 3
	case FormatRGB32:
		return 4
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case FormatGray8:
		return "gray8"
	case FormatRGB24:
		return "rgb24"
	case FormatRGB32:
		return "rgb32"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Buffer is a width×height raster backed by a single contiguous byte slice.
// Rows are Stride bytes apart; Stride may exceed W*bpp for aligned sources.
type Buffer struct {
	W      int
	H      int
	Stride int
	Format Format
	Pix    []byte
}

// New allocates a zeroed buffer with a tight stride.
func New(f Format, w, h int) *Buffer {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	bpp := f.BytesPerPixel()
	return &Buffer{W: w, H: h, Stride: w * bpp, Format: f, Pix: make([]byte, w*h*bpp)}
}

// Released reports whether the backing storage has been given up.
func (b *Buffer) Released() bool { return b == nil || b.Pix == nil }

// Release drops the backing storage. Releasing twice or releasing nil is a no-op;
// any later pixel access observes an empty buffer.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.Pix = nil
}

// offset returns the byte index of (x,y) or -1 when out of bounds.
func (b *Buffer) offset(x, y int) int {
	if b.Released() || x < 0 || y < 0 || x >= b.W || y >= b.H {
		return -1
	}
	return y*b.Stride + x*b.Format.BytesPerPixel()
}

// Gray returns the luminance byte at (x,y) for gray buffers, 0 out of bounds.
func (b *Buffer) Gray(x, y int) uint8 {
	i := b.offset(x, y)
	if i < 0 {
		return 0
	}
	return b.Pix[i]
}

// SetGray writes the luminance byte at (x,y); out-of-bounds writes are dropped.
func (b *Buffer) SetGray(x, y int, v uint8) {
	i := b.offset(x, y)
	if i < 0 {
		return
	}
	b.Pix[i] = v
}

// RGB returns the color components at (x,y) for RGB buffers.
func (b *Buffer) RGB(x, y int) (r, g, bl uint8) {
	i := b.offset(x, y)
	if i < 0 {
		return 0, 0, 0
	}
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// SetRGB writes the color components at (x,y); the X byte of rgb32 is untouched.
func (b *Buffer) SetRGB(x, y int, r, g, bl uint8) {
	i := b.offset(x, y)
	if i < 0 {
		return
	}
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
}

// Clone returns a deep copy with a tight stride.
func (b *Buffer) Clone() *Buffer {
	if b.Released() {
		return New(b.Format, 0, 0)
	}
	n := New(b.Format, b.W, b.H)
	bpp := b.Format.BytesPerPixel()
	for y := 0; y < b.H; y++ {
		copy(n.Pix[y*n.Stride:y*n.Stride+b.W*bpp], b.Pix[y*b.Stride:])
	}
	return n
}

// ColorModel implements image.Image.
func (b *Buffer) ColorModel() color.Model {
	if b.Format == FormatGray8 {
		return color.GrayModel
	}
	return color.RGBAModel
}

// Bounds implements image.Image.
func (b *Buffer) Bounds() image.Rectangle {
	if b.Released() {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, b.W, b.H)
}

// At implements image.Image.
func (b *Buffer) At(x, y int) color.Color {
	switch b.Format {
	case FormatGray8:
		return color.Gray{Y: b.Gray(x, y)}
	case FormatRGB24, FormatRGB32:
		r, g, bl := b.RGB(x, y)
		return color.RGBA{R: r, G: g, B: bl, A: 255}
	default:
		return color.RGBA{}
	}
}

// FromImage converts an image into a freshly allocated buffer of the given
// format. Gray conversion uses the Go image model (alpha-premultiplied source).
func FromImage(img image.Image, f Format) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := New(f, w, h)

	// Fast paths for the common backing types.
	switch src := img.(type) {
	case *image.Gray:
		if f == FormatGray8 {
			for y := 0; y < h; y++ {
				copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[(y+bounds.Min.Y-src.Rect.Min.Y)*src.Stride+(bounds.Min.X-src.Rect.Min.X):])
			}
			return out
		}
	case *image.RGBA:
		if f == FormatRGB32 || f == FormatRGB24 {
			bpp := f.BytesPerPixel()
			for y := 0; y < h; y++ {
				si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
				di := y * out.Stride
				for x := 0; x < w; x++ {
					out.Pix[di] = src.Pix[si]
					out.Pix[di+1] = src.Pix[si+1]
					out.Pix[di+2] = src.Pix[si+2]
					si += 4
					di += bpp
				}
			}
			return out
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(bounds.Min.X+x, bounds.Min.Y+y)
			switch f {
			case FormatGray8:
				out.SetGray(x, y, color.GrayModel.Convert(c).(color.Gray).Y)
			case FormatRGB24, FormatRGB32:
				r, g, bl, _ := c.RGBA()
				out.SetRGB(x, y, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			}
		}
	}
	return out
}

// ToImage materializes the buffer as a standard image for display or encoding.
func (b *Buffer) ToImage() image.Image {
	if b.Released() {
		return image.NewRGBA(image.Rectangle{})
	}
	if b.Format == FormatGray8 {
		img := image.NewGray(image.Rect(0, 0, b.W, b.H))
		for y := 0; y < b.H; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+b.W], b.Pix[y*b.Stride:])
		}
		return img
	}
	img := image.NewRGBA(image.Rect(0, 0, b.W, b.H))
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			r, g, bl := b.RGB(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i] = r
			img.Pix[i+1] = g
			img.Pix[i+2] = bl
			img.Pix[i+3] = 255
		}
	}
	return img
}

// Drawable wraps the buffer as a draw.Image destination so x/image scalers can
// write straight into it. Alpha is discarded on write.
func (b *Buffer) Drawable() draw.Image {
	if b.Format == FormatGray8 {
		return grayAdapter{b: b}
	}
	return rgbAdapter{b: b}
}

type grayAdapter struct{ b *Buffer }

func (a grayAdapter) ColorModel() color.Model { return color.GrayModel }
func (a grayAdapter) Bounds() image.Rectangle { return a.b.Bounds() }
func (a grayAdapter) At(x, y int) color.Color { return a.b.At(x, y) }
func (a grayAdapter) Set(x, y int, c color.Color) {
	a.b.SetGray(x, y, color.GrayModel.Convert(c).(color.Gray).Y)
}

type rgbAdapter struct{ b *Buffer }

func (a rgbAdapter) ColorModel() color.Model { return color.RGBAModel }
func (a rgbAdapter) Bounds() image.Rectangle { return a.b.Bounds() }
func (a rgbAdapter) At(x, y int) color.Color { return a.b.At(x, y) }
func (a rgbAdapter) Set(x, y int, c color.Color) {
	r, g, bl, _ := c.RGBA()
	a.b.SetRGB(x, y, uint8(r>>8), uint8(g>>8), uint8(bl>>8))
}

var (
	_ image.Image = (*Buffer)(nil)
	_ draw.Image  = grayAdapter{}
	_ draw.Image  = rgbAdapter{}
)
