/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"math"

	"gopanelreader/internal/pixbuf"
)

// The post-processing passes are 256-entry lookup tables applied to the color
// channels. The padding byte of RGB32 buffers is left untouched.

// applyContrast stretches values linearly around mid-gray. c > 1 increases
// contrast, c < 1 flattens.
func applyContrast(b *pixbuf.Buffer, c float64) {
	var lut [256]uint8
	for i := range lut {
		lut[i] = clamp8((float64(i)-128)*c + 128)
	}
	applyLUT(b, &lut)
}

// applyInvert flips every color channel.
func applyInvert(b *pixbuf.Buffer) {
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(255 - i)
	}
	applyLUT(b, &lut)
}

// applyGamma raises mid-tones for g > 1 and darkens them for g < 1, with the
// usual out = 255*(in/255)^(1/g) curve.
func applyGamma(b *pixbuf.Buffer, g float64) {
	if g <= 0 {
		return
	}
	inv := 1 / g
	var lut [256]uint8
	for i := range lut {
		lut[i] = clamp8(255 * math.Pow(float64(i)/255, inv))
	}
	applyLUT(b, &lut)
}

func applyLUT(b *pixbuf.Buffer, lut *[256]uint8) {
	if b == nil || b.Released() {
		return
	}
	switch b.Format {
	case pixbuf.FormatGray8:
		for y := 0; y < b.H; y++ {
			row := b.Pix[y*b.Stride : y*b.Stride+b.W]
			for x, v := range row {
				row[x] = lut[v]
			}
		}
	case pixbuf.FormatRGB24, pixbuf.FormatRGB32:
		bpp := b.Format.BytesPerPixel()
		for y := 0; y < b.H; y++ {
			row := b.Pix[y*b.Stride : y*b.Stride+b.W*bpp]
			for x := 0; x < len(row); x += bpp {
				row[x] = lut[row[x]]
				row[x+1] = lut[row[x+1]]
				row[x+2] = lut[row[x+2]]
			}
		}
	}
}

func clamp8(v float64) uint8 {
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 255 {
		return 255
	}
	return uint8(r)
}
