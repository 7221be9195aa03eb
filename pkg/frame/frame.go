// Copyright 2022 The LVS Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// RGB24 implementation using stdlib image.Image interface.

package frame

import (
	"image"
	"image/color"
	"math/bits"

	"golang.org/x/image/draw"
)

// RGB Color.
type RGB struct {
	R, G, B uint8
}

// RGBA .
func (c RGB) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8

	g = uint32(c.G)
	g |= g << 8

	b = uint32(c.B)
	b |= b << 8

	a = 0xffff
	return
}

// NewRGB24 .
func NewRGB24(r image.Rectangle) *RGB24 {
	return &RGB24{
		Pix:    make([]uint8, pixelBufferLength(3, r)),
		Stride: 3 * r.Dx(),
		Rect:   r,
	}
}

// New returns a black frame of the given size with origin (0,0).
func New(width, height int) *RGB24 {
	return NewRGB24(image.Rect(0, 0, width, height))
}

// RGB24 is an in-memory image whose At method returns RGB values.
type RGB24 struct {

	// Pix holds the image's pixels, in R, G, B order. The pixel at
	// (x, y) starts at Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*3].
	Pix []uint8

	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int

	// Rect is the image's bounds.
	Rect image.Rectangle
}

// ColorModel .
func (p *RGB24) ColorModel() color.Model { return RGB24Model }

// Bounds .
func (p *RGB24) Bounds() image.Rectangle { return p.Rect }

// At .
func (p *RGB24) At(x, y int) color.Color {
	return p.RGB24At(x, y)
}

// RGB24At .
func (p *RGB24) RGB24At(x, y int) RGB {
	if !(image.Point{x, y}.In(p.Rect)) {
		return RGB{}
	}

	i := p.PixOffset(x, y)

	return RGB{p.Pix[i], p.Pix[i+1], p.Pix[i+2]}
}

// Set .
func (p *RGB24) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	rgb := RGB24Model.Convert(c).(RGB)
	p.Pix[i] = rgb.R
	p.Pix[i+1] = rgb.G
	p.Pix[i+2] = rgb.B
}

// SetRGB24 .
func (p *RGB24) SetRGB24(x, y int, c RGB) {
	if !(image.Point{x, y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	p.Pix[i] = c.R
	p.Pix[i+1] = c.G
	p.Pix[i+2] = c.B
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *RGB24) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// Width .
func (p *RGB24) Width() int { return p.Rect.Dx() }

// Height .
func (p *RGB24) Height() int { return p.Rect.Dy() }

// Clone returns a deep copy.
func (p *RGB24) Clone() *RGB24 {
	pix := make([]uint8, len(p.Pix))
	copy(pix, p.Pix)
	return &RGB24{
		Pix:    pix,
		Stride: p.Stride,
		Rect:   p.Rect,
	}
}

// Fill sets every pixel to c.
func (p *RGB24) Fill(c RGB) {
	for i := 0; i < len(p.Pix); i += 3 {
		p.Pix[i] = c.R
		p.Pix[i+1] = c.G
		p.Pix[i+2] = c.B
	}
}

// RGB24Model .
var RGB24Model color.Model = color.ModelFunc(rgbModel)

func rgbModel(c color.Color) color.Color {
	if _, ok := c.(RGB); ok {
		return c
	}
	r, g, b, _ := c.RGBA()

	return RGB{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}

// Resize scales src to the given size. Returns src unchanged if the
// size already matches.
func Resize(src *RGB24, width, height int) *RGB24 {
	if src.Width() == width && src.Height() == height {
		return src
	}
	dst := New(width, height)
	draw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst
}

// pixelBufferLength returns the length of the []uint8 typed Pix slice field
// for the NewXxx functions. Conceptually, this is just (bpp * width * height),
// but this function panics if at least one of those is negative or if the
// computation would overflow the int type.
func pixelBufferLength(bytesPerPixel int, r image.Rectangle) int {
	totalLength := mul3NonNeg(bytesPerPixel, r.Dx(), r.Dy())
	if totalLength < 0 {
		panic("frame: NewRGB24 Rectangle has huge or negative dimensions")
	}
	return totalLength
}

// mul3NonNeg returns (x * y * z), unless at least one argument is negative or
// if the computation overflows the int type, in which case it returns -1.
func mul3NonNeg(x int, y int, z int) int {
	if (x < 0) || (y < 0) || (z < 0) {
		return -1
	}
	hi, lo := bits.Mul64(uint64(x), uint64(y))
	if hi != 0 {
		return -1
	}
	hi, lo = bits.Mul64(lo, uint64(z))
	if hi != 0 {
		return -1
	}
	a := int(lo)
	if (a < 0) || (uint64(a) != lo) {
		return -1
	}
	return a
}
