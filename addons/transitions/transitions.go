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

// Builtin transition plugins.

package transitions

import (
	"lvs/pkg/frame"
	"lvs/pkg/transition"
)

func init() {
	transition.Register("fade", func() transition.Plugin { return fade{} })
	transition.Register("wipe", func() transition.Plugin { return wipe{} })
	transition.Register("slide", func() transition.Plugin { return slide{} })
	transition.Register("dissolve", func() transition.Plugin { return dissolve{} })
}

// fade linear cross-fade.
type fade struct{}

func (fade) Blend(prev, next *frame.RGB24, progress float64) *frame.RGB24 {
	out := frame.NewRGB24(next.Rect)
	for i := 0; i < len(out.Pix); i++ {
		p := float64(prev.Pix[i])
		n := float64(next.Pix[i])
		out.Pix[i] = uint8(p + (n-p)*progress + 0.5)
	}
	return out
}

// wipe reveals the incoming frame left to right.
type wipe struct{}

func (wipe) Blend(prev, next *frame.RGB24, progress float64) *frame.RGB24 {
	out := prev.Clone()
	edge := int(progress * float64(next.Width()))

	for y := 0; y < next.Height(); y++ {
		for x := 0; x < edge; x++ {
			out.SetRGB24(x, y, next.RGB24At(x, y))
		}
	}
	return out
}

// slide pushes the incoming frame in from the right.
type slide struct{}

func (slide) Blend(prev, next *frame.RGB24, progress float64) *frame.RGB24 {
	width := next.Width()
	offset := int((1 - progress) * float64(width))

	out := frame.NewRGB24(next.Rect)
	for y := 0; y < next.Height(); y++ {
		for x := 0; x < width; x++ {
			if x >= offset {
				out.SetRGB24(x, y, next.RGB24At(x-offset, y))
			} else {
				out.SetRGB24(x, y, prev.RGB24At(x+width-offset, y))
			}
		}
	}
	return out
}

// dissolve per-pixel threshold dissolve.
type dissolve struct{}

func (dissolve) Blend(prev, next *frame.RGB24, progress float64) *frame.RGB24 {
	out := frame.NewRGB24(next.Rect)
	threshold := int(progress * 256)

	for y := 0; y < next.Height(); y++ {
		for x := 0; x < next.Width(); x++ {
			if pixelHash(x, y) < threshold {
				out.SetRGB24(x, y, next.RGB24At(x, y))
			} else {
				out.SetRGB24(x, y, prev.RGB24At(x, y))
			}
		}
	}
	return out
}

func pixelHash(x, y int) int {
	h := uint64(x)*0x9e3779b97f4a7c15 + uint64(y)*0xbf58476d1ce4e5b9 + 0x94d049bb133111eb
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return int(h & 0xff)
}
