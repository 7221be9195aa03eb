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

// Builtin procedural frame generators.

package generators

import (
	"math"

	"lvs/pkg/effect"
	"lvs/pkg/frame"
	"lvs/pkg/source"
)

func init() {
	source.RegisterGenerator("solid", []effect.Param{
		{Name: "color", Type: effect.TypeColor, Default: "#ffffff"},
	}, func(params effect.Params) source.Generator {
		return &solid{color: params.Color("color")}
	})

	source.RegisterGenerator("gradient", []effect.Param{
		{Name: "color_a", Type: effect.TypeColor, Default: "#000000"},
		{Name: "color_b", Type: effect.TypeColor, Default: "#ffffff"},
		{Name: "speed", Type: effect.TypeFloat, Default: 0.1, Min: 0, Max: 10},
	}, func(params effect.Params) source.Generator {
		return &gradient{
			a:     params.Color("color_a"),
			b:     params.Color("color_b"),
			speed: params.Float("speed"),
		}
	})

	source.RegisterGenerator("plasma", []effect.Param{
		{Name: "scale", Type: effect.TypeFloat, Default: 0.05, Min: 0.001, Max: 1},
		{Name: "speed", Type: effect.TypeFloat, Default: 1.0, Min: 0, Max: 10},
	}, func(params effect.Params) source.Generator {
		return &plasma{
			scale: params.Float("scale"),
			speed: params.Float("speed"),
		}
	})

	source.RegisterGenerator("noise", []effect.Param{
		{Name: "monochrome", Type: effect.TypeBool, Default: true},
	}, func(params effect.Params) source.Generator {
		return &noise{monochrome: params.Bool("monochrome")}
	})
}

type solid struct {
	color frame.RGB
}

func (g *solid) ProcessFrame(dst *frame.RGB24, width, height int, _ float64, _ int, _ float64) *frame.RGB24 {
	if dst == nil {
		dst = frame.New(width, height)
	}
	dst.Fill(g.color)
	return dst
}

type gradient struct {
	a, b  frame.RGB
	speed float64
}

func (g *gradient) ProcessFrame(dst *frame.RGB24, width, height int, timeS float64, _ int, _ float64) *frame.RGB24 {
	if dst == nil {
		dst = frame.New(width, height)
	}

	shift := timeS * g.speed
	for x := 0; x < width; x++ {
		pos := float64(x)/float64(width) + shift
		pos -= math.Floor(pos)
		// Mirror so the wrap point has no seam.
		if pos > 0.5 {
			pos = 1 - pos
		}
		pos *= 2

		c := frame.RGB{
			R: lerpByte(g.a.R, g.b.R, pos),
			G: lerpByte(g.a.G, g.b.G, pos),
			B: lerpByte(g.a.B, g.b.B, pos),
		}
		for y := 0; y < height; y++ {
			dst.SetRGB24(x, y, c)
		}
	}
	return dst
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
}

type plasma struct {
	scale float64
	speed float64
}

func (g *plasma) ProcessFrame(dst *frame.RGB24, width, height int, timeS float64, _ int, _ float64) *frame.RGB24 {
	if dst == nil {
		dst = frame.New(width, height)
	}

	t := timeS * g.speed
	for y := 0; y < height; y++ {
		fy := float64(y) * g.scale
		for x := 0; x < width; x++ {
			fx := float64(x) * g.scale

			v := math.Sin(fx+t) +
				math.Sin((fy+t)/2) +
				math.Sin((fx+fy+t)/2)
			cx := fx + 0.5*math.Sin(t/5)
			cy := fy + 0.5*math.Cos(t/3)
			v += math.Sin(math.Sqrt(cx*cx+cy*cy+1) + t)
			v /= 4 // Into [-1,1].

			dst.SetRGB24(x, y, frame.RGB{
				R: uint8((math.Sin(v*math.Pi) + 1) * 127.5),
				G: uint8((math.Sin(v*math.Pi+2*math.Pi/3) + 1) * 127.5),
				B: uint8((math.Sin(v*math.Pi+4*math.Pi/3) + 1) * 127.5),
			})
		}
	}
	return dst
}

type noise struct {
	monochrome bool
}

func (g *noise) ProcessFrame(dst *frame.RGB24, width, height int, _ float64, frameNumber int, _ float64) *frame.RGB24 {
	if dst == nil {
		dst = frame.New(width, height)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if g.monochrome {
				v := hashByte(x, y, frameNumber, 0)
				dst.SetRGB24(x, y, frame.RGB{R: v, G: v, B: v})
			} else {
				dst.SetRGB24(x, y, frame.RGB{
					R: hashByte(x, y, frameNumber, 0),
					G: hashByte(x, y, frameNumber, 1),
					B: hashByte(x, y, frameNumber, 2),
				})
			}
		}
	}
	return dst
}

// hashByte is a cheap deterministic per-pixel hash, stateless across
// seeks.
func hashByte(x, y, n, channel int) uint8 {
	h := uint64(x)*0x9e3779b97f4a7c15 ^ uint64(y)*0xbf58476d1ce4e5b9 ^
		uint64(n)*0x94d049bb133111eb ^ uint64(channel)*0x2545f4914f6cdd1d
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	return uint8(h)
}
