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

// Builtin pixel effects.

package effects

import (
	"math"

	"lvs/pkg/effect"
	"lvs/pkg/frame"
)

func init() { //nolint:funlen
	effect.Register("brightness", []effect.Param{
		{Name: "factor", Type: effect.TypeFloat, Default: 1.0, Min: 0, Max: 5},
	}, func() effect.Plugin { return &brightness{} })

	effect.Register("contrast", []effect.Param{
		{Name: "factor", Type: effect.TypeFloat, Default: 1.0, Min: 0, Max: 4},
	}, func() effect.Plugin { return &contrast{} })

	effect.Register("saturation", []effect.Param{
		{Name: "factor", Type: effect.TypeFloat, Default: 1.0, Min: 0, Max: 3},
	}, func() effect.Plugin { return &saturation{} })

	effect.Register("invert", []effect.Param{
		{Name: "strength", Type: effect.TypeFloat, Default: 1.0, Min: 0, Max: 1},
	}, func() effect.Plugin { return &invert{} })

	effect.Register("colorize", []effect.Param{
		{Name: "color", Type: effect.TypeColor, Default: "#ffffff"},
		{Name: "amount", Type: effect.TypeFloat, Default: 1.0, Min: 0, Max: 1},
	}, func() effect.Plugin { return &colorize{} })

	effect.Register("gamma", []effect.Param{
		{Name: "gamma", Type: effect.TypeFloat, Default: 1.0, Min: 0.1, Max: 4},
	}, func() effect.Plugin { return &gamma{} })

	effect.Register("strobe", []effect.Param{
		{Name: "interval", Type: effect.TypeInt, Default: 4.0, Min: 1, Max: 60},
	}, func() effect.Plugin { return &strobe{} })
}

// mapPixels applies fn to every channel byte.
func mapPixels(img *frame.RGB24, fn func(v uint8) uint8) *frame.RGB24 {
	out := frame.NewRGB24(img.Rect)
	for i, v := range img.Pix {
		out.Pix[i] = fn(v)
	}
	return out
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

type brightness struct{}

func (brightness) Apply(img *frame.RGB24, params effect.Params) (*frame.RGB24, error) {
	factor := params.Float("factor")
	return mapPixels(img, func(v uint8) uint8 {
		return clampByte(float64(v) * factor)
	}), nil
}

type contrast struct{}

func (contrast) Apply(img *frame.RGB24, params effect.Params) (*frame.RGB24, error) {
	factor := params.Float("factor")
	return mapPixels(img, func(v uint8) uint8 {
		return clampByte((float64(v)-127.5)*factor + 127.5)
	}), nil
}

type saturation struct{}

func (saturation) Apply(img *frame.RGB24, params effect.Params) (*frame.RGB24, error) {
	factor := params.Float("factor")
	out := frame.NewRGB24(img.Rect)
	for i := 0; i < len(img.Pix); i += 3 {
		r := float64(img.Pix[i])
		g := float64(img.Pix[i+1])
		b := float64(img.Pix[i+2])
		gray := 0.299*r + 0.587*g + 0.114*b

		out.Pix[i] = clampByte(gray + (r-gray)*factor)
		out.Pix[i+1] = clampByte(gray + (g-gray)*factor)
		out.Pix[i+2] = clampByte(gray + (b-gray)*factor)
	}
	return out, nil
}

type invert struct{}

func (invert) Apply(img *frame.RGB24, params effect.Params) (*frame.RGB24, error) {
	strength := params.Float("strength")
	return mapPixels(img, func(v uint8) uint8 {
		inverted := 255 - float64(v)
		return clampByte(float64(v) + (inverted-float64(v))*strength)
	}), nil
}

type colorize struct{}

func (colorize) Apply(img *frame.RGB24, params effect.Params) (*frame.RGB24, error) {
	tint := params.Color("color")
	amount := params.Float("amount")

	out := frame.NewRGB24(img.Rect)
	for i := 0; i < len(img.Pix); i += 3 {
		r := float64(img.Pix[i])
		g := float64(img.Pix[i+1])
		b := float64(img.Pix[i+2])
		gray := (0.299*r + 0.587*g + 0.114*b) / 255

		out.Pix[i] = clampByte(r + (gray*float64(tint.R)-r)*amount)
		out.Pix[i+1] = clampByte(g + (gray*float64(tint.G)-g)*amount)
		out.Pix[i+2] = clampByte(b + (gray*float64(tint.B)-b)*amount)
	}
	return out, nil
}

type gamma struct {
	lut      [256]uint8
	lutGamma float64
}

func (e *gamma) Apply(img *frame.RGB24, params effect.Params) (*frame.RGB24, error) {
	g := params.Float("gamma")
	if g != e.lutGamma {
		for i := 0; i < 256; i++ {
			e.lut[i] = clampByte(math.Pow(float64(i)/255, 1/g) * 255)
		}
		e.lutGamma = g
	}
	return mapPixels(img, func(v uint8) uint8 {
		return e.lut[v]
	}), nil
}

// strobe blacks out every second interval of frames.
type strobe struct {
	count int
}

func (e *strobe) Apply(img *frame.RGB24, params effect.Params) (*frame.RGB24, error) {
	interval := params.Int("interval")
	if interval < 1 {
		interval = 1
	}
	e.count++
	if (e.count/interval)%2 == 1 {
		return frame.NewRGB24(img.Rect), nil
	}
	return img, nil
}
