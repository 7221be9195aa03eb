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

package effects

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lvs/pkg/effect"
	"lvs/pkg/frame"
)

func apply(t *testing.T, pluginID string, img *frame.RGB24, params effect.Params) *frame.RGB24 {
	t.Helper()
	plugin, err := effect.New(pluginID)
	require.NoError(t, err)

	defaults, err := effect.Defaults(pluginID)
	require.NoError(t, err)
	for name, value := range params {
		defaults[name] = value
	}

	out, err := plugin.Apply(img, defaults)
	require.NoError(t, err)
	return out
}

func gray(v uint8) *frame.RGB24 {
	img := frame.New(1, 1)
	img.Fill(frame.RGB{R: v, G: v, B: v})
	return img
}

func TestBrightness(t *testing.T) {
	cases := map[string]struct {
		in       uint8
		factor   float64
		expected uint8
	}{
		"identity": {100, 1.0, 100},
		"double":   {100, 2.0, 200},
		"clamp":    {200, 2.0, 255},
		"off":      {200, 0.0, 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			out := apply(t, "brightness", gray(tc.in), effect.Params{"factor": tc.factor})
			require.Equal(t, tc.expected, out.Pix[0])
		})
	}
}

func TestContrast(t *testing.T) {
	// The midpoint is a fixed point at any contrast factor.
	out := apply(t, "contrast", gray(128), effect.Params{"factor": 3.0})
	require.InDelta(t, 128, int(out.Pix[0]), 2)

	out = apply(t, "contrast", gray(100), effect.Params{"factor": 2.0})
	require.Equal(t, uint8(73), out.Pix[0]) // (100-127.5)*2+127.5.
}

func TestSaturation(t *testing.T) {
	img := frame.New(1, 1)
	img.Fill(frame.RGB{R: 200, G: 50, B: 50})

	// Factor zero collapses to grayscale.
	out := apply(t, "saturation", img, effect.Params{"factor": 0.0})
	require.Equal(t, out.Pix[0], out.Pix[1])
	require.Equal(t, out.Pix[1], out.Pix[2])

	// Identity at factor one.
	out = apply(t, "saturation", img, effect.Params{"factor": 1.0})
	require.Equal(t, []byte{200, 50, 50}, out.Pix)
}

func TestInvert(t *testing.T) {
	out := apply(t, "invert", gray(100), effect.Params{"strength": 1.0})
	require.Equal(t, uint8(155), out.Pix[0])

	out = apply(t, "invert", gray(100), effect.Params{"strength": 0.0})
	require.Equal(t, uint8(100), out.Pix[0])
}

func TestGamma(t *testing.T) {
	// Identity at gamma one.
	out := apply(t, "gamma", gray(77), effect.Params{"gamma": 1.0})
	require.Equal(t, uint8(77), out.Pix[0])

	// Gamma above one brightens midtones.
	out = apply(t, "gamma", gray(64), effect.Params{"gamma": 2.0})
	require.Greater(t, out.Pix[0], uint8(64))

	// Black and white are fixed points.
	out = apply(t, "gamma", gray(0), effect.Params{"gamma": 2.0})
	require.Equal(t, uint8(0), out.Pix[0])
	out = apply(t, "gamma", gray(255), effect.Params{"gamma": 2.0})
	require.Equal(t, uint8(255), out.Pix[0])
}

func TestColorize(t *testing.T) {
	out := apply(t, "colorize", gray(255), effect.Params{
		"color":  "#ff0000",
		"amount": 1.0,
	})
	require.Equal(t, uint8(255), out.Pix[0])
	require.Equal(t, uint8(0), out.Pix[1])
	require.Equal(t, uint8(0), out.Pix[2])
}

func TestStrobe(t *testing.T) {
	plugin, err := effect.New("strobe")
	require.NoError(t, err)

	params := effect.Params{"interval": 2.0}
	img := gray(100)

	var sequence []uint8
	for i := 0; i < 8; i++ {
		out, err := plugin.Apply(img, params)
		require.NoError(t, err)
		sequence = append(sequence, out.Pix[0])
	}
	// Alternates two lit and two black frames.
	require.Equal(t, []uint8{100, 0, 0, 100, 100, 0, 0, 100}, sequence)
}
