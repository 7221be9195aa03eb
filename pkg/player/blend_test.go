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

package player

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lvs/pkg/frame"
)

func colorFrame(c frame.RGB) *frame.RGB24 {
	img := frame.New(2, 2)
	img.Fill(c)
	return img
}

func TestCompositeIdentities(t *testing.T) {
	a := colorFrame(frame.RGB{R: 10, G: 120, B: 230})
	b := colorFrame(frame.RGB{R: 200, G: 40, B: 90})
	white := colorFrame(frame.RGB{R: 255, G: 255, B: 255})
	black := colorFrame(frame.RGB{})

	cases := map[string]struct {
		base     *frame.RGB24
		overlay  *frame.RGB24
		mode     string
		opacity  float64
		expected *frame.RGB24
	}{
		"normalOpacityZero": {a, b, BlendNormal, 0, a},
		"normalOpacityOne":  {a, b, BlendNormal, 1, b},
		"multiplyWhite":     {a, white, BlendMultiply, 1, a},
		"screenBlack":       {a, black, BlendScreen, 1, a},
		"addBlack":          {a, black, BlendAdd, 1, a},
		"subtractBlack":     {a, black, BlendSubtract, 1, a},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			out := Composite(tc.base, tc.overlay, tc.mode, tc.opacity)
			require.Equal(t, tc.expected.Pix, out.Pix)
		})
	}
}

func TestCompositeArithmetic(t *testing.T) {
	base := colorFrame(frame.RGB{R: 128, G: 128, B: 128})
	overlay := colorFrame(frame.RGB{R: 128, G: 128, B: 128})

	t.Run("addSaturates", func(t *testing.T) {
		out := Composite(base, colorFrame(frame.RGB{R: 200, G: 200, B: 200}), BlendAdd, 1)
		require.Equal(t, uint8(255), out.Pix[0])
	})
	t.Run("subtractFloors", func(t *testing.T) {
		out := Composite(base, colorFrame(frame.RGB{R: 200, G: 200, B: 200}), BlendSubtract, 1)
		require.Equal(t, uint8(0), out.Pix[0])
	})
	t.Run("multiplyHalf", func(t *testing.T) {
		out := Composite(base, overlay, BlendMultiply, 1)
		// 128/255 * 128/255 * 255 = 64.25.
		require.Equal(t, uint8(64), out.Pix[0])
	})
	t.Run("overlayConditional", func(t *testing.T) {
		dark := colorFrame(frame.RGB{R: 64, G: 64, B: 64})
		bright := colorFrame(frame.RGB{R: 192, G: 192, B: 192})

		// base < 0.5 multiplies, base >= 0.5 screens.
		outDark := Composite(dark, overlay, BlendOverlay, 1)
		require.Less(t, outDark.Pix[0], uint8(128))

		outBright := Composite(bright, overlay, BlendOverlay, 1)
		require.Greater(t, outBright.Pix[0], uint8(128))
	})
	t.Run("halfOpacity", func(t *testing.T) {
		out := Composite(black2x2(), colorFrame(frame.RGB{R: 200}), BlendNormal, 0.5)
		require.Equal(t, uint8(100), out.Pix[0])
	})
}

func black2x2() *frame.RGB24 {
	return frame.New(2, 2)
}
