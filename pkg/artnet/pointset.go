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

package artnet

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"lvs/pkg/frame"
)

// Point one 2D sample coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object a group of points from the shape editor, optionally pinned to
// a universe.
type Object struct {
	Universe int // -1 for automatic assignment.
	Points   []Point
}

// PointSet the ordered sample coordinates used to extract LED values
// from an image.
type PointSet struct {
	Width  int
	Height int

	Objects []Object
}

// pointSetJSON matches the shape editor output format.
type pointSetJSON struct {
	Canvas struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"canvas"`
	Objects []struct {
		ID     string  `json:"id"`
		Points []Point `json:"points"`
		// Universe is optional; absence means automatic assignment.
		Universe *int `json:"universe"`
	} `json:"objects"`
}

// ErrNoPoints point set contains no points.
var ErrNoPoints = errors.New("point set contains no points")

// ParsePointSet parses the shape editor JSON format. Points outside the
// canvas are silently dropped.
func ParsePointSet(data []byte) (*PointSet, error) {
	var raw pointSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("could not unmarshal point set: %w", err)
	}

	ps := &PointSet{
		Width:  raw.Canvas.Width,
		Height: raw.Canvas.Height,
	}

	for _, object := range raw.Objects {
		universe := -1
		if object.Universe != nil {
			universe = *object.Universe
		}

		var points []Point
		for _, p := range object.Points {
			if p.X < 0 || p.X >= float64(ps.Width) ||
				p.Y < 0 || p.Y >= float64(ps.Height) {
				continue
			}
			points = append(points, p)
		}
		if len(points) == 0 {
			continue
		}
		ps.Objects = append(ps.Objects, Object{Universe: universe, Points: points})
	}

	if len(ps.Flatten()) == 0 {
		return nil, ErrNoPoints
	}
	return ps, nil
}

// Flatten returns all points in object order.
func (ps *PointSet) Flatten() []Point {
	var points []Point
	for _, object := range ps.Objects {
		points = append(points, object.Points...)
	}
	return points
}

// Segment a run of consecutive points packed into one universe.
type Segment struct {
	Universe uint16
	Start    int // Index of the first point in the flat array.
	Count    int
}

// Partition assigns the flat point array to universes so no universe
// carries more than MaxChannels channel bytes. An object pinned to a
// universe starts a fresh segment there; unpinned objects continue the
// running assignment.
func (ps *PointSet) Partition(bytesPerPoint int) []Segment {
	maxPoints := MaxChannels / bytesPerPoint

	var segments []Segment
	next := uint16(0)
	index := 0

	open := func(universe uint16) *Segment {
		segments = append(segments, Segment{Universe: universe, Start: index})
		if universe >= next {
			next = universe + 1
		}
		return &segments[len(segments)-1]
	}

	var current *Segment
	for _, object := range ps.Objects {
		if object.Universe >= 0 {
			current = open(uint16(object.Universe))
		} else if current == nil {
			current = open(next)
		}

		for range object.Points {
			if current.Count == maxPoints {
				current = open(next)
			}
			current.Count++
			index++
		}
	}
	return segments
}

// BytesPerPoint for a bit depth.
func BytesPerPoint(bitDepth int) int {
	if bitDepth == 16 {
		return 6
	}
	return 3
}

// Sample samples img at every point with nearest-neighbor lookup and
// returns the flat point array. Out-of-canvas points emit zeros. 16-bit
// depth emits big-endian channel pairs.
func Sample(img *frame.RGB24, points []Point, bitDepth int) []byte {
	bytesPerPoint := BytesPerPoint(bitDepth)
	out := make([]byte, len(points)*bytesPerPoint)

	for i, p := range points {
		x := int(p.X + 0.5)
		y := int(p.Y + 0.5)
		rgb := img.RGB24At(x, y) // Zero value outside the image.

		offset := i * bytesPerPoint
		if bitDepth == 16 {
			// 8-bit samples widened to the full 16-bit range.
			binary.BigEndian.PutUint16(out[offset:], uint16(rgb.R)*257)
			binary.BigEndian.PutUint16(out[offset+2:], uint16(rgb.G)*257)
			binary.BigEndian.PutUint16(out[offset+4:], uint16(rgb.B)*257)
		} else {
			out[offset] = rgb.R
			out[offset+1] = rgb.G
			out[offset+2] = rgb.B
		}
	}
	return out
}
