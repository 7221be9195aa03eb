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

import "encoding/binary"

// Delta-encoding defaults.
const (
	DefaultThreshold8    = 8
	DefaultThreshold16   = 2048
	DefaultFullFrameSync = 30

	// Above this changed-point ratio a full frame is cheaper than
	// per-universe deltas.
	fullFrameRatio = 0.8
)

// Config delta-encoder settings, live-reconfigurable.
type Config struct {
	Enabled           bool `json:"enabled"`
	Threshold         int  `json:"threshold"`
	FullFrameInterval int  `json:"full_frame_interval"`
	BitDepth          int  `json:"bit_depth"` // 8 or 16.
}

// DefaultConfig .
func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		Threshold:         DefaultThreshold8,
		FullFrameInterval: DefaultFullFrameSync,
		BitDepth:          8,
	}
}

// deltaEncoder tracks the last transmitted point array. State is
// mutated only after successful transmission so a dropped packet is
// recovered on the next frame instead of being lost to the baseline.
type deltaEncoder struct {
	lastSent     []byte
	frameCounter int
}

// plan is the transmission decision for one frame.
type plan struct {
	full     bool
	segments []int // Indexes of changed segments, nil when full.
}

// sendNothing reports whether the plan transmits no universes.
func (p plan) sendNothing() bool {
	return !p.full && len(p.segments) == 0
}

// decide computes the transmission plan for the new point array.
func (e *deltaEncoder) decide(config Config, segments []Segment, data []byte) plan {
	if !config.Enabled || e.lastSent == nil || len(e.lastSent) != len(data) {
		return plan{full: true}
	}
	if config.FullFrameInterval > 0 &&
		(e.frameCounter+1)%config.FullFrameInterval == 0 {
		return plan{full: true}
	}

	bytesPerPoint := BytesPerPoint(config.BitDepth)
	totalPoints := len(data) / bytesPerPoint

	var changed []int
	changedPoints := 0
	for i, segment := range segments {
		segmentChanged := false
		for p := segment.Start; p < segment.Start+segment.Count; p++ {
			if e.pointDiff(data, p, bytesPerPoint, config.BitDepth) > config.Threshold {
				changedPoints++
				segmentChanged = true
			}
		}
		if segmentChanged {
			changed = append(changed, i)
		}
	}

	if totalPoints > 0 && float64(changedPoints)/float64(totalPoints) >= fullFrameRatio {
		return plan{full: true}
	}
	return plan{segments: changed}
}

// pointDiff returns the maximum channel difference between the new and
// last-sent values of one point.
func (e *deltaEncoder) pointDiff(data []byte, point, bytesPerPoint, bitDepth int) int {
	offset := point * bytesPerPoint
	max := 0

	if bitDepth == 16 {
		for c := 0; c < 3; c++ {
			newVal := int(binary.BigEndian.Uint16(data[offset+c*2:]))
			oldVal := int(binary.BigEndian.Uint16(e.lastSent[offset+c*2:]))
			if d := absInt(newVal - oldVal); d > max {
				max = d
			}
		}
		return max
	}

	for c := 0; c < 3; c++ {
		if d := absInt(int(data[offset+c]) - int(e.lastSent[offset+c])); d > max {
			max = d
		}
	}
	return max
}

// commit updates the baseline after a fully successful transmission.
func (e *deltaEncoder) commit(data []byte) {
	if e.lastSent == nil || len(e.lastSent) != len(data) {
		e.lastSent = make([]byte, len(data))
	}
	copy(e.lastSent, data)
	e.frameCounter++
}

// reset drops the baseline, forcing a full frame.
func (e *deltaEncoder) reset() {
	e.lastSent = nil
	e.frameCounter = 0
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
