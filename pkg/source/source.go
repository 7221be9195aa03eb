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

package source

import (
	"errors"
	"time"

	"lvs/pkg/frame"
)

// Info describes a source.
type Info struct {
	Width      int
	Height     int
	FPS        float64 // Zero for generators.
	FrameCount int     // Zero if unknown or infinite.
	Loopable   bool
}

// ErrEndOfStream is returned by NextFrame together with the last frame
// when a finite source is exhausted. The playback engine decides whether
// to loop or advance the playlist.
var ErrEndOfStream = errors.New("end of stream")

// Source produces timestamped RGB frames on demand.
//
// A source is owned by exactly one goroutine; callers serialize access.
// Many decoder libraries are not re-entrant, so a source must never be
// shared between goroutines, even behind a lock.
type Source interface {
	// Initialize opens the underlying media. Idempotent, performed at
	// most once. Deferred until the player actually starts so two
	// players referencing the same file never race on the decoder.
	Initialize() error

	// NextFrame returns the next frame and the source latency.
	NextFrame() (*frame.RGB24, time.Duration, error)

	// Seek repositions to the given frame index. Video only.
	Seek(index int) error

	// Reset rewinds to the first frame.
	Reset() error

	// Info returns the source description.
	Info() Info

	// Close releases the decoder.
	Close() error
}
