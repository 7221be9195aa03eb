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
	"lvs/pkg/effect"
	"lvs/pkg/frame"
	"lvs/pkg/source"
)

// runtimeLayer is the in-player state of one layer: its source and the
// plugin instances of its effect chain. Parameter state stays in the
// registry; the layer is handed a snapshot every frame.
type runtimeLayer struct {
	src   source.Source
	chain *effect.Chain

	blendMode string
	opacity   float64

	initialized bool
	initErr     error
	initLogged  bool
	endOfStream bool
	lastGood    *frame.RGB24
}

// ensureInit opens the source on first use. Initialization failure is
// remembered so the layer keeps emitting black instead of retrying the
// decoder every frame.
func (l *runtimeLayer) ensureInit() error {
	if l.initialized {
		return l.initErr
	}
	l.initialized = true
	l.initErr = l.src.Initialize()
	return l.initErr
}

// render produces the layer's contribution at the given size: source
// frame, resized, run through the effect chain. A source fault falls
// back to the last good frame or black; playback does not abort.
func (l *runtimeLayer) render(width, height int, states []effect.State, logf func(string, ...interface{})) *frame.RGB24 {
	if err := l.ensureInit(); err != nil {
		if !l.initLogged {
			l.initLogged = true
			logf("source init: %v", err)
		}
		return frame.New(width, height)
	}

	img, _, err := l.src.NextFrame()
	switch {
	case err == source.ErrEndOfStream:
		l.endOfStream = true
	case err != nil:
		logf("source read: %v", err)
		if l.lastGood != nil {
			img = l.lastGood
		} else {
			img = frame.New(width, height)
		}
	default:
		l.endOfStream = false
	}

	img = frame.Resize(img, width, height)
	l.lastGood = img

	return l.chain.Apply(img, states)
}

// close releases the source.
func (l *runtimeLayer) close() {
	l.src.Close() //nolint:errcheck
}
