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
	"time"

	"lvs/pkg/frame"
	"lvs/pkg/transition"
)

// transitionManager drives an in-progress cross-fade between the
// outgoing and incoming clip. State machine: idle -> running -> idle.
// Owned by the player goroutine.
type transitionManager struct {
	running  bool
	plugin   transition.Plugin
	easing   transition.EasingFunc
	duration time.Duration
	started  time.Time
	outgoing *frame.RGB24

	now func() time.Time
}

// start captures the outgoing frame and begins a transition. A running
// transition is aborted; the capture is the current composited frame,
// so a mid-transition clip change continues seamlessly.
func (t *transitionManager) start(
	outgoing *frame.RGB24,
	pluginID string,
	duration time.Duration,
	easing string,
) error {
	plugin, err := transition.New(pluginID)
	if err != nil {
		return err
	}

	t.plugin = plugin
	t.easing = transition.Easing(easing)
	t.duration = duration
	t.started = t.now()
	t.outgoing = outgoing
	t.running = duration > 0
	return nil
}

// blend maps wall-clock progress through the easing function and blends
// the captured outgoing frame with the incoming frame. Past the
// duration the state returns to idle and frames come from the incoming
// clip alone.
func (t *transitionManager) blend(incoming *frame.RGB24) *frame.RGB24 {
	if !t.running {
		return incoming
	}

	progress := float64(t.now().Sub(t.started)) / float64(t.duration)
	if progress >= 1 {
		t.running = false
		t.outgoing = nil
		return incoming
	}

	return t.plugin.Blend(t.outgoing, incoming, t.easing(progress))
}

// abort cancels a running transition.
func (t *transitionManager) abort() {
	t.running = false
	t.outgoing = nil
}
