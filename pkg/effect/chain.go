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

package effect

import (
	"lvs/pkg/frame"
)

// State is the per-frame snapshot of one effect in a chain.
type State struct {
	PluginID string
	Enabled  bool
	Params   Params
}

// DemoteFunc disables an effect after repeated failures.
type DemoteFunc func(index int)

// LogFunc receives chain fault messages.
type LogFunc func(format string, v ...interface{})

// DefaultMaxFailures consecutive failures before an effect is demoted.
const DefaultMaxFailures = 30

// Chain owns the plugin instances for one effect chain. Parameter state
// lives in the clip registry; the chain is handed a fresh snapshot on
// every call and keeps its instances in sync with it.
type Chain struct {
	items       []*chainItem
	maxFailures int

	demote DemoteFunc
	logf   LogFunc
}

type chainItem struct {
	pluginID string
	plugin   Plugin
	failures int
	demoted  bool
}

// NewChain returns a chain.
func NewChain(demote DemoteFunc, logf LogFunc) *Chain {
	return &Chain{
		maxFailures: DefaultMaxFailures,
		demote:      demote,
		logf:        logf,
	}
}

// Apply runs img through each enabled effect in order. A plugin that
// fails is bypassed for the frame, and demoted once it has failed
// maxFailures consecutive times.
func (c *Chain) Apply(img *frame.RGB24, states []State) *frame.RGB24 {
	c.sync(states)

	for i, state := range states {
		if !state.Enabled {
			continue
		}
		item := c.items[i]
		if item.plugin == nil {
			continue
		}

		out, err := item.plugin.Apply(img, state.Params)
		if err != nil || out == nil {
			item.failures++
			c.logf("effect %v: %v", state.PluginID, err)
			if item.failures >= c.maxFailures && !item.demoted {
				item.demoted = true
				c.demote(i)
			}
			continue
		}

		item.failures = 0
		img = out
	}
	return img
}

// sync aligns plugin instances with the snapshot. Instances are
// constructed lazily and recreated when the chain is edited.
func (c *Chain) sync(states []State) {
	if len(c.items) > len(states) {
		c.items = c.items[:len(states)]
	}
	for i, state := range states {
		if i == len(c.items) {
			c.items = append(c.items, &chainItem{pluginID: state.PluginID})
		}
		item := c.items[i]
		if item.pluginID != state.PluginID {
			*item = chainItem{pluginID: state.PluginID}
		}
		if item.plugin == nil {
			plugin, err := New(state.PluginID)
			if err != nil {
				c.logf("effect %v: %v", state.PluginID, err)
				continue
			}
			item.plugin = plugin
		}
	}
}
