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

package clip

import (
	"encoding/json"

	"lvs/pkg/effect"
)

// SourceKind kind of frame source.
type SourceKind string

// Source kinds.
const (
	KindVideo     SourceKind = "video"
	KindGenerator SourceKind = "generator"
)

// SourceDescriptor describes where a clip's frames come from.
type SourceDescriptor struct {
	Kind SourceKind `json:"kind"`

	// Video.
	AbsolutePath string `json:"absolute_path,omitempty"`
	RelativePath string `json:"relative_path,omitempty"`

	// Generator.
	PluginID      string        `json:"plugin_id,omitempty"`
	InitialParams effect.Params `json:"initial_params,omitempty"`
}

// SequenceBinding binds one effect parameter to a modulation sequence.
// Config is opaque to the registry; the modulation engine parses it when
// the owning clip becomes active.
type SequenceBinding struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// Effect one effect in a chain. Identity is the position in the chain.
type Effect struct {
	PluginID  string                     `json:"plugin_id"`
	Params    effect.Params              `json:"parameters"`
	Enabled   bool                       `json:"enabled"`
	Sequences map[string]SequenceBinding `json:"sequences,omitempty"`
}

func (e *Effect) clone() *Effect {
	sequences := make(map[string]SequenceBinding, len(e.Sequences))
	for k, v := range e.Sequences {
		sequences[k] = v
	}
	return &Effect{
		PluginID:  e.PluginID,
		Params:    e.Params.Clone(),
		Enabled:   e.Enabled,
		Sequences: sequences,
	}
}

// Layer is an overlay composited above the clip's base source.
type Layer struct {
	Source    SourceDescriptor `json:"source"`
	Effects   []*Effect        `json:"effects"`
	BlendMode string           `json:"blend_mode"`
	Opacity   float64          `json:"opacity"`
}

func (l *Layer) clone() *Layer {
	effects := make([]*Effect, len(l.Effects))
	for i, e := range l.Effects {
		effects[i] = e.clone()
	}
	return &Layer{
		Source:    l.Source,
		Effects:   effects,
		BlendMode: l.BlendMode,
		Opacity:   l.Opacity,
	}
}

// TransitionOverride overrides the playlist default transition for the
// transition into the clip.
type TransitionOverride struct {
	PluginID string  `json:"plugin_id"`
	Duration float64 `json:"duration"`
	Easing   string  `json:"easing"`
}

// Clip a unit of playable content. Owned by exactly one player.
type Clip struct {
	ID                 string              `json:"-"`
	Owner              string              `json:"owner"`
	Source             SourceDescriptor    `json:"source"`
	Effects            []*Effect           `json:"effects"`
	Layers             []*Layer            `json:"layers,omitempty"`
	TransitionOverride *TransitionOverride `json:"transition_override,omitempty"`
}

func (c *Clip) clone() *Clip {
	effects := make([]*Effect, len(c.Effects))
	for i, e := range c.Effects {
		effects[i] = e.clone()
	}
	layers := make([]*Layer, len(c.Layers))
	for i, l := range c.Layers {
		layers[i] = l.clone()
	}
	clone := &Clip{
		ID:      c.ID,
		Owner:   c.Owner,
		Source:  c.Source,
		Effects: effects,
		Layers:  layers,
	}
	if c.TransitionOverride != nil {
		override := *c.TransitionOverride
		clone.TransitionOverride = &override
	}
	return clone
}

// effectStates snapshots a chain for one frame render.
func effectStates(effects []*Effect) []effect.State {
	states := make([]effect.State, len(effects))
	for i, e := range effects {
		states[i] = effect.State{
			PluginID: e.PluginID,
			Enabled:  e.Enabled,
			Params:   e.Params.Clone(),
		}
	}
	return states
}
