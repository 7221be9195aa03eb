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

package modulation

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"lvs/pkg/audio"
	"lvs/pkg/clip"
	"lvs/pkg/log"
)

// Target addresses one effect parameter.
type Target struct {
	ClipID      string `json:"clip_id"`
	LayerIndex  int    `json:"layer_index"` // -1 for the base chain.
	EffectIndex int    `json:"effect_index"`
	Param       string `json:"param"`
}

// Info describes an active sequence.
type Info struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Target Target `json:"target"`
}

type binding struct {
	id       string
	typ      string
	target   Target
	seq      Sequence
	fromClip string // Clip that loaded this binding, empty for globals.
	invalid  bool
}

// ErrSequenceNotExist sequence does not exist.
var ErrSequenceNotExist = errors.New("sequence does not exist")

// Engine owns the active sequences and writes their values into the
// clip registry each tick. Sequences are loaded when their owning clip
// becomes active on a player and unloaded when it leaves active state.
type Engine struct {
	registry *clip.Registry
	cache    *audio.FeatureCache
	log      *log.Logger

	mu       sync.Mutex
	bindings map[string]*binding
	clock    float64
}

// NewEngine .
func NewEngine(registry *clip.Registry, cache *audio.FeatureCache, logger *log.Logger) *Engine {
	engine := &Engine{
		registry: registry,
		cache:    cache,
		log:      logger,
		bindings: make(map[string]*binding),
	}
	registry.OnUnregister(engine.DeactivateClip)
	return engine
}

// ActivateClip loads the sequence bindings of a clip. Called when the
// clip becomes the active clip on a player.
func (e *Engine) ActivateClip(clipID string) {
	c, err := e.registry.Get(clipID)
	if err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	load := func(layerIndex int, effects []*clip.Effect) {
		for effectIndex, eff := range effects {
			for param, stored := range eff.Sequences {
				seq, err := ParseSequence(e.cache, stored)
				if err != nil {
					e.log.Warn().Src("modulation").
						Msgf("clip %v: %v.%v: %v", clipID, effectIndex, param, err)
					continue
				}
				id := uuid.NewString()
				e.bindings[id] = &binding{
					id:  id,
					typ: stored.Type,
					target: Target{
						ClipID:      clipID,
						LayerIndex:  layerIndex,
						EffectIndex: effectIndex,
						Param:       param,
					},
					seq:      seq,
					fromClip: clipID,
				}
			}
		}
	}

	load(-1, c.Effects)
	for layerIndex, layer := range c.Layers {
		load(layerIndex, layer.Effects)
	}
}

// DeactivateClip unloads every binding the clip loaded.
func (e *Engine) DeactivateClip(clipID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, b := range e.bindings {
		if b.fromClip == clipID {
			delete(e.bindings, id)
		}
	}
}

// Add registers a global sequence and returns its id.
func (e *Engine) Add(target Target, stored clip.SequenceBinding) (string, error) {
	seq, err := ParseSequence(e.cache, stored)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	id := uuid.NewString()
	e.bindings[id] = &binding{
		id:     id,
		typ:    stored.Type,
		target: target,
		seq:    seq,
	}
	return id, nil
}

// Remove removes a sequence by id.
func (e *Engine) Remove(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exist := e.bindings[id]; !exist {
		return ErrSequenceNotExist
	}
	delete(e.bindings, id)
	return nil
}

// List returns active sequences.
func (e *Engine) List() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	infos := make([]Info, 0, len(e.bindings))
	for _, b := range e.bindings {
		infos = append(infos, Info{ID: b.id, Type: b.typ, Target: b.target})
	}
	return infos
}

// Tick advances the clock by dt seconds and evaluates every active
// sequence, writing results into the registry. A binding whose target
// no longer resolves is marked invalid and skipped; it re-resolves by
// itself when the target reappears.
func (e *Engine) Tick(dt float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock += dt

	for _, b := range e.bindings {
		value := b.seq.Value(e.clock)

		err := e.registry.WriteParameter(
			b.target.ClipID,
			b.target.LayerIndex,
			b.target.EffectIndex,
			b.target.Param,
			value,
		)
		if err != nil {
			if !b.invalid {
				b.invalid = true
				e.log.Debug().Src("modulation").
					Msgf("target unresolved, sequence %v: %v", b.id, err)
			}
			continue
		}
		b.invalid = false
	}
}
