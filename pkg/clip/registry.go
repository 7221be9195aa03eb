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
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"lvs/pkg/effect"
	"lvs/pkg/source"
)

// Errors.
var (
	ErrNotExist       = errors.New("clip does not exist")
	ErrEffectNotExist = errors.New("effect does not exist")
	ErrLayerNotExist  = errors.New("layer does not exist")
	ErrBadOrder       = errors.New("invalid effect order")
)

// UnregisterHook is called after a clip is removed, so bound sequences
// can be unloaded.
type UnregisterHook func(clipID string)

// Registry maps clip ids to clip records.
//
// The registry is read on every rendered frame and mutated by the
// control surface. Mutations take the write lock; playback engines read
// a stable snapshot per frame under the read lock.
type Registry struct {
	mu    sync.RWMutex
	clips map[string]*Clip

	// Effects installed on clips at registration, per owning player.
	defaultEffects map[string][]string

	unregisterHooks []UnregisterHook
}

// NewRegistry returns a registry. defaultEffects maps a player id to
// the effect plugins installed on newly registered clips.
func NewRegistry(defaultEffects map[string][]string) *Registry {
	return &Registry{
		clips:          make(map[string]*Clip),
		defaultEffects: defaultEffects,
	}
}

// OnUnregister registers a hook called when a clip is removed.
func (r *Registry) OnUnregister(hook UnregisterHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterHooks = append(r.unregisterHooks, hook)
}

// Register allocates a fresh UUID, installs the owner's default effects
// and returns the id.
func (r *Registry) Register(owner string, src SourceDescriptor) (string, error) {
	if src.Kind == KindGenerator && !source.GeneratorExists(src.PluginID) {
		return "", fmt.Errorf("%w: %v", effect.ErrNotExist, src.PluginID)
	}

	var effects []*Effect
	for _, pluginID := range r.defaultEffects[owner] {
		params, err := effect.Defaults(pluginID)
		if err != nil {
			return "", err
		}
		effects = append(effects, &Effect{
			PluginID:  pluginID,
			Params:    params,
			Enabled:   true,
			Sequences: map[string]SequenceBinding{},
		})
	}

	id := uuid.NewString()
	c := &Clip{
		ID:      id,
		Owner:   owner,
		Source:  src,
		Effects: effects,
	}

	r.mu.Lock()
	r.clips[id] = c
	r.mu.Unlock()

	return id, nil
}

// Unregister removes the clip and cascades to unloading bound sequences.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	_, exist := r.clips[id]
	if !exist {
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	delete(r.clips, id)
	hooks := r.unregisterHooks
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(id)
	}
	return nil
}

// Get returns a snapshot-safe deep copy of the clip.
func (r *Registry) Get(id string) (*Clip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, exist := r.clips[id]
	if !exist {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	return c.clone(), nil
}

// Exists reports whether the clip is registered.
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exist := r.clips[id]
	return exist
}

// List returns snapshot copies of all clips, keyed by id.
func (r *Registry) List() map[string]*Clip {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clips := make(map[string]*Clip, len(r.clips))
	for id, c := range r.clips {
		clips[id] = c.clone()
	}
	return clips
}

// locate returns the effect chain holding the given layer index.
// Layer index -1 addresses the clip's base chain. Caller must hold mu.
func (r *Registry) locate(id string, layerIndex int) ([]*Effect, error) {
	c, exist := r.clips[id]
	if !exist {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	if layerIndex < 0 {
		return c.Effects, nil
	}
	if layerIndex >= len(c.Layers) {
		return nil, fmt.Errorf("%w: %v layer %v", ErrLayerNotExist, id, layerIndex)
	}
	return c.Layers[layerIndex].Effects, nil
}

// AddEffect appends a plugin to the clip's base chain and returns the
// new effect index.
func (r *Registry) AddEffect(id string, pluginID string) (int, error) {
	if !effect.Exists(pluginID) {
		return 0, fmt.Errorf("%w: %v", effect.ErrNotExist, pluginID)
	}
	params, err := effect.Defaults(pluginID)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	c, exist := r.clips[id]
	if !exist {
		return 0, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	c.Effects = append(c.Effects, &Effect{
		PluginID:  pluginID,
		Params:    params,
		Enabled:   true,
		Sequences: map[string]SequenceBinding{},
	})
	return len(c.Effects) - 1, nil
}

// UpdateParameter type-checks value against the plugin schema and
// writes it. Rejects out-of-range values.
func (r *Registry) UpdateParameter(id string, effectIndex int, name string, value interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateParameter(id, -1, effectIndex, name, value)
}

// UpdateLayerParameter is UpdateParameter addressing a layer chain.
func (r *Registry) UpdateLayerParameter(id string, layerIndex, effectIndex int, name string, value interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateParameter(id, layerIndex, effectIndex, name, value)
}

func (r *Registry) updateParameter(id string, layerIndex, effectIndex int, name string, value interface{}) error {
	chain, err := r.locate(id, layerIndex)
	if err != nil {
		return err
	}
	if effectIndex < 0 || effectIndex >= len(chain) {
		return fmt.Errorf("%w: %v index %v", ErrEffectNotExist, id, effectIndex)
	}
	e := chain[effectIndex]

	normalized, err := effect.Validate(e.PluginID, name, value)
	if err != nil {
		return err
	}
	e.Params[name] = normalized
	return nil
}

// WriteParameter writes a modulated value, clamped into the plugin's
// declared range. Returns ErrNotExist/ErrEffectNotExist when the target
// path no longer resolves.
func (r *Registry) WriteParameter(id string, layerIndex, effectIndex int, name string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chain, err := r.locate(id, layerIndex)
	if err != nil {
		return err
	}
	if effectIndex < 0 || effectIndex >= len(chain) {
		return fmt.Errorf("%w: %v index %v", ErrEffectNotExist, id, effectIndex)
	}
	e := chain[effectIndex]
	e.Params[name] = effect.Clamp(e.PluginID, name, value)
	return nil
}

// RemoveEffect removes the effect at index from the base chain.
func (r *Registry) RemoveEffect(id string, effectIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exist := r.clips[id]
	if !exist {
		return fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	if effectIndex < 0 || effectIndex >= len(c.Effects) {
		return fmt.Errorf("%w: %v index %v", ErrEffectNotExist, id, effectIndex)
	}
	c.Effects = append(c.Effects[:effectIndex], c.Effects[effectIndex+1:]...)
	return nil
}

// ClearEffects removes all effects from the base chain.
func (r *Registry) ClearEffects(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exist := r.clips[id]
	if !exist {
		return fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	c.Effects = nil
	return nil
}

// ReorderEffects permutes the base chain. order must be a permutation
// of the current indexes.
func (r *Registry) ReorderEffects(id string, order []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exist := r.clips[id]
	if !exist {
		return fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	if len(order) != len(c.Effects) {
		return ErrBadOrder
	}

	seen := make([]bool, len(order))
	reordered := make([]*Effect, len(order))
	for i, from := range order {
		if from < 0 || from >= len(order) || seen[from] {
			return ErrBadOrder
		}
		seen[from] = true
		reordered[i] = c.Effects[from]
	}
	c.Effects = reordered
	return nil
}

// SetEffectEnabled enables or disables one effect. Layer index -1
// addresses the base chain.
func (r *Registry) SetEffectEnabled(id string, layerIndex, effectIndex int, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain, err := r.locate(id, layerIndex)
	if err != nil {
		return err
	}
	if effectIndex < 0 || effectIndex >= len(chain) {
		return fmt.Errorf("%w: %v index %v", ErrEffectNotExist, id, effectIndex)
	}
	chain[effectIndex].Enabled = enabled
	return nil
}

// AttachSequence binds a modulation sequence to an effect parameter.
func (r *Registry) AttachSequence(id string, effectIndex int, name string, binding SequenceBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain, err := r.locate(id, -1)
	if err != nil {
		return err
	}
	if effectIndex < 0 || effectIndex >= len(chain) {
		return fmt.Errorf("%w: %v index %v", ErrEffectNotExist, id, effectIndex)
	}
	e := chain[effectIndex]
	if e.Sequences == nil {
		e.Sequences = map[string]SequenceBinding{}
	}
	e.Sequences[name] = binding
	return nil
}

// DetachSequence removes the binding from an effect parameter.
func (r *Registry) DetachSequence(id string, effectIndex int, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain, err := r.locate(id, -1)
	if err != nil {
		return err
	}
	if effectIndex < 0 || effectIndex >= len(chain) {
		return fmt.Errorf("%w: %v index %v", ErrEffectNotExist, id, effectIndex)
	}
	delete(chain[effectIndex].Sequences, name)
	return nil
}

// ListEffects returns snapshot copies of the base chain.
func (r *Registry) ListEffects(id string) ([]*Effect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, exist := r.clips[id]
	if !exist {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	effects := make([]*Effect, len(c.Effects))
	for i, e := range c.Effects {
		effects[i] = e.clone()
	}
	return effects, nil
}

// GetParameters returns a copy of the parameter map of one effect.
func (r *Registry) GetParameters(id string, effectIndex int) (effect.Params, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, exist := r.clips[id]
	if !exist {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	if effectIndex < 0 || effectIndex >= len(c.Effects) {
		return nil, fmt.Errorf("%w: %v index %v", ErrEffectNotExist, id, effectIndex)
	}
	return c.Effects[effectIndex].Params.Clone(), nil
}

// SetTransitionOverride sets or clears the clip's transition override.
func (r *Registry) SetTransitionOverride(id string, override *TransitionOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exist := r.clips[id]
	if !exist {
		return fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	c.TransitionOverride = override
	return nil
}

// AddLayer appends an overlay layer.
func (r *Registry) AddLayer(id string, layer *Layer) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exist := r.clips[id]
	if !exist {
		return 0, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	c.Layers = append(c.Layers, layer.clone())
	return len(c.Layers) - 1, nil
}

// RemoveLayer removes the overlay layer at index.
func (r *Registry) RemoveLayer(id string, layerIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exist := r.clips[id]
	if !exist {
		return fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	if layerIndex < 0 || layerIndex >= len(c.Layers) {
		return fmt.Errorf("%w: %v layer %v", ErrLayerNotExist, id, layerIndex)
	}
	c.Layers = append(c.Layers[:layerIndex], c.Layers[layerIndex+1:]...)
	return nil
}

// Snapshot returns the per-frame render state of the clip: the base
// chain states and the states of each overlay chain. Taken under a
// single read lock so a frame never sees a half-applied mutation.
func (r *Registry) Snapshot(id string) ([]effect.State, [][]effect.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, exist := r.clips[id]
	if !exist {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	base := effectStates(c.Effects)
	layers := make([][]effect.State, len(c.Layers))
	for i, l := range c.Layers {
		layers[i] = effectStates(l.Effects)
	}
	return base, layers, nil
}

// Restore installs a clip with a preassigned id. Used by session load.
func (r *Registry) Restore(c *Clip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clips[c.ID] = c.clone()
}
