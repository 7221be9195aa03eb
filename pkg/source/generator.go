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
	"fmt"
	"sort"
	"sync"
	"time"

	"lvs/pkg/effect"
	"lvs/pkg/frame"
)

// Generator procedurally produces frames. Stateless across seeks.
type Generator interface {
	// ProcessFrame renders the frame for the given time. dst may be nil,
	// in which case the generator allocates.
	ProcessFrame(dst *frame.RGB24, width, height int, timeS float64, frameNumber int, fps float64) *frame.RGB24
}

// NewGeneratorFunc constructs a generator with its initial parameters.
type NewGeneratorFunc func(params effect.Params) Generator

type generatorEntry struct {
	params []effect.Param
	new    NewGeneratorFunc
}

var (
	generators   = map[string]generatorEntry{}
	generatorsMu sync.Mutex
)

// ErrGeneratorNotExist generator plugin does not exist.
var ErrGeneratorNotExist = errors.New("generator plugin does not exist")

// RegisterGenerator registers a generator plugin.
// Called from plugin init functions.
func RegisterGenerator(id string, params []effect.Param, fn NewGeneratorFunc) {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	if _, exist := generators[id]; exist {
		panic(fmt.Sprintf("source: duplicate generator: %v", id))
	}
	generators[id] = generatorEntry{params: params, new: fn}
}

// GeneratorExists reports whether a generator is registered.
func GeneratorExists(id string) bool {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	_, exist := generators[id]
	return exist
}

// ListGenerators returns registered generator ids, sorted.
func ListGenerators() []string {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	ids := make([]string, 0, len(generators))
	for id := range generators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NewGeneratorSource returns a source wrapping the given generator
// plugin, producing frames of the caller-supplied size at the caller-
// supplied rate.
func NewGeneratorSource(
	pluginID string,
	params effect.Params,
	width int,
	height int,
	fps float64,
) (*GeneratorSource, error) {
	generatorsMu.Lock()
	entry, exist := generators[pluginID]
	generatorsMu.Unlock()
	if !exist {
		return nil, fmt.Errorf("%w: %v", ErrGeneratorNotExist, pluginID)
	}

	return &GeneratorSource{
		gen:    entry.new(params),
		width:  width,
		height: height,
		fps:    fps,
	}, nil
}

// GeneratorSource adapts a Generator to the Source interface.
type GeneratorSource struct {
	gen    Generator
	width  int
	height int
	fps    float64

	frameNumber int
}

// Initialize is a no-op, generators have no decoder.
func (g *GeneratorSource) Initialize() error { return nil }

// NextFrame renders the next procedural frame.
func (g *GeneratorSource) NextFrame() (*frame.RGB24, time.Duration, error) {
	start := time.Now()
	timeS := float64(g.frameNumber) / g.fps
	img := g.gen.ProcessFrame(nil, g.width, g.height, timeS, g.frameNumber, g.fps)
	g.frameNumber++
	return img, time.Since(start), nil
}

// Seek sets the frame number. Generators are stateless across seeks.
func (g *GeneratorSource) Seek(index int) error {
	g.frameNumber = index
	return nil
}

// Reset rewinds to frame zero.
func (g *GeneratorSource) Reset() error {
	g.frameNumber = 0
	return nil
}

// Info returns the generator description. Infinite, loopable.
func (g *GeneratorSource) Info() Info {
	return Info{
		Width:    g.width,
		Height:   g.height,
		Loopable: true,
	}
}

// Close .
func (g *GeneratorSource) Close() error { return nil }
