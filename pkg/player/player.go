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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lvs/pkg/clip"
	"lvs/pkg/effect"
	"lvs/pkg/frame"
	"lvs/pkg/log"
	"lvs/pkg/source"
)

// State playback state.
type State string

// Playback states.
const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Errors.
var (
	ErrRunning    = errors.New("player is already running")
	ErrIndexRange = errors.New("clip index out of range")
)

// SourceFactory builds a frame source from a descriptor. Injected so
// tests can substitute fakes and so the player package stays decoupled
// from the decode backend wiring.
type SourceFactory func(desc clip.SourceDescriptor, width, height int, fps float64) (source.Source, error)

// Hooks wire clip activation into the modulation engine.
type Hooks struct {
	Activate   func(clipID string)
	Deactivate func(clipID string)
}

// OnClipChangedFunc notifies the manager of a clip-index change.
type OnClipChangedFunc func(playerID string, index int)

// Config player construction parameters.
type Config struct {
	ID           string
	Width        int
	Height       int
	FPSCap       float64
	EnableArtnet bool // Immutable after construction.
	LoopPlaylist bool
}

// Player renders one clip at a time to a downstream consumer. The run
// loop owns all playback state; external requests are serialized
// through a command channel and processed between frames.
type Player struct {
	Config Config

	registry  *clip.Registry
	newSource SourceFactory
	logger    *log.Logger

	hooks         Hooks
	onClipChanged OnClipChangedFunc
	publish       func(*frame.RGB24)

	commands chan func()
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// Guards the externally visible snapshot: last frame, state,
	// playlist and index. Written only by the run loop goroutine.
	mu           sync.Mutex
	lastFrame    *frame.RGB24
	state        State
	stoppedBlack bool
	playlist     []string
	currentIndex int

	// Run-loop-owned state.
	clipID            string
	base              *runtimeLayer
	overlays          []*runtimeLayer
	trans             transitionManager
	defaultTransition clip.TransitionOverride
	black             *frame.RGB24
	now               func() time.Time
}

// New returns a stopped player.
func New(config Config, registry *clip.Registry, newSource SourceFactory, logger *log.Logger) *Player {
	p := &Player{
		Config:       config,
		registry:     registry,
		newSource:    newSource,
		logger:       logger,
		commands:     make(chan func(), 16),
		state:        StateIdle,
		currentIndex: -1,
		black:        frame.New(config.Width, config.Height),
		now:          time.Now,
	}
	p.trans.now = p.now
	return p
}

// SetHooks sets the modulation wiring. Must be called before Start.
func (p *Player) SetHooks(hooks Hooks) {
	p.hooks = hooks
}

// SetOnClipChanged sets the manager callback. Must be called before Start.
func (p *Player) SetOnClipChanged(fn OnClipChangedFunc) {
	p.onClipChanged = fn
}

// SetOutput sets the downstream frame consumer. Must be called before
// Start.
func (p *Player) SetOutput(fn func(*frame.RGB24)) {
	p.publish = fn
}

// Start spawns the run loop.
func (p *Player) Start() error {
	if p.cancel != nil {
		return ErrRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info().Src("player").Player(p.Config.ID).Msg("started")
	return nil
}

// Close cancels the run loop, which unloads the clip on exit, and joins
// it. Commands still queued on the command channel are not run.
func (p *Player) Close() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	p.cancel = nil
	p.logger.Info().Src("player").Player(p.Config.ID).Msg("stopped")
}

// run is the playback loop. One fixed-interval tick per frame; the
// ticker drops missed ticks, so an overrun never causes a catch-up
// burst. Commands execute between frames.
func (p *Player) run(ctx context.Context) {
	defer p.wg.Done()

	interval := time.Duration(float64(time.Second) / p.Config.FPSCap)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.unloadClip()
			return
		case cmd := <-p.commands:
			cmd()
		case <-ticker.C:
			p.renderTick()
		}
	}
}

// do runs fn on the run loop and waits for it.
func (p *Player) do(fn func()) {
	done := make(chan struct{})
	p.commands <- func() {
		fn()
		close(done)
	}
	<-done
}

// enqueue schedules fn on the run loop without waiting. Used by the
// manager so master/slave dispatch never blocks the master's frame.
func (p *Player) enqueue(fn func()) {
	p.commands <- fn
}

func (p *Player) logf(format string, v ...interface{}) {
	p.logger.Error().Src("player").Player(p.Config.ID).Msgf(format, v...)
}

// renderTick renders and publishes one frame.
func (p *Player) renderTick() {
	p.mu.Lock()
	state := p.state
	stopped := p.stoppedBlack
	last := p.lastFrame
	p.mu.Unlock()

	if stopped {
		p.publishFrame(p.black)
		return
	}

	if state != StatePlaying {
		// Emit the last frame for preview continuity.
		if last != nil {
			p.publishFrame(last)
		}
		return
	}

	if p.base == nil {
		p.publishFrame(p.black)
		return
	}

	img := p.renderFrame()
	if img == nil {
		return
	}

	p.mu.Lock()
	p.lastFrame = img
	p.mu.Unlock()

	p.publishFrame(img)

	if p.base.endOfStream {
		p.advance()
	}
}

// renderFrame composites the active clip's layers, applies the effect
// pipeline and the running transition.
func (p *Player) renderFrame() *frame.RGB24 {
	width, height := p.Config.Width, p.Config.Height

	baseStates, layerStates, err := p.registry.Snapshot(p.clipID)
	if err != nil {
		// Clip was unregistered under us.
		p.logf("active clip lost: %v", err)
		p.unloadClip()
		p.setState(StateIdle)
		return p.black
	}

	img := p.base.render(width, height, baseStates, p.logf)

	for i, overlay := range p.overlays {
		var states []effect.State
		if i < len(layerStates) {
			states = layerStates[i]
		}
		contribution := overlay.render(width, height, states, p.logf)
		img = Composite(img, contribution, overlay.blendMode, overlay.opacity)
	}

	return p.trans.blend(img)
}

func (p *Player) publishFrame(img *frame.RGB24) {
	if p.publish != nil {
		p.publish(img)
	}
}

// advance moves to the next playlist entry, wrapping when the playlist
// loops. At the end of a non-looping playlist the player goes idle on
// its last frame.
func (p *Player) advance() {
	p.mu.Lock()
	next := p.currentIndex + 1
	length := len(p.playlist)
	p.mu.Unlock()

	if next >= length {
		if !p.Config.LoopPlaylist {
			p.setState(StateIdle)
			return
		}
		next = 0
	}
	if err := p.loadClipByIndex(next); err != nil {
		p.logf("could not advance playlist: %v", err)
		p.setState(StateIdle)
	}
}

// loadClipByIndex loads the playlist entry at index. Runs on the run
// loop. The transition into the new clip is configured before the load
// so the capture-blend pipeline is ready: the clip's override wins over
// the playlist default.
func (p *Player) loadClipByIndex(index int) error {
	p.mu.Lock()
	playlist := p.playlist
	last := p.lastFrame
	p.mu.Unlock()

	if index < 0 || index >= len(playlist) {
		return fmt.Errorf("%w: %v", ErrIndexRange, index)
	}
	clipID := playlist[index]

	record, err := p.registry.Get(clipID)
	if err != nil {
		return err
	}

	t := p.defaultTransition
	if record.TransitionOverride != nil {
		t = *record.TransitionOverride
	}
	if last != nil && t.PluginID != "" {
		p.trans.abort()
		duration := time.Duration(t.Duration * float64(time.Second))
		if err := p.trans.start(last.Clone(), t.PluginID, duration, t.Easing); err != nil {
			p.logf("could not start transition: %v", err)
		}
	}

	p.unloadClip()

	p.base = p.buildLayer(clipID, -1, record.Source, BlendNormal, 1)
	for i, layer := range record.Layers {
		p.overlays = append(p.overlays,
			p.buildLayer(clipID, i, layer.Source, layer.BlendMode, layer.Opacity))
	}

	p.clipID = clipID
	p.mu.Lock()
	p.currentIndex = index
	p.stoppedBlack = false
	p.mu.Unlock()

	if p.hooks.Activate != nil {
		p.hooks.Activate(clipID)
	}
	if p.onClipChanged != nil {
		p.onClipChanged(p.Config.ID, index)
	}
	return nil
}

// buildLayer constructs the runtime state for one layer. A factory
// fault yields a black layer; playback does not abort.
func (p *Player) buildLayer(
	clipID string,
	layerIndex int,
	desc clip.SourceDescriptor,
	blendMode string,
	opacity float64,
) *runtimeLayer {
	demote := func(effectIndex int) {
		err := p.registry.SetEffectEnabled(clipID, layerIndex, effectIndex, false)
		if err == nil {
			p.logger.Warn().Src("player").Player(p.Config.ID).
				Msgf("effect %v demoted after repeated failures", effectIndex)
		}
	}
	layer := &runtimeLayer{
		chain:     effect.NewChain(demote, p.logf),
		blendMode: blendMode,
		opacity:   opacity,
	}

	src, err := p.newSource(desc, p.Config.Width, p.Config.Height, p.Config.FPSCap)
	if err != nil {
		p.logf("could not build source: %v", err)
		layer.src = blackSource{width: p.Config.Width, height: p.Config.Height}
		return layer
	}
	layer.src = src
	return layer
}

// unloadClip tears down the runtime layers and unloads bound sequences.
func (p *Player) unloadClip() {
	if p.base != nil {
		p.base.close()
		p.base = nil
	}
	for _, overlay := range p.overlays {
		overlay.close()
	}
	p.overlays = nil

	if p.clipID != "" {
		if p.hooks.Deactivate != nil {
			p.hooks.Deactivate(p.clipID)
		}
		p.clipID = ""
	}
}

func (p *Player) setState(state State) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

// Play starts playback. Loads the first playlist entry if nothing is
// loaded yet.
func (p *Player) Play() {
	p.do(func() {
		p.mu.Lock()
		index := p.currentIndex
		length := len(p.playlist)
		p.mu.Unlock()

		if index == -1 && length > 0 {
			if err := p.loadClipByIndex(0); err != nil {
				p.logf("could not load clip: %v", err)
				return
			}
		}
		p.setState(StatePlaying)
	})
}

// Pause pauses playback, the last frame keeps being emitted.
func (p *Player) Pause() {
	p.do(func() {
		p.setState(StatePaused)
	})
}

// Stop halts playback and unloads the clip.
func (p *Player) Stop() {
	p.do(func() {
		p.trans.abort()
		p.unloadClip()
		p.mu.Lock()
		p.state = StateIdle
		p.currentIndex = -1
		p.mu.Unlock()
	})
}

// LoadClip loads the playlist entry at index, triggering the
// transition manager.
func (p *Player) LoadClip(index int) error {
	var err error
	p.do(func() {
		err = p.loadClipByIndex(index)
	})
	return err
}

// SetPlaylist replaces the playlist. The current index is preserved if
// still valid, reset otherwise.
func (p *Player) SetPlaylist(clipIDs []string) {
	p.do(func() {
		p.mu.Lock()
		p.playlist = append([]string(nil), clipIDs...)
		if p.currentIndex >= len(p.playlist) {
			p.currentIndex = -1
		}
		p.mu.Unlock()
	})
}

// Append appends a clip to the playlist.
func (p *Player) Append(clipID string) {
	p.do(func() {
		p.mu.Lock()
		p.playlist = append(p.playlist, clipID)
		p.mu.Unlock()
	})
}

// SetDefaultTransition sets the playlist default transition.
func (p *Player) SetDefaultTransition(t clip.TransitionOverride) {
	p.do(func() {
		p.defaultTransition = t
	})
}

// syncToIndex is the slave side of master/slave sync. Loads the clip at
// the master's index, or stops on black when the index is out of range.
// Async so the master's frame is never blocked on a slave.
func (p *Player) syncToIndex(index int) {
	p.enqueue(func() {
		p.mu.Lock()
		length := len(p.playlist)
		p.mu.Unlock()

		if index >= length {
			p.mu.Lock()
			p.stoppedBlack = true
			p.mu.Unlock()
			return
		}
		if err := p.loadClipByIndex(index); err != nil {
			p.logf("could not sync to master: %v", err)
		}
	})
}

// State returns the playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentIndex returns the current clip index, -1 when nothing is
// loaded.
func (p *Player) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentIndex
}

// Playlist returns a copy of the playlist.
func (p *Player) Playlist() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.playlist...)
}

// Stopped reports whether master/slave sync stopped the player on an
// out-of-range index. A stopped player emits black.
func (p *Player) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stoppedBlack
}

// LastFrame returns the last emitted frame, nil before the first
// render. Used by the preview endpoint and the Art-Net delta encoder.
func (p *Player) LastFrame() *frame.RGB24 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFrame
}

// blackSource substitutes for a source that could not be built.
type blackSource struct {
	width  int
	height int
}

func (s blackSource) Initialize() error { return nil }

func (s blackSource) NextFrame() (*frame.RGB24, time.Duration, error) {
	return frame.New(s.width, s.height), 0, nil
}

func (s blackSource) Seek(int) error { return nil }
func (s blackSource) Reset() error   { return nil }
func (s blackSource) Close() error   { return nil }

func (s blackSource) Info() source.Info {
	return source.Info{Width: s.width, Height: s.height, Loopable: true}
}
