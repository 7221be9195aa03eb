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
	"sync"
	"time"

	"lvs/pkg/clip"
	"lvs/pkg/log"
	"lvs/pkg/modulation"
)

// Player ids. The system owns exactly two playback engines.
const (
	IDVideo  = "video"
	IDArtnet = "artnet"
)

// ErrPlayerNotExist player id is not video or artnet.
var ErrPlayerNotExist = errors.New("player does not exist")

// Manager owns the two playback engines and the registry, mediates
// master/slave sync and drives the modulation engine.
type Manager struct {
	registry *clip.Registry
	engine   *modulation.Engine
	logger   *log.Logger

	players map[string]*Player

	mu     sync.Mutex
	master string // Empty when no master is selected.
}

// NewManager wires the players to the modulation engine and the clip-
// change callback.
func NewManager(
	registry *clip.Registry,
	engine *modulation.Engine,
	video *Player,
	artnet *Player,
	logger *log.Logger,
) *Manager {
	m := &Manager{
		registry: registry,
		engine:   engine,
		logger:   logger,
		players: map[string]*Player{
			IDVideo:  video,
			IDArtnet: artnet,
		},
	}

	hooks := Hooks{
		Activate:   engine.ActivateClip,
		Deactivate: engine.DeactivateClip,
	}
	for _, p := range m.players {
		p.SetHooks(hooks)
		p.SetOnClipChanged(m.onClipChanged)
	}
	return m
}

// Player returns the player with the given id.
func (m *Manager) Player(id string) (*Player, error) {
	p, exist := m.players[id]
	if !exist {
		return nil, ErrPlayerNotExist
	}
	return p, nil
}

// Players returns both players keyed by id.
func (m *Manager) Players() map[string]*Player {
	return m.players
}

// StartAll starts both run loops.
func (m *Manager) StartAll() error {
	for _, p := range m.players {
		if err := p.Start(); err != nil {
			return err
		}
	}
	return nil
}

// StopAll closes both players.
func (m *Manager) StopAll() {
	for _, p := range m.players {
		p.Close()
	}
}

// SetMaster selects the master player. The other player becomes slave
// and is immediately synchronized to the master's current index.
func (m *Manager) SetMaster(id string) error {
	if _, exist := m.players[id]; !exist {
		return ErrPlayerNotExist
	}

	m.mu.Lock()
	m.master = id
	m.mu.Unlock()

	m.logger.Info().Src("manager").Player(id).Msg("master selected")

	index := m.players[id].CurrentIndex()
	if index >= 0 {
		m.syncSlaves(id, index)
	}
	return nil
}

// ClearMaster disables master/slave sync.
func (m *Manager) ClearMaster() {
	m.mu.Lock()
	m.master = ""
	m.mu.Unlock()
}

// Master returns the master player id, empty when none.
func (m *Manager) Master() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.master
}

// onClipChanged runs on the changing player's goroutine. Slave loads
// are dispatched before it returns, so a slave never lags the master by
// more than one frame.
func (m *Manager) onClipChanged(playerID string, index int) {
	m.mu.Lock()
	master := m.master
	m.mu.Unlock()

	if master == "" || master != playerID {
		return
	}
	m.syncSlaves(master, index)
}

func (m *Manager) syncSlaves(master string, index int) {
	for id, p := range m.players {
		if id == master {
			continue
		}
		p.syncToIndex(index)
	}
}

// RunModulation drives the modulation engine until the context is
// canceled. Each tick evaluates every active sequence and writes the
// results into the registry, visible to the next rendered frame.
func (m *Manager) RunModulation(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := interval.Seconds()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.engine.Tick(dt)
		}
	}
}
