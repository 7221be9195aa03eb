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

package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"lvs/pkg/clip"
)

// PlayerSnapshot persisted per-player state.
type PlayerSnapshot struct {
	Playlist     []string `json:"playlist"`
	CurrentIndex int      `json:"current_index"`
	EnableArtnet bool     `json:"enable_artnet"`
}

// Session one project's persisted state. Loading restores the clip
// registry and playlists; sequences are wired into the modulation
// engine when each clip first becomes active. Playback resumes paused
// at index 0.
type Session struct {
	Players        map[string]PlayerSnapshot `json:"players"`
	Clips          map[string]*clip.Clip     `json:"clips"`
	MasterPlaylist string                    `json:"master_playlist,omitempty"`
}

// SaveSession writes the session document.
func SaveSession(path string, session *Session) error {
	data, err := json.MarshalIndent(session, "", "    ")
	if err != nil {
		return fmt.Errorf("could not marshal session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("could not write session: %w", err)
	}
	return nil
}

// LoadSession reads the session document. A missing file is not an
// error and returns an empty session.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Session{
			Players: map[string]PlayerSnapshot{},
			Clips:   map[string]*clip.Clip{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("could not unmarshal session: %w", err)
	}
	if session.Players == nil {
		session.Players = map[string]PlayerSnapshot{}
	}
	if session.Clips == nil {
		session.Clips = map[string]*clip.Clip{}
	}

	// Clip ids live in the map keys.
	for id, c := range session.Clips {
		c.ID = id
	}
	return &session, nil
}

// RestoreRegistry installs the session's clips into the registry.
func (s *Session) RestoreRegistry(registry *clip.Registry) {
	for _, c := range s.Clips {
		registry.Restore(c)
	}
}
