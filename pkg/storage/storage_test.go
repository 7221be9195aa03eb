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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lvs/pkg/clip"
)

func TestNewConfigEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		env, err := NewConfigEnv("/tmp/env.yaml", []byte(""))
		require.NoError(t, err)
		require.Equal(t, "2020", env.Port)
		require.Equal(t, "ffmpeg", env.FFmpegBin)
		require.Equal(t, "255.255.255.255:6454", env.ArtnetAddress)
		require.Equal(t, 640, env.FrameWidth)
		require.Equal(t, 30.0, env.VideoFPS)
		require.True(t, filepath.IsAbs(env.ConfigDir))
	})
	t.Run("values", func(t *testing.T) {
		input := `
port: "8080"
frameWidth: 320
frameHeight: 240
artnetAddress: "10.0.0.9:6454"
`
		env, err := NewConfigEnv("/tmp/env.yaml", []byte(input))
		require.NoError(t, err)
		require.Equal(t, "8080", env.Port)
		require.Equal(t, 320, env.FrameWidth)
		require.Equal(t, "10.0.0.9:6454", env.ArtnetAddress)
	})
	t.Run("invalidYaml", func(t *testing.T) {
		_, err := NewConfigEnv("/tmp/env.yaml", []byte("{{"))
		require.Error(t, err)
	})
}

func TestSessionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	session := &Session{
		Players: map[string]PlayerSnapshot{
			"video":  {Playlist: []string{"a", "b"}, CurrentIndex: 1},
			"artnet": {Playlist: []string{"c"}, EnableArtnet: true},
		},
		Clips: map[string]*clip.Clip{
			"a": {
				ID:    "a",
				Owner: "video",
				Source: clip.SourceDescriptor{
					Kind: clip.KindVideo, AbsolutePath: "/media/a.mp4",
				},
				Effects: []*clip.Effect{{
					PluginID: "brightness",
					Params:   map[string]interface{}{"factor": 1.5},
					Enabled:  true,
					Sequences: map[string]clip.SequenceBinding{
						"factor": {
							Type:   "lfo",
							Config: json.RawMessage(`{"waveform":"sine","frequency_hz":1}`),
						},
					},
				}},
				TransitionOverride: &clip.TransitionOverride{
					PluginID: "wipe", Duration: 2,
				},
			},
		},
		MasterPlaylist: "video",
	}

	require.NoError(t, SaveSession(path, session))

	loaded, err := LoadSession(path)
	require.NoError(t, err)

	require.Equal(t, session.Players, loaded.Players)
	require.Equal(t, session.MasterPlaylist, loaded.MasterPlaylist)

	a := loaded.Clips["a"]
	require.NotNil(t, a)
	require.Equal(t, "a", a.ID)
	require.Equal(t, "video", a.Owner)
	require.Equal(t, session.Clips["a"].Source, a.Source)
	require.Equal(t, session.Clips["a"].TransitionOverride, a.TransitionOverride)

	require.Equal(t, 1, len(a.Effects))
	require.Equal(t, "brightness", a.Effects[0].PluginID)
	require.Equal(t, 1.5, a.Effects[0].Params.Float("factor"))

	// MarshalIndent reformats the raw sequence config, compare as JSON.
	binding := a.Effects[0].Sequences["factor"]
	require.Equal(t, "lfo", binding.Type)
	require.JSONEq(t,
		`{"waveform":"sine","frequency_hz":1}`, string(binding.Config))
}

func TestLoadSessionMissing(t *testing.T) {
	session, err := LoadSession(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Empty(t, session.Clips)
	require.Empty(t, session.Players)
}

func TestRestoreRegistry(t *testing.T) {
	registry := clip.NewRegistry(nil)
	session := &Session{
		Clips: map[string]*clip.Clip{
			"a": {ID: "a", Owner: "video"},
		},
	}
	session.RestoreRegistry(registry)
	require.True(t, registry.Exists("a"))
}
