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

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "lvs/addons/effects"
	"lvs/pkg/audio"
	"lvs/pkg/clip"
	"lvs/pkg/frame"
	"lvs/pkg/log"
	"lvs/pkg/modulation"
	"lvs/pkg/player"
	"lvs/pkg/source"
)

type nullSource struct{ img *frame.RGB24 }

func (s nullSource) Initialize() error { return nil }
func (s nullSource) NextFrame() (*frame.RGB24, time.Duration, error) {
	return s.img.Clone(), 0, nil
}
func (s nullSource) Seek(int) error { return nil }
func (s nullSource) Reset() error   { return nil }
func (s nullSource) Close() error   { return nil }
func (s nullSource) Info() source.Info {
	return source.Info{Width: s.img.Width(), Height: s.img.Height()}
}

type fixture struct {
	registry *clip.Registry
	manager  *player.Manager
	engine   *modulation.Engine
	analyzer *audio.Analyzer
	cache    *audio.FeatureCache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := log.NewMockLogger()
	logger.Start(ctx)

	registry := clip.NewRegistry(nil)
	cache := audio.NewFeatureCache()
	engine := modulation.NewEngine(registry, cache, logger)
	analyzer := audio.NewAnalyzer(cache, logger)

	factory := func(clip.SourceDescriptor, int, int, float64) (source.Source, error) {
		return nullSource{img: frame.New(2, 1)}, nil
	}

	video := player.New(player.Config{
		ID: player.IDVideo, Width: 2, Height: 1, FPSCap: 100,
	}, registry, factory, logger)
	artnet := player.New(player.Config{
		ID: player.IDArtnet, Width: 2, Height: 1, FPSCap: 100, EnableArtnet: true,
	}, registry, factory, logger)

	manager := player.NewManager(registry, engine, video, artnet, logger)
	require.NoError(t, manager.StartAll())
	t.Cleanup(manager.StopAll)

	return &fixture{
		registry: registry,
		manager:  manager,
		engine:   engine,
		analyzer: analyzer,
		cache:    cache,
	}
}

func doRequest(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func TestPlayerAPI(t *testing.T) {
	f := newFixture(t)
	handler := PlayerAPI(f.manager, f.registry)

	t.Run("unknownPlayer", func(t *testing.T) {
		w := doRequest(handler, http.MethodPost, "/api/player/nope/play", "")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("clipLifecycle", func(t *testing.T) {
		body := `{"kind":"video","absolute_path":"/media/a.mp4"}`
		w := doRequest(handler, http.MethodPost, "/api/player/video/clip/load", body)
		require.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		clipID := response["id"]
		require.NotEmpty(t, clipID)
		require.True(t, f.registry.Exists(clipID))

		// Append an effect.
		w = doRequest(handler, http.MethodPost,
			"/api/player/video/clip/"+clipID+"/effects", `{"plugin_id":"brightness"}`)
		require.Equal(t, http.StatusOK, w.Code)

		// Update a parameter in range.
		w = doRequest(handler, http.MethodPut,
			"/api/player/video/clip/"+clipID+"/effects/0",
			`{"name":"factor","value":2.5}`)
		require.Equal(t, http.StatusOK, w.Code)

		params, err := f.registry.GetParameters(clipID, 0)
		require.NoError(t, err)
		require.Equal(t, 2.5, params.Float("factor"))

		// Out of range is rejected at the boundary with no state change.
		w = doRequest(handler, http.MethodPut,
			"/api/player/video/clip/"+clipID+"/effects/0",
			`{"name":"factor","value":50}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		params, err = f.registry.GetParameters(clipID, 0)
		require.NoError(t, err)
		require.Equal(t, 2.5, params.Float("factor"))

		// Playback control and status.
		w = doRequest(handler, http.MethodPost, "/api/player/video/play", "")
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(handler, http.MethodGet, "/api/player/video/status", "")
		require.Equal(t, http.StatusOK, w.Code)

		var status struct {
			State    string   `json:"state"`
			Playlist []string `json:"playlist"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
		require.Equal(t, "playing", status.State)
		require.Equal(t, []string{clipID}, status.Playlist)
	})

	t.Run("setMaster", func(t *testing.T) {
		w := doRequest(handler, http.MethodPost, "/api/player/video/set_master", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, player.IDVideo, f.manager.Master())
	})
}

func TestSequencesAPI(t *testing.T) {
	f := newFixture(t)
	handler := SequencesAPI(f.engine, f.registry, f.analyzer, f.cache)

	body := `{"kind":"video","absolute_path":"/media/a.mp4"}`
	w := doRequest(PlayerAPI(f.manager, f.registry),
		http.MethodPost, "/api/player/video/clip/load", body)
	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	clipID := response["id"]

	_, err := f.registry.AddEffect(clipID, "brightness")
	require.NoError(t, err)

	t.Run("create", func(t *testing.T) {
		body := `{
			"target": {"clip_id": "` + clipID + `", "layer_index": -1, "effect_index": 0, "param": "factor"},
			"type": "lfo",
			"config": {"waveform": "sine", "frequency_hz": 1, "min_value": 0.5, "max_value": 1.5}
		}`
		w := doRequest(handler, http.MethodPost, "/api/sequences", body)
		require.Equal(t, http.StatusOK, w.Code)

		var created map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		require.NotEmpty(t, created["id"])

		w = doRequest(handler, http.MethodGet, "/api/sequences", "")
		require.Equal(t, http.StatusOK, w.Code)

		var list []modulation.Info
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Equal(t, 1, len(list))

		w = doRequest(handler, http.MethodDelete, "/api/sequences/"+created["id"], "")
		require.Equal(t, http.StatusOK, w.Code)

		w = doRequest(handler, http.MethodDelete, "/api/sequences/"+created["id"], "")
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("features", func(t *testing.T) {
		f.cache.Set(audio.Features{Bass: 0.75})

		w := doRequest(handler, http.MethodGet, "/api/sequences/audio/features", "")
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Running  bool           `json:"running"`
			Features audio.Features `json:"features"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.False(t, body.Running)
		require.Equal(t, 0.75, body.Features.Bass)
	})
}

func TestDeltaEncodingUnconfigured(t *testing.T) {
	handler := DeltaEncoding(nil)
	w := doRequest(handler, http.MethodGet, "/api/artnet/delta-encoding", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
