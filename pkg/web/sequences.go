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
	"encoding/json"
	"net/http"
	"strings"

	"lvs/pkg/artnet"
	"lvs/pkg/audio"
	"lvs/pkg/clip"
	"lvs/pkg/modulation"
)

// SequencesAPI dispatches /api/sequences requests.
//
//	GET    /api/sequences            active sequences
//	POST   /api/sequences            create binding
//	DELETE /api/sequences/{id}       remove binding
//	POST   /api/sequences/audio/start {"device": "microphone"}
//	POST   /api/sequences/audio/stop
//	GET    /api/sequences/audio/features
func SequencesAPI(
	engine *modulation.Engine,
	registry *clip.Registry,
	analyzer *audio.Analyzer,
	cache *audio.FeatureCache,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sequences"), "/")

		switch {
		case rest == "":
			sequencesRoot(w, r, engine, registry)

		case rest == "audio/start":
			requireMethod(w, r, http.MethodPost, func() {
				var body struct {
					Device string `json:"device"`
				}
				if err := readJSON(r, &body); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				if body.Device == "" {
					body.Device = "microphone"
				}
				if err := analyzer.Start(body.Device); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
				}
			})

		case rest == "audio/stop":
			requireMethod(w, r, http.MethodPost, func() {
				analyzer.Stop()
			})

		case rest == "audio/features":
			requireMethod(w, r, http.MethodGet, func() {
				writeJSON(w, map[string]interface{}{
					"running":  analyzer.Running(),
					"features": cache.Snapshot(),
				})
			})

		default:
			requireMethod(w, r, http.MethodDelete, func() {
				if err := engine.Remove(rest); err != nil {
					http.Error(w, err.Error(), http.StatusNotFound)
				}
			})
		}
	})
}

func sequencesRoot(
	w http.ResponseWriter,
	r *http.Request,
	engine *modulation.Engine,
	registry *clip.Registry,
) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, engine.List())

	case http.MethodPost:
		var body struct {
			Target modulation.Target `json:"target"`
			Type   string            `json:"type"`
			Config json.RawMessage   `json:"config"`
		}
		if err := readJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		binding := clip.SequenceBinding{Type: body.Type, Config: body.Config}

		id, err := engine.Add(body.Target, binding)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Persist onto the clip so session load restores the binding.
		if body.Target.LayerIndex < 0 {
			err := registry.AttachSequence(
				body.Target.ClipID, body.Target.EffectIndex, body.Target.Param, binding)
			if err != nil {
				engine.Remove(id) //nolint:errcheck
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		writeJSON(w, map[string]string{"id": id})

	default:
		http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
	}
}

// DeltaEncoding live-reconfigures the Art-Net delta encoder.
func DeltaEncoding(stage *artnet.Stage) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stage == nil {
			http.Error(w, "artnet stage not configured", http.StatusServiceUnavailable)
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, stage.Config())
		case http.MethodPost:
			var config artnet.Config
			if err := readJSON(r, &config); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if config.BitDepth != 8 && config.BitDepth != 16 {
				http.Error(w, "bit_depth must be 8 or 16", http.StatusBadRequest)
				return
			}
			stage.SetConfig(config)
		default:
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
		}
	})
}
