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
	"net/http"
	"strconv"
	"strings"

	"lvs/pkg/clip"
	"lvs/pkg/player"
)

// PlayerAPI dispatches /api/player/{video|artnet}/... requests.
//
//	POST {id}/clip/load                 register clip, returns uuid
//	POST {id}/clip/{uuid}/load          load clip by playlist index of uuid
//	GET  {id}/clip/{uuid}/effects       effect chain
//	POST {id}/clip/{uuid}/effects       append effect
//	PUT  {id}/clip/{uuid}/effects/{i}   update parameter
//	DELETE {id}/clip/{uuid}/effects/{i} remove effect
//	POST {id}/play {id}/pause {id}/stop
//	POST {id}/load?index=N
//	POST {id}/set_master
//	GET  {id}/status
func PlayerAPI(m *player.Manager, registry *clip.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(
			strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/player/"), "/"), "/")
		if len(parts) < 2 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		p, err := m.Player(parts[0])
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		switch parts[1] {
		case "play":
			requireMethod(w, r, http.MethodPost, func() {
				p.Play()
			})
		case "pause":
			requireMethod(w, r, http.MethodPost, func() {
				p.Pause()
			})
		case "stop":
			requireMethod(w, r, http.MethodPost, func() {
				p.Stop()
			})
		case "set_master":
			requireMethod(w, r, http.MethodPost, func() {
				if err := m.SetMaster(p.Config.ID); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
				}
			})
		case "load":
			requireMethod(w, r, http.MethodPost, func() {
				index, err := strconv.Atoi(r.URL.Query().Get("index"))
				if err != nil {
					http.Error(w, "index missing", http.StatusBadRequest)
					return
				}
				if err := p.LoadClip(index); err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
				}
			})
		case "status":
			requireMethod(w, r, http.MethodGet, func() {
				writeJSON(w, map[string]interface{}{
					"state":         p.State(),
					"current_index": p.CurrentIndex(),
					"playlist":      p.Playlist(),
					"master":        m.Master() == p.Config.ID,
				})
			})
		case "clip":
			clipAPI(w, r, m, registry, p, parts[2:])
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string, fn func()) {
	if r.Method != method {
		http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
		return
	}
	fn()
}

func clipAPI( //nolint:funlen
	w http.ResponseWriter,
	r *http.Request,
	m *player.Manager,
	registry *clip.Registry,
	p *player.Player,
	parts []string,
) {
	if len(parts) == 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// POST clip/load registers a new clip on the player.
	if parts[0] == "load" {
		requireMethod(w, r, http.MethodPost, func() {
			var src clip.SourceDescriptor
			if err := readJSON(r, &src); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			id, err := registry.Register(p.Config.ID, src)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			p.Append(id)
			writeJSON(w, map[string]string{"id": id})
		})
		return
	}

	clipID := parts[0]
	if !registry.Exists(clipID) {
		http.Error(w, "clip does not exist", http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			c, err := registry.Get(clipID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			writeJSON(w, c)
		case http.MethodDelete:
			if err := registry.Unregister(clipID); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
			}
		default:
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
		}
		return
	}

	// POST clip/{uuid}/load loads the clip at its playlist index.
	if parts[1] == "load" {
		requireMethod(w, r, http.MethodPost, func() {
			for index, id := range p.Playlist() {
				if id == clipID {
					if err := p.LoadClip(index); err != nil {
						http.Error(w, err.Error(), http.StatusBadRequest)
					}
					return
				}
			}
			http.Error(w, "clip is not in the playlist", http.StatusNotFound)
		})
		return
	}

	if parts[1] != "effects" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	// clip/{uuid}/effects
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			effects, err := registry.ListEffects(clipID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, effects)
		case http.MethodPost:
			var body struct {
				PluginID string `json:"plugin_id"`
			}
			if err := readJSON(r, &body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			index, err := registry.AddEffect(clipID, body.PluginID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeJSON(w, map[string]int{"index": index})
		case http.MethodDelete:
			if err := registry.ClearEffects(clipID); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
			}
		default:
			http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
		}
		return
	}

	// clip/{uuid}/effects/{index}
	index, err := strconv.Atoi(parts[2])
	if err != nil {
		http.Error(w, "invalid effect index", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		params, err := registry.GetParameters(clipID, index)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, params)
	case http.MethodPut:
		var body struct {
			Name  string      `json:"name"`
			Value interface{} `json:"value"`
		}
		if err := readJSON(r, &body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := registry.UpdateParameter(clipID, index, body.Name, body.Value); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	case http.MethodDelete:
		if err := registry.RemoveEffect(clipID, index); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	default:
		http.Error(w, "invalid request method", http.StatusMethodNotAllowed)
	}
}
