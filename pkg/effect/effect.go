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

package effect

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"lvs/pkg/frame"
)

// ParamType parameter type.
type ParamType string

// Parameter types.
const (
	TypeFloat  ParamType = "float"
	TypeInt    ParamType = "int"
	TypeBool   ParamType = "bool"
	TypeSelect ParamType = "select"
	TypeColor  ParamType = "color"
	TypeRange  ParamType = "range"
	TypeString ParamType = "string"
)

// Param declares a single plugin parameter.
type Param struct {
	Name    string      `json:"name"`
	Type    ParamType   `json:"type"`
	Default interface{} `json:"default"`
	Min     float64     `json:"min,omitempty"`
	Max     float64     `json:"max,omitempty"`
	Options []string    `json:"options,omitempty"`
}

// Params parameter values keyed by name.
type Params map[string]interface{}

// Float returns the named parameter as float64.
func (p Params) Float(name string) float64 {
	switch v := p[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Int returns the named parameter as int.
func (p Params) Int(name string) int {
	return int(p.Float(name))
}

// Bool returns the named parameter as bool.
func (p Params) Bool(name string) bool {
	v, _ := p[name].(bool)
	return v
}

// String returns the named parameter as string.
func (p Params) String(name string) string {
	v, _ := p[name].(string)
	return v
}

// Color returns the named parameter as RGB, parsing "#rrggbb".
func (p Params) Color(name string) frame.RGB {
	v, _ := p[name].(string)
	rgb, err := ParseColor(v)
	if err != nil {
		return frame.RGB{}
	}
	return rgb
}

// Clone returns a shallow copy of the map.
func (p Params) Clone() Params {
	clone := make(Params, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// ParseColor parses a "#rrggbb" string.
func ParseColor(s string) (frame.RGB, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return frame.RGB{}, fmt.Errorf("invalid color: %v", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return frame.RGB{}, fmt.Errorf("invalid color: %v", s)
	}
	return frame.RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// Plugin is a pure function from image and parameters to image.
type Plugin interface {
	Apply(img *frame.RGB24, params Params) (*frame.RGB24, error)
}

// NewPluginFunc constructs a plugin instance.
type NewPluginFunc func() Plugin

type registryEntry struct {
	params []Param
	new    NewPluginFunc
}

var (
	registry   = map[string]registryEntry{}
	registryMu sync.Mutex
)

// Errors.
var (
	ErrNotExist     = errors.New("effect plugin does not exist")
	ErrParamUnknown = errors.New("unknown parameter")
	ErrParamType    = errors.New("invalid parameter type")
	ErrParamRange   = errors.New("parameter out of range")
)

// Register registers an effect plugin. Called from plugin init functions.
func Register(id string, params []Param, fn NewPluginFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exist := registry[id]; exist {
		panic(fmt.Sprintf("effect: duplicate plugin: %v", id))
	}
	registry[id] = registryEntry{params: params, new: fn}
}

// Exists reports whether a plugin is registered.
func Exists(id string) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	_, exist := registry[id]
	return exist
}

// Schema returns the declared parameters of a plugin.
func Schema(id string) ([]Param, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	entry, exist := registry[id]
	if !exist {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	return entry.params, nil
}

// New constructs a plugin instance.
func New(id string) (Plugin, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	entry, exist := registry[id]
	if !exist {
		return nil, fmt.Errorf("%w: %v", ErrNotExist, id)
	}
	return entry.new(), nil
}

// List returns registered plugin ids, sorted.
func List() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Defaults returns the default parameter map of a plugin.
func Defaults(id string) (Params, error) {
	schema, err := Schema(id)
	if err != nil {
		return nil, err
	}
	params := make(Params, len(schema))
	for _, p := range schema {
		params[p.Name] = p.Default
	}
	return params, nil
}

// Validate type-checks value against the plugin schema and returns the
// normalized value.
func Validate(id string, name string, value interface{}) (interface{}, error) {
	schema, err := Schema(id)
	if err != nil {
		return nil, err
	}
	for _, p := range schema {
		if p.Name == name {
			return validateValue(p, value)
		}
	}
	return nil, fmt.Errorf("%w: %v.%v", ErrParamUnknown, id, name)
}

func validateValue(p Param, value interface{}) (interface{}, error) { //nolint:funlen
	switch p.Type {
	case TypeFloat:
		v, ok := toFloat(value)
		if !ok {
			return nil, fmt.Errorf("%w: %v: expected float", ErrParamType, p.Name)
		}
		if p.Min != p.Max && (v < p.Min || v > p.Max) {
			return nil, fmt.Errorf("%w: %v: %v", ErrParamRange, p.Name, v)
		}
		return v, nil

	case TypeInt, TypeRange:
		v, ok := toFloat(value)
		if !ok || v != float64(int(v)) {
			return nil, fmt.Errorf("%w: %v: expected int", ErrParamType, p.Name)
		}
		if p.Min != p.Max && (v < p.Min || v > p.Max) {
			return nil, fmt.Errorf("%w: %v: %v", ErrParamRange, p.Name, v)
		}
		return v, nil

	case TypeBool:
		v, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %v: expected bool", ErrParamType, p.Name)
		}
		return v, nil

	case TypeSelect:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %v: expected string", ErrParamType, p.Name)
		}
		for _, option := range p.Options {
			if option == v {
				return v, nil
			}
		}
		return nil, fmt.Errorf("%w: %v: %v", ErrParamRange, p.Name, v)

	case TypeColor:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %v: expected string", ErrParamType, p.Name)
		}
		if _, err := ParseColor(v); err != nil {
			return nil, fmt.Errorf("%w: %v: %v", ErrParamType, p.Name, v)
		}
		return v, nil

	case TypeString:
		v, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %v: expected string", ErrParamType, p.Name)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrParamType, p.Type)
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Clamp clamps value into the declared range of the named parameter.
// Used by the modulation engine so written values always satisfy the schema.
func Clamp(id string, name string, value float64) float64 {
	schema, err := Schema(id)
	if err != nil {
		return value
	}
	for _, p := range schema {
		if p.Name != name || p.Min == p.Max {
			continue
		}
		if value < p.Min {
			return p.Min
		}
		if value > p.Max {
			return p.Max
		}
	}
	return value
}
