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

package modulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"lvs/pkg/audio"
	"lvs/pkg/clip"
)

// Sequence is a time-varying value source driving a single effect
// parameter. t is the engine clock in seconds.
type Sequence interface {
	Value(t float64) float64
}

// ErrBadSequence sequence config is malformed.
var ErrBadSequence = errors.New("invalid sequence config")

// ParseSequence builds a sequence from a stored binding.
func ParseSequence(cache *audio.FeatureCache, binding clip.SequenceBinding) (Sequence, error) {
	switch binding.Type {
	case "audio":
		var config AudioConfig
		if err := json.Unmarshal(binding.Config, &config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSequence, err)
		}
		return NewAudioSequence(config, cache), nil

	case "lfo":
		var config LFOConfig
		if err := json.Unmarshal(binding.Config, &config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSequence, err)
		}
		return NewLFOSequence(config), nil

	case "timeline":
		var config TimelineConfig
		if err := json.Unmarshal(binding.Config, &config); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSequence, err)
		}
		return NewTimelineSequence(config)
	}
	return nil, fmt.Errorf("%w: unknown type %v", ErrBadSequence, binding.Type)
}

// AudioConfig audio-reactive sequence settings.
type AudioConfig struct {
	Feature   string  `json:"feature"` // rms|peak|bass|mid|treble|beat
	MinValue  float64 `json:"min_value"`
	MaxValue  float64 `json:"max_value"`
	Smoothing float64 `json:"smoothing"` // [0,1], 0 is unsmoothed.
	Invert    bool    `json:"invert"`
}

// AudioSequence maps an audio feature to a parameter range with
// exponential smoothing.
type AudioSequence struct {
	config AudioConfig
	cache  *audio.FeatureCache

	smoothed float64
	primed   bool
}

// NewAudioSequence .
func NewAudioSequence(config AudioConfig, cache *audio.FeatureCache) *AudioSequence {
	return &AudioSequence{config: config, cache: cache}
}

// Value .
func (s *AudioSequence) Value(_ float64) float64 {
	raw := s.cache.Feature(s.config.Feature)
	if s.config.Invert {
		raw = 1 - raw
	}

	if !s.primed || s.config.Smoothing == 0 {
		s.smoothed = raw
		s.primed = true
	} else {
		k := s.config.Smoothing
		s.smoothed = k*s.smoothed + (1-k)*raw
	}

	return s.config.MinValue + s.smoothed*(s.config.MaxValue-s.config.MinValue)
}

// LFOConfig low-frequency oscillator settings.
type LFOConfig struct {
	Waveform    string  `json:"waveform"` // sine|square|triangle|sawtooth|random
	FrequencyHz float64 `json:"frequency_hz"`
	Phase       float64 `json:"phase"` // [0,1)
	Amplitude   float64 `json:"amplitude"`
	Offset      float64 `json:"offset"`
	MinValue    float64 `json:"min_value"`
	MaxValue    float64 `json:"max_value"`
}

// LFOSequence periodic oscillator. The raw waveform spans [-1,1] and is
// mapped linearly onto [min,max].
type LFOSequence struct {
	config LFOConfig
}

// NewLFOSequence .
func NewLFOSequence(config LFOConfig) *LFOSequence {
	if config.Amplitude == 0 {
		config.Amplitude = 1
	}
	return &LFOSequence{config: config}
}

// Value .
func (s *LFOSequence) Value(t float64) float64 {
	c := s.config
	x := t*c.FrequencyHz + c.Phase
	raw := waveform(c.Waveform, x)*c.Amplitude + c.Offset

	if raw < -1 {
		raw = -1
	} else if raw > 1 {
		raw = 1
	}
	return c.MinValue + (raw+1)/2*(c.MaxValue-c.MinValue)
}

// waveform evaluates the named waveform at x cycles, spanning [-1,1].
func waveform(name string, x float64) float64 {
	frac := x - math.Floor(x)
	switch name {
	case "square":
		if frac < 0.5 {
			return 1
		}
		return -1
	case "triangle":
		if frac < 0.5 {
			return 4*frac - 1
		}
		return 3 - 4*frac
	case "sawtooth":
		return 2*frac - 1
	case "random":
		// Eight sample-and-hold steps per cycle. Deterministic in the
		// cycle position so the oscillator stays periodic.
		return holdRandom(int64(frac * 8))
	default: // sine
		return math.Sin(2 * math.Pi * x)
	}
}

// holdRandom returns a deterministic pseudo-random value in [-1,1] for
// the given sample-and-hold step.
func holdRandom(cycle int64) float64 {
	z := uint64(cycle) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return float64(z)/float64(math.MaxUint64)*2 - 1
}

// Keyframe one timeline keyframe.
type Keyframe struct {
	Time  float64 `json:"time_seconds"`
	Value float64 `json:"value"`
}

// TimelineConfig keyframed timeline settings.
type TimelineConfig struct {
	Keyframes     []Keyframe `json:"keyframes"`
	Interpolation string     `json:"interpolation"` // linear|ease_in|ease_out|ease_in_out|step
	LoopMode      string     `json:"loop_mode"`     // once|loop|ping_pong
	Duration      float64    `json:"duration"`
}

// TimelineSequence interpolated keyframe timeline.
type TimelineSequence struct {
	config TimelineConfig
}

// NewTimelineSequence returns a timeline. Keyframes are sorted by time,
// duration defaults to the last keyframe.
func NewTimelineSequence(config TimelineConfig) (*TimelineSequence, error) {
	if len(config.Keyframes) == 0 {
		return nil, fmt.Errorf("%w: no keyframes", ErrBadSequence)
	}
	sort.Slice(config.Keyframes, func(i, j int) bool {
		return config.Keyframes[i].Time < config.Keyframes[j].Time
	})
	if config.Duration == 0 {
		config.Duration = config.Keyframes[len(config.Keyframes)-1].Time
	}
	return &TimelineSequence{config: config}, nil
}

// Value .
func (s *TimelineSequence) Value(t float64) float64 {
	c := s.config
	d := c.Duration

	switch c.LoopMode {
	case "loop":
		if d > 0 {
			t = math.Mod(t, d)
		}
	case "ping_pong":
		// Double the effective period and reflect.
		if d > 0 {
			p := math.Mod(t, 2*d)
			if p > d {
				t = 2*d - p
			} else {
				t = p
			}
		}
	default: // once
		if t > d {
			t = d
		}
	}

	keyframes := c.Keyframes
	if t <= keyframes[0].Time {
		return keyframes[0].Value
	}
	last := keyframes[len(keyframes)-1]
	if t >= last.Time {
		return last.Value
	}

	// Bisect for the surrounding pair.
	upper := sort.Search(len(keyframes), func(i int) bool {
		return keyframes[i].Time > t
	})
	k0 := keyframes[upper-1]
	k1 := keyframes[upper]

	if c.Interpolation == "step" {
		return k0.Value
	}

	fraction := (t - k0.Time) / (k1.Time - k0.Time)
	fraction = ease(c.Interpolation, fraction)
	return k0.Value + fraction*(k1.Value-k0.Value)
}

func ease(name string, t float64) float64 {
	switch name {
	case "ease_in":
		return t * t
	case "ease_out":
		return t * (2 - t)
	case "ease_in_out":
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	}
	return t
}
