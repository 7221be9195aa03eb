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

package audio

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lvs/pkg/log"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := log.NewMockLogger()
	logger.Start(ctx)

	return NewAnalyzer(NewFeatureCache(), logger)
}

func sine(freq float64, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / DefaultSampleRate)
	}
	return samples
}

func TestFeatureCache(t *testing.T) {
	cache := NewFeatureCache()
	cache.Set(Features{RMS: 0.1, Peak: 0.2, Bass: 0.3, Mid: 0.4, Treble: 0.5, BeatPulse: 1})

	cases := map[string]float64{
		"rms":    0.1,
		"peak":   0.2,
		"bass":   0.3,
		"mid":    0.4,
		"treble": 0.5,
		"beat":   1,
		"bogus":  0,
	}
	for name, expected := range cases {
		require.InDelta(t, expected, cache.Feature(name), 1e-9, name)
	}
}

func TestProcessBlock(t *testing.T) {
	t.Run("timeDomain", func(t *testing.T) {
		a := newTestAnalyzer(t)
		a.processBlock(sine(440, DefaultBlockSize))

		features := a.cache.Snapshot()
		require.InDelta(t, 1/math.Sqrt2, features.RMS, 0.01)
		require.InDelta(t, 1.0, features.Peak, 0.01)
	})
	t.Run("bassDominates", func(t *testing.T) {
		a := newTestAnalyzer(t)
		a.processBlock(sine(100, DefaultBlockSize))

		features := a.cache.Snapshot()
		require.Greater(t, features.Bass, features.Mid)
		require.Greater(t, features.Bass, features.Treble)
		require.Greater(t, features.Bass, 0.0)
	})
	t.Run("trebleDominates", func(t *testing.T) {
		a := newTestAnalyzer(t)
		a.processBlock(sine(8000, DefaultBlockSize))

		features := a.cache.Snapshot()
		require.Greater(t, features.Treble, features.Bass)
	})
	t.Run("silence", func(t *testing.T) {
		a := newTestAnalyzer(t)
		a.processBlock(make([]float64, DefaultBlockSize))

		features := a.cache.Snapshot()
		require.Equal(t, Features{}, features)
	})
	t.Run("beatTransient", func(t *testing.T) {
		a := newTestAnalyzer(t)

		// Establish a quiet baseline.
		quiet := sine(100, DefaultBlockSize)
		for i := range quiet {
			quiet[i] *= 0.05
		}
		for i := 0; i < 20; i++ {
			a.processBlock(quiet)
		}
		require.InDelta(t, 0.0, a.cache.Snapshot().BeatPulse, 1e-9)

		// A sudden loud block pulses.
		a.processBlock(sine(100, DefaultBlockSize))
		require.InDelta(t, 1.0, a.cache.Snapshot().BeatPulse, 1e-9)
	})
}

func TestAnalyzerLifecycle(t *testing.T) {
	a := newTestAnalyzer(t)

	blocks := make(chan struct{}, 16)
	a.capture = func(ctx context.Context, device string, _, blockSize int, onBlock func([]float64)) error {
		require.Equal(t, "microphone", device)
		onBlock(make([]float64, blockSize))
		blocks <- struct{}{}
		<-ctx.Done()
		return ctx.Err()
	}

	require.NoError(t, a.Start("microphone"))
	require.ErrorIs(t, a.Start("microphone"), ErrRunning)

	select {
	case <-blocks:
	case <-time.After(time.Second):
		t.Fatal("capture never ran")
	}

	a.Stop()
	require.False(t, a.Running())

	// Stopping again is a no-op.
	a.Stop()
}

func TestAnalyzerDeviceFailure(t *testing.T) {
	a := newTestAnalyzer(t)
	a.capture = func(context.Context, string, int, int, func([]float64)) error {
		return errors.New("no such device")
	}

	require.NoError(t, a.Start("line-in"))

	// The capture routine fails, the analyzer remains stopped and
	// features read zero.
	require.Eventually(t, func() bool {
		return !a.Running()
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, Features{}, a.cache.Snapshot())
}
