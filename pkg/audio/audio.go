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
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"lvs/pkg/log"
)

// Features instantaneous audio features. The analyzer reports raw
// values; smoothing is applied by audio sequences.
type Features struct {
	RMS       float64 `json:"rms"`
	Peak      float64 `json:"peak"`
	Bass      float64 `json:"bass"`
	Mid       float64 `json:"mid"`
	Treble    float64 `json:"treble"`
	BeatPulse float64 `json:"beat_pulse"`
}

// FeatureCache process-wide feature cache. The analyzer goroutine
// refreshes it under a mutex; readers snapshot under lock.
type FeatureCache struct {
	mu       sync.Mutex
	features Features
}

// NewFeatureCache .
func NewFeatureCache() *FeatureCache {
	return &FeatureCache{}
}

// Snapshot returns the current features.
func (c *FeatureCache) Snapshot() Features {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.features
}

// Set swaps the cached features.
func (c *FeatureCache) Set(features Features) {
	c.mu.Lock()
	c.features = features
	c.mu.Unlock()
}

// Feature returns a single named feature.
func (c *FeatureCache) Feature(name string) float64 {
	f := c.Snapshot()
	switch name {
	case "rms":
		return f.RMS
	case "peak":
		return f.Peak
	case "bass":
		return f.Bass
	case "mid":
		return f.Mid
	case "treble":
		return f.Treble
	case "beat":
		return f.BeatPulse
	}
	return 0
}

// Analysis bands in Hz.
const (
	bassLow    = 20
	bassHigh   = 250
	midHigh    = 4000
	trebleHigh = 20000
)

const (
	// DefaultSampleRate of the capture device.
	DefaultSampleRate = 44100

	// DefaultBlockSize samples per analysis block.
	DefaultBlockSize = 2048
)

// ErrRunning analyzer is already running.
var ErrRunning = errors.New("analyzer is already running")

type captureFunc func(ctx context.Context, device string, sampleRate, blockSize int, onBlock func([]float64)) error

// Analyzer captures audio and publishes features into the cache.
type Analyzer struct {
	cache *FeatureCache
	log   *log.Logger

	sampleRate int
	blockSize  int
	capture    captureFunc

	fft      *fourier.FFT
	windowed []float64
	baseline float64
	prevRMS  float64

	mu      sync.Mutex
	running bool
	device  string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewAnalyzer returns a stopped analyzer.
func NewAnalyzer(cache *FeatureCache, logger *log.Logger) *Analyzer {
	blockSize := DefaultBlockSize
	return &Analyzer{
		cache:      cache,
		log:        logger,
		sampleRate: DefaultSampleRate,
		blockSize:  blockSize,
		capture:    captureDevice,
		fft:        fourier.NewFFT(blockSize),
		windowed:   make([]float64, blockSize),
	}
}

// Start opens the capture device and starts the analysis routine.
// device is one of "microphone", "line-in", "loopback". If the device
// cannot be opened the analyzer remains stopped.
func (a *Analyzer) Start(device string) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return ErrRunning
	}
	a.running = true
	a.device = device

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := a.capture(ctx, device, a.sampleRate, a.blockSize, a.processBlock)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Src("audio").Msgf("capture stopped: %v", err)
		}

		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		a.cache.Set(Features{})
	}()

	a.log.Info().Src("audio").Msgf("analyzer started: %v", device)
	return nil
}

// Stop signals the capture routine and joins it.
func (a *Analyzer) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel := a.cancel
	a.mu.Unlock()

	cancel()
	a.wg.Wait()
	a.log.Info().Src("audio").Msg("analyzer stopped")
}

// Running reports whether the capture routine is active.
func (a *Analyzer) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Device returns the device the analyzer was started with.
func (a *Analyzer) Device() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device
}

// processBlock computes features for one block and publishes them.
func (a *Analyzer) processBlock(samples []float64) {
	var sumSquares, peak float64
	for _, s := range samples {
		sumSquares += s * s
		if abs := math.Abs(s); abs > peak {
			peak = abs
		}
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))

	copy(a.windowed, samples)
	window.Hann(a.windowed)
	coeffs := a.fft.Coefficients(nil, a.windowed)

	bass := a.bandMean(coeffs, bassLow, bassHigh)
	mid := a.bandMean(coeffs, bassHigh, midHigh)
	treble := a.bandMean(coeffs, midHigh, trebleHigh)

	// Transient detector, rising RMS above an adaptive baseline.
	var beat float64
	if rms > a.baseline*1.4 && rms > a.prevRMS && rms > 0.01 {
		beat = 1
	}
	a.baseline = 0.95*a.baseline + 0.05*rms
	a.prevRMS = rms

	a.cache.Set(Features{
		RMS:       clamp01(rms),
		Peak:      clamp01(peak),
		Bass:      bass,
		Mid:       mid,
		Treble:    treble,
		BeatPulse: beat,
	})
}

// bandMean returns the mean spectral magnitude between lowHz and
// highHz, normalized to [0,1].
func (a *Analyzer) bandMean(coeffs []complex128, lowHz, highHz float64) float64 {
	lowBin := int(lowHz * float64(a.blockSize) / float64(a.sampleRate))
	highBin := int(highHz * float64(a.blockSize) / float64(a.sampleRate))
	if highBin >= len(coeffs) {
		highBin = len(coeffs) - 1
	}
	if lowBin >= highBin {
		return 0
	}

	var sum float64
	for i := lowBin; i <= highBin; i++ {
		sum += cmplx.Abs(coeffs[i])
	}
	mean := sum / float64(highBin-lowBin+1)

	// Magnitudes scale with block size.
	return clamp01(mean * 2 / float64(a.blockSize))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
