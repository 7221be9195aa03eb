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
	"encoding/binary"
	"fmt"

	"github.com/gen2brain/malgo"
)

// captureDevice opens the capture device and feeds fixed-size sample
// blocks to onBlock until the context is canceled. Blocks are mono
// float64 in [-1,1]. "microphone" and "line-in" both map to the default
// capture device; "loopback" captures system output where the backend
// supports it.
func captureDevice(
	ctx context.Context,
	device string,
	sampleRate int,
	blockSize int,
	onBlock func([]float64),
) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("could not init audio context: %w", err)
	}
	defer func() {
		mctx.Uninit() //nolint:errcheck
		mctx.Free()
	}()

	deviceType := malgo.Capture
	if device == "loopback" {
		deviceType = malgo.Loopback
	}

	config := malgo.DefaultDeviceConfig(deviceType)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.SampleRate = uint32(sampleRate)

	block := make([]float64, 0, blockSize)
	onRecv := func(_, input []byte, frameCount uint32) {
		for i := 0; i < int(frameCount); i++ {
			sample := int16(binary.LittleEndian.Uint16(input[i*2:]))
			block = append(block, float64(sample)/32768)
			if len(block) == blockSize {
				onBlock(block)
				block = block[:0]
			}
		}
	}

	dev, err := malgo.InitDevice(mctx.Context, config, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		return fmt.Errorf("could not open device %v: %w", device, err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("could not start device %v: %w", device, err)
	}

	<-ctx.Done()
	return ctx.Err()
}
