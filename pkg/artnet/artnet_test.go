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

package artnet

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"lvs/pkg/frame"
	"lvs/pkg/log"
)

func TestBuildPacket(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		data := []byte{1, 2, 3, 4}
		packet, err := BuildPacket(Address(0, 1, 2), 5, data)
		require.NoError(t, err)

		require.Equal(t, []byte("Art-Net\x00"), packet[:8])
		require.Equal(t, uint16(0x5000), binary.LittleEndian.Uint16(packet[8:]))
		require.Equal(t, uint16(0x000e), binary.BigEndian.Uint16(packet[10:]))
		require.Equal(t, byte(5), packet[12])
		require.Equal(t, byte(0), packet[13])
		require.Equal(t, uint16(0x12), binary.LittleEndian.Uint16(packet[14:]))
		require.Equal(t, uint16(4), binary.BigEndian.Uint16(packet[16:]))
		require.Equal(t, data, packet[18:])
	})
	t.Run("oddLengthPadded", func(t *testing.T) {
		packet, err := BuildPacket(0, 0, []byte{1, 2, 3})
		require.NoError(t, err)
		require.Equal(t, uint16(4), binary.BigEndian.Uint16(packet[16:]))
		require.Equal(t, []byte{1, 2, 3, 0}, packet[18:])
	})
	t.Run("tooLong", func(t *testing.T) {
		_, err := BuildPacket(0, 0, make([]byte, 514))
		require.ErrorIs(t, err, ErrPacketSize)
	})
}

func TestParsePointSet(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		input := `{
			"canvas": {"width": 100, "height": 50},
			"objects": [
				{"id": "a", "points": [{"id": "p1", "x": 1, "y": 2}, {"id": "p2", "x": 3, "y": 4}]},
				{"id": "b", "universe": 4, "points": [{"id": "p3", "x": 5, "y": 6}]}
			]
		}`
		ps, err := ParsePointSet([]byte(input))
		require.NoError(t, err)
		require.Equal(t, 100, ps.Width)
		require.Equal(t, 50, ps.Height)
		require.Equal(t, 3, len(ps.Flatten()))
		require.Equal(t, -1, ps.Objects[0].Universe)
		require.Equal(t, 4, ps.Objects[1].Universe)
	})
	t.Run("outOfCanvasDropped", func(t *testing.T) {
		input := `{
			"canvas": {"width": 10, "height": 10},
			"objects": [
				{"id": "a", "points": [
					{"id": "p1", "x": 5, "y": 5},
					{"id": "p2", "x": 10, "y": 5},
					{"id": "p3", "x": -1, "y": 5},
					{"id": "p4", "x": 5, "y": 99}
				]}
			]
		}`
		ps, err := ParsePointSet([]byte(input))
		require.NoError(t, err)
		require.Equal(t, 1, len(ps.Flatten()))
	})
	t.Run("empty", func(t *testing.T) {
		_, err := ParsePointSet([]byte(`{"canvas":{"width":10,"height":10},"objects":[]}`))
		require.ErrorIs(t, err, ErrNoPoints)
	})
}

func TestPartition(t *testing.T) {
	t.Run("maxChannels", func(t *testing.T) {
		points := make([]Point, 200)
		ps := &PointSet{Width: 10, Height: 10, Objects: []Object{
			{Universe: -1, Points: points},
		}}

		segments := ps.Partition(3)
		require.Equal(t, 2, len(segments))
		require.Equal(t, 170, segments[0].Count) // 510/3.
		require.Equal(t, 30, segments[1].Count)
		require.Equal(t, uint16(0), segments[0].Universe)
		require.Equal(t, uint16(1), segments[1].Universe)

		for _, segment := range segments {
			require.LessOrEqual(t, segment.Count*3, MaxChannels)
		}
	})
	t.Run("pinned", func(t *testing.T) {
		ps := &PointSet{Width: 10, Height: 10, Objects: []Object{
			{Universe: -1, Points: make([]Point, 2)},
			{Universe: 7, Points: make([]Point, 2)},
		}}
		segments := ps.Partition(3)
		require.Equal(t, 2, len(segments))
		require.Equal(t, uint16(0), segments[0].Universe)
		require.Equal(t, uint16(7), segments[1].Universe)
		require.Equal(t, 2, segments[1].Start)
	})
}

func TestSample(t *testing.T) {
	img := frame.New(2, 1)
	img.SetRGB24(0, 0, frame.RGB{R: 255})
	img.SetRGB24(1, 0, frame.RGB{G: 255})

	t.Run("8bit", func(t *testing.T) {
		points := []Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 9, Y: 9}}
		data := Sample(img, points, 8)
		require.Equal(t, []byte{
			255, 0, 0,
			0, 255, 0,
			0, 0, 0, // Out of canvas.
		}, data)
	})
	t.Run("16bit", func(t *testing.T) {
		points := []Point{{X: 0, Y: 0}}
		data := Sample(img, points, 16)
		require.Equal(t, []byte{0xff, 0xff, 0, 0, 0, 0}, data)
	})
}

// mockSender collects transmissions.
type mockSender struct {
	sent []sentPacket
	err  error
}

type sentPacket struct {
	universe uint16
	data     []byte
}

func (s *mockSender) Send(universe uint16, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentPacket{universe, append([]byte(nil), data...)})
	return nil
}

func (s *mockSender) Close() error { return nil }

func newTestStage(t *testing.T, sender Sender) *Stage {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	logger := log.NewMockLogger()
	logger.Start(ctx)

	ps := &PointSet{Width: 2, Height: 1, Objects: []Object{
		{Universe: -1, Points: []Point{{X: 0, Y: 0}, {X: 1, Y: 0}}},
	}}
	config := Config{
		Enabled:           true,
		Threshold:         8,
		FullFrameInterval: 30,
		BitDepth:          8,
	}
	return NewStage(ps, sender, config, logger)
}

func grayImage(v uint8) *frame.RGB24 {
	img := frame.New(2, 1)
	img.Fill(frame.RGB{R: v, G: v, B: v})
	return img
}

// Static scene: frame 1 full, 2-29 silent, 30 full sync.
func TestDeltaStaticScene(t *testing.T) {
	sender := &mockSender{}
	stage := newTestStage(t, sender)

	img := grayImage(100)
	for i := 1; i <= 29; i++ {
		stage.OutputFrame(img)
	}
	require.Equal(t, 1, len(sender.sent))
	require.Equal(t, []byte{100, 100, 100, 100, 100, 100}, sender.sent[0].data)

	stage.OutputFrame(img) // Frame 30, forced sync.
	require.Equal(t, 2, len(sender.sent))
}

// Sub-threshold change stays silent, above-threshold change transmits.
func TestDeltaSmallChange(t *testing.T) {
	sender := &mockSender{}
	stage := newTestStage(t, sender)

	img := grayImage(100)
	for i := 1; i <= 14; i++ {
		stage.OutputFrame(img)
	}
	require.Equal(t, 1, len(sender.sent))

	// Frame 15: delta of 3, below threshold 8.
	small := grayImage(100)
	small.SetRGB24(0, 0, frame.RGB{R: 103, G: 100, B: 100})
	stage.OutputFrame(small)
	require.Equal(t, 1, len(sender.sent))

	// Frame 16: delta of 20.
	big := grayImage(100)
	big.SetRGB24(0, 0, frame.RGB{R: 120, G: 100, B: 100})
	stage.OutputFrame(big)
	require.Equal(t, 2, len(sender.sent))
	require.Equal(t, uint16(0), sender.sent[1].universe)
	require.Equal(t, []byte{120, 100, 100, 100, 100, 100}, sender.sent[1].data)
}

// Full-frame sync fires every interval regardless of changes.
func TestDeltaFullFrameSync(t *testing.T) {
	sender := &mockSender{}
	stage := newTestStage(t, sender)

	img := grayImage(50)
	for i := 1; i <= 90; i++ {
		stage.OutputFrame(img)
	}
	// Frames 1, 30, 60 and 90.
	require.Equal(t, 4, len(sender.sent))
}

// A send error must not advance the delta baseline.
func TestDeltaSendFailure(t *testing.T) {
	sender := &mockSender{}
	stage := newTestStage(t, sender)

	stage.OutputFrame(grayImage(100))
	require.Equal(t, 1, len(sender.sent))

	sender.err = errors.New("socket closed")
	stage.OutputFrame(grayImage(200))
	require.Equal(t, 1, len(sender.sent))

	// Next successful frame re-transmits the change.
	sender.err = nil
	stage.OutputFrame(grayImage(200))
	require.Equal(t, 2, len(sender.sent))
	require.Equal(t, []byte{200, 200, 200, 200, 200, 200}, sender.sent[1].data)
}

func TestDeltaBitDepthChange(t *testing.T) {
	sender := &mockSender{}
	stage := newTestStage(t, sender)

	stage.OutputFrame(grayImage(100))

	config := stage.Config()
	config.BitDepth = 16
	config.Threshold = DefaultThreshold16
	stage.SetConfig(config)

	// Baseline dropped, next frame is a full 16-bit frame.
	stage.OutputFrame(grayImage(100))
	require.Equal(t, 2, len(sender.sent))
	require.Equal(t, 12, len(sender.sent[1].data))
}

func TestPointCacheRoundTrip(t *testing.T) {
	ps := &PointSet{Width: 640, Height: 360, Objects: []Object{
		{Universe: -1, Points: []Point{{X: 1.5, Y: 2}, {X: 3, Y: 4.25}}},
		{Universe: 9, Points: []Point{{X: 639, Y: 359}}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCache(&buf, ps))

	decoded, err := ReadCache(&buf)
	require.NoError(t, err)
	require.Equal(t, ps, decoded)
}

func TestPointCacheBadMagic(t *testing.T) {
	_, err := ReadCache(bytes.NewReader([]byte("nope!")))
	require.ErrorIs(t, err, ErrCacheMagic)
}
