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

package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"lvs/pkg/ffmpeg"
	"lvs/pkg/frame"
)

// Video decodes frames from a media file through a ffmpeg child process
// writing raw rgb24 to a pipe.
type Video struct {
	path      string
	ffmpegBin string

	probe      ffmpeg.ProbeFunc
	newProcess ffmpeg.NewProcessFunc
	logf       ffmpeg.LogFunc

	info        Info
	initialized bool

	process    ffmpeg.Process
	stdout     io.ReadCloser
	reader     *bufio.Reader
	buf        []byte
	frameIndex int
	lastFrame  *frame.RGB24
	cancel     context.CancelFunc
}

// NewVideo returns a video source for path. The decoder is not opened
// until Initialize.
func NewVideo(path string, ffmpegBin string, probe ffmpeg.ProbeFunc, logf ffmpeg.LogFunc) *Video {
	return &Video{
		path:       path,
		ffmpegBin:  ffmpegBin,
		probe:      probe,
		newProcess: ffmpeg.NewProcess,
		logf:       logf,
	}
}

// Initialize probes the file and starts the decode process.
func (v *Video) Initialize() error {
	if v.initialized {
		return nil
	}

	probed, err := v.probe(v.path)
	if err != nil {
		return fmt.Errorf("could not probe %v: %w", v.path, err)
	}

	v.info = Info{
		Width:      probed.Width,
		Height:     probed.Height,
		FPS:        probed.FPS,
		FrameCount: probed.FrameCount,
		Loopable:   true,
	}
	v.buf = make([]byte, probed.Width*probed.Height*3)

	if err := v.startDecode(0); err != nil {
		return err
	}

	v.initialized = true
	return nil
}

func (v *Video) startDecode(startFrame int) error {
	v.stopDecode()

	args := "-threads 1 -loglevel error"
	if startFrame > 0 && v.info.FPS > 0 {
		seconds := float64(startFrame) / v.info.FPS
		args += fmt.Sprintf(" -ss %.3f", seconds)
	}
	args += " -i " + v.path +
		" -f rawvideo -pix_fmt rgb24 pipe:1"

	cmd := exec.Command(v.ffmpegBin, ffmpeg.ParseArgs(args)...)
	process := v.newProcess(cmd).
		Timeout(3 * time.Second).
		StderrLogger(v.logf)

	stdout, err := process.StdoutPipe()
	if err != nil {
		return fmt.Errorf("could not open stdout pipe: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := process.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("could not start decoder: %w", err)
	}

	v.process = process
	v.stdout = stdout
	v.reader = bufio.NewReaderSize(stdout, len(v.buf))
	v.cancel = cancel
	v.frameIndex = startFrame
	return nil
}

func (v *Video) stopDecode() {
	if v.cancel != nil {
		v.cancel()
		v.process.Wait() //nolint:errcheck
		v.stdout.Close()
		v.cancel = nil
	}
}

// NextFrame reads one decoded frame. At end-of-stream the last frame is
// returned together with ErrEndOfStream.
func (v *Video) NextFrame() (*frame.RGB24, time.Duration, error) {
	if !v.initialized {
		return nil, 0, fmt.Errorf("source not initialized: %v", v.path)
	}

	start := time.Now()
	if _, err := io.ReadFull(v.reader, v.buf); err != nil {
		if v.lastFrame == nil {
			v.lastFrame = frame.New(v.info.Width, v.info.Height)
		}
		return v.lastFrame, time.Since(start), ErrEndOfStream
	}

	img := frame.New(v.info.Width, v.info.Height)
	copy(img.Pix, v.buf)

	v.frameIndex++
	v.lastFrame = img
	return img, time.Since(start), nil
}

// Seek restarts the decoder at the given frame index.
func (v *Video) Seek(index int) error {
	if !v.initialized {
		return fmt.Errorf("source not initialized: %v", v.path)
	}
	return v.startDecode(index)
}

// Reset rewinds to the first frame.
func (v *Video) Reset() error {
	return v.Seek(0)
}

// Info returns the probed stream description.
func (v *Video) Info() Info {
	return v.info
}

// Close stops the decode process.
func (v *Video) Close() error {
	v.stopDecode()
	v.initialized = false
	v.lastFrame = nil
	return nil
}
