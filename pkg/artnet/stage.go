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
	"fmt"
	"net"
	"sync"

	"lvs/pkg/frame"
	"lvs/pkg/log"
)

// Sender transmits one universe worth of channel data.
type Sender interface {
	Send(universe uint16, data []byte) error
	Close() error
}

// UDPSender sends ArtDmx packets to a controller address.
type UDPSender struct {
	conn *net.UDPConn

	mu        sync.Mutex
	sequences map[uint16]byte
}

// NewUDPSender dials the controller. address is "host:port", port 6454
// by convention.
func NewUDPSender(address string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("could not resolve %v: %w", address, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("could not dial %v: %w", address, err)
	}
	return &UDPSender{
		conn:      conn,
		sequences: make(map[uint16]byte),
	}, nil
}

// Send transmits one ArtDmx packet with a per-universe monotonic
// sequence byte.
func (s *UDPSender) Send(universe uint16, data []byte) error {
	s.mu.Lock()
	seq := s.sequences[universe] + 1
	if seq == 0 {
		// Zero disables resequencing, skip it.
		seq = 1
	}
	s.sequences[universe] = seq
	s.mu.Unlock()

	packet, err := BuildPacket(universe, seq, data)
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(packet); err != nil {
		return fmt.Errorf("could not send universe %v: %w", universe, err)
	}
	return nil
}

// Close .
func (s *UDPSender) Close() error {
	return s.conn.Close()
}

// Stage is the Art-Net output stage, bound exclusively to the Art-Net
// player. The owning player goroutine is the only caller of
// OutputFrame; configuration may be swapped from other goroutines.
type Stage struct {
	points *PointSet
	sender Sender
	log    *log.Logger

	mu       sync.Mutex
	config   Config
	flat     []Point
	segments []Segment

	encoder deltaEncoder
}

// NewStage returns a stage for the given point set.
func NewStage(points *PointSet, sender Sender, config Config, logger *log.Logger) *Stage {
	s := &Stage{
		points: points,
		sender: sender,
		log:    logger,
		config: config,
	}
	s.flat = points.Flatten()
	s.segments = points.Partition(BytesPerPoint(config.BitDepth))
	return s
}

// Config returns the current configuration.
func (s *Stage) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// SetConfig live-reconfigures the delta encoder. Changing bit depth
// repartitions the universes and drops the delta baseline.
func (s *Stage) SetConfig(config Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if config.BitDepth != s.config.BitDepth {
		s.segments = s.points.Partition(BytesPerPoint(config.BitDepth))
		s.encoder.reset()
	}
	s.config = config
}

// OutputFrame samples the composited image and transmits changed
// universes, with a periodic full-frame sync. A send error drops the
// frame without touching the delta baseline, so the next successful
// frame re-transmits the changes.
func (s *Stage) OutputFrame(img *frame.RGB24) {
	s.mu.Lock()
	config := s.config
	segments := s.segments
	s.mu.Unlock()

	data := Sample(img, s.flat, config.BitDepth)
	bytesPerPoint := BytesPerPoint(config.BitDepth)

	p := s.encoder.decide(config, segments, data)
	if p.sendNothing() {
		s.encoder.commit(data)
		return
	}

	send := func(segment Segment) error {
		start := segment.Start * bytesPerPoint
		end := start + segment.Count*bytesPerPoint
		return s.sender.Send(segment.Universe, data[start:end])
	}

	if p.full {
		for _, segment := range segments {
			if err := send(segment); err != nil {
				s.log.Error().Src("artnet").Msgf("%v", err)
				return
			}
		}
	} else {
		for _, i := range p.segments {
			if err := send(segments[i]); err != nil {
				s.log.Error().Src("artnet").Msgf("%v", err)
				return
			}
		}
	}

	s.encoder.commit(data)
}
