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

// Compiled point-set cache. Large point sets load without JSON parsing
// on every start.
//
// cache {
//     magic   [4]byte "lvsp"
//     version uint8
//     body    bit-packed
// }
//
// body {
//     width       16 bits
//     height      16 bits
//     objectCount 16 bits
//     []object
// }
//
// object {
//     pinned   1 bit
//     universe 14 bits
//     count    16 bits
//     []point
// }
//
// point {
//     x 20 bits, 16.4 fixed point
//     y 20 bits, 16.4 fixed point
// }

package artnet

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/icza/bitio"
)

const (
	cacheVersion    = 1
	coordFraction   = 16 // 4 fraction bits.
	coordBits       = 20
	maxCacheObjects = 1<<16 - 1
)

var cacheMagic = []byte("lvsp")

// Cache errors.
var (
	ErrCacheMagic   = errors.New("invalid cache magic")
	ErrCacheVersion = errors.New("unsupported cache version")
)

// WriteCache writes the compiled form of the point set.
func WriteCache(w io.Writer, ps *PointSet) error {
	if len(ps.Objects) > maxCacheObjects {
		return fmt.Errorf("too many objects: %v", len(ps.Objects))
	}
	if _, err := w.Write(cacheMagic); err != nil {
		return err
	}
	if _, err := w.Write([]byte{cacheVersion}); err != nil {
		return err
	}

	bw := bitio.NewWriter(w)
	bw.TryWriteBits(uint64(ps.Width), 16)
	bw.TryWriteBits(uint64(ps.Height), 16)
	bw.TryWriteBits(uint64(len(ps.Objects)), 16)

	for _, object := range ps.Objects {
		pinned := uint64(0)
		universe := uint64(0)
		if object.Universe >= 0 {
			pinned = 1
			universe = uint64(object.Universe) & 0x3fff
		}
		bw.TryWriteBits(pinned, 1)
		bw.TryWriteBits(universe, 14)
		bw.TryWriteBits(uint64(len(object.Points)), 16)

		for _, p := range object.Points {
			bw.TryWriteBits(uint64(p.X*coordFraction+0.5), coordBits)
			bw.TryWriteBits(uint64(p.Y*coordFraction+0.5), coordBits)
		}
	}

	if bw.TryError != nil {
		return fmt.Errorf("could not write cache: %w", bw.TryError)
	}
	return bw.Close()
}

// ReadCache reads a compiled point set.
func ReadCache(r io.Reader) (*PointSet, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("could not read cache header: %w", err)
	}
	if !bytes.Equal(header[:4], cacheMagic) {
		return nil, ErrCacheMagic
	}
	if header[4] != cacheVersion {
		return nil, fmt.Errorf("%w: %v", ErrCacheVersion, header[4])
	}

	br := bitio.NewReader(r)
	width := br.TryReadBits(16)
	height := br.TryReadBits(16)
	objectCount := br.TryReadBits(16)

	ps := &PointSet{
		Width:  int(width),
		Height: int(height),
	}

	for i := uint64(0); i < objectCount; i++ {
		pinned := br.TryReadBits(1)
		universe := br.TryReadBits(14)
		count := br.TryReadBits(16)

		object := Object{Universe: -1}
		if pinned == 1 {
			object.Universe = int(universe)
		}
		for p := uint64(0); p < count; p++ {
			x := br.TryReadBits(coordBits)
			y := br.TryReadBits(coordBits)
			object.Points = append(object.Points, Point{
				X: float64(x) / coordFraction,
				Y: float64(y) / coordFraction,
			})
		}
		ps.Objects = append(ps.Objects, object)
	}

	if br.TryError != nil {
		return nil, fmt.Errorf("could not read cache: %w", br.TryError)
	}
	return ps, nil
}
