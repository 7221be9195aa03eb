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

package system

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"lvs/pkg/log"
)

// SubsystemState per-subsystem health.
type SubsystemState string

// Subsystem states.
const (
	StateRunning  SubsystemState = "running"
	StateDegraded SubsystemState = "degraded"
	StateStopped  SubsystemState = "stopped"
	StateError    SubsystemState = "error"
)

// Subsystem health and last error of one subsystem.
type Subsystem struct {
	State     SubsystemState `json:"state"`
	LastError string         `json:"lastError,omitempty"`
}

// Status stores system status.
type Status struct {
	CPUUsage   int                  `json:"cpuUsage"`
	RAMUsage   int                  `json:"ramUsage"`
	Subsystems map[string]Subsystem `json:"subsystems"`
}

type (
	cpuFunc func(context.Context, time.Duration, bool) ([]float64, error)
	ramFunc func() (*mem.VirtualMemoryStat, error)
)

// System tracks resource usage and subsystem health.
type System struct {
	cpu cpuFunc
	ram ramFunc

	status   Status
	duration time.Duration

	log *log.Logger
	mu  sync.Mutex
}

// New returns System.
func New(logger *log.Logger) *System {
	return &System{
		cpu: cpu.PercentWithContext,
		ram: mem.VirtualMemory,

		status: Status{
			Subsystems: map[string]Subsystem{},
		},
		duration: 10 * time.Second,

		log: logger,
	}
}

// SetSubsystem records the health of one subsystem. No silent stalls:
// the status endpoint always carries the last error message.
func (s *System) SetSubsystem(name string, state SubsystemState, lastError string) {
	s.mu.Lock()
	s.status.Subsystems[name] = Subsystem{State: state, LastError: lastError}
	s.mu.Unlock()
}

func (s *System) update(ctx context.Context) error {
	cpuUsage, err := s.cpu(ctx, s.duration, false)
	if err != nil {
		return fmt.Errorf("could not get cpu usage %w", err)
	}
	ramUsage, err := s.ram()
	if err != nil {
		return fmt.Errorf("could not get ram usage %w", err)
	}

	s.mu.Lock()
	s.status.CPUUsage = int(cpuUsage[0])
	s.status.RAMUsage = int(ramUsage.UsedPercent)
	s.mu.Unlock()

	return nil
}

// StatusLoop updates the status until the context is canceled.
func (s *System) StatusLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := s.update(ctx); err != nil {
			s.log.Error().Src("app").Msgf("could not update system status: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.duration):
			}
		}
	}
}

// Status returns a copy of the current status.
func (s *System) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	subsystems := make(map[string]Subsystem, len(s.status.Subsystems))
	for name, subsystem := range s.status.Subsystems {
		subsystems[name] = subsystem
	}
	return Status{
		CPUUsage:   s.status.CPUUsage,
		RAMUsage:   s.status.RAMUsage,
		Subsystems: subsystems,
	}
}
